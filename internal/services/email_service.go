package services

import (
	"context"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

// MailSender is satisfied by *gomail.Dialer.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService mails task notices to the coordinators' list.
type EmailService interface {
	Notifier
	SendTaskNotice(n TaskNotice) error
}

type emailService struct {
	sender MailSender
	from   string
	to     []string
}

func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string, to []string) EmailService {
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return NewEmailServiceWithSender(dialer, fromEmail, to)
}

func NewEmailServiceWithSender(sender MailSender, fromEmail string, to []string) EmailService {
	return &emailService{sender: sender, from: fromEmail, to: to}
}

func (s *emailService) Notify(_ context.Context, n TaskNotice) error {
	// по почте уходят только новые задачи
	if n.Event != NoticeTaskCreated || len(s.to) == 0 {
		return nil
	}
	return s.SendTaskNotice(n)
}

func (s *emailService) SendTaskNotice(n TaskNotice) error {
	t := n.Task
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to...)
	m.SetHeader("Subject", fmt.Sprintf("[災後救援] 新任務：%s", t.Title))

	body := fmt.Sprintf(`
		<h2>%s</h2>
		<p>類型：%s</p>
		<p>地點：%s</p>
		<p>需要人數：%d，危險等級：%d</p>
		<p>%s</p>
	`,
		html.EscapeString(t.Title),
		html.EscapeString(t.Type.Label()),
		html.EscapeString(t.WorkLocation),
		t.RequiredNumberOfPeople,
		t.DangerLevel,
		html.EscapeString(t.Description),
	)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send task notice email: %w", err)
	}
	return nil
}
