package services

import (
	"context"
	"errors"
	"mime"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/gomail.v2"

	"reliefboard/internal/models"
)

type fakeBot struct {
	sent []tgbotapi.Chattable
	err  error
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, b.err
}

type fakeMailer struct {
	sent []*gomail.Message
}

func (m *fakeMailer) DialAndSend(msgs ...*gomail.Message) error {
	m.sent = append(m.sent, msgs...)
	return nil
}

func sampleTask() models.Task {
	return models.Task{
		ID:                     "42",
		Title:                  "清理<泥沙>",
		Description:            "馬太鞍溪沿岸住家",
		Type:                   models.TypeCleanup,
		WorkLocation:           "光復鄉大全村",
		RequiredNumberOfPeople: 8,
		DangerLevel:            2,
	}
}

func TestTelegramService_Notify(t *testing.T) {
	bot := &fakeBot{}
	tg := NewTelegramServiceWithBot(bot, -100123, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, tg.Notify(ctx, TaskNotice{Event: NoticeTaskCreated, Task: sampleTask()}))
	require.NoError(t, tg.Notify(ctx, TaskNotice{Event: NoticeTaskClaimed, Task: sampleTask(), Actor: "阿明"}))
	require.NoError(t, tg.Notify(ctx, TaskNotice{Event: "task.deleted", Task: sampleTask()}))
	require.Len(t, bot.sent, 2)

	created, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-100123), created.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, created.ParseMode)
	assert.Contains(t, created.Text, "清理&lt;泥沙&gt;")
	assert.Contains(t, created.Text, "環境清理")
	assert.Contains(t, created.Text, "需要人數：8")

	claimed := bot.sent[1].(tgbotapi.MessageConfig)
	assert.Contains(t, claimed.Text, "認領者：阿明")
}

func TestTelegramService_Disabled(t *testing.T) {
	var tg *TelegramService
	assert.NoError(t, tg.Notify(context.Background(), TaskNotice{Event: NoticeTaskCreated}))

	svc, err := NewTelegramService("", 0, nil)
	require.NoError(t, err)
	assert.Nil(t, svc)
}

func TestTelegramService_SendError(t *testing.T) {
	bot := &fakeBot{err: errors.New("chat not found")}
	tg := NewTelegramServiceWithBot(bot, 1, zaptest.NewLogger(t))
	err := tg.Notify(context.Background(), TaskNotice{Event: NoticeTaskCreated, Task: sampleTask()})
	assert.ErrorContains(t, err, "chat not found")
}

func TestEmailService_OnlyNewTasks(t *testing.T) {
	mailer := &fakeMailer{}
	svc := NewEmailServiceWithSender(mailer, "noreply@example.org", []string{"coord@example.org", "ops@example.org"})
	ctx := context.Background()

	require.NoError(t, svc.Notify(ctx, TaskNotice{Event: NoticeTaskClaimed, Task: sampleTask()}))
	assert.Empty(t, mailer.sent)

	require.NoError(t, svc.Notify(ctx, TaskNotice{Event: NoticeTaskCreated, Task: sampleTask()}))
	require.Len(t, mailer.sent, 1)
	m := mailer.sent[0]
	assert.Equal(t, []string{"noreply@example.org"}, m.GetHeader("From"))
	assert.Equal(t, []string{"coord@example.org", "ops@example.org"}, m.GetHeader("To"))
	subject := m.GetHeader("Subject")
	require.Len(t, subject, 1)
	// gomail stores non-ASCII headers Q-encoded
	decoded, err := new(mime.WordDecoder).DecodeHeader(subject[0])
	require.NoError(t, err)
	assert.Equal(t, "[災後救援] 新任務：清理<泥沙>", decoded)
}

func TestEmailService_NoRecipients(t *testing.T) {
	mailer := &fakeMailer{}
	svc := NewEmailServiceWithSender(mailer, "noreply@example.org", nil)
	require.NoError(t, svc.Notify(context.Background(), TaskNotice{Event: NoticeTaskCreated, Task: sampleTask()}))
	assert.Empty(t, mailer.sent)
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, TaskNotice) error { return f.err }

func TestNotifiers_JoinsErrors(t *testing.T) {
	rec := &recordingNotifier{}
	errA := errors.New("a down")
	ns := Notifiers{failingNotifier{errA}, nil, rec}

	err := ns.Notify(context.Background(), TaskNotice{Event: NoticeTaskCreated})
	assert.ErrorIs(t, err, errA)
	assert.Len(t, rec.all(), 1, "later notifiers still run")

	assert.NoError(t, Notifiers(nil).Notify(context.Background(), TaskNotice{}))
}
