package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramSender is the part of *tgbotapi.BotAPI the notifier uses.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramService posts task notices to one coordination chat.
type TelegramService struct {
	bot    TelegramSender
	chatID int64
	logger *zap.Logger
}

// NewTelegramService connects to the Bot API. An empty token yields a nil
// service and no error: notifications are optional.
func NewTelegramService(token string, chatID int64, logger *zap.Logger) (*TelegramService, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewTelegramServiceWithBot(bot, chatID, logger), nil
}

func NewTelegramServiceWithBot(bot TelegramSender, chatID int64, logger *zap.Logger) *TelegramService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramService{bot: bot, chatID: chatID, logger: logger}
}

func (t *TelegramService) Notify(_ context.Context, n TaskNotice) error {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return nil
	}
	text := telegramText(n)
	if text == "" {
		return nil
	}
	return t.SendMessage(text)
}

func (t *TelegramService) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Warn("[tg][send][err]", zap.Int64("chat_id", t.chatID), zap.Error(err))
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	t.logger.Debug("[tg][send][ok]", zap.Int64("chat_id", t.chatID))
	return nil
}

func telegramText(n TaskNotice) string {
	task := n.Task
	title := html.EscapeString(task.Title)
	if title == "" {
		title = "#" + html.EscapeString(task.ID)
	}
	var b strings.Builder
	switch n.Event {
	case NoticeTaskCreated:
		fmt.Fprintf(&b, "📌 <b>新任務</b>：%s\n", title)
		fmt.Fprintf(&b, "類型：%s\n", task.Type.Label())
		if task.WorkLocation != "" {
			fmt.Fprintf(&b, "地點：%s\n", html.EscapeString(task.WorkLocation))
		}
		fmt.Fprintf(&b, "需要人數：%d　危險等級：%d", task.RequiredNumberOfPeople, task.DangerLevel)
	case NoticeTaskClaimed:
		fmt.Fprintf(&b, "🙋 <b>任務已被認領</b>：%s", title)
		if n.Actor != "" {
			fmt.Fprintf(&b, "\n認領者：%s", html.EscapeString(n.Actor))
		}
	default:
		return ""
	}
	return b.String()
}
