// Package notify delivers operator notices: halts, timeouts and daily
// summaries.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"

	"alpha-volume-bot/internal/interfaces"
	"alpha-volume-bot/internal/logger"
	"alpha-volume-bot/internal/types"
)

// Format renders a notice as plain text.
func Format(n types.Notice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(string(n.Level)), n.Title)
	if !n.At.IsZero() {
		fmt.Fprintf(&b, " (%s)", n.At.Format("2006-01-02 15:04:05"))
	}
	if n.Message != "" {
		b.WriteString("\n")
		b.WriteString(n.Message)
	}
	return b.String()
}

// Log writes notices to the structured log.
type Log struct{}

var _ interfaces.Notifier = Log{}

func (Log) Notify(ctx context.Context, n types.Notice) error {
	switch n.Level {
	case types.NoticeError:
		logger.Error(ctx, n.Title, "message", n.Message)
	case types.NoticeWarn:
		logger.Warn(ctx, n.Title, "message", n.Message)
	default:
		logger.Info(ctx, n.Title, "message", n.Message)
	}
	return nil
}

// Telegram sends notices to one chat.
type Telegram struct {
	bot    *bot.Bot
	chatID int64
}

var _ interfaces.Notifier = (*Telegram)(nil)

func NewTelegram(token string, chatID int64, opts ...bot.Option) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is not set")
	}
	b, err := bot.New(token, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, n types.Notice) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   Format(n),
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Multi fans a notice out to every notifier. A failing notifier does not
// stop the others.
type Multi []interfaces.Notifier

var _ interfaces.Notifier = Multi(nil)

func (m Multi) Notify(ctx context.Context, n types.Notice) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			logger.ErrorWithErr(ctx, "Notification failed (ignored)", err, "title", n.Title)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
