// Package notify tells a guardian over Telegram when a whiteboard session
// completes.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/JaimeStill/mentor/internal/feedback"
)

// Sender is the subset of the bot API used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends completion summaries to a single chat.
type Notifier struct {
	sender Sender
	chatID int64
	logger *slog.Logger
}

// New connects to the bot API. A disabled config yields a Notifier whose
// Enricher does nothing.
func New(cfg *Config, logger *slog.Logger) (*Notifier, error) {
	n := &Notifier{
		chatID: cfg.ChatID,
		logger: logger.With("system", "notify"),
	}
	if !cfg.Enabled() {
		n.logger.Info("guardian notifications disabled")
		return n, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	n.sender = bot

	n.logger.Info("guardian notifications enabled", "bot", bot.Self.UserName)
	return n, nil
}

// NewWithSender builds a Notifier around an existing sender.
func NewWithSender(sender Sender, chatID int64, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		chatID: chatID,
		logger: logger.With("system", "notify"),
	}
}

// Enabled reports whether messages will be sent.
func (n *Notifier) Enabled() bool {
	return n.sender != nil
}

// Notify sends the completion summary. The bot API call itself is not
// cancellable, so ctx only bounds how long the caller waits for it.
func (n *Notifier) Notify(ctx context.Context, c feedback.Completion) error {
	if !n.Enabled() {
		return nil
	}

	msg := tgbotapi.NewMessage(n.chatID, Summary(c))
	done := make(chan error, 1)
	go func() {
		_, err := n.sender.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send notification: %w", err)
		}
		n.logger.Info("guardian notified", "session", c.SessionID)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enricher adapts Notify to the finalizer's enrichment hook.
func (n *Notifier) Enricher() feedback.Enricher {
	return n.Notify
}

// Summary renders the guardian message for a completion.
func Summary(c feedback.Completion) string {
	var b strings.Builder

	if c.Solved {
		b.WriteString("Problem solved")
	} else {
		b.WriteString("Session finished")
	}
	fmt.Fprintf(&b, " after %d %s.\n", c.Attempts, plural(c.Attempts, "attempt", "attempts"))

	if p := strings.TrimSpace(c.Problem); p != "" {
		fmt.Fprintf(&b, "\nProblem: %s\n", p)
	}
	if f := strings.TrimSpace(c.LastFeedback); f != "" {
		fmt.Fprintf(&b, "Last feedback: %s\n", f)
	}
	if r := strings.TrimSpace(c.Review); r != "" {
		fmt.Fprintf(&b, "\nReview: %s\n", r)
	}

	return strings.TrimRight(b.String(), "\n")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
