package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

// ConfirmEmailNotifier issues a confirmation code for a new account and queues
// the confirm-email message. Delivery happens asynchronously.
type ConfirmEmailNotifier struct {
	codes   ports.ConfirmationStore
	queue   ports.MailQueue
	baseURL string
	logger  zerolog.Logger
}

func NewConfirmEmailNotifier(codes ports.ConfirmationStore, queue ports.MailQueue, baseURL string, logger zerolog.Logger) *ConfirmEmailNotifier {
	return &ConfirmEmailNotifier{codes: codes, queue: queue, baseURL: baseURL, logger: logger}
}

func (n *ConfirmEmailNotifier) SendConfirmEmail(ctx context.Context, user *domain.User, plainPassword string) error {
	code, err := n.codes.Issue(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("issue confirmation code: %w", err)
	}

	mail := domain.NewConfirmEmailNotification(n.baseURL, code, user.Email, plainPassword)
	mail.Data["name"] = user.Name

	if err := n.queue.Enqueue(ctx, mail); err != nil {
		return fmt.Errorf("enqueue confirm email: %w", err)
	}

	n.logger.Debug().Str("user_id", user.ID).Msg("confirm email queued")
	return nil
}
