package ports

import (
	"context"

	"github.com/protomind/user-service/internal/core/domain"
)

// Notifier informs a freshly created account how to sign in.
type Notifier interface {
	SendConfirmEmail(ctx context.Context, user *domain.User, plainPassword string) error
}

// ConfirmationStore issues and redeems single-use email confirmation codes.
type ConfirmationStore interface {
	Issue(ctx context.Context, email string) (string, error)
	// Consume reports whether code is the live code for email and, if so,
	// invalidates it.
	Consume(ctx context.Context, email, code string) (bool, error)
}

// MailQueue accepts mail for asynchronous delivery.
type MailQueue interface {
	Enqueue(ctx context.Context, mail domain.Mail) error
}

// MailSender delivers a single mail synchronously.
type MailSender interface {
	Send(ctx context.Context, mail domain.Mail) error
}
