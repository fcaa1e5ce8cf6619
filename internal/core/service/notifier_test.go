package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/protomind/user-service/internal/core/domain"
)

func TestConfirmEmailNotifier_QueuesMailWithLinkAndPassword(t *testing.T) {
	codes := newStubConfirmationStore()
	queue := &stubMailQueue{}
	n := NewConfirmEmailNotifier(codes, queue, "https://app.protomind.io/create-password", zerolog.Nop())

	user := &domain.User{ID: "42", Name: "A", Email: "a@x.com"}
	if err := n.SendConfirmEmail(context.Background(), user, "p"); err != nil {
		t.Fatalf("SendConfirmEmail returned error: %v", err)
	}

	if len(queue.mails) != 1 {
		t.Fatalf("expected one queued mail, got %d", len(queue.mails))
	}
	m := queue.mails[0]
	if m.To != "a@x.com" || m.Subject != domain.ConfirmEmailSubject || m.View != domain.ConfirmEmailView {
		t.Fatalf("unexpected mail envelope %+v", m)
	}
	wantLink := "https://app.protomind.io/create-password?code=" + codes.codes["a@x.com"] + "&email=a%40x.com"
	if m.Data["link"] != wantLink {
		t.Fatalf("link = %v, want %s", m.Data["link"], wantLink)
	}
	if m.Data["password"] != "p" || m.Data["name"] != "A" {
		t.Fatalf("unexpected mail data %+v", m.Data)
	}
}

func TestConfirmEmailNotifier_IssueFailure(t *testing.T) {
	codes := newStubConfirmationStore()
	codes.issueErr = errStoreDown
	queue := &stubMailQueue{}
	n := NewConfirmEmailNotifier(codes, queue, "https://app", zerolog.Nop())

	err := n.SendConfirmEmail(context.Background(), &domain.User{Email: "a@x.com"}, "p")
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected issue error, got %v", err)
	}
	if len(queue.mails) != 0 {
		t.Fatalf("nothing may be queued without a code")
	}
}
