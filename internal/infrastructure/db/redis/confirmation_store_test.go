package redis

import (
	"testing"
	"time"
)

func TestConfirmationKey_NormalisesEmail(t *testing.T) {
	if got := confirmationKey("  A@X.com "); got != "confirm_email:a@x.com" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewConfirmationStore_DefaultTTL(t *testing.T) {
	s := NewConfirmationStore(nil, 0)
	if s.ttl != defaultConfirmationTTL {
		t.Fatalf("expected default ttl, got %s", s.ttl)
	}
	if s := NewConfirmationStore(nil, time.Minute); s.ttl != time.Minute {
		t.Fatalf("expected custom ttl, got %s", s.ttl)
	}
}
