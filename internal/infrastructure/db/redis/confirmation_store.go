package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultConfirmationTTL = 72 * time.Hour

// consumeScript deletes the key only when it still holds the presented code,
// so a code can be redeemed at most once.
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ConfirmationStore keeps single-use email confirmation codes in Redis.
// Key format: confirm_email:<lower-cased email>
type ConfirmationStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewConfirmationStore creates a ConfirmationStore wrapping the given Redis client.
// Codes expire after ttl (defaultConfirmationTTL when ttl <= 0).
func NewConfirmationStore(client *redis.Client, ttl time.Duration) *ConfirmationStore {
	if ttl <= 0 {
		ttl = defaultConfirmationTTL
	}
	return &ConfirmationStore{client: client, ttl: ttl}
}

// Issue generates a fresh code for email, replacing any previous one.
func (s *ConfirmationStore) Issue(ctx context.Context, email string) (string, error) {
	code := uuid.NewString()
	if err := s.client.Set(ctx, confirmationKey(email), code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store confirmation code: %w", err)
	}
	return code, nil
}

// Consume reports whether code is the live code for email and invalidates it.
func (s *ConfirmationStore) Consume(ctx context.Context, email, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	n, err := consumeScript.Run(ctx, s.client, []string{confirmationKey(email)}, code).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("consume confirmation code: %w", err)
	}
	return n > 0, nil
}

func confirmationKey(email string) string {
	return "confirm_email:" + strings.ToLower(strings.TrimSpace(email))
}
