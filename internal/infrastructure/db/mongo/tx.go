package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/protomind/user-service/internal/core/ports"
)

// TxRunner runs a unit of work inside a multi-document transaction. On a
// standalone server, where transactions are unavailable, the work runs
// without one.
type TxRunner struct {
	client *mongo.Client
	stores ports.TxStores
	logger zerolog.Logger
	warn   sync.Once
}

func NewTxRunner(client *mongo.Client, db *mongo.Database, logger zerolog.Logger) *TxRunner {
	return &TxRunner{
		client: client,
		stores: ports.TxStores{
			Users:              NewUserRepository(db),
			ManagerSecretaries: NewManagerSecretaryRepository(db),
		},
		logger: logger,
	}
}

// WithinTx executes fn in a transaction. The session travels inside the ctx
// passed to fn, so the stores join it as long as fn uses that ctx.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, stores ports.TxStores) error) error {
	sess, err := r.client.StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return r.withoutTx(ctx, fn, err)
		}
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, r.stores)
	})
	if err != nil && IsNotSupported(err) {
		return r.withoutTx(ctx, fn, err)
	}
	return err
}

func (r *TxRunner) withoutTx(ctx context.Context, fn func(ctx context.Context, stores ports.TxStores) error, cause error) error {
	r.warn.Do(func() {
		r.logger.Warn().Err(cause).Msg("mongo transactions unavailable, running without transaction")
	})
	return fn(ctx, r.stores)
}

// IsNotSupported reports whether err means the deployment cannot run
// transactions (standalone server, no sessions).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	hasTxn := strings.Contains(msg, "transaction")
	hasSession := strings.Contains(msg, "session")
	switch {
	case hasTxn && (strings.Contains(msg, "replica set") || hasSession):
		return true
	case hasSession && strings.Contains(msg, "not supported"):
		return true
	case strings.Contains(msg, "illegal operation"):
		return true
	}
	return false
}
