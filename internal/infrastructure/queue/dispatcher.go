package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/protomind/user-service/internal/api/metrics"
	"github.com/protomind/user-service/internal/core/domain"
	"github.com/protomind/user-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	sendTimeout    = 30 * time.Second
)

var (
	// ErrDispatcherClosed is returned by Enqueue once Shutdown has begun.
	ErrDispatcherClosed = errors.New("mail dispatcher closed")
	// ErrQueueFull is returned by Enqueue when the recipient's worker has no
	// buffer left.
	ErrQueueFull = errors.New("mail queue full")
)

// MailDispatcher delivers queued mail on a fixed set of workers. Mail is
// sharded by recipient, so messages to one address go out in enqueue order.
type MailDispatcher struct {
	workers []chan domain.Mail
	sender  ports.MailSender
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewMailDispatcher creates a MailDispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewMailDispatcher(numWorkers int, sender ports.MailSender, log zerolog.Logger) *MailDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &MailDispatcher{
		workers: make([]chan domain.Mail, numWorkers),
		sender:  sender,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.Mail, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled or
// once Shutdown has drained their channel.
func (d *MailDispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands mail to the worker responsible for its recipient. It never
// blocks: a full worker buffer yields ErrQueueFull.
func (d *MailDispatcher) Enqueue(ctx context.Context, mail domain.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	idx := d.shardIndex(mail.To)
	select {
	case d.workers[idx] <- mail:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	default:
		d.log.Warn().Str("view", mail.View).Int("worker_id", idx).Msg("mail queue full")
		return ErrQueueFull
	}
}

// Shutdown stops accepting mail and waits until queued mail is delivered or
// ctx expires.
func (d *MailDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *MailDispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(recipient)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *MailDispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.Mail) {
	defer d.wg.Done()
	worker := strconv.Itoa(id)

	for {
		select {
		case <-ctx.Done():
			return
		case mail, ok := <-ch:
			if !ok {
				return
			}
			metrics.MailQueueDepth.WithLabelValues(worker).Set(float64(len(ch)))
			d.deliver(ctx, id, mail)
		}
	}
}

func (d *MailDispatcher) deliver(ctx context.Context, worker int, mail domain.Mail) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	start := time.Now()
	err := d.sender.Send(sendCtx, mail)
	result := "sent"
	if err != nil {
		result = "failed"
		d.log.Error().Err(err).
			Str("view", mail.View).
			Int("worker_id", worker).
			Msg("mail delivery failed")
	}
	metrics.MailsSentTotal.WithLabelValues(mail.View, result).Inc()
	metrics.MailDeliveryDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}
