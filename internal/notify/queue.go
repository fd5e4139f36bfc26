package notify

import (
	"context"
	"sync/atomic"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Mailer sends a rendered email.
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// QueueConfig sizes the delivery pipeline.
type QueueConfig struct {
	Workers int
	Size    int
}

// Queue buffers messages and delivers them with a fixed worker pool.
type Queue struct {
	msgs     chan Message
	mailer   Mailer
	renderer *Renderer
	lg       *zap.Logger
	workers  int

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewQueue creates a Queue. Call Run to start delivering.
func NewQueue(mailer Mailer, renderer *Renderer, lg *zap.Logger, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	return &Queue{
		msgs:     make(chan Message, cfg.Size),
		mailer:   mailer,
		renderer: renderer,
		lg:       lg,
		workers:  cfg.Workers,
	}
}

// Enqueue schedules msg for delivery without blocking. When the buffer is
// full the message is dropped and logged.
func (q *Queue) Enqueue(_ context.Context, msg Message) {
	select {
	case q.msgs <- msg:
	default:
		q.dropped.Add(1)
		q.lg.Warn("Notification queue full, dropping message",
			zap.String("to", msg.To),
			zap.String("template", string(msg.Template)),
		)
	}
}

// Backlog returns the number of messages waiting for a worker.
func (q *Queue) Backlog() int {
	return len(q.msgs)
}

// Capacity returns the buffer size.
func (q *Queue) Capacity() int {
	return cap(q.msgs)
}

// Stats returns delivery counters.
func (q *Queue) Stats() (sent, failed, dropped int64) {
	return q.sent.Load(), q.failed.Load(), q.dropped.Load()
}

// Run delivers messages until ctx is cancelled, then drains what is already
// buffered using a fresh context.
func (q *Queue) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range q.workers {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case msg := <-q.msgs:
					q.deliver(gctx, msg)
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "notification workers")
	}

	q.drain(context.WithoutCancel(ctx))
	return nil
}

func (q *Queue) drain(ctx context.Context) {
	for {
		select {
		case msg := <-q.msgs:
			q.deliver(ctx, msg)
		default:
			return
		}
	}
}

func (q *Queue) deliver(ctx context.Context, msg Message) {
	lg := q.lg.With(
		zap.String("to", msg.To),
		zap.String("template", string(msg.Template)),
	)

	body, err := q.renderer.Render(msg)
	if err != nil {
		q.failed.Add(1)
		lg.Error("Render notification", zap.Error(err))
		return
	}
	if err := q.mailer.Send(ctx, msg.To, msg.Subject, body); err != nil {
		q.failed.Add(1)
		lg.Error("Send notification", zap.Error(err))
		return
	}
	q.sent.Add(1)
	lg.Debug("Notification sent")
}
