package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/example/maintrack/internal/mq"
)

// Reloader refreshes the request store from its source of truth.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Refresher reloads the request store on a fixed interval and whenever a request
// event arrives from another board instance. Bursts of events collapse into one reload.
type Refresher struct {
	id       string
	reloader Reloader
	consumer mq.Consumer
	interval time.Duration
	trigger  chan struct{}
	logger   *zap.Logger
}

// NewRefresher creates the worker with a random identifier. consumer may be nil.
func NewRefresher(reloader Reloader, consumer mq.Consumer, interval time.Duration, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Refresher{
		id:       id,
		reloader: reloader,
		consumer: consumer,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   logger.With(zap.String("worker_id", id)),
	}
}

// Trigger schedules a reload without waiting for it.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run starts the loop and should be launched in its own goroutine.
func (r *Refresher) Run(ctx context.Context) {
	if r.consumer != nil {
		if err := r.consumer.Consume(r.handle); err != nil {
			r.logger.Warn("request event subscription failed, relying on interval", zap.Error(err))
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher shutting down")
			return
		case <-ticker.C:
			r.reload(ctx)
		case <-r.trigger:
			r.reload(ctx)
		}
	}
}

func (r *Refresher) handle(msg amqp091.Delivery) {
	r.logger.Debug("request event received", zap.String("routing_key", msg.RoutingKey))
	r.Trigger()
	if err := msg.Ack(false); err != nil {
		r.logger.Warn("ack request event failed", zap.Error(err))
	}
}

func (r *Refresher) reload(ctx context.Context) {
	if err := r.reloader.Reload(ctx); err != nil {
		r.logger.Warn("request store reload failed", zap.Error(err))
	}
}
