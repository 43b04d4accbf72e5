package inventory

import (
	"context"
	"fmt"
	"github.com/ariefcatur/lexshelf-orders/internal/metrics"
	"github.com/ariefcatur/lexshelf-orders/internal/orders"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"time"
)

type StaleReleaser interface {
	ReleaseStale(ctx context.Context, cutoff time.Time, limit int) ([]orders.Reservation, error)
}

type EventPublisher interface {
	PublishEvent(topic, key, eventType string, payload any) error
}

const ReasonExpired = "RESERVATION_EXPIRED"

// Reaper returns stock held by reservations that never reached commit, for
// example because the API process died between reserve and write.
type Reaper struct {
	Ledger    StaleReleaser
	Publisher EventPublisher // optional
	Metrics   *metrics.Collector
	TTL       time.Duration
	Batch     int
	Now       func() time.Time
}

// RunOnce releases every reservation older than TTL, a batch at a time, and
// reports how many were released.
func (r *Reaper) RunOnce(ctx context.Context) (int, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	cutoff := now().Add(-r.TTL)

	total := 0
	for {
		released, err := r.Ledger.ReleaseStale(ctx, cutoff, batch)
		total += len(released)
		r.Metrics.RecordReaped(len(released))
		for _, res := range released {
			zap.L().Warn("reservation expired, stock released",
				zap.String("reservation_id", res.ID), zap.Time("reserved_at", res.CreatedAt), zap.Int("lines", len(res.Items)))
			r.publish(res)
		}
		if err != nil {
			return total, fmt.Errorf("release stale reservations: %w", err)
		}
		if len(released) < batch || ctx.Err() != nil {
			return total, nil
		}
	}
}

func (r *Reaper) publish(res orders.Reservation) {
	if r.Publisher == nil {
		return
	}
	err := r.Publisher.PublishEvent(orders.TopicStockReleased, res.ID, orders.EventStockReleased,
		orders.StockReleasedPayload{ReservationID: res.ID, Reason: ReasonExpired, Items: res.Items})
	if err != nil {
		zap.L().Error("publish stock released", zap.String("reservation_id", res.ID), zap.Error(err))
	}
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Schedule registers RunOnce on a new cron scheduler. The caller starts and stops it.
func (r *Reaper) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		defer func() {
			if err := recover(); err != nil {
				zap.S().Error("reaper panic: ", err)
			}
		}()
		n, err := r.RunOnce(ctx)
		if err != nil {
			zap.L().Error("reaper run failed", zap.Int("released", n), zap.Error(err))
			return
		}
		if n > 0 {
			zap.L().Info("reaper run", zap.Int("released", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule reaper %q: %w", spec, err)
	}
	return c, nil
}
