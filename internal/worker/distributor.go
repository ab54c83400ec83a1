// Package worker runs the exchange's background loops.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lllfutures/exchange/internal/service"
)

// Distributor drains the reward queue on a fixed interval. One drain pass
// runs at a time; individual reward failures stay inside the pass, so only
// infrastructure errors tear the worker down.
type Distributor struct {
	rewards   *service.RewardService
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewDistributor creates a Distributor.
func NewDistributor(rewards *service.RewardService, interval time.Duration, batchSize int, logger *slog.Logger) *Distributor {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{
		rewards:   rewards,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "distributor")),
	}
}

// Run starts the drain loop and blocks until ctx is cancelled. Each tick
// drains one batch of pending rewards.
func (d *Distributor) Run(ctx context.Context) error {
	d.logger.Info("reward distributor starting",
		slog.Duration("interval", d.interval),
		slog.Int("batch_size", d.batchSize))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := d.drainOnce(ctx); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					return fmt.Errorf("distributor: drain pass: %w", err)
				}
			}
		}
	})

	err := g.Wait()
	if err != nil {
		d.logger.Error("reward distributor stopped with error", slog.String("error", err.Error()))
		return err
	}
	d.logger.Info("reward distributor stopped")
	return nil
}

func (d *Distributor) drainOnce(ctx context.Context) error {
	_, _, err := d.rewards.DrainPending(ctx, d.batchSize)
	return err
}
