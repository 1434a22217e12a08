package service

import (
	"context"
	"fmt"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"go.uber.org/zap"
)

const (
	// retrySweepBatch bounds one sweep so a large backlog drains across
	// successive sweeps instead of monopolizing a single one.
	retrySweepBatch = 50

	retryDispatchDelay = 100 * time.Millisecond
)

// RetrySweeper periodically re-attempts FAILED messages that still have
// retry budget. Each sweep handles at most retrySweepBatch records per
// channel, oldest first.
type RetrySweeper struct {
	dispatcher *Dispatcher
	interval   time.Duration
	maxRetries int
	logger     *zap.Logger
}

func NewRetrySweeper(dispatcher *Dispatcher, interval time.Duration, maxRetries int, logger *zap.Logger) (*RetrySweeper, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetrySweeper{
		dispatcher: dispatcher,
		interval:   interval,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Start blocks, sweeping both channels every interval until ctx is done.
func (s *RetrySweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("retry sweeper started",
		zap.Duration("interval", s.interval),
		zap.Int("maxRetries", s.maxRetries),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retry sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweepAll(ctx)
		}
	}
}

func (s *RetrySweeper) sweepAll(ctx context.Context) {
	for _, channel := range []domain.Channel{domain.ChannelEmail, domain.ChannelSMS} {
		retried, err := s.Sweep(ctx, channel, s.maxRetries)
		if err != nil {
			s.logger.Error("retry sweep failed",
				zap.String("channel", channel.String()),
				zap.Error(err),
			)
			continue
		}
		if retried > 0 {
			s.logger.Info("retry sweep finished",
				zap.String("channel", channel.String()),
				zap.Int("retried", retried),
			)
		}
	}
}

// Sweep re-attempts eligible FAILED messages on one channel and returns how
// many were successfully delivered this pass. maxRetries caps the retry
// budget for this pass only; non-positive falls back to the configured cap.
// Channels that are currently unconfigured are skipped outright so records
// keep their retry budget.
func (s *RetrySweeper) Sweep(ctx context.Context, channel domain.Channel, maxRetries int) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxRetries <= 0 {
		maxRetries = s.maxRetries
	}

	switch channel {
	case domain.ChannelEmail:
		if !s.dispatcher.resolver.Email(ctx).Enabled {
			return 0, nil
		}
	case domain.ChannelSMS:
		if !s.dispatcher.resolver.SMS(ctx).Enabled {
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
	}

	candidates, err := s.dispatcher.messages.ListFailedForRetry(ctx, channel, maxRetries, retrySweepBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list retry candidates: %w", err)
	}

	succeeded := 0
	for i := range candidates {
		if i > 0 {
			if err := sleepCtx(ctx, retryDispatchDelay); err != nil {
				return succeeded, err
			}
		}

		msg := candidates[i]
		ok, err := s.dispatcher.Redispatch(ctx, &msg)
		if err != nil {
			s.logger.Error("retry dispatch failed",
				zap.String("messageId", msg.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			succeeded++
		}
	}

	return succeeded, nil
}
