package service

import (
	"context"
	"fmt"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/repository"
)

// Stats summarizes one channel over a trailing window. Rates are fractions
// of the window total in [0, 1]; an empty window reports zeros.
type Stats struct {
	Channel      domain.Channel   `json:"channel"`
	Days         int              `json:"days"`
	Total        int64            `json:"total"`
	ByStatus     map[string]int64 `json:"byStatus"`
	ByCategory   map[string]int64 `json:"byCategory"`
	DeliveryRate float64          `json:"deliveryRate"`
	OpenRate     float64          `json:"openRate"`
	BounceRate   float64          `json:"bounceRate"`
	FailureRate  float64          `json:"failureRate"`
	Segments     int64            `json:"segments,omitempty"`
}

// StatsAggregator computes windowed delivery statistics from the message
// records.
type StatsAggregator struct {
	messages repository.MessageRepository
	now      func() time.Time
}

func NewStatsAggregator(messages repository.MessageRepository) (*StatsAggregator, error) {
	if messages == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	return &StatsAggregator{messages: messages, now: time.Now}, nil
}

// GetStats aggregates one channel over the last days days. days outside
// [1, 365] is clamped.
func (a *StatsAggregator) GetStats(ctx context.Context, channel domain.Channel, days int) (*Stats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !channel.IsValid() {
		return nil, fmt.Errorf("%w: invalid channel %q", domain.ErrValidation, channel)
	}
	if days < 1 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	since := a.now().UTC().AddDate(0, 0, -days)

	statusCounts, err := a.messages.CountByStatus(ctx, channel, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages by status: %w", err)
	}
	categoryCounts, err := a.messages.CountByCategory(ctx, channel, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages by category: %w", err)
	}

	stats := &Stats{
		Channel:    channel,
		Days:       days,
		ByStatus:   make(map[string]int64, len(statusCounts)),
		ByCategory: make(map[string]int64, len(categoryCounts)),
	}

	for _, sc := range statusCounts {
		stats.ByStatus[sc.Status.String()] = sc.Count
		stats.Total += sc.Count
	}
	for _, cc := range categoryCounts {
		stats.ByCategory[cc.Category.String()] = cc.Count
	}

	if stats.Total > 0 {
		delivered := stats.ByStatus[domain.StatusDelivered.String()] +
			stats.ByStatus[domain.StatusOpened.String()] +
			stats.ByStatus[domain.StatusClicked.String()]
		opened := stats.ByStatus[domain.StatusOpened.String()] +
			stats.ByStatus[domain.StatusClicked.String()]

		total := float64(stats.Total)
		stats.DeliveryRate = float64(delivered) / total
		stats.OpenRate = float64(opened) / total
		stats.BounceRate = float64(stats.ByStatus[domain.StatusBounced.String()]) / total
		stats.FailureRate = float64(stats.ByStatus[domain.StatusFailed.String()]) / total
	}

	if channel == domain.ChannelSMS {
		segments, err := a.messages.SumSegments(ctx, since)
		if err != nil {
			return nil, fmt.Errorf("failed to sum sms segments: %w", err)
		}
		stats.Segments = segments
	}

	return stats, nil
}
