package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Inter-message pause per channel. SMTP relays tolerate faster bursts than
// carrier gateways, hence the asymmetry.
const (
	bulkEmailDelay = 100 * time.Millisecond
	bulkSMSDelay   = 200 * time.Millisecond
)

// BulkResult aggregates one bulk run. Results holds one entry per input
// request, in input order.
type BulkResult struct {
	Total   int          `json:"total"`
	Sent    int          `json:"sent"`
	Failed  int          `json:"failed"`
	Results []SendResult `json:"results"`
}

// SendBulkEmails sends sequentially with a pause between messages. A
// non-positive delay falls back to the channel default. A failed send never
// stops the run; context cancellation does, returning the partial result.
func (d *Dispatcher) SendBulkEmails(ctx context.Context, reqs []EmailRequest, delay time.Duration) (BulkResult, error) {
	if delay <= 0 {
		delay = bulkEmailDelay
	}
	return d.sendBulk(ctx, len(reqs), delay, func(ctx context.Context, i int) (SendResult, error) {
		return d.SendEmail(ctx, reqs[i])
	})
}

// SendBulkSMS is the SMS counterpart of SendBulkEmails.
func (d *Dispatcher) SendBulkSMS(ctx context.Context, reqs []SMSRequest, delay time.Duration) (BulkResult, error) {
	if delay <= 0 {
		delay = bulkSMSDelay
	}
	return d.sendBulk(ctx, len(reqs), delay, func(ctx context.Context, i int) (SendResult, error) {
		return d.SendSMS(ctx, reqs[i])
	})
}

func (d *Dispatcher) sendBulk(
	ctx context.Context,
	total int,
	delay time.Duration,
	send func(ctx context.Context, i int) (SendResult, error),
) (BulkResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := BulkResult{
		Total:   total,
		Results: make([]SendResult, 0, total),
	}

	for i := 0; i < total; i++ {
		if i > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return result, err
			}
		}

		res, err := send(ctx, i)
		if err != nil {
			// Persistence failure: record it in the slot and keep going so the
			// remaining recipients still get their messages.
			d.logger.Error("bulk send aborted for one recipient", zap.Int("index", i), zap.Error(err))
			res = SendResult{Error: err.Error()}
		}

		result.Results = append(result.Results, res)
		if res.Success {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
