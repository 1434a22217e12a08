package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/observability"
	"github.com/campushq/messaging/internal/provider"
	"go.uber.org/zap"
)

func seedFailedMessage(t *testing.T, repo *fakeMessageRepo, id string, channel domain.Channel, retryCount int, createdAt time.Time) {
	t.Helper()

	msg := &domain.Message{
		ID:        id,
		Channel:   channel,
		Category:  domain.CategoryTransactional,
		Recipient: "+15551234567",
		Subject:   "s",
		HTMLBody:  "<p>b</p>",
		TextBody:  "b",
		Status:    domain.StatusQueued,
		CreatedAt: createdAt,
	}
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	repo.mu.Lock()
	repo.records[id].Status = domain.StatusFailed
	repo.records[id].RetryCount = retryCount
	repo.mu.Unlock()
}

func TestSweepRetriesEligibleMessages(t *testing.T) {
	t.Parallel()

	fixture := newDispatcherFixture(t, bothChannelSettings())
	base := time.Now().UTC().Add(-time.Hour)

	seedFailedMessage(t, fixture.messages, "m-eligible", domain.ChannelSMS, 1, base)
	seedFailedMessage(t, fixture.messages, "m-exhausted", domain.ChannelSMS, 3, base.Add(time.Minute))
	seedFailedMessage(t, fixture.messages, "m-other-channel", domain.ChannelEmail, 0, base.Add(2*time.Minute))

	var retried []string
	fixture.sms.sendFn = func(ctx context.Context, msg domain.Message) (*provider.Response, error) {
		retried = append(retried, msg.ID)
		return &provider.Response{MessageID: "SM-" + msg.ID}, nil
	}

	sweeper, err := NewRetrySweeper(fixture.dispatcher, time.Minute, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetrySweeper() error = %v", err)
	}

	succeeded, err := sweeper.Sweep(context.Background(), domain.ChannelSMS, 3)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1", succeeded)
	}
	if len(retried) != 1 || retried[0] != "m-eligible" {
		t.Fatalf("retried = %v, want only m-eligible", retried)
	}

	record, err := fixture.messages.GetByID(context.Background(), "m-eligible")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if record.Status != domain.StatusSent {
		t.Fatalf("status = %s, want SENT", record.Status)
	}

	exhausted, err := fixture.messages.GetByID(context.Background(), "m-exhausted")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if exhausted.Status != domain.StatusFailed || exhausted.RetryCount != 3 {
		t.Fatalf("exhausted record = %s/%d, want untouched FAILED/3", exhausted.Status, exhausted.RetryCount)
	}
}

func TestSweepHonorsCallerMaxRetries(t *testing.T) {
	t.Parallel()

	fixture := newDispatcherFixture(t, bothChannelSettings())
	base := time.Now().UTC().Add(-time.Hour)

	seedFailedMessage(t, fixture.messages, "m-fresh", domain.ChannelSMS, 0, base)
	seedFailedMessage(t, fixture.messages, "m-once", domain.ChannelSMS, 1, base.Add(time.Minute))

	var retried []string
	fixture.sms.sendFn = func(ctx context.Context, msg domain.Message) (*provider.Response, error) {
		retried = append(retried, msg.ID)
		return &provider.Response{MessageID: "SM-" + msg.ID}, nil
	}

	sweeper, err := NewRetrySweeper(fixture.dispatcher, time.Minute, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetrySweeper() error = %v", err)
	}

	succeeded, err := sweeper.Sweep(context.Background(), domain.ChannelSMS, 1)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want 1 under the narrower cap", succeeded)
	}
	if len(retried) != 1 || retried[0] != "m-fresh" {
		t.Fatalf("retried = %v, want only m-fresh", retried)
	}

	// Non-positive falls back to the configured cap, which covers both.
	succeeded, err = sweeper.Sweep(context.Background(), domain.ChannelSMS, 0)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want m-once retried under the default cap", succeeded)
	}
}

func TestSweepHonorsBatchCap(t *testing.T) {
	t.Parallel()

	fixture := newDispatcherFixture(t, bothChannelSettings())
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < retrySweepBatch+10; i++ {
		seedFailedMessage(t, fixture.messages,
			fmt.Sprintf("m-%03d", i), domain.ChannelSMS, 0, base.Add(time.Duration(i)*time.Second))
	}

	sweeper, err := NewRetrySweeper(fixture.dispatcher, time.Minute, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetrySweeper() error = %v", err)
	}

	succeeded, err := sweeper.Sweep(context.Background(), domain.ChannelSMS, 3)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if succeeded != retrySweepBatch {
		t.Fatalf("succeeded = %d, want the batch cap %d", succeeded, retrySweepBatch)
	}
	if fixture.sms.sendCalls() != retrySweepBatch {
		t.Fatalf("send calls = %d, want %d", fixture.sms.sendCalls(), retrySweepBatch)
	}
}

func TestSweepSkipsUnconfiguredChannel(t *testing.T) {
	t.Parallel()

	stored := bothChannelSettings()
	stored.SMSEnabled = false

	fixture := newDispatcherFixture(t, stored)
	seedFailedMessage(t, fixture.messages, "m-1", domain.ChannelSMS, 0, time.Now().UTC().Add(-time.Hour))

	sweeper, err := NewRetrySweeper(fixture.dispatcher, time.Minute, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetrySweeper() error = %v", err)
	}

	succeeded, err := sweeper.Sweep(context.Background(), domain.ChannelSMS, 3)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if succeeded != 0 {
		t.Fatalf("succeeded = %d, want 0", succeeded)
	}
	if fixture.sms.sendCalls() != 0 {
		t.Fatal("provider should not be called for a disabled channel")
	}

	record, err := fixture.messages.GetByID(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if record.RetryCount != 0 {
		t.Fatalf("retryCount = %d, want retry budget preserved", record.RetryCount)
	}
}

func TestSweepRecordsRetryMetric(t *testing.T) {
	t.Parallel()

	fixture := newDispatcherFixture(t, bothChannelSettings())
	base := time.Now().UTC().Add(-time.Hour)
	seedFailedMessage(t, fixture.messages, "m-1", domain.ChannelSMS, 0, base)
	seedFailedMessage(t, fixture.messages, "m-2", domain.ChannelSMS, 1, base.Add(time.Minute))

	metrics := observability.NewMetrics()
	fixture.dispatcher.SetMetrics(metrics)

	sweeper, err := NewRetrySweeper(fixture.dispatcher, time.Minute, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetrySweeper() error = %v", err)
	}

	if _, err := sweeper.Sweep(context.Background(), domain.ChannelSMS, 3); err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	recorder := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(recorder.Body.String(), `messaging_messages_retried_total{channel="sms"} 2`) {
		t.Fatal("metrics output missing the retry counter for both attempts")
	}
}

func TestSweepFailedRetryBurnsBudget(t *testing.T) {
	t.Parallel()

	fixture := newDispatcherFixture(t, bothChannelSettings())
	seedFailedMessage(t, fixture.messages, "m-1", domain.ChannelSMS, 1, time.Now().UTC().Add(-time.Hour))

	fixture.sms.sendFn = func(ctx context.Context, msg domain.Message) (*provider.Response, error) {
		return nil, &provider.ProviderError{StatusCode: 503, Message: "still down", Transient: true}
	}

	sweeper, err := NewRetrySweeper(fixture.dispatcher, time.Minute, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetrySweeper() error = %v", err)
	}

	succeeded, err := sweeper.Sweep(context.Background(), domain.ChannelSMS, 3)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if succeeded != 0 {
		t.Fatalf("succeeded = %d, want 0", succeeded)
	}

	record, err := fixture.messages.GetByID(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if record.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", record.Status)
	}
	if record.RetryCount != 2 {
		t.Fatalf("retryCount = %d, want 2 after the failed retry", record.RetryCount)
	}
}
