package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campushq/messaging/internal/domain"
	"github.com/campushq/messaging/internal/repository"
	"go.uber.org/zap"
)

// StatusUpdate is one inbound delivery callback from the SMS carrier.
type StatusUpdate struct {
	ProviderMessageID string
	ProviderStatus    string
	ErrorCode         string
	ErrorMessage      string
}

// StatusService folds carrier delivery callbacks into the message records.
type StatusService struct {
	messages repository.MessageRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewStatusService(messages repository.MessageRepository, logger *zap.Logger) (*StatusService, error) {
	if messages == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusService{messages: messages, logger: logger, now: time.Now}, nil
}

// Apply maps the provider's status string onto the message lifecycle and
// updates the matching record. Unrecognized statuses are treated as SENT so
// a new carrier status never wedges a record, and callbacks for unknown
// message ids are acknowledged without error: the carrier retries rejected
// callbacks and the record may simply be gone.
func (s *StatusService) Apply(ctx context.Context, update StatusUpdate) error {
	if ctx == nil {
		ctx = context.Background()
	}

	providerID := strings.TrimSpace(update.ProviderMessageID)
	if providerID == "" {
		return fmt.Errorf("%w: provider message id is required", domain.ErrValidation)
	}

	status, known := domain.StatusFromProviderString(update.ProviderStatus)
	if !known {
		s.logger.Warn("unrecognized provider status, treating as sent",
			zap.String("providerMessageId", providerID),
			zap.String("providerStatus", update.ProviderStatus),
		)
	}

	var errCode, errMsg *string
	if code := strings.TrimSpace(update.ErrorCode); code != "" {
		errCode = &code
	}
	if msg := strings.TrimSpace(update.ErrorMessage); msg != "" {
		errMsg = &msg
	}

	affected, err := s.messages.ApplyProviderStatus(ctx, providerID, status, errCode, errMsg, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to apply provider status: %w", err)
	}
	if affected == 0 {
		s.logger.Warn("status callback for unknown message",
			zap.String("providerMessageId", providerID),
			zap.String("providerStatus", update.ProviderStatus),
		)
		return nil
	}

	s.logger.Debug("provider status applied",
		zap.String("providerMessageId", providerID),
		zap.String("status", status.String()),
	)
	return nil
}
