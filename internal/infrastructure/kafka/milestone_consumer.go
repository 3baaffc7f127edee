package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bibbank/microfinance/internal/application/dto"
	"github.com/bibbank/microfinance/internal/domain/model"
	pkgkafka "github.com/bibbank/microfinance/pkg/kafka"
)

// MilestoneRecorder records tranche milestone outcomes.
type MilestoneRecorder interface {
	RecordMilestone(ctx context.Context, req dto.RecordMilestoneRequest) (dto.LoanResponse, error)
}

// MilestoneVerified is the message field officers' verification tooling
// publishes once a disbursement milestone has been inspected.
type MilestoneVerified struct {
	EventID    string `json:"event_id"`
	TenantID   string `json:"tenant_id"`
	LoanID     string `json:"loan_id"`
	Sequence   int    `json:"tranche_sequence"`
	Status     string `json:"status"`
	VerifiedBy string `json:"verified_by"`
}

// MilestoneHandler applies MilestoneVerified messages to loans. Version
// conflicts are returned as-is so the consumer retries with backoff against
// a freshly loaded loan; anything the loan rejects is permanent.
type MilestoneHandler struct {
	recorder MilestoneRecorder
	logger   *slog.Logger
}

// NewMilestoneHandler creates a handler backed by recorder.
func NewMilestoneHandler(recorder MilestoneRecorder, logger *slog.Logger) *MilestoneHandler {
	return &MilestoneHandler{recorder: recorder, logger: logger}
}

// Handle implements pkg/kafka.Handler.
func (h *MilestoneHandler) Handle(ctx context.Context, msg pkgkafka.Message) error {
	var m MilestoneVerified
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return fmt.Errorf("%w: decode milestone message: %w", pkgkafka.ErrPermanent, err)
	}
	if m.TenantID == "" {
		m.TenantID = msg.Headers["tenant_id"]
	}

	_, err := h.recorder.RecordMilestone(ctx, dto.RecordMilestoneRequest{
		TenantID:   m.TenantID,
		LoanID:     m.LoanID,
		Sequence:   m.Sequence,
		Status:     m.Status,
		VerifiedBy: m.VerifiedBy,
	})
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "milestone recorded",
			"loan_id", m.LoanID,
			"tranche_sequence", m.Sequence,
			"status", m.Status,
			"event_id", m.EventID,
		)
		return nil
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrInvalidStateTransition):
		return fmt.Errorf("%w: loan %s milestone %d: %w", pkgkafka.ErrPermanent, m.LoanID, m.Sequence, err)
	default:
		return err
	}
}
