// Package donations implements one-off contribution intents and the payment
// webhook that settles them.
package donations

import (
	"context"
	"errors"
	"strings"

	"github.com/openquill/platform/internal/app/domain/donation"
	"github.com/openquill/platform/internal/app/metrics"
	"github.com/openquill/platform/internal/app/storage"
	apperrors "github.com/openquill/platform/internal/errors"
	"github.com/openquill/platform/pkg/logger"
)

const defaultCurrency = "usd"

// Service implements donation operations.
type Service struct {
	store storage.DonationStore
	log   *logger.Logger
}

// New creates the donations service.
func New(store storage.DonationStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("donations")
	}
	return &Service{store: store, log: log}
}

// CreateInput carries the donor-supplied fields. Amount is in cents.
type CreateInput struct {
	Amount     int
	Currency   string
	DonorEmail string
	DonorName  string
	Message    string
}

// Create records a pending donation awaiting payment settlement.
func (s *Service) Create(ctx context.Context, in CreateInput) (donation.Donation, error) {
	if in.Amount <= 0 {
		return donation.Donation{}, apperrors.Validation("amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	created, err := s.store.CreateDonation(ctx, donation.Donation{
		Amount:     in.Amount,
		Currency:   currency,
		DonorEmail: in.DonorEmail,
		DonorName:  in.DonorName,
		Message:    in.Message,
		Status:     donation.StatusPending,
	})
	if err != nil {
		return donation.Donation{}, err
	}
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"donation_id": created.ID,
		"amount":      created.Amount,
	}).Info("donation created")
	return created, nil
}

// Get returns one donation.
func (s *Service) Get(ctx context.Context, id string) (donation.Donation, error) {
	d, err := s.store.GetDonation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return donation.Donation{}, apperrors.NotFound("donation not found")
		}
		return donation.Donation{}, err
	}
	return d, nil
}

// Settle applies the payment outcome reported by the payment collaborator.
// Only pending donations may transition, and only to completed or failed.
func (s *Service) Settle(ctx context.Context, id string, status donation.Status, paymentIntentID string) (donation.Donation, error) {
	if status != donation.StatusCompleted && status != donation.StatusFailed {
		return donation.Donation{}, apperrors.Validationf("invalid settlement status %q", status)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return donation.Donation{}, err
	}
	if current.Status != donation.StatusPending {
		return donation.Donation{}, apperrors.Conflict("donation already settled")
	}

	updated, err := s.store.UpdateDonationStatus(ctx, id, status, paymentIntentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return donation.Donation{}, apperrors.NotFound("donation not found")
		}
		return donation.Donation{}, err
	}
	metrics.RecordDonationSettled(string(status))
	s.log.WithContext(ctx).WithFields(map[string]interface{}{
		"donation_id": id,
		"status":      string(status),
	}).Info("donation settled")
	return updated, nil
}
