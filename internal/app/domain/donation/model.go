package donation

import "time"

// Status is the lifecycle state of a donation. Donations are created pending
// and transitioned exactly once by the payment collaborator's webhook.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Donation is a one-off contribution. Amount is in cents.
type Donation struct {
	ID              string    `json:"id"`
	Amount          int       `json:"amount"`
	Currency        string    `json:"currency"`
	DonorEmail      string    `json:"donorEmail,omitempty"`
	DonorName       string    `json:"donorName,omitempty"`
	Message         string    `json:"message,omitempty"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}
