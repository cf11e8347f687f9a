package events

// Donation pipeline event types.
const (
	EventDonationRecorded = "donation.recorded"
	EventDonorSynced      = "donor.synced"
)

// DonationRecordedPayload captures the minimal data downstream consumers need
// to react to an accepted donation.
type DonationRecordedPayload struct {
	DonationID string `json:"donation_id"`
	DonorID    string `json:"donor_id"`
	Email      string `json:"email"`
	Amount     string `json:"amount"`
	TxnID      string `json:"txn_id,omitempty"`
	Source     string `json:"source,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p DonationRecordedPayload) ToMap() map[string]any {
	payload := map[string]any{
		"donation_id": p.DonationID,
		"donor_id":    p.DonorID,
		"email":       p.Email,
		"amount":      p.Amount,
	}
	if p.TxnID != "" {
		payload["txn_id"] = p.TxnID
	}
	if p.Source != "" {
		payload["source"] = p.Source
	}
	return payload
}
