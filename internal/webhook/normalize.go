package webhook

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	donordomain "github.com/sudocentral/paypal-mailwizz/internal/donor/domain"
)

// Rejection reasons. These mark payloads that are malformed or semantically
// irrelevant; callers acknowledge them without treating them as faults.
var (
	ErrUnsupportedContentType = errors.New("unsupported_content_type")
	ErrUnhandledEventType     = errors.New("unhandled_event_type")
	ErrUnhandledStatus        = errors.New("unhandled_status")
	ErrMissingEmail           = errors.New("missing_email")
	ErrInvalidAmount          = errors.New("invalid_amount")
)

// IsRejection reports whether err marks an expected drop rather than a fault.
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrUnsupportedContentType),
		errors.Is(err, ErrUnhandledEventType),
		errors.Is(err, ErrUnhandledStatus),
		errors.Is(err, ErrMissingEmail),
		errors.Is(err, ErrInvalidAmount):
		return true
	default:
		return false
	}
}

const restEventTypeCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"

// restCaptureEvent is the structured REST webhook shape.
type restCaptureEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID     string `json:"id"`
		Amount struct {
			Value        string `json:"value"`
			CurrencyCode string `json:"currency_code"`
		} `json:"amount"`
		Payer struct {
			EmailAddress string `json:"email_address"`
			Name         struct {
				GivenName string `json:"given_name"`
				Surname   string `json:"surname"`
			} `json:"name"`
		} `json:"payer"`
		CreateTime string `json:"create_time"`
	} `json:"resource"`
}

// ipnDateLayout is the timestamp format of legacy IPN notifications.
const ipnDateLayout = "15:04:05 Jan 02, 2006 MST"

// Normalize maps a raw webhook body into a DonationEvent. The shape is
// selected by content type: JSON bodies are treated as REST capture events,
// form-encoded bodies as legacy IPN notifications. receivedAt is used when
// the provider omits a usable timestamp.
func Normalize(body []byte, contentType string, receivedAt time.Time) (DonationEvent, error) {
	switch {
	case strings.Contains(contentType, "application/json"):
		return normalizeRest(body, receivedAt)
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		return normalizeIPN(body, receivedAt)
	default:
		return DonationEvent{}, ErrUnsupportedContentType
	}
}

func normalizeRest(body []byte, receivedAt time.Time) (DonationEvent, error) {
	var raw restCaptureEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return DonationEvent{}, ErrUnhandledEventType
	}
	if raw.EventType != restEventTypeCaptureCompleted {
		return DonationEvent{}, ErrUnhandledEventType
	}

	email := strings.ToLower(strings.TrimSpace(raw.Resource.Payer.EmailAddress))
	if email == "" {
		return DonationEvent{}, ErrMissingEmail
	}

	amount, err := parseAmount(raw.Resource.Amount.Value)
	if err != nil {
		return DonationEvent{}, err
	}

	occurredAt := receivedAt
	if raw.Resource.CreateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, raw.Resource.CreateTime); err == nil {
			occurredAt = parsed.UTC()
		}
	}

	return DonationEvent{
		Email:      email,
		FirstName:  strings.TrimSpace(raw.Resource.Payer.Name.GivenName),
		LastName:   strings.TrimSpace(raw.Resource.Payer.Name.Surname),
		Amount:     amount,
		OccurredAt: occurredAt,
		TxnID:      strings.TrimSpace(raw.Resource.ID),
		Source:     donordomain.SourcePayPal,
	}, nil
}

func normalizeIPN(body []byte, receivedAt time.Time) (DonationEvent, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return DonationEvent{}, ErrUnhandledStatus
	}

	txnType := strings.ToLower(strings.TrimSpace(values.Get("txn_type")))
	status := strings.ToLower(strings.TrimSpace(values.Get("payment_status")))
	if txnType != "web_accept" || status != "completed" {
		return DonationEvent{}, ErrUnhandledStatus
	}

	email := strings.ToLower(strings.TrimSpace(values.Get("payer_email")))
	if email == "" {
		// Some gateway configurations drop payer_email and carry the donor
		// address in the pass-through custom field instead.
		email = strings.ToLower(strings.TrimSpace(values.Get("custom")))
	}
	if email == "" {
		return DonationEvent{}, ErrMissingEmail
	}

	amount, err := parseAmount(values.Get("mc_gross"))
	if err != nil {
		return DonationEvent{}, err
	}

	occurredAt := receivedAt
	if raw := strings.TrimSpace(values.Get("payment_date")); raw != "" {
		if parsed, err := time.Parse(ipnDateLayout, raw); err == nil {
			occurredAt = parsed.UTC()
		}
	}

	return DonationEvent{
		Email:      email,
		FirstName:  strings.TrimSpace(values.Get("first_name")),
		LastName:   strings.TrimSpace(values.Get("last_name")),
		Amount:     amount,
		OccurredAt: occurredAt,
		TxnID:      strings.TrimSpace(values.Get("txn_id")),
		Source:     donordomain.SourcePayPal,
	}, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount.Round(2), nil
}
