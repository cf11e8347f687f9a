package webhook

import (
	"errors"
	"net/url"
	"testing"
	"time"
)

var received = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestNormalizeRestCapture(t *testing.T) {
	body := []byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "8XY12345AB678901C",
			"amount": {"value": "25.00", "currency_code": "USD"},
			"payer": {
				"email_address": "Donor@Example.ORG",
				"name": {"given_name": "Pat", "surname": "Jones"}
			},
			"create_time": "2025-03-10T11:58:02Z"
		}
	}`)

	event, err := Normalize(body, "application/json", received)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.Email != "donor@example.org" {
		t.Fatalf("email = %q", event.Email)
	}
	if event.FirstName != "Pat" || event.LastName != "Jones" {
		t.Fatalf("name = %q %q", event.FirstName, event.LastName)
	}
	if event.Amount.StringFixed(2) != "25.00" {
		t.Fatalf("amount = %s", event.Amount)
	}
	if event.TxnID != "8XY12345AB678901C" {
		t.Fatalf("txn id = %q", event.TxnID)
	}
	if !event.OccurredAt.Equal(time.Date(2025, 3, 10, 11, 58, 2, 0, time.UTC)) {
		t.Fatalf("occurred at = %v", event.OccurredAt)
	}
}

func TestNormalizeRestIgnoresOtherEventTypes(t *testing.T) {
	body := []byte(`{"event_type": "PAYMENT.CAPTURE.REFUNDED", "resource": {}}`)

	_, err := Normalize(body, "application/json", received)
	if !errors.Is(err, ErrUnhandledEventType) {
		t.Fatalf("expected unhandled event type, got %v", err)
	}
	if !IsRejection(err) {
		t.Fatal("expected rejection")
	}
}

func TestNormalizeRestMissingEmail(t *testing.T) {
	body := []byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {"amount": {"value": "10.00"}}
	}`)

	_, err := Normalize(body, "application/json", received)
	if !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected missing email, got %v", err)
	}
}

func TestNormalizeIPN(t *testing.T) {
	form := url.Values{
		"txn_type":       {"web_accept"},
		"payment_status": {"Completed"},
		"payer_email":    {"Donor@Example.ORG"},
		"first_name":     {"Pat"},
		"last_name":      {"Jones"},
		"mc_gross":       {"10.5"},
		"txn_id":         {"IPN123"},
		"payment_date":   {"02:30:15 Mar 10, 2025 PST"},
	}

	event, err := Normalize([]byte(form.Encode()), "application/x-www-form-urlencoded", received)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.Email != "donor@example.org" {
		t.Fatalf("email = %q", event.Email)
	}
	if event.Amount.StringFixed(2) != "10.50" {
		t.Fatalf("amount = %s", event.Amount)
	}
	if event.TxnID != "IPN123" {
		t.Fatalf("txn id = %q", event.TxnID)
	}
}

func TestNormalizeIPNFallsBackToCustomField(t *testing.T) {
	form := url.Values{
		"txn_type":       {"web_accept"},
		"payment_status": {"Completed"},
		"custom":         {"fallback@example.org"},
		"mc_gross":       {"5.00"},
	}

	event, err := Normalize([]byte(form.Encode()), "application/x-www-form-urlencoded", received)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.Email != "fallback@example.org" {
		t.Fatalf("email = %q", event.Email)
	}
}

func TestNormalizeIPNIgnoresPending(t *testing.T) {
	form := url.Values{
		"txn_type":       {"web_accept"},
		"payment_status": {"Pending"},
		"payer_email":    {"donor@example.org"},
		"mc_gross":       {"10.00"},
	}

	_, err := Normalize([]byte(form.Encode()), "application/x-www-form-urlencoded", received)
	if !errors.Is(err, ErrUnhandledStatus) {
		t.Fatalf("expected unhandled status, got %v", err)
	}
	if !IsRejection(err) {
		t.Fatal("expected rejection")
	}
}

func TestNormalizeRejectsNegativeAmount(t *testing.T) {
	form := url.Values{
		"txn_type":       {"web_accept"},
		"payment_status": {"Completed"},
		"payer_email":    {"donor@example.org"},
		"mc_gross":       {"-10.00"},
	}

	_, err := Normalize([]byte(form.Encode()), "application/x-www-form-urlencoded", received)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestNormalizeUnsupportedContentType(t *testing.T) {
	_, err := Normalize([]byte("<xml/>"), "text/xml", received)
	if !errors.Is(err, ErrUnsupportedContentType) {
		t.Fatalf("expected unsupported content type, got %v", err)
	}
}

func TestNormalizeUsesReceivedAtWhenTimestampMissing(t *testing.T) {
	body := []byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "T1",
			"amount": {"value": "1.00"},
			"payer": {"email_address": "donor@example.org"}
		}
	}`)

	event, err := Normalize(body, "application/json", received)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !event.OccurredAt.Equal(received) {
		t.Fatalf("occurred at = %v, want %v", event.OccurredAt, received)
	}
}
