package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sudocentral/paypal-mailwizz/internal/cache"
	"github.com/sudocentral/paypal-mailwizz/internal/config"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/tracing"
)

const (
	receiptResetDelay = 60 * time.Second
	subscriberUIDTTL  = 10 * time.Minute
)

// scheduleFunc runs fn after d, detached from any caller lifetime.
type scheduleFunc func(d time.Duration, fn func())

type client struct {
	baseURL  string
	apiKey   string
	listUID  string
	http     *http.Client
	log      *zap.Logger
	uids     cache.Cache[string, string]
	schedule scheduleFunc
}

// NewClient builds the MailWizz subscriber API client.
func NewClient(cfg config.Config, log *zap.Logger) Client {
	return &client{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.MailWizz.BaseURL), "/"),
		apiKey:   strings.TrimSpace(cfg.MailWizz.APIKey),
		listUID:  strings.TrimSpace(cfg.MailWizz.ListUID),
		http:     tracing.WrapHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		log:      log.Named("crm.mailwizz"),
		uids:     cache.NewTTLCache[string, string](),
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

func (c *client) Upsert(ctx context.Context, sub Subscriber) error {
	email := strings.ToLower(strings.TrimSpace(sub.Email))
	if email == "" {
		return ErrInvalidEmail
	}
	sub.Email = email

	uid, err := c.searchByEmail(ctx, email)
	if err != nil {
		return err
	}
	if uid == "" {
		created, err := c.create(ctx, sub)
		if err != nil {
			return err
		}
		if created {
			return nil
		}
		// Lost the race between search and create. One re-search, then
		// fall through to an update; a second miss is surfaced as-is.
		uid, err = c.searchByEmail(ctx, email)
		if err != nil {
			return err
		}
		if uid == "" {
			return ErrSubscriberNotFound
		}
	}

	return c.update(ctx, uid, subscriberFields(sub))
}

func (c *client) TriggerReceipt(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ErrInvalidEmail
	}

	uid, err := c.searchByEmail(ctx, email)
	if err != nil {
		return err
	}
	if uid == "" {
		return ErrSubscriberNotFound
	}

	if err := c.update(ctx, uid, url.Values{"SEND_RECEIPT": {"yes"}}); err != nil {
		return err
	}

	// The reset is fire-and-forget: it outlives the originating request and
	// its failure is logged, never retried, never surfaced. Resetting a flag
	// that is already "no" is harmless.
	c.schedule(receiptResetDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.update(ctx, uid, url.Values{"SEND_RECEIPT": {"no"}}); err != nil {
			c.log.Warn("receipt flag reset failed",
				zap.String("email", email),
				zap.Error(err),
			)
		}
	})
	return nil
}

// searchByEmail returns the subscriber uid, or "" when the list has no such
// subscriber. A 404 from MailWizz means not-found, never an error.
func (c *client) searchByEmail(ctx context.Context, email string) (string, error) {
	if uid, ok := c.uids.Get(email); ok {
		return uid, nil
	}

	endpoint := fmt.Sprintf("%s/lists/%s/subscribers/search-by-email?EMAIL=%s",
		c.baseURL, c.listUID, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: search returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var payload struct {
		Data struct {
			SubscriberUID string `json:"subscriber_uid"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	uid := strings.TrimSpace(payload.Data.SubscriberUID)
	if uid == "" {
		return "", nil
	}
	c.uids.Set(email, uid, subscriberUIDTTL)
	return uid, nil
}

// create posts a new subscriber. It returns false without error when MailWizz
// reports the email already exists, so the caller can retry as an update.
func (c *client) create(ctx context.Context, sub Subscriber) (bool, error) {
	var body strings.Builder
	writer := multipart.NewWriter(&body)
	for key, values := range subscriberFields(sub) {
		for _, value := range values {
			if err := writer.WriteField(key, value); err != nil {
				return false, err
			}
		}
	}
	if err := writer.Close(); err != nil {
		return false, err
	}

	endpoint := fmt.Sprintf("%s/lists/%s/subscribers", c.baseURL, c.listUID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.String()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return true, nil
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return false, nil
	default:
		return false, fmt.Errorf("%w: create returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}

// update addresses the subscriber by uid; MailWizz requires updates to use
// its own handle once one is assigned.
func (c *client) update(ctx context.Context, uid string, fields url.Values) error {
	endpoint := fmt.Sprintf("%s/lists/%s/subscribers/%s", c.baseURL, c.listUID, url.PathEscape(uid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(fields.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: update returned %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

func (c *client) authorize(req *http.Request) {
	req.Header.Set("X-Mw-Public-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

func subscriberFields(sub Subscriber) url.Values {
	return url.Values{
		"EMAIL":                {sub.Email},
		"FNAME":                {sub.FirstName},
		"LNAME":                {sub.LastName},
		"LAST_DONATION_AMOUNT": {sub.LastDonationAmount.StringFixed(2)},
		"LIFETIME_DONATED":     {sub.LifetimeDonated.StringFixed(2)},
	}
}
