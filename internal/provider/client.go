// Package provider wraps the PayPal REST transaction-reporting API used by
// the backfill job. Authentication is the OAuth2 client-credentials grant;
// token refresh is handled by the oauth2 transport.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sudocentral/paypal-mailwizz/internal/config"
	"github.com/sudocentral/paypal-mailwizz/internal/observability/tracing"
)

// TransactionStatusSettled marks a fully settled transaction.
const TransactionStatusSettled = "S"

// reportingDateLayout is ISO-8601 without fractional seconds, the only form
// the reporting endpoint accepts.
const reportingDateLayout = "2006-01-02T15:04:05Z"

// Transaction is one provider-of-record payment.
type Transaction struct {
	TxnID      string
	Email      string
	Name       string
	Amount     decimal.Decimal
	Currency   string
	Status     string
	OccurredAt time.Time
}

// TransactionPage is one page of reporting results.
type TransactionPage struct {
	Transactions []Transaction
	TotalPages   int
}

// TransactionLister pages through the provider's transaction history.
type TransactionLister interface {
	ListTransactions(ctx context.Context, start, end time.Time, page, pageSize int) (TransactionPage, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// NewClient builds the reporting client. The returned client owns an OAuth2
// transport that exchanges and refreshes the access token as needed.
func NewClient(cfg config.Config, log *zap.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.PayPal.BaseURL), "/")
	cc := clientcredentials.Config{
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
	}
	httpClient := tracing.WrapHTTPClient(cc.Client(context.Background()))
	httpClient.Timeout = 30 * time.Second

	return &Client{
		baseURL: base,
		http:    httpClient,
		log:     log.Named("provider.paypal"),
	}
}

type reportingResponse struct {
	TransactionDetails []struct {
		TransactionInfo struct {
			TransactionID     string `json:"transaction_id"`
			TransactionStatus string `json:"transaction_status"`
			TransactionAmount struct {
				Value        string `json:"value"`
				CurrencyCode string `json:"currency_code"`
			} `json:"transaction_amount"`
			TransactionInitiationDate string `json:"transaction_initiation_date"`
		} `json:"transaction_info"`
		PayerInfo struct {
			EmailAddress string `json:"email_address"`
			PayerName    struct {
				GivenName         string `json:"given_name"`
				Surname           string `json:"surname"`
				AlternateFullName string `json:"alternate_full_name"`
			} `json:"payer_name"`
		} `json:"payer_info"`
	} `json:"transaction_details"`
	TotalPages int `json:"total_pages"`
}

// ListTransactions fetches one reporting page. The API rejects spans longer
// than 31 days; windowing is the caller's responsibility.
func (c *Client) ListTransactions(ctx context.Context, start, end time.Time, page, pageSize int) (TransactionPage, error) {
	query := url.Values{
		"start_date": {start.UTC().Format(reportingDateLayout)},
		"end_date":   {end.UTC().Format(reportingDateLayout)},
		"page":       {strconv.Itoa(page)},
		"page_size":  {strconv.Itoa(pageSize)},
		"fields":     {"transaction_info,payer_info"},
	}
	endpoint := c.baseURL + "/v1/reporting/transactions?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TransactionPage{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return TransactionPage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return TransactionPage{}, fmt.Errorf("reporting returned %d", resp.StatusCode)
	}

	var raw reportingResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return TransactionPage{}, err
	}

	out := TransactionPage{TotalPages: raw.TotalPages}
	for _, detail := range raw.TransactionDetails {
		info := detail.TransactionInfo
		payer := detail.PayerInfo

		amount, err := decimal.NewFromString(strings.TrimSpace(info.TransactionAmount.Value))
		if err != nil {
			c.log.Warn("skipping transaction with unparseable amount",
				zap.String("txn_id", info.TransactionID),
			)
			continue
		}

		name := strings.TrimSpace(payer.PayerName.AlternateFullName)
		if name == "" {
			name = strings.TrimSpace(strings.TrimSpace(payer.PayerName.GivenName) + " " + strings.TrimSpace(payer.PayerName.Surname))
		}

		occurredAt := time.Time{}
		if raw := strings.TrimSpace(info.TransactionInitiationDate); raw != "" {
			if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
				occurredAt = parsed.UTC()
			}
		}

		out.Transactions = append(out.Transactions, Transaction{
			TxnID:      strings.TrimSpace(info.TransactionID),
			Email:      strings.ToLower(strings.TrimSpace(payer.EmailAddress)),
			Name:       name,
			Amount:     amount.Round(2),
			Currency:   strings.ToUpper(strings.TrimSpace(info.TransactionAmount.CurrencyCode)),
			Status:     strings.TrimSpace(info.TransactionStatus),
			OccurredAt: occurredAt,
		})
	}
	return out, nil
}
