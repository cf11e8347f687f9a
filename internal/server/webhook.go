package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	obscontext "github.com/sudocentral/paypal-mailwizz/internal/observability/context"
	"github.com/sudocentral/paypal-mailwizz/internal/webhook"
)

// maxWebhookBody caps inbound payloads; provider notifications are small.
const maxWebhookBody = 1 << 20

// HandlePayPalWebhook accepts both provider webhook shapes. Rejected
// payloads are acknowledged with 200 so the provider stops redelivering
// them; only unsupported content types get a 400 and only storage faults
// get a 500.
func (s *Server) HandlePayPalWebhook(c *gin.Context) {
	if !s.limiter.Allow(c.ClientIP()) {
		AbortWithError(c, ErrTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	event, err := webhook.Normalize(body, c.ContentType(), time.Now().UTC())
	if err != nil {
		if err == webhook.ErrUnsupportedContentType {
			AbortWithError(c, newValidationError("content_type", "unsupported_content_type", "unsupported content type"))
			return
		}
		if webhook.IsRejection(err) {
			// Expected drop: acknowledged, not logged as an error.
			c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": err.Error()})
			return
		}
		AbortWithError(c, err)
		return
	}

	ctx := obscontext.WithTxnID(c.Request.Context(), event.TxnID)
	outcome, err := s.ingestor.Ingest(ctx, event)
	if err != nil {
		s.log.Error("donation ingest failed",
			zap.String("request_id", obscontext.RequestIDFromGin(c)),
			zap.String("email", event.Email),
			zap.String("txn_id", event.TxnID),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
}
