// Package context carries per-request observability values across layers
// without threading them through every signature: the inbound request id and
// the provider transaction id being processed.
package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability_request_id"
	txnIDKey     contextKey = "observability_txn_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithTxnID(ctx context.Context, txnID string) context.Context {
	if ctx == nil || txnID == "" {
		return ctx
	}
	return context.WithValue(ctx, txnIDKey, txnID)
}

func TxnIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(txnIDKey).(string)
	return value
}
