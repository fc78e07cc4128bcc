// Package tracectx carries the request trace ID through context so handlers
// and services log under the same ID without sharing mutable state.
package tracectx

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ctxKey struct{}

// NewID returns a compact request trace ID.
func NewID() string {
	u := uuid.New()
	return fmt.Sprintf("%s%06d", hex.EncodeToString(u[:])[:16], time.Now().Unix()%1000000)
}

// With returns a copy of ctx carrying traceID.
func With(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, traceID)
}

// From returns the trace ID carried by ctx, or "" when absent.
func From(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
