// Package gateways talks to the external payment networks. Every provider
// implements PaymentGateway; the payment service selects one per payment
// method so a new provider is a compile-time extension, not a string branch.
package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Customer identifies the payer towards the provider.
type Customer struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// InitiateRequest is the uniform create/initiate input. ReturnURL is where
// the browser comes back after a redirect flow; it is never the webhook URL.
type InitiateRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Reference   string // our payment reference, attached as external id / metadata
	Phone       string // mobile money only
	ReturnURL   string
	Customer    Customer
	Metadata    map[string]string
}

// InitiateResult is what the provider gave us back. PaymentURL is empty for
// push-based flows where the user approves on their phone.
type InitiateResult struct {
	ProviderReference string
	PaymentURL        string
	Instructions      string
	Raw               json.RawMessage
}

// PaymentGateway is the single adapter interface over all providers.
type PaymentGateway interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	// CheckStatus polls the provider for its current status string.
	CheckStatus(ctx context.Context, providerRef string) (string, json.RawMessage, error)
}

// GatewayError is returned for every provider-side failure; adapters never
// fail silently. Timeout is set when the outcome is unknown; callers must
// not treat that as a decline.
type GatewayError struct {
	Provider string
	Code     string
	Message  string
	Timeout  bool
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s gateway error (%s): %s: %v", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s gateway error (%s): %s", e.Provider, e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a gateway timeout, meaning the
// provider-side transaction may still have succeeded.
func IsTimeout(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Timeout
	}
	return false
}

// ensureIntegralAmount rejects fractional amounts before any network call.
// XOF has no minor units and the providers reject decimals server-side with
// opaque errors, so we fail fast here instead.
func ensureIntegralAmount(provider string, amount decimal.Decimal) error {
	if !amount.IsInteger() {
		return &GatewayError{
			Provider: provider,
			Code:     "fractional_amount",
			Message:  fmt.Sprintf("amount %s must be integral in minor units", amount.String()),
		}
	}
	return nil
}

// wrapTransportError classifies a transport failure, marking timeouts so the
// caller can leave the payment pending reconciliation.
func wrapTransportError(provider string, err error) *GatewayError {
	gwErr := &GatewayError{Provider: provider, Code: "network", Message: "request failed", Err: err}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		gwErr.Code = "timeout"
		gwErr.Message = "request timed out"
		gwErr.Timeout = true
	}
	return gwErr
}

// newHTTPClient builds the bounded client shared by all adapters.
func newHTTPClient() *http.Client {
	timeout := 30 * time.Second
	if v := os.Getenv("GATEWAY_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}
	return &http.Client{Timeout: timeout}
}
