package gateways

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureIntegralAmount(t *testing.T) {
	assert.NoError(t, ensureIntegralAmount("fedapay", decimal.NewFromInt(105000)))
	assert.NoError(t, ensureIntegralAmount("fedapay", decimal.RequireFromString("105000.00")))

	err := ensureIntegralAmount("fedapay", decimal.RequireFromString("105000.50"))
	require.Error(t, err)
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "fractional_amount", gwErr.Code)
	assert.False(t, gwErr.Timeout)
}

func TestWrapTransportError(t *testing.T) {
	t.Run("deadline exceeded flags timeout", func(t *testing.T) {
		gwErr := wrapTransportError("mtn_momo", context.DeadlineExceeded)
		assert.True(t, gwErr.Timeout)
		assert.Equal(t, "timeout", gwErr.Code)
		assert.True(t, IsTimeout(gwErr))
	})

	t.Run("other errors are not timeouts", func(t *testing.T) {
		gwErr := wrapTransportError("mtn_momo", errors.New("connection refused"))
		assert.False(t, gwErr.Timeout)
		assert.Equal(t, "network", gwErr.Code)
		assert.False(t, IsTimeout(gwErr))
	})
}

func TestIsTimeoutOnWrappedErrors(t *testing.T) {
	inner := &GatewayError{Provider: "fedapay", Code: "timeout", Timeout: true}
	assert.True(t, IsTimeout(inner))
	assert.False(t, IsTimeout(errors.New("plain error")))
	assert.False(t, IsTimeout(nil))
}
