// internal/service/purchase/domain/codec_test.go
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCodecKeepsFields(t *testing.T) {
	raw, err := MarshalSession(WaitingPaymentProof{Quantity: 2, Total: 2200, PromoCode: "AB12CD", PaymentID: 9})
	require.NoError(t, err)

	got, err := UnmarshalSession(raw)
	require.NoError(t, err)
	assert.Equal(t, WaitingPaymentProof{Quantity: 2, Total: 2200, PromoCode: "AB12CD", PaymentID: 9}, got)
}

func TestSessionCodecRejectsUnknownState(t *testing.T) {
	_, err := UnmarshalSession([]byte(`{"state":"time_travelling"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown session state")
}

func TestSessionCodecRejectsGarbage(t *testing.T) {
	_, err := UnmarshalSession([]byte(`{{{`))
	require.Error(t, err)
}
