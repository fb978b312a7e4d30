//go:build unit

package idempotency_test

import (
	"testing"

	"openbooking/internal/idempotency"

	"github.com/stretchr/testify/assert"
)

func TestBookingKeyRoundTrip(t *testing.T) {
	key := idempotency.BookingKey(42)
	assert.Equal(t, "booking-42", key)

	id, ok := idempotency.ParseBookingKey(key)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestParseBookingKeyRejectsOpaqueKeys(t *testing.T) {
	tests := []string{
		"",
		"booking-",
		"booking-abc",
		"client-supplied-token",
		"42",
		"Booking-42",
	}
	for _, key := range tests {
		_, ok := idempotency.ParseBookingKey(key)
		assert.False(t, ok, "key %q must not parse", key)
	}
}
