//go:build unit

package fault_test

import (
	"testing"

	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusinessErrorCarriesCode(t *testing.T) {
	err := fault.Businessf(fault.CodeInsufficientAvailability, "room %d is full", 101)

	assert.True(t, fault.IsBusiness(err))
	code, ok := fault.BusinessCode(err)
	require.True(t, ok)
	assert.Equal(t, fault.CodeInsufficientAvailability, code)
	assert.Contains(t, err.Error(), "INSUFFICIENT_AVAILABILITY")
}

func TestKindsAreDisjoint(t *testing.T) {
	business := fault.Business(fault.CodePaymentDeclined, "declined")
	unavailable := fault.Unavailable(errs.New("db down"), "store read failed")
	unclear := fault.Unclear(errs.New("timeout"), "remote call failed")

	assert.True(t, fault.IsBusiness(business))
	assert.False(t, fault.IsUnavailable(business))
	assert.False(t, fault.IsUnclear(business))

	assert.True(t, fault.IsUnavailable(unavailable))
	assert.False(t, fault.IsBusiness(unavailable))
	assert.False(t, fault.IsUnclear(unavailable))

	assert.True(t, fault.IsUnclear(unclear))
	assert.False(t, fault.IsBusiness(unclear))
	assert.False(t, fault.IsUnavailable(unclear))
}

func TestWrappedKindsSurviveWrapping(t *testing.T) {
	inner := fault.Unclear(errs.New("reset"), "connection reset")
	wrapped := errs.Wrap(inner, "charge call failed")

	assert.True(t, fault.IsUnclear(wrapped))
}

func TestBusinessCodeOnNonBusinessError(t *testing.T) {
	_, ok := fault.BusinessCode(errs.New("plain"))
	assert.False(t, ok)
}
