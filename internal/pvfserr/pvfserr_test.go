package pvfserr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	t.Run("NewCarriesCodeAndMessage", func(t *testing.T) {
		err := New(Timeout, "deadline exceeded")
		assert.Equal(t, Timeout, err.Code())
		assert.Equal(t, "deadline exceeded", err.Message())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("WrapPreservesCause", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := Wrap(Transient, "send failed", cause)

		require.Error(t, err)
		assert.Same(t, cause, err.Unwrap())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("IsMatchesByCodeNotMessage", func(t *testing.T) {
		a := New(Busy, "context table full")
		b := New(Busy, "different message")
		c := New(Timeout, "context table full")

		assert.True(t, errors.Is(a, b))
		assert.False(t, errors.Is(a, c))
	})

	t.Run("IsHelperUnwrapsWrappedChain", func(t *testing.T) {
		inner := New(Protocol, "bad tag")
		outer := Wrap(Transient, "retry exhausted", inner)

		assert.True(t, Is(outer, Transient))
		assert.False(t, Is(outer, Protocol))
	})
}

func TestCodeString(t *testing.T) {
	cases := []struct {
		code Code
		want string
	}{
		{Protocol, "protocol"},
		{Unsupported, "unsupported"},
		{NoMemory, "no-memory"},
		{InvalidArgument, "invalid-argument"},
		{NotPermitted, "not-permitted"},
		{Busy, "busy"},
		{Timeout, "timeout"},
		{Cancelled, "cancelled"},
		{Transient, "transient"},
		{Fatal, "fatal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.code.String())
	}
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, Protocol, Protocolf("x").Code())
	assert.Equal(t, Unsupported, Unsupportedf("x").Code())
	assert.Equal(t, InvalidArgument, InvalidArgumentf("x").Code())
	assert.Equal(t, NotPermitted, NotPermittedf("x").Code())
	assert.Equal(t, Busy, Busyf("x").Code())
	assert.Equal(t, Timeout, Timeoutf("x").Code())
	assert.Equal(t, Cancelled, Cancelledf("x").Code())
	assert.Equal(t, Transient, Transientf("x").Code())
	assert.Equal(t, Fatal, Fatalf("x").Code())
}
