package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", NewTransientError(errors.New("rate limited"), 429), true},
		{"wrapped", fmt.Errorf("summarize: %w", NewTransientError(errors.New("x"), 503)), true},
		{"net timeout", fmt.Errorf("dial: %w", timeoutErr{}), true},
		{"connection reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"message", errors.New("read tcp: i/o timeout"), true},
		{"overloaded", errors.New("Overloaded"), true},
		{"permanent", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestFromStatus(t *testing.T) {
	base := errors.New("boom")
	assert.Nil(t, FromStatus(nil, 503))

	err := FromStatus(base, 429)
	var te *TransientError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, 429, te.StatusCode)
	assert.ErrorIs(t, err, base)

	assert.Same(t, base, FromStatus(base, 401))
}
