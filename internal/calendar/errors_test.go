package calendar

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not initialized", ErrNotInitialized, KindNotInitialized},
		{"feature disabled", fmt.Errorf("calendar: %w", ErrFeatureDisabled), KindFeatureDisabled},
		{"auth via transport", &TransportError{Method: "PROPFIND", StatusCode: 401, Err: ErrAuthenticationFailed}, KindAuthenticationFailed},
		{"conflict via transport", &TransportError{Method: "PUT", StatusCode: 412, Err: ErrConflictingWrite}, KindConflictingWrite},
		{"plain transport", &TransportError{Method: "REPORT", StatusCode: 500}, KindTransportFailure},
		{"calendar not found", fmt.Errorf("%w: x", ErrCalendarNotFound), KindCalendarNotFound},
		{"event not found", fmt.Errorf("%w: x", ErrEventNotFound), KindEventNotFound},
		{"malformed", fmt.Errorf("decode: %w", ErrMalformedEvent), KindMalformedEvent},
		{"invalid", ErrInvalidEvent, KindInvalidEvent},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}

func TestTransportError(t *testing.T) {
	err := &TransportError{
		Method:     "PUT",
		URL:        "https://dav.example.com/cal/x.ics",
		StatusCode: 412,
		Body:       strings.Repeat("a", 300),
		Err:        ErrConflictingWrite,
	}
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, ErrConflictingWrite.Error()))
	assert.Contains(t, msg, "PUT https://dav.example.com/cal/x.ics returned HTTP 412")
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Less(t, len(msg), 350)

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, ErrConflictingWrite)
	assert.NotErrorIs(t, err, ErrAuthenticationFailed)

	bare := &TransportError{Method: "GET", URL: "https://x", Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "dial tcp: refused: GET https://x", bare.Error())
}
