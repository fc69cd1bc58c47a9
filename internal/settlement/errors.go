package settlement

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrMalformedResponse is returned when a 2xx reply lacks a required field.
var ErrMalformedResponse = errors.New("settlement API returned an incomplete response")

// Structured codes understood before falling back to message inspection.
const (
	CodeMilestoneAlreadyApproved = "MILESTONE_ALREADY_APPROVED"
	CodeFundsAlreadyReleased     = "FUNDS_ALREADY_RELEASED"
	CodeTrustlineMissing         = "TRUSTLINE_MISSING"
)

// APIError is a non-2xx reply from the settlement API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if e.Code != "" {
		return fmt.Sprintf("settlement API error (%d %s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("settlement API error (%d): %s", e.StatusCode, msg)
}

// Retryable is true for throttling and server-side failures.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Signal is an idempotency or precondition signal carried by a gateway error.
type Signal int

const (
	SignalNone Signal = iota
	SignalAlreadyApproved
	SignalAlreadyReleased
	SignalTrustlineMissing
)

func (s Signal) String() string {
	switch s {
	case SignalAlreadyApproved:
		return "already_approved"
	case SignalAlreadyReleased:
		return "already_released"
	case SignalTrustlineMissing:
		return "trustline_missing"
	}
	return "none"
}

// Classification is the result of Classify. FromMessage is true when the signal
// was recognised only by matching the human-readable text.
type Classification struct {
	Signal      Signal
	FromMessage bool
}

var messageSignals = []struct {
	fragment string
	signal   Signal
}{
	{"already been approved", SignalAlreadyApproved},
	{"already approved", SignalAlreadyApproved},
	{"funds have been released", SignalAlreadyReleased},
	{"already released", SignalAlreadyReleased},
	{"does not have the required asset", SignalTrustlineMissing},
	{"trustline", SignalTrustlineMissing},
}

// Classify inspects err for a known signal. Structured codes win; message text
// is a compatibility fallback for rails that only report prose.
func Classify(err error) Classification {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return Classification{}
	}
	switch apiErr.Code {
	case CodeMilestoneAlreadyApproved:
		return Classification{Signal: SignalAlreadyApproved}
	case CodeFundsAlreadyReleased:
		return Classification{Signal: SignalAlreadyReleased}
	case CodeTrustlineMissing:
		return Classification{Signal: SignalTrustlineMissing}
	}

	text := strings.ToLower(apiErr.Message + " " + apiErr.Body)
	for _, m := range messageSignals {
		if strings.Contains(text, m.fragment) {
			return Classification{Signal: m.signal, FromMessage: true}
		}
	}
	return Classification{}
}
