package connection

import "net/url"

// NextStep is the outcome carried by an authentication redirect.
type NextStep string

const (
	StepComplete      NextStep = "complete"
	StepError         NextStep = "error"
	StepIndeterminate NextStep = "indeterminate"
)

// ConnectResult is the redirect result consumed by the button.
type ConnectResult struct {
	NextStep  NextStep `json:"nextStep"`
	ErrorKind string   `json:"errorKind,omitempty"`
}

// ParseRedirect reads next_step and error_type from a redirect URL.
// Anything it cannot interpret is indeterminate.
func ParseRedirect(u *url.URL) ConnectResult {
	if u == nil {
		return ConnectResult{NextStep: StepIndeterminate}
	}
	q := u.Query()
	switch NextStep(q.Get("next_step")) {
	case StepComplete:
		return ConnectResult{NextStep: StepComplete}
	case StepError:
		return ConnectResult{NextStep: StepError, ErrorKind: q.Get("error_type")}
	default:
		return ConnectResult{NextStep: StepIndeterminate}
	}
}

// Err returns the error the result should surface, or nil for Complete.
func (r ConnectResult) Err() *ErrorResponse {
	switch r.NextStep {
	case StepComplete:
		return nil
	case StepError:
		if r.ErrorKind == "" {
			e := UnknownState
			return &e
		}
		return &ErrorResponse{Kind: r.ErrorKind}
	default:
		e := UnknownState
		return &e
	}
}
