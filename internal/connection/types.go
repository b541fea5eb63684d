// Package connection holds the data model shared by the button core, the
// API client and the mock server. Types mirror the Connect API wire format.
package connection

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Status is the logical status of a Connection for the current user.
type Status string

const (
	StatusInitial  Status = "initial"
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
	StatusUnknown  Status = "unknown"
)

// Service is one of the services a Connection works with.
type Service struct {
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	ShortName         string `json:"shortName" yaml:"short_name"`
	BrandColor        string `json:"brandColor" yaml:"brand_color"`
	MonochromeIconURL string `json:"monochromeIconUrl" yaml:"icon_url"`
	Primary           bool   `json:"primary,omitempty" yaml:"primary"`
}

// Connection is an immutable snapshot. It is replaced wholesale whenever a
// network result arrives; callers must not mutate a snapshot they were given.
type Connection struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description"`
	Status      Status    `json:"status" yaml:"status"`
	Services    []Service `json:"services" yaml:"services"`
}

// Enabled reports whether the connection is turned on.
func (c Connection) Enabled() bool {
	return c.Status == StatusEnabled
}

// PrimaryService returns the service the button is rendered for: the first
// service flagged primary, otherwise the first service.
func (c Connection) PrimaryService() (Service, bool) {
	for _, s := range c.Services {
		if s.Primary {
			return s, true
		}
	}
	if len(c.Services) > 0 {
		return c.Services[0], true
	}
	return Service{}, false
}

// Clone returns a deep copy so a snapshot can be handed to another owner.
func (c Connection) Clone() Connection {
	out := c
	if c.Services != nil {
		out.Services = make([]Service, len(c.Services))
		copy(out.Services, c.Services)
	}
	return out
}

// ErrorResponse is the single error shape surfaced to listeners.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e ErrorResponse) Error() string {
	if e.Message == "" {
		return e.Kind
	}
	return e.Kind + ": " + e.Message
}

// UnknownState is reported when a redirect result carries no interpretable
// outcome.
var UnknownState = ErrorResponse{Kind: "unknown_state", Message: "Cannot verify Button state"}

// KindNetworkFailure is used for transport errors that carry no API error body.
const KindNetworkFailure = "network_failure"

var (
	// ErrInvalidEmail is a local validation failure; it never reaches listeners.
	ErrInvalidEmail = errors.New("invalid email")

	// ErrIllegalUsage marks programmer errors. Call sites panic with it.
	ErrIllegalUsage = errors.New("illegal usage")
)

// AsErrorResponse normalises err into an ErrorResponse.
func AsErrorResponse(err error) ErrorResponse {
	var er ErrorResponse
	if errors.As(err, &er) {
		return er
	}
	var erp *ErrorResponse
	if errors.As(err, &erp) && erp != nil {
		return *erp
	}
	return ErrorResponse{Kind: KindNetworkFailure, Message: err.Error()}
}

// IllegalUsage builds the panic value for API misuse.
func IllegalUsage(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalUsage, fmt.Sprintf(format, args...))
}

// ValidateEmail returns the trimmed address or ErrInvalidEmail.
func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return email, nil
}
