package connection

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
)

func TestPrimaryService(t *testing.T) {
	tests := []struct {
		name   string
		conn   Connection
		wantID string
		wantOK bool
	}{
		{"empty", Connection{}, "", false},
		{"first when none flagged", Connection{Services: []Service{{ID: "a"}, {ID: "b"}}}, "a", true},
		{"flagged wins", Connection{Services: []Service{{ID: "a"}, {ID: "b", Primary: true}}}, "b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.conn.PrimaryService()
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Errorf("PrimaryService() = %q,%v want %q,%v", got.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := Connection{ID: "c", Services: []Service{{ID: "a", Name: "A"}}}
	d := c.Clone()
	d.Services[0].Name = "mutated"
	if c.Services[0].Name != "A" {
		t.Error("Clone shared the services slice")
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"user@example.com", "user@example.com", true},
		{"  user@example.com ", "user@example.com", true},
		{"", "", false},
		{"user", "", false},
		{"user@host", "", false},
		{"Name <user@example.com>", "", false},
	}
	for _, tt := range tests {
		got, err := ValidateEmail(tt.in)
		if tt.ok {
			if err != nil || got != tt.want {
				t.Errorf("ValidateEmail(%q) = %q,%v want %q", tt.in, got, err, tt.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("ValidateEmail(%q) err = %v, want ErrInvalidEmail", tt.in, err)
		}
	}
}

func TestAsErrorResponse(t *testing.T) {
	api := ErrorResponse{Kind: "not_found", Message: "gone"}
	if got := AsErrorResponse(fmt.Errorf("disable: %w", api)); got != api {
		t.Errorf("wrapped ErrorResponse = %+v", got)
	}
	if got := AsErrorResponse(&api); got != api {
		t.Errorf("pointer ErrorResponse = %+v", got)
	}
	got := AsErrorResponse(errors.New("dial tcp: refused"))
	if got.Kind != KindNetworkFailure || got.Message != "dial tcp: refused" {
		t.Errorf("plain error = %+v", got)
	}
}

func TestIllegalUsageWraps(t *testing.T) {
	err := IllegalUsage("setup() not called")
	if !errors.Is(err, ErrIllegalUsage) {
		t.Errorf("IllegalUsage does not wrap ErrIllegalUsage: %v", err)
	}
}

func TestParseRedirect(t *testing.T) {
	tests := []struct {
		raw  string
		want ConnectResult
		err  *ErrorResponse
	}{
		{"app://cb?next_step=complete", ConnectResult{NextStep: StepComplete}, nil},
		{"app://cb?next_step=error&error_type=access_denied", ConnectResult{NextStep: StepError, ErrorKind: "access_denied"}, &ErrorResponse{Kind: "access_denied"}},
		{"app://cb?next_step=error", ConnectResult{NextStep: StepError}, &UnknownState},
		{"app://cb", ConnectResult{NextStep: StepIndeterminate}, &UnknownState},
		{"app://cb?next_step=config", ConnectResult{NextStep: StepIndeterminate}, &UnknownState},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatal(err)
		}
		got := ParseRedirect(u)
		if got != tt.want {
			t.Errorf("ParseRedirect(%s) = %+v, want %+v", tt.raw, got, tt.want)
		}
		gotErr := got.Err()
		switch {
		case tt.err == nil && gotErr != nil:
			t.Errorf("%s: unexpected error %+v", tt.raw, *gotErr)
		case tt.err != nil && (gotErr == nil || *gotErr != *tt.err):
			t.Errorf("%s: error = %v, want %+v", tt.raw, gotErr, *tt.err)
		}
	}

	if got := ParseRedirect(nil); got.NextStep != StepIndeterminate {
		t.Errorf("ParseRedirect(nil) = %+v", got)
	}
}
