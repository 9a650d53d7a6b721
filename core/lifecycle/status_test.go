package lifecycle

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want Status
		ok   bool
	}{
		{"draft", StatusDraft, true},
		{"Review", StatusReview, true},
		{"  APPROVED  ", StatusApproved, true},
		{"published", StatusPublished, true},
		{"live", StatusLive, true},
		{"closed", StatusClosed, true},
		{"archived", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseStatus(tc.raw)
		if tc.ok {
			if err != nil {
				t.Errorf("ParseStatus(%q): %v", tc.raw, err)
			} else if got != tc.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tc.raw, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrValidation) {
			t.Errorf("ParseStatus(%q): err = %v, want ErrValidation", tc.raw, err)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, st := range []Status{StatusDraft, StatusReview, StatusApproved, StatusPublished, StatusLive} {
		if st.Terminal() {
			t.Errorf("%s must not be terminal", st)
		}
	}
	if !StatusClosed.Terminal() {
		t.Error("closed must be terminal")
	}
}

func TestParseVisibility(t *testing.T) {
	if v, err := ParseVisibility(" Public "); err != nil || v != VisibilityPublic {
		t.Errorf("got %q, %v", v, err)
	}
	if _, err := ParseVisibility("internal"); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestParseImpact(t *testing.T) {
	if im, err := ParseImpact("CRITICAL"); err != nil || im != ImpactCritical {
		t.Errorf("got %q, %v", im, err)
	}
	if _, err := ParseImpact("severe"); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}
