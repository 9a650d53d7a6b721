package lifecycle

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusReview    Status = "review"
	StatusApproved  Status = "approved"
	StatusPublished Status = "published"
	StatusLive      Status = "live"
	StatusClosed    Status = "closed"
)

var knownStatuses = map[Status]struct{}{
	StatusDraft:     {},
	StatusReview:    {},
	StatusApproved:  {},
	StatusPublished: {},
	StatusLive:      {},
	StatusClosed:    {},
}

func ParseStatus(raw string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownStatuses[st]; !ok {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
	return st, nil
}

// Terminal reports whether no transition out of the status exists.
func (s Status) Terminal() bool {
	return s == StatusClosed
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

func ParseVisibility(raw string) (Visibility, error) {
	v := Visibility(strings.ToLower(strings.TrimSpace(raw)))
	switch v {
	case VisibilityPublic, VisibilityPrivate:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown visibility %q", ErrValidation, raw)
}

type Impact string

const (
	ImpactLow      Impact = "low"
	ImpactMedium   Impact = "medium"
	ImpactHigh     Impact = "high"
	ImpactCritical Impact = "critical"
)

func ParseImpact(raw string) (Impact, error) {
	im := Impact(strings.ToLower(strings.TrimSpace(raw)))
	switch im {
	case ImpactLow, ImpactMedium, ImpactHigh, ImpactCritical:
		return im, nil
	}
	return "", fmt.Errorf("%w: unknown impact %q", ErrValidation, raw)
}
