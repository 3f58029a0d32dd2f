// Package ref parses entity references of the form "extid:<v>",
// "username:<v>" or a bare internal id.
package ref

import (
	"strconv"
	"strings"

	"github.com/forumhub/core/internal/pkg/apperr"
)

const (
	extIDPrefix    = "extid:"
	usernamePrefix = "username:"
)

// Kind tells which index a Ref is looked up in.
type Kind int

const (
	KindInternalID Kind = iota + 1
	KindExternalID
	KindUsername
)

func (k Kind) String() string {
	switch k {
	case KindInternalID:
		return "internal id"
	case KindExternalID:
		return "ext id"
	case KindUsername:
		return "username"
	}
	return "unknown"
}

// Ref is a parsed reference. Exactly one of ID or Value is meaningful,
// depending on Kind.
type Ref struct {
	Kind  Kind
	ID    int64
	Value string
}

func InternalID(id int64) Ref { return Ref{Kind: KindInternalID, ID: id} }
func ExternalID(v string) Ref { return Ref{Kind: KindExternalID, Value: v} }
func Username(v string) Ref   { return Ref{Kind: KindUsername, Value: v} }

// String renders r in the wire form Parse accepts.
func (r Ref) String() string {
	switch r.Kind {
	case KindExternalID:
		return extIDPrefix + r.Value
	case KindUsername:
		return usernamePrefix + r.Value
	default:
		return strconv.FormatInt(r.ID, 10)
	}
}

// Parse reads a reference. The field name is carried into the error.
func Parse(field, raw string) (Ref, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Ref{}, apperr.Validation(field, "reference is empty")
	}
	switch {
	case strings.HasPrefix(s, extIDPrefix):
		v := strings.TrimSpace(s[len(extIDPrefix):])
		if v == "" {
			return Ref{}, apperr.Validation(field, "empty ext id in %q", raw)
		}
		return ExternalID(v), nil
	case strings.HasPrefix(s, usernamePrefix):
		v := strings.TrimSpace(s[len(usernamePrefix):])
		if v == "" {
			return Ref{}, apperr.Validation(field, "empty username in %q", raw)
		}
		return Username(v), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Ref{}, apperr.Validation(field, "%q is neither a numeric id nor prefixed with extid: or username:", raw)
	}
	return InternalID(id), nil
}
