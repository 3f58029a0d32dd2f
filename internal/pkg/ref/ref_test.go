package ref

import (
	"testing"

	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want Ref
	}{
		{"extid:cat_ext_id", ExternalID("cat_ext_id")},
		{"username:corax", Username("corax")},
		{"42", InternalID(42)},
		{"  7 ", InternalID(7)},
		{"extid:a:b", ExternalID("a:b")},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Parse("categoryRef", tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "extid:", "username: ", "abc", "ssoid:x", "1.5"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse("authorRef", raw)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Contains(t, err.Error(), "authorRef")
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, r := range []Ref{InternalID(3), ExternalID("x"), Username("maja")} {
		back, err := Parse("f", r.String())
		require.NoError(t, err)
		assert.Equal(t, r, back)
	}
}
