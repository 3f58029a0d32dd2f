package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"T", "t"},
		{"UpsPageOneTitle", "upspageonetitle"},
		{"Hello, World!", "hello-world"},
		{"  leading and trailing  ", "leading-and-trailing"},
		{"Crème brûlée à la mode", "creme-brulee-a-la-mode"},
		{"a---b", "a-b"},
		{"日本語", ""},
		{"", ""},
		{"Version 2.0", "version-2-0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in))
		})
	}
}

func TestMakeCapsLength(t *testing.T) {
	got := Make(strings.Repeat("abc ", 100))
	assert.LessOrEqual(t, len(got), MaxLen+1)
	assert.False(t, strings.HasSuffix(got, "-"))
}
