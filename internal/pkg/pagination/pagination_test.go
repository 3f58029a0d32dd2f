package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  Query
	}{
		{"", Query{Page: 1, Size: DefaultSize}},
		{"?page=3&size=20", Query{Page: 3, Size: 20}},
		{"?page=0&size=0", Query{Page: 1, Size: DefaultSize}},
		{"?page=x&size=1000", Query{Page: 1, Size: MaxSize}},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/"+tt.query, nil)
		assert.Equal(t, tt.want, FromContext(c), tt.query)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, Query{Page: 1, Size: MaxSize}, Query{Page: -4, Size: MaxSize + 1}.Normalize())
	assert.Equal(t, Query{Page: 7, Size: 25}, Query{Page: 7, Size: 25}.Normalize())
}
