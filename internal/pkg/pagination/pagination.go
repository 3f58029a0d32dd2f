// Package pagination reads page/size query parameters and applies them to
// GORM queries.
package pagination

import (
	"strconv"

	"github.com/forumhub/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultSize = 10
	MaxSize     = 100
)

// Query is a 1-based page number and a page size.
type Query struct {
	Page int
	Size int
}

// Normalize clamps q into the accepted range.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Size < 1:
		q.Size = DefaultSize
	case q.Size > MaxSize:
		q.Size = MaxSize
	}
	return q
}

func (q Query) offset() int { return (q.Page - 1) * q.Size }

// FromContext reads ?page= and ?size=. Unparsable values fall back to the
// defaults.
func FromContext(c *gin.Context) Query {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("size"))
	return Query{Page: page, Size: size}.Normalize()
}

// Paginate counts the rows db selects, then loads page q of them into dest.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	q = q.Normalize()
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}
	if err := db.Offset(q.offset()).Limit(q.Size).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	pages := int(total / int64(q.Size))
	if total%int64(q.Size) != 0 {
		pages++
	}
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   pages,
		Size:        q.Size,
		HasNextPage: q.Page < pages,
	}, nil
}
