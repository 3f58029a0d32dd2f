package category

import (
	"context"
	"testing"

	"github.com/forumhub/core/internal/database/dbtest"
	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/forumhub/core/internal/pkg/ref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func seed(t *testing.T) (*gorm.DB, *Service) {
	db := dbtest.Open(t)
	cats := []models.CategoryModel{
		{SiteID: 1, ID: 2, Slug: "category-a", Name: "Category A"},
		{SiteID: 1, ID: 3, Slug: "category-b", Name: "Category B", ExtID: strPtr("catB")},
		{SiteID: 2, ID: 2, Slug: "category-a", Name: "Other site A", ExtID: strPtr("cat_ext_id")},
	}
	require.NoError(t, db.Create(&cats).Error)
	return db, NewService(db)
}

func TestSetExtIDThenResolve(t *testing.T) {
	_, svc := seed(t)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, 1, ref.ExternalID("cat_ext_id"), "categoryRef")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindResolution))

	cat, err := svc.SetExtID(ctx, 1, 2, "cat_ext_id")
	require.NoError(t, err)
	require.NotNil(t, cat.ExtID)
	assert.Equal(t, "cat_ext_id", *cat.ExtID)

	got, err := svc.Resolve(ctx, 1, ref.ExternalID("cat_ext_id"), "categoryRef")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)

	got, err = svc.Resolve(ctx, 1, ref.InternalID(3), "categoryRef")
	require.NoError(t, err)
	assert.Equal(t, "Category B", got.Name)

	_, err = svc.Resolve(ctx, 1, ref.Username("x"), "categoryRef")
	assert.True(t, apperr.Is(err, apperr.KindResolution))
}

func TestSetExtIDConflict(t *testing.T) {
	_, svc := seed(t)
	ctx := context.Background()

	_, err := svc.SetExtID(ctx, 1, 2, "catB")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// Re-assigning a category its own ext id is fine.
	_, err = svc.SetExtID(ctx, 1, 3, "catB")
	require.NoError(t, err)

	cat, err := svc.SetExtID(ctx, 1, 3, "")
	require.NoError(t, err)
	assert.Nil(t, cat.ExtID)
}

func TestUpdate(t *testing.T) {
	_, svc := seed(t)
	ctx := context.Background()

	cat, err := svc.Update(ctx, 1, 2, &UpdateCategoryDTO{Name: strPtr("Renamed"), Description: strPtr("About A")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", cat.Name)
	assert.Equal(t, "About A", cat.Description)

	_, err = svc.Update(ctx, 1, 2, &UpdateCategoryDTO{Name: strPtr("  ")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	cat, err = svc.Update(ctx, 1, 99, &UpdateCategoryDTO{Name: strPtr("x")})
	require.NoError(t, err)
	assert.Nil(t, cat)

	cats, err := svc.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}
