package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/verdant/internal/apperror"
	"github.com/example/verdant/internal/cache"
	"github.com/example/verdant/internal/models"
	"github.com/example/verdant/internal/testutil"
)

func ptr[T any](v T) *T { return &v }

func newCatalog(t *testing.T) (*CatalogService, *gorm.DB, *cache.Memory) {
	db := testutil.NewDB(t)
	mem := cache.NewMemory()
	return NewCatalogService(db, mem, 0, nil), db, mem
}

func TestCreateProduct(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, ProductInput{
		Name:     ptr("Monstera Deliciosa"),
		Price:    ptr(decimal.RequireFromString("24.999")),
		Category: ptr(models.CategoryPlants),
		Quantity: ptr(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "monstera-deliciosa", product.Slug)
	assert.Equal(t, "25.00", product.Price.StringFixed(2))
	assert.Equal(t, 7, product.Quantity)

	_, err = svc.CreateProduct(ctx, ProductInput{
		Name:     ptr("monstera deliciosa"),
		Price:    ptr(decimal.NewFromInt(1)),
		Category: ptr(models.CategoryPlants),
	})
	assert.True(t, apperror.HasStatus(err, http.StatusConflict))
}

func TestCreateProduct_Validation(t *testing.T) {
	svc, _, _ := newCatalog(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   ProductInput
	}{
		{"missing price", ProductInput{Name: ptr("Fern"), Category: ptr(models.CategoryPlants)}},
		{"bad category", ProductInput{Name: ptr("Fern"), Price: ptr(decimal.NewFromInt(1)), Category: ptr("Trees")}},
		{"negative price", ProductInput{Name: ptr("Fern"), Price: ptr(decimal.NewFromInt(-1)), Category: ptr(models.CategorySeeds)}},
		{"negative stock", ProductInput{Name: ptr("Fern"), Price: ptr(decimal.NewFromInt(1)), Category: ptr(models.CategorySeeds), Quantity: ptr(-2)}},
		{"symbols only", ProductInput{Name: ptr("!!!"), Price: ptr(decimal.NewFromInt(1)), Category: ptr(models.CategoryPots)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(ctx, tt.in)
			assert.True(t, apperror.HasStatus(err, http.StatusBadRequest), "got %v", err)
		})
	}
}

func TestListProducts_Filters(t *testing.T) {
	svc, db, _ := newCatalog(t)
	ctx := context.Background()

	testutil.CreateProduct(t, db, "Boston Fern", "boston-fern", "12.50", 5)
	testutil.CreateProduct(t, db, "Maidenhair Fern", "maidenhair-fern", "18.00", 5)
	testutil.CreateProduct(t, db, "Snake Plant", "snake-plant", "30.00", 5)
	pot := models.Product{Name: "Clay Pot", Slug: "clay-pot", Price: decimal.NewFromInt(5), Quantity: 3, Category: models.CategoryPots}
	require.NoError(t, db.Create(&pot).Error)

	names := func(f ProductFilter) []string {
		t.Helper()
		products, total, err := svc.ListProducts(ctx, f)
		require.NoError(t, err)
		assert.EqualValues(t, len(products), total)
		out := make([]string, 0, len(products))
		for _, p := range products {
			out = append(out, p.Name)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"Clay Pot"}, names(ProductFilter{Category: models.CategoryPots}))
	assert.ElementsMatch(t, []string{"Snake Plant"}, names(ProductFilter{Name: "SNAKE plant"}))
	assert.ElementsMatch(t, []string{"Boston Fern", "Maidenhair Fern"}, names(ProductFilter{Keyword: "fern"}))

	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(20)
	assert.ElementsMatch(t, []string{"Boston Fern", "Maidenhair Fern"}, names(ProductFilter{MinPrice: &lo, MaxPrice: &hi}))
	assert.Len(t, names(ProductFilter{}), 4)
}

func TestListProducts_KeywordWildcardsAreLiteral(t *testing.T) {
	svc, db, _ := newCatalog(t)
	ctx := context.Background()

	testutil.CreateProduct(t, db, "Boston Fern", "boston-fern", "12.50", 5)
	testutil.CreateProduct(t, db, "Aloe 100% Organic", "aloe-100-organic", "9.00", 5)

	for kw, want := range map[string]int{"_": 0, "%": 1, "100%": 1, "o_o": 0, `\`: 0} {
		products, total, err := svc.ListProducts(ctx, ProductFilter{Keyword: kw})
		require.NoError(t, err)
		assert.Len(t, products, want, "keyword %q", kw)
		assert.EqualValues(t, want, total, "keyword %q", kw)
	}
}

func TestListProducts_Pagination(t *testing.T) {
	svc, db, _ := newCatalog(t)
	for _, n := range []string{"a", "b", "c"} {
		testutil.CreateProduct(t, db, "Plant "+n, "plant-"+n, "1.00", 1)
	}

	products, total, err := svc.ListProducts(context.Background(), ProductFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, products, 1)
}

func TestGetProduct_ReadThroughCache(t *testing.T) {
	svc, db, mem := newCatalog(t)
	ctx := context.Background()
	fern := testutil.CreateProduct(t, db, "Boston Fern", "boston-fern", "12.50", 5)

	got, err := svc.GetProduct(ctx, fern.Slug)
	require.NoError(t, err)
	assert.Equal(t, fern.ID, got.ID)
	assert.Equal(t, 1, mem.Len())

	// A stale row in the database is not seen until invalidation.
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", fern.ID).Update("quantity", 1).Error)
	got, err = svc.GetProduct(ctx, fern.Slug)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)

	updated, err := svc.UpdateProduct(ctx, fern.Slug, ProductInput{Quantity: ptr(9)})
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Quantity)
	assert.Equal(t, 0, mem.Len())

	_, err = svc.GetProduct(ctx, "missing")
	assert.True(t, apperror.HasStatus(err, http.StatusNotFound))
}

func TestUpdateProduct_RenameChangesSlug(t *testing.T) {
	svc, db, _ := newCatalog(t)
	ctx := context.Background()
	testutil.CreateProduct(t, db, "Boston Fern", "boston-fern", "12.50", 5)
	testutil.CreateProduct(t, db, "Snake Plant", "snake-plant", "30.00", 5)

	updated, err := svc.UpdateProduct(ctx, "boston-fern", ProductInput{Name: ptr("Sword Fern")})
	require.NoError(t, err)
	assert.Equal(t, "sword-fern", updated.Slug)

	_, err = svc.GetProduct(ctx, "boston-fern")
	assert.True(t, apperror.HasStatus(err, http.StatusNotFound))

	_, err = svc.UpdateProduct(ctx, "sword-fern", ProductInput{Name: ptr("Snake Plant")})
	assert.True(t, apperror.HasStatus(err, http.StatusConflict))
}

func TestDeleteProduct(t *testing.T) {
	svc, db, _ := newCatalog(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "jane@example.com", false)
	fern := testutil.CreateProduct(t, db, "Boston Fern", "boston-fern", "12.50", 5)
	testutil.AddToCart(t, db, user.ID, fern, 1)
	_, err := svc.AddToWishlist(ctx, user.ID, fern.Slug)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, fern.Slug))

	var carts, wishes int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&carts).Error)
	require.NoError(t, db.Model(&models.WishlistItem{}).Count(&wishes).Error)
	assert.Zero(t, carts)
	assert.Zero(t, wishes)

	assert.True(t, apperror.HasStatus(svc.DeleteProduct(ctx, fern.Slug), http.StatusNotFound))
}

func TestAddReview_RatingIsRoundedMean(t *testing.T) {
	svc, db, _ := newCatalog(t)
	ctx := context.Background()
	fern := testutil.CreateProduct(t, db, "Boston Fern", "boston-fern", "12.50", 5)

	ratings := []float64{5, 4, 4}
	var product *models.Product
	for i, r := range ratings {
		user := testutil.CreateUser(t, db, "reviewer"+string(rune('a'+i))+"@example.com", false)
		var err error
		_, product, err = svc.AddReview(ctx, user.ID, fern.Slug, r)
		require.NoError(t, err)
	}

	// (5+4+4)/3 = 4.333...
	assert.Equal(t, 4.3, product.Rating)

	var stored models.Product
	require.NoError(t, db.First(&stored, "id = ?", fern.ID).Error)
	assert.Equal(t, 4.3, stored.Rating)
}

func TestAddReview_Rejections(t *testing.T) {
	svc, db, _ := newCatalog(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "jane@example.com", false)
	fern := testutil.CreateProduct(t, db, "Boston Fern", "boston-fern", "12.50", 5)

	_, _, err := svc.AddReview(ctx, user.ID, fern.Slug, 5.5)
	assert.True(t, apperror.HasStatus(err, http.StatusBadRequest))

	_, _, err = svc.AddReview(ctx, user.ID, "missing", 3)
	assert.True(t, apperror.HasStatus(err, http.StatusNotFound))

	_, _, err = svc.AddReview(ctx, user.ID, fern.Slug, 3)
	require.NoError(t, err)

	_, _, err = svc.AddReview(ctx, user.ID, fern.Slug, 4)
	require.True(t, apperror.HasStatus(err, http.StatusBadRequest))
	appErr, _ := apperror.As(err)
	assert.Equal(t, "You have already reviewed this product.", appErr.Message)

	var count int64
	require.NoError(t, db.Model(&models.Review{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestWishlist(t *testing.T) {
	svc, db, _ := newCatalog(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "jane@example.com", false)
	fern := testutil.CreateProduct(t, db, "Boston Fern", "boston-fern", "12.50", 5)

	_, err := svc.AddToWishlist(ctx, user.ID, "")
	assert.True(t, apperror.HasStatus(err, http.StatusBadRequest))
	_, err = svc.AddToWishlist(ctx, user.ID, "missing")
	assert.True(t, apperror.HasStatus(err, http.StatusNotFound))

	item, err := svc.AddToWishlist(ctx, user.ID, fern.Slug)
	require.NoError(t, err)
	assert.Equal(t, fern.ID, item.ProductID)

	_, err = svc.AddToWishlist(ctx, user.ID, fern.Slug)
	assert.True(t, apperror.HasStatus(err, http.StatusBadRequest))

	items, err := svc.ListWishlist(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Product)
	assert.Equal(t, "Boston Fern", items[0].Product.Name)

	require.NoError(t, svc.RemoveFromWishlist(ctx, user.ID, fern.Slug))
	assert.True(t, apperror.HasStatus(svc.RemoveFromWishlist(ctx, user.ID, fern.Slug), http.StatusNotFound))
}
