package catalog

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     8,
		ArgonKeyLen:      16,
	}
}

func setupCatalogService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.ProductVariant{},
		&models.Warehouse{},
		&models.Cart{},
		&models.CartItem{},
		&models.User{},
		&models.Address{},
		&models.Page{},
		&models.Banner{},
	))

	logg := logger.New(logger.Options{ServiceName: "catalog-test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, testPasswordConfig(), logg)
	require.NoError(t, err)
	return svc, db
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, code, appErr.Code())
}

func TestCategoryTree(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()

	root, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Beverages", Slug: "beverages"})
	require.NoError(t, err)
	child, err := svc.CreateCategory(ctx, CreateCategoryInput{ParentID: &root.ID, Name: "Tea", Slug: "tea"})
	require.NoError(t, err)

	roots, err := svc.ListCategories(ctx, nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "beverages", roots[0].Slug)

	children, err := svc.ListCategories(ctx, &root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	// slugs are unique
	_, err = svc.CreateCategory(ctx, CreateCategoryInput{Name: "Other", Slug: "tea"})
	requireCode(t, err, pkgerrors.CodeConflict)

	// a parent with children cannot be removed
	requireCode(t, svc.DeleteCategory(ctx, root.ID), pkgerrors.CodeConflict)
	require.NoError(t, svc.DeleteCategory(ctx, child.ID))
	require.NoError(t, svc.DeleteCategory(ctx, root.ID))
}

func TestCreateCategoryRejectsUnknownParent(t *testing.T) {
	svc, _ := setupCatalogService(t)
	missing := uuid.New()

	_, err := svc.CreateCategory(context.Background(), CreateCategoryInput{
		ParentID: &missing, Name: "Orphan", Slug: "orphan",
	})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestCreateProductWithVariants(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name: "Green Tea",
		Slug: "green-tea",
		Variants: []CreateVariantInput{
			{SKU: "GT-100", Name: "100g", Price: decimal.NewFromInt(55000), LowStockThreshold: 5},
			{SKU: "GT-500", Name: "500g", Price: decimal.NewFromInt(240000), LowStockThreshold: 2},
		},
	})
	require.NoError(t, err)

	loaded, err := svc.GetProductBySlug(ctx, "green-tea")
	require.NoError(t, err)
	assert.Equal(t, product.ID, loaded.ID)
	require.Len(t, loaded.Variants, 2)

	_, err = svc.CreateProduct(ctx, CreateProductInput{Name: "No Variants", Slug: "no-variants"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestListProductsByCategory(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, CreateCategoryInput{Name: "Snacks", Slug: "snacks"})
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		CategoryID: &category.ID, Name: "Rice Crackers", Slug: "rice-crackers",
		Variants: []CreateVariantInput{{SKU: "RC-1", Price: decimal.NewFromInt(30000)}},
	})
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, CreateProductInput{
		Name: "Uncategorized", Slug: "uncategorized",
		Variants: []CreateVariantInput{{SKU: "UC-1", Price: decimal.NewFromInt(10000)}},
	})
	require.NoError(t, err)

	listed, err := svc.ListProducts(ctx, ProductFilter{CategoryID: &category.ID})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "rice-crackers", listed[0].Slug)
}

func TestCartLifecycle(t *testing.T) {
	svc, db := setupCatalogService(t)
	ctx := context.Background()
	userID := uuid.New()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name: "Coffee", Slug: "coffee",
		Variants: []CreateVariantInput{{SKU: "CF-1", Price: decimal.NewFromInt(95000)}},
	})
	require.NoError(t, err)
	variantID := product.Variants[0].ID

	cart, err := svc.AddToCart(ctx, userID, variantID, 2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	// adding the same variant merges the line
	cart, err = svc.AddToCart(ctx, userID, variantID, 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	// zero quantity removes the line
	cart, err = svc.UpdateCartItem(ctx, userID, variantID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = svc.AddToCart(ctx, userID, variantID, 1)
	require.NoError(t, err)
	require.NoError(t, svc.ClearCart(ctx, userID))

	var count int64
	require.NoError(t, db.Model(&models.CartItem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAddToCartRejectsInactiveVariant(t *testing.T) {
	svc, db := setupCatalogService(t)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, CreateProductInput{
		Name: "Retired", Slug: "retired",
		Variants: []CreateVariantInput{{SKU: "RT-1", Price: decimal.NewFromInt(5000)}},
	})
	require.NoError(t, err)
	variantID := product.Variants[0].ID
	require.NoError(t, db.Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("is_active", false).Error)

	_, err = svc.AddToCart(ctx, uuid.New(), variantID, 1)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterUserInput{
		Email:    "An.Nguyen@GoMart.vn",
		Password: "s3cret-pass",
		FullName: "An Nguyen",
	})
	require.NoError(t, err)
	assert.Equal(t, "an.nguyen@gomart.vn", user.Email)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	authed, err := svc.Authenticate(ctx, "an.nguyen@gomart.vn", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = svc.Authenticate(ctx, "an.nguyen@gomart.vn", "wrong")
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	_, err = svc.Authenticate(ctx, "nobody@gomart.vn", "s3cret-pass")
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Register(ctx, RegisterUserInput{
		Email: "an.nguyen@gomart.vn", Password: "other", FullName: "Duplicate",
	})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestChangePassword(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterUserInput{
		Email: "pw@gomart.vn", Password: "original", FullName: "PW User",
	})
	require.NoError(t, err)

	requireCode(t, svc.ChangePassword(ctx, user.ID, "wrong", "next"), pkgerrors.CodeUnauthorized)
	require.NoError(t, svc.ChangePassword(ctx, user.ID, "original", "next"))

	_, err = svc.Authenticate(ctx, "pw@gomart.vn", "next")
	require.NoError(t, err)
}

func TestDefaultAddressIsExclusive(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.AddAddress(ctx, CreateAddressInput{
		UserID: userID, Recipient: "An", Phone: "0900000001",
		Line1: "1 Le Loi", City: "Da Nang", Province: "Da Nang", IsDefault: true,
	})
	require.NoError(t, err)
	second, err := svc.AddAddress(ctx, CreateAddressInput{
		UserID: userID, Recipient: "An", Phone: "0900000001",
		Line1: "2 Tran Phu", City: "Da Nang", Province: "Da Nang", IsDefault: true,
	})
	require.NoError(t, err)

	addresses, err := svc.ListAddresses(ctx, userID)
	require.NoError(t, err)
	require.Len(t, addresses, 2)

	defaults := 0
	for _, addr := range addresses {
		if addr.IsDefault {
			defaults++
			assert.Equal(t, second.ID, addr.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	// ownership check on delete
	requireCode(t, svc.DeleteAddress(ctx, uuid.New(), first.ID), pkgerrors.CodeForbidden)
	require.NoError(t, svc.DeleteAddress(ctx, userID, first.ID))
}

func TestPageVisibility(t *testing.T) {
	svc, _ := setupCatalogService(t)
	ctx := context.Background()

	_, err := svc.CreatePage(ctx, CreatePageInput{Title: "About", Slug: "about", Body: "..."})
	require.NoError(t, err)

	_, err = svc.GetPageBySlug(ctx, "about", true)
	requireCode(t, err, pkgerrors.CodeNotFound)

	page, err := svc.GetPageBySlug(ctx, "about", false)
	require.NoError(t, err)
	assert.Equal(t, "About", page.Title)
}

func TestBannerListing(t *testing.T) {
	svc, db := setupCatalogService(t)
	ctx := context.Background()

	active, err := svc.CreateBanner(ctx, CreateBannerInput{Title: "Sale", ImageURL: "https://cdn/sale.png", Position: 1})
	require.NoError(t, err)
	hidden, err := svc.CreateBanner(ctx, CreateBannerInput{Title: "Old", ImageURL: "https://cdn/old.png", Position: 2})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Banner{}).
		Where("id = ?", hidden.ID).
		Update("is_active", false).Error)

	banners, err := svc.ListBanners(ctx, true)
	require.NoError(t, err)
	require.Len(t, banners, 1)
	assert.Equal(t, active.ID, banners[0].ID)
}
