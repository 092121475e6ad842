package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/db"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
	"github.com/gomartvn/gomart-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the storefront CRUD surface: categories, products, warehouses,
// carts, user accounts and CMS content. No state machines here.
type Service interface {
	CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	ListCategories(ctx context.Context, parentID *uuid.UUID) ([]models.Category, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error

	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error
	AddVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*models.ProductVariant, error)
	UpdateVariant(ctx context.Context, id uuid.UUID, updates map[string]any) error

	CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error)
	ListWarehouses(ctx context.Context) ([]models.Warehouse, error)

	GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	AddToCart(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateCartItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error

	Register(ctx context.Context, input RegisterUserInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
	SetPassword(ctx context.Context, userID uuid.UUID, next string) error

	AddAddress(ctx context.Context, input CreateAddressInput) (*models.Address, error)
	ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error

	CreatePage(ctx context.Context, input CreatePageInput) (*models.Page, error)
	GetPageBySlug(ctx context.Context, slug string, publishedOnly bool) (*models.Page, error)
	CreateBanner(ctx context.Context, input CreateBannerInput) (*models.Banner, error)
	ListBanners(ctx context.Context, activeOnly bool) ([]models.Banner, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	pwCfg config.PasswordConfig
	logg  *logger.Logger
}

// NewService builds the catalog service.
func NewService(repo Repository, tx txRunner, pwCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, pwCfg: pwCfg, logg: logg}, nil
}

func notFoundOr(err error, resource string) error {
	if err == gorm.ErrRecordNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, resource+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+resource)
}

func (s *service) CreateCategory(ctx context.Context, input CreateCategoryInput) (*models.Category, error) {
	if input.Name == "" || input.Slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name and slug required")
	}
	if input.ParentID != nil {
		if _, err := s.repo.FindCategory(ctx, *input.ParentID); err != nil {
			return nil, notFoundOr(err, "parent category")
		}
	}
	category := &models.Category{
		ParentID: input.ParentID,
		Name:     input.Name,
		Slug:     input.Slug,
		Position: input.Position,
		IsActive: true,
	}
	if input.Description != "" {
		desc := input.Description
		category.Description = &desc
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return category, nil
}

func (s *service) GetCategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	category, err := s.repo.FindCategoryBySlug(ctx, slug)
	if err != nil {
		return nil, notFoundOr(err, "category")
	}
	return category, nil
}

func (s *service) ListCategories(ctx context.Context, parentID *uuid.UUID) ([]models.Category, error) {
	categories, err := s.repo.ListCategoriesByParent(ctx, parentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

func (s *service) UpdateCategory(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if err := s.repo.UpdateCategory(ctx, id, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update category")
	}
	return nil
}

// DeleteCategory refuses to orphan a subtree: nodes with children stay.
func (s *service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	children, err := s.repo.CountCategoryChildren(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count category children")
	}
	if children > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "category has child categories")
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete category")
	}
	return nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if input.Name == "" || input.Slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name and slug required")
	}
	if len(input.Variants) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product requires at least one variant")
	}
	product := &models.Product{
		CategoryID: input.CategoryID,
		Name:       input.Name,
		Slug:       input.Slug,
		IsActive:   true,
	}
	if input.Description != "" {
		desc := input.Description
		product.Description = &desc
	}
	for _, v := range input.Variants {
		if v.SKU == "" || v.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant requires a sku and a non-negative price")
		}
		product.Variants = append(product.Variants, models.ProductVariant{
			SKU:               v.SKU,
			Name:              v.Name,
			Price:             v.Price,
			LowStockThreshold: v.LowStockThreshold,
			IsActive:          true,
		})
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "slug") || db.IsUniqueViolation(err, "sku") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product slug or variant sku already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "product")
	}
	return product, nil
}

func (s *service) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	product, err := s.repo.FindProductBySlug(ctx, slug)
	if err != nil {
		return nil, notFoundOr(err, "product")
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, nil
}

func (s *service) UpdateProduct(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if err := s.repo.UpdateProduct(ctx, id, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return nil
}

func (s *service) AddVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*models.ProductVariant, error) {
	if input.SKU == "" || input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant requires a sku and a non-negative price")
	}
	if _, err := s.repo.FindProduct(ctx, productID); err != nil {
		return nil, notFoundOr(err, "product")
	}
	variant := &models.ProductVariant{
		ProductID:         productID,
		SKU:               input.SKU,
		Name:              input.Name,
		Price:             input.Price,
		LowStockThreshold: input.LowStockThreshold,
		IsActive:          true,
	}
	if err := s.repo.CreateVariant(ctx, variant); err != nil {
		if db.IsUniqueViolation(err, "sku") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "variant sku already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create variant")
	}
	return variant, nil
}

func (s *service) UpdateVariant(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if err := s.repo.UpdateVariant(ctx, id, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update variant")
	}
	return nil
}

func (s *service) CreateWarehouse(ctx context.Context, input CreateWarehouseInput) (*models.Warehouse, error) {
	if input.Code == "" || input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warehouse code and name required")
	}
	warehouse := &models.Warehouse{
		Code:     input.Code,
		Name:     input.Name,
		IsActive: true,
	}
	if input.Address != "" {
		addr := input.Address
		warehouse.Address = &addr
	}
	if err := s.repo.CreateWarehouse(ctx, warehouse); err != nil {
		if db.IsUniqueViolation(err, "code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "warehouse code already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create warehouse")
	}
	return warehouse, nil
}

func (s *service) ListWarehouses(ctx context.Context) ([]models.Warehouse, error) {
	warehouses, err := s.repo.ListWarehouses(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list warehouses")
	}
	return warehouses, nil
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindCartByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	cart = &models.Cart{UserID: userID}
	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return cart, nil
}

func (s *service) AddToCart(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	variant, err := s.repo.FindVariant(ctx, variantID)
	if err != nil {
		return nil, notFoundOr(err, "variant")
	}
	if !variant.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant is not sellable")
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindCartItem(ctx, cart.ID, variantID)
	switch {
	case err == nil:
		if err := s.repo.UpdateCartItem(ctx, existing.ID, existing.Quantity+quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
	case err == gorm.ErrRecordNotFound:
		item := &models.CartItem{CartID: cart.ID, VariantID: variantID, Quantity: quantity}
		if err := s.repo.CreateCartItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return s.GetCart(ctx, userID)
}

// UpdateCartItem sets an item's quantity; zero removes the line.
func (s *service) UpdateCartItem(ctx context.Context, userID, variantID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindCartItem(ctx, cart.ID, variantID)
	if err != nil {
		return nil, notFoundOr(err, "cart item")
	}
	if quantity == 0 {
		if err := s.repo.DeleteCartItem(ctx, item.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
		}
	} else if err := s.repo.UpdateCartItem(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	return s.GetCart(ctx, userID)
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.repo.FindCartByUser(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := s.repo.DeleteCartItems(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) Register(ctx context.Context, input RegisterUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" || input.FullName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email, password and full name required")
	}
	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     input.FullName,
		Role:         enums.UserRoleCustomer,
		IsActive:     true,
	}
	if input.Phone != "" {
		phone := input.Phone
		user.Phone = &phone
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

// Authenticate returns the user on a correct email/password pair. The error
// is deliberately identical for unknown emails and wrong passwords.
func (s *service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repo.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return user, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindUser(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

func (s *service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repo.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, notFoundOr(err, "user")
	}
	return user, nil
}

func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return notFoundOr(err, "user")
	}
	ok, err := security.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password is incorrect")
	}
	return s.SetPassword(ctx, userID, next)
}

// SetPassword overwrites the hash without checking the old one; callers gate
// it behind a verified password-reset token.
func (s *service) SetPassword(ctx context.Context, userID uuid.UUID, next string) error {
	if next == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "password required")
	}
	hash, err := security.HashPassword(next, s.pwCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.repo.UpdateUser(ctx, userID, map[string]any{"password_hash": hash}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	return nil
}

func (s *service) AddAddress(ctx context.Context, input CreateAddressInput) (*models.Address, error) {
	if input.UserID == uuid.Nil || input.Recipient == "" || input.Line1 == "" || input.City == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address requires user, recipient, line1 and city")
	}
	address := &models.Address{
		UserID:    input.UserID,
		Recipient: input.Recipient,
		Phone:     input.Phone,
		Line1:     input.Line1,
		City:      input.City,
		Province:  input.Province,
		IsDefault: input.IsDefault,
	}
	if input.Line2 != "" {
		line2 := input.Line2
		address.Line2 = &line2
	}
	if input.PostalCode != "" {
		postal := input.PostalCode
		address.PostalCode = &postal
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.IsDefault {
			if err := repo.ClearDefaultAddress(ctx, input.UserID); err != nil {
				return err
			}
		}
		return repo.CreateAddress(ctx, address)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	return address, nil
}

func (s *service) ListAddresses(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	addresses, err := s.repo.ListAddressesByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return addresses, nil
}

// DeleteAddress removes an address only if it belongs to the caller.
func (s *service) DeleteAddress(ctx context.Context, userID, addressID uuid.UUID) error {
	address, err := s.repo.FindAddress(ctx, addressID)
	if err != nil {
		return notFoundOr(err, "address")
	}
	if address.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "address belongs to another user")
	}
	if err := s.repo.DeleteAddress(ctx, addressID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
	}
	return nil
}

func (s *service) CreatePage(ctx context.Context, input CreatePageInput) (*models.Page, error) {
	if input.Title == "" || input.Slug == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "page title and slug required")
	}
	page := &models.Page{
		Title:       input.Title,
		Slug:        input.Slug,
		Body:        input.Body,
		IsPublished: input.Published,
	}
	if err := s.repo.CreatePage(ctx, page); err != nil {
		if db.IsUniqueViolation(err, "slug") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "page slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create page")
	}
	return page, nil
}

func (s *service) GetPageBySlug(ctx context.Context, slug string, publishedOnly bool) (*models.Page, error) {
	page, err := s.repo.FindPageBySlug(ctx, slug)
	if err != nil {
		return nil, notFoundOr(err, "page")
	}
	if publishedOnly && !page.IsPublished {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "page not found")
	}
	return page, nil
}

func (s *service) CreateBanner(ctx context.Context, input CreateBannerInput) (*models.Banner, error) {
	if input.Title == "" || input.ImageURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "banner title and image required")
	}
	banner := &models.Banner{
		Title:    input.Title,
		ImageURL: input.ImageURL,
		Position: input.Position,
		IsActive: true,
	}
	if input.LinkURL != "" {
		link := input.LinkURL
		banner.LinkURL = &link
	}
	if err := s.repo.CreateBanner(ctx, banner); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create banner")
	}
	return banner, nil
}

func (s *service) ListBanners(ctx context.Context, activeOnly bool) ([]models.Banner, error) {
	banners, err := s.repo.ListBanners(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list banners")
	}
	return banners, nil
}
