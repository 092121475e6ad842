package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateCategoryInput describes a new catalog tree node.
type CreateCategoryInput struct {
	ParentID    *uuid.UUID
	Name        string
	Slug        string
	Description string
	Position    int
}

// CreateProductInput describes a new product with its initial variants.
type CreateProductInput struct {
	CategoryID  *uuid.UUID
	Name        string
	Slug        string
	Description string
	Variants    []CreateVariantInput
}

// CreateVariantInput describes one sellable SKU of a product.
type CreateVariantInput struct {
	SKU               string
	Name              string
	Price             decimal.Decimal
	LowStockThreshold int
}

// CreateWarehouseInput describes a new stock location.
type CreateWarehouseInput struct {
	Code    string
	Name    string
	Address string
}

// RegisterUserInput describes a new customer account.
type RegisterUserInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// CreateAddressInput describes a new shipping address for a user.
type CreateAddressInput struct {
	UserID     uuid.UUID
	Recipient  string
	Phone      string
	Line1      string
	Line2      string
	City       string
	Province   string
	PostalCode string
	IsDefault  bool
}

// CreatePageInput describes a new CMS page.
type CreatePageInput struct {
	Title     string
	Slug      string
	Body      string
	Published bool
}

// CreateBannerInput describes a new storefront banner.
type CreateBannerInput struct {
	Title    string
	ImageURL string
	LinkURL  string
	Position int
}
