package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gomartvn/gomart-backend/api/middleware"
	"github.com/gomartvn/gomart-backend/api/responses"
	"github.com/gomartvn/gomart-backend/api/validators"
	"github.com/gomartvn/gomart-backend/internal/catalog"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type createCategoryRequest struct {
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Name        string     `json:"name" validate:"required"`
	Slug        string     `json:"slug" validate:"required"`
	Description string     `json:"description,omitempty"`
	Position    int        `json:"position,omitempty"`
}

type createProductRequest struct {
	CategoryID  *uuid.UUID             `json:"category_id,omitempty"`
	Name        string                 `json:"name" validate:"required"`
	Slug        string                 `json:"slug" validate:"required"`
	Description string                 `json:"description,omitempty"`
	Variants    []createVariantRequest `json:"variants" validate:"required,min=1,dive"`
}

type createVariantRequest struct {
	SKU               string          `json:"sku" validate:"required"`
	Name              string          `json:"name,omitempty"`
	Price             decimal.Decimal `json:"price" validate:"required"`
	LowStockThreshold int             `json:"low_stock_threshold,omitempty"`
}

type createWarehouseRequest struct {
	Code    string `json:"code" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Address string `json:"address,omitempty"`
}

type cartItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=0"`
}

type createAddressRequest struct {
	Recipient  string `json:"recipient" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	Province   string `json:"province" validate:"required"`
	PostalCode string `json:"postal_code,omitempty"`
	IsDefault  bool   `json:"is_default,omitempty"`
}

type categoryResponse struct {
	ID       uuid.UUID  `json:"id"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
	Name     string     `json:"name"`
	Slug     string     `json:"slug"`
	Position int        `json:"position"`
	IsActive bool       `json:"is_active"`
}

type variantResponse struct {
	ID       uuid.UUID       `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	IsActive bool            `json:"is_active"`
}

type productResponse struct {
	ID          uuid.UUID         `json:"id"`
	CategoryID  *uuid.UUID        `json:"category_id,omitempty"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description *string           `json:"description,omitempty"`
	IsActive    bool              `json:"is_active"`
	Variants    []variantResponse `json:"variants"`
}

type warehouseResponse struct {
	ID       uuid.UUID `json:"id"`
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	Address  *string   `json:"address,omitempty"`
	IsActive bool      `json:"is_active"`
}

type cartItemResponse struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
}

type cartResponse struct {
	ID    uuid.UUID          `json:"id"`
	Items []cartItemResponse `json:"items"`
}

type addressResponse struct {
	ID         uuid.UUID `json:"id"`
	Recipient  string    `json:"recipient"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      *string   `json:"line2,omitempty"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	PostalCode *string   `json:"postal_code,omitempty"`
	IsDefault  bool      `json:"is_default"`
}

type pageResponse struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

type bannerResponse struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	ImageURL string    `json:"image_url"`
	LinkURL  *string   `json:"link_url,omitempty"`
	Position int       `json:"position"`
}

func newCategoryResponse(category *models.Category) categoryResponse {
	return categoryResponse{
		ID:       category.ID,
		ParentID: category.ParentID,
		Name:     category.Name,
		Slug:     category.Slug,
		Position: category.Position,
		IsActive: category.IsActive,
	}
}

func newProductResponse(product *models.Product) productResponse {
	resp := productResponse{
		ID:          product.ID,
		CategoryID:  product.CategoryID,
		Name:        product.Name,
		Slug:        product.Slug,
		Description: product.Description,
		IsActive:    product.IsActive,
		Variants:    []variantResponse{},
	}
	for _, variant := range product.Variants {
		resp.Variants = append(resp.Variants, variantResponse{
			ID:       variant.ID,
			SKU:      variant.SKU,
			Name:     variant.Name,
			Price:    variant.Price,
			IsActive: variant.IsActive,
		})
	}
	return resp
}

func newCartResponse(cart *models.Cart) cartResponse {
	resp := cartResponse{ID: cart.ID, Items: []cartItemResponse{}}
	for _, item := range cart.Items {
		resp.Items = append(resp.Items, cartItemResponse{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		})
	}
	return resp
}

func newAddressResponse(address *models.Address) addressResponse {
	return addressResponse{
		ID:         address.ID,
		Recipient:  address.Recipient,
		Phone:      address.Phone,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		Province:   address.Province,
		PostalCode: address.PostalCode,
		IsDefault:  address.IsDefault,
	}
}

// --- categories ---

func CreateCategory(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createCategoryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		category, err := svc.CreateCategory(r.Context(), catalog.CreateCategoryInput{
			ParentID:    body.ParentID,
			Name:        body.Name,
			Slug:        body.Slug,
			Description: body.Description,
			Position:    body.Position,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCategoryResponse(category))
	}
}

func ListCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var parentID *uuid.UUID
		if raw := r.URL.Query().Get("parent_id"); raw != "" {
			id, err := validators.PathUUID(raw, "parent_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			parentID = &id
		}

		categories, err := svc.ListCategories(r.Context(), parentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]categoryResponse, 0, len(categories))
		for i := range categories {
			resp = append(resp, newCategoryResponse(&categories[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func DeleteCategory(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.PathUUID(chi.URLParam(r, "categoryId"), "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteCategory(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// --- products ---

func CreateProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.CreateProductInput{
			CategoryID:  body.CategoryID,
			Name:        body.Name,
			Slug:        body.Slug,
			Description: body.Description,
		}
		for _, variant := range body.Variants {
			input.Variants = append(input.Variants, catalog.CreateVariantInput{
				SKU:               variant.SKU,
				Name:              variant.Name,
				Price:             variant.Price,
				LowStockThreshold: variant.LowStockThreshold,
			})
		}

		product, err := svc.CreateProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := catalog.ProductFilter{
			ActiveOnly: validators.QueryBool(r, "active_only", true),
			Limit:      validators.QueryInt(r, "limit", 20),
			Offset:     validators.QueryInt(r, "offset", 0),
		}
		if raw := r.URL.Query().Get("category_id"); raw != "" {
			id, err := validators.PathUUID(raw, "category_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			filter.CategoryID = &id
		}

		products, err := svc.ListProducts(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]productResponse, 0, len(products))
		for i := range products {
			resp = append(resp, newProductResponse(&products[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func ProductBySlug(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		product, err := svc.GetProductBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newProductResponse(product))
	}
}

func AddProductVariant(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.PathUUID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createVariantRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		variant, err := svc.AddVariant(r.Context(), productID, catalog.CreateVariantInput{
			SKU:               body.SKU,
			Name:              body.Name,
			Price:             body.Price,
			LowStockThreshold: body.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, variantResponse{
			ID:       variant.ID,
			SKU:      variant.SKU,
			Name:     variant.Name,
			Price:    variant.Price,
			IsActive: variant.IsActive,
		})
	}
}

// --- warehouses ---

func CreateWarehouse(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createWarehouseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		warehouse, err := svc.CreateWarehouse(r.Context(), catalog.CreateWarehouseInput{
			Code:    body.Code,
			Name:    body.Name,
			Address: body.Address,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, warehouseResponse{
			ID:       warehouse.ID,
			Code:     warehouse.Code,
			Name:     warehouse.Name,
			Address:  warehouse.Address,
			IsActive: warehouse.IsActive,
		})
	}
}

func ListWarehouses(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		warehouses, err := svc.ListWarehouses(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]warehouseResponse, 0, len(warehouses))
		for _, warehouse := range warehouses {
			resp = append(resp, warehouseResponse{
				ID:       warehouse.ID,
				Code:     warehouse.Code,
				Name:     warehouse.Name,
				Address:  warehouse.Address,
				IsActive: warehouse.IsActive,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}

// --- cart ---

func GetCart(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		cart, err := svc.GetCart(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func AddToCart(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var body cartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Quantity <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive"))
			return
		}

		cart, err := svc.AddToCart(r.Context(), userID, body.VariantID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

// UpdateCartItem sets a line's quantity; zero removes the line.
func UpdateCartItem(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var body cartItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := svc.UpdateCartItem(r.Context(), userID, body.VariantID, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(cart))
	}
}

func ClearCart(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if err := svc.ClearCart(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}

// --- addresses ---

func AddAddress(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var body createAddressRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		address, err := svc.AddAddress(r.Context(), catalog.CreateAddressInput{
			UserID:     userID,
			Recipient:  body.Recipient,
			Phone:      body.Phone,
			Line1:      body.Line1,
			Line2:      body.Line2,
			City:       body.City,
			Province:   body.Province,
			PostalCode: body.PostalCode,
			IsDefault:  body.IsDefault,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newAddressResponse(address))
	}
}

func ListAddresses(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		addresses, err := svc.ListAddresses(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]addressResponse, 0, len(addresses))
		for i := range addresses {
			resp = append(resp, newAddressResponse(&addresses[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

func DeleteAddress(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addressID, err := validators.PathUUID(chi.URLParam(r, "addressId"), "addressId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteAddress(r.Context(), middleware.UserIDFromContext(r.Context()), addressID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// --- CMS ---

func PageBySlug(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := svc.GetPageBySlug(r.Context(), chi.URLParam(r, "slug"), true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pageResponse{
			Slug:      page.Slug,
			Title:     page.Title,
			Body:      page.Body,
			UpdatedAt: page.UpdatedAt,
		})
	}
}

func ListBanners(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		banners, err := svc.ListBanners(r.Context(), true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := make([]bannerResponse, 0, len(banners))
		for _, banner := range banners {
			resp = append(resp, bannerResponse{
				ID:       banner.ID,
				Title:    banner.Title,
				ImageURL: banner.ImageURL,
				LinkURL:  banner.LinkURL,
				Position: banner.Position,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}
