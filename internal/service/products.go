package service

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/events"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	maxPriceRange    = 1000000000
	maxStockQuantity = 1000
)

var allowedSortFields = []string{"productName", "retailPrice", "createdAt", "manufacturer"}

func (s *Service) ListProducts(ctx context.Context, q domain.ProductQuery) (domain.ProductPage, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.ProductPage{}, err
	}

	filter := store.ProductFilter{
		CategoryPrefix: strings.TrimSpace(q.Category),
		Manufacturer:   strings.TrimSpace(q.Brand),
		Name:           strings.TrimSpace(q.ProductName),
		Barcode:        strings.TrimSpace(q.Barcode),
	}

	minPrice, maxPrice, err := parsePriceRange(q.MinPrice, q.MaxPrice)
	if err != nil {
		return domain.ProductPage{}, err
	}
	filter.MinPrice, filter.MaxPrice = minPrice, maxPrice

	if filter.Sort, err = parseSort(q.Sort); err != nil {
		return domain.ProductPage{}, err
	}

	page, err := parsePositiveInt(q.Page, 1)
	if err != nil {
		return domain.ProductPage{}, err
	}
	limit, err := parsePositiveInt(q.Limit, defaultPageLimit)
	if err != nil {
		return domain.ProductPage{}, err
	}
	if page < 1 || limit < 1 {
		return domain.ProductPage{}, apperr.Validation("Page and limit must be positive numbers")
	}
	if limit > maxPageLimit {
		return domain.ProductPage{}, apperr.Validation("Limit is out of range, max limit is %d", maxPageLimit)
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return domain.ProductPage{}, apperr.Internal(err, "getting product list")
	}
	if total == 0 {
		return domain.ProductPage{}, apperr.NotFound("No products found")
	}
	maxPage := int(math.Ceil(float64(total) / float64(limit)))
	if page > maxPage {
		return domain.ProductPage{}, apperr.Validation("Page is out of range, max page is %d", maxPage)
	}

	result := domain.ProductPage{
		Pagination: domain.Pagination{
			CurrentPage:  page,
			TotalPages:   maxPage,
			TotalItems:   total,
			ItemsPerPage: limit,
		},
	}
	if actor.IsAdmin() {
		result.Products = products
	} else {
		public := make([]domain.PublicProduct, 0, len(products))
		for _, p := range products {
			public = append(public, p.Public())
		}
		result.Products = public
	}
	return result, nil
}

func parsePriceRange(rawMin, rawMax string) (*int64, *int64, error) {
	rawMin, rawMax = strings.TrimSpace(rawMin), strings.TrimSpace(rawMax)
	if rawMin == "" && rawMax == "" {
		return nil, nil, nil
	}

	parse := func(raw string) (*int64, error) {
		if raw == "" {
			return nil, nil
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, apperr.Validation("Price must be a number")
		}
		if value < 0 {
			return nil, apperr.Validation("Price cannot be negative")
		}
		rounded := int64(math.Round(value))
		return &rounded, nil
	}

	minPrice, err := parse(rawMin)
	if err != nil {
		return nil, nil, err
	}
	maxPrice, err := parse(rawMax)
	if err != nil {
		return nil, nil, err
	}
	if minPrice != nil && maxPrice != nil {
		if *minPrice > *maxPrice {
			return nil, nil, apperr.Validation("Min price cannot be greater than max price")
		}
		if *minPrice == *maxPrice {
			return nil, nil, apperr.Validation("Min price cannot equal max price")
		}
	}
	if maxPrice != nil && *maxPrice > maxPriceRange {
		return nil, nil, apperr.Validation("Max price cannot exceed %d", maxPriceRange)
	}
	return minPrice, maxPrice, nil
}

func parseSort(raw string) ([]store.SortField, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	fields := make([]store.SortField, 0, 2)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		field := store.SortField{Field: strings.TrimPrefix(part, "-"), Desc: strings.HasPrefix(part, "-")}
		if !isAllowedSortField(field.Field) {
			return nil, apperr.Validation("Invalid sort fields. Allowed fields: %s", strings.Join(allowedSortFields, ", "))
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func isAllowedSortField(field string) bool {
	for _, allowed := range allowedSortFields {
		if field == allowed {
			return true
		}
	}
	return false
}

func parsePositiveInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("Page and limit must be positive numbers")
	}
	return value, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, notFound(err, "Product not found", "getting product by id")
	}
	return *product, nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return domain.Product{}, apperr.Validation("Barcode is required")
	}
	product, err := s.repo.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, notFound(err, "Product not found", "getting product by barcode")
	}
	return *product, nil
}

func (s *Service) ListProductItems(ctx context.Context, productID string) ([]domain.ProductItem, error) {
	items, err := s.repo.ListProductItems(ctx, strings.TrimSpace(productID))
	if err != nil {
		return nil, notFound(err, "Product not found", "getting product items")
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("Product items not found")
	}
	return items, nil
}

func (s *Service) ListProductItemsByBarcode(ctx context.Context, barcode string) ([]domain.ProductItem, error) {
	product, err := s.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	return s.ListProductItems(ctx, product.ID)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	req.Manufacturer = strings.TrimSpace(req.Manufacturer)
	if req.Name == "" || req.ImportPrice == nil || req.RetailPrice == nil || req.CategoryID == "" || req.Manufacturer == "" {
		return domain.Product{}, apperr.Validation("Required fields must be filled")
	}

	stock := 1
	if req.StockQuantity != nil {
		stock = *req.StockQuantity
	}
	if *req.ImportPrice < 0 || *req.RetailPrice < 0 || stock < 0 {
		return domain.Product{}, apperr.Validation("Price and stock quantity cannot be negative")
	}
	if stock > maxStockQuantity {
		return domain.Product{}, stockOutOfRange()
	}
	if *req.ImportPrice > *req.RetailPrice {
		return domain.Product{}, apperr.Validation("Import price cannot be greater than retail price")
	}
	if len(req.Images) == 0 {
		return domain.Product{}, apperr.Validation("No images uploaded")
	}
	if _, err := s.repo.GetCategory(ctx, req.CategoryID); err != nil {
		return domain.Product{}, notFound(err, "Category not found", "adding product")
	}

	images, err := s.saveImages(ctx, req.Images)
	if err != nil {
		return domain.Product{}, err
	}

	now := s.now()
	product := domain.Product{
		ID:           xid.New(),
		Name:         req.Name,
		Barcode:      xid.Barcode(),
		CategoryID:   req.CategoryID,
		ImportPrice:  *req.ImportPrice,
		RetailPrice:  *req.RetailPrice,
		Manufacturer: req.Manufacturer,
		Description:  strings.TrimSpace(req.Description),
		Images:       images,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.CreateProduct(ctx, product, newItems(product.ID, product.Manufacturer, stock, now))
	if err != nil {
		return domain.Product{}, apperr.Internal(err, "adding product")
	}
	s.publish(ctx, events.Change{Kind: events.KindProduct, ID: created.ID, Barcode: created.Barcode})
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, notFound(err, "Product not found", "updating product")
	}

	updated := *existing
	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		updated.Name = strings.TrimSpace(*req.Name)
	}
	if req.ImportPrice != nil {
		updated.ImportPrice = *req.ImportPrice
	}
	if req.RetailPrice != nil {
		updated.RetailPrice = *req.RetailPrice
	}
	if updated.ImportPrice < 0 || updated.RetailPrice < 0 {
		return domain.Product{}, apperr.Validation("Price and stock quantity cannot be negative")
	}
	if updated.ImportPrice > updated.RetailPrice {
		return domain.Product{}, apperr.Validation("Import price cannot be greater than retail price")
	}
	if req.StockQuantity != nil && *req.StockQuantity > maxStockQuantity {
		return domain.Product{}, stockOutOfRange()
	}
	if req.CategoryID != nil && strings.TrimSpace(*req.CategoryID) != "" {
		categoryID := strings.TrimSpace(*req.CategoryID)
		if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
			return domain.Product{}, notFound(err, "Category not found", "updating product")
		}
		updated.CategoryID = categoryID
	}
	if req.Manufacturer != nil && strings.TrimSpace(*req.Manufacturer) != "" {
		updated.Manufacturer = strings.TrimSpace(*req.Manufacturer)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	if len(req.Images) > 0 {
		images, err := s.saveImages(ctx, req.Images)
		if err != nil {
			return domain.Product{}, err
		}
		updated.Images = images
	}

	now := s.now()
	updated.UpdatedAt = now

	var added []domain.ProductItem
	removeCount := 0
	if req.StockQuantity != nil {
		target := *req.StockQuantity
		if target < 0 {
			return domain.Product{}, apperr.Validation("Price and stock quantity cannot be negative")
		}
		switch {
		case target > existing.StockQuantity:
			added = newItems(updated.ID, updated.Manufacturer, target-existing.StockQuantity, now)
		case target < existing.StockQuantity:
			removeCount = existing.StockQuantity - target
		}
	}

	saved, err := s.repo.UpdateProduct(ctx, updated, added, removeCount)
	if err != nil {
		var stockErr *store.StockError
		if errors.As(err, &stockErr) {
			return domain.Product{}, apperr.Validation("Only %d items available to remove", stockErr.Available)
		}
		return domain.Product{}, notFound(err, "Product not found", "updating product")
	}
	s.publish(ctx, events.Change{Kind: events.KindProduct, ID: saved.ID, Barcode: saved.Barcode})
	return *saved, nil
}

func stockOutOfRange() error {
	return apperr.Validation("Stock quantity is out of range, max stock quantity is %d", maxStockQuantity)
}

func (s *Service) UpdateProductItemStatus(ctx context.Context, itemID string, req domain.ProductItemStatusRequest) (domain.ProductItem, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.ProductItem{}, err
	}
	if !req.Status.Valid() {
		return domain.ProductItem{}, apperr.Validation("Invalid status value")
	}

	item, err := s.repo.UpdateProductItemStatus(ctx, strings.TrimSpace(itemID), req.Status, s.now())
	if err != nil {
		if errors.Is(err, store.ErrItemLocked) {
			return domain.ProductItem{}, apperr.Validation("Product item is already in an order and cannot be updated")
		}
		return domain.ProductItem{}, notFound(err, "Product item not found", "updating product item")
	}
	s.publishProduct(ctx, item.ProductID)
	return *item, nil
}

func (s *Service) DeleteProduct(ctx context.Context, productID string) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, notFound(err, "Product not found", "deleting product")
	}
	return s.deleteProduct(ctx, *product)
}

func (s *Service) DeleteProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	product, err := s.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	return s.deleteProduct(ctx, product)
}

func (s *Service) deleteProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := s.repo.DeleteProduct(ctx, product.ID); err != nil {
		if errors.Is(err, store.ErrProductInUse) {
			return domain.Product{}, apperr.Validation("Product cannot be deleted because it's in order")
		}
		return domain.Product{}, notFound(err, "Product not found", "deleting product")
	}
	s.publish(ctx, events.Change{Kind: events.KindProduct, ID: product.ID, Barcode: product.Barcode})
	return product, nil
}

func (s *Service) DeleteProductItem(ctx context.Context, itemID string) (domain.ProductItem, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.ProductItem{}, err
	}
	item, err := s.repo.GetProductItem(ctx, strings.TrimSpace(itemID))
	if err != nil {
		return domain.ProductItem{}, notFound(err, "Product item not found", "deleting product item")
	}
	if err := s.repo.DeleteProductItem(ctx, item.ID, s.now()); err != nil {
		if errors.Is(err, store.ErrItemLocked) {
			return domain.ProductItem{}, apperr.Validation("Product item cannot be deleted")
		}
		return domain.ProductItem{}, notFound(err, "Product item not found", "deleting product item")
	}
	s.publishProduct(ctx, item.ProductID)
	return *item, nil
}

func (s *Service) publishProduct(ctx context.Context, productID string) {
	change := events.Change{Kind: events.KindProduct, ID: productID}
	if product, err := s.repo.GetProduct(ctx, productID); err == nil {
		change.Barcode = product.Barcode
	}
	s.publish(ctx, change)
}

func (s *Service) saveImages(ctx context.Context, uploads []domain.ImageUpload) ([]string, error) {
	if s.media == nil {
		return nil, apperr.Internal(errors.New("media store not configured"), "uploading images")
	}
	urls := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		url, err := s.media.Save(ctx, "products", upload)
		if err != nil {
			return nil, mediaError(err, "uploading images")
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func newItems(productID, manufacturer string, count int, at time.Time) []domain.ProductItem {
	items := make([]domain.ProductItem, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, domain.ProductItem{
			ID:           xid.New(),
			ProductID:    productID,
			SerialNumber: xid.Serial(manufacturer),
			Status:       domain.ItemInStock,
			CreatedAt:    at,
			UpdatedAt:    at,
		})
	}
	return items
}
