package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/media"
	"retailpos/backend/internal/service"
)

const maxProductImages = 5

func (a *API) mountProducts(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", a.handleListProducts)
		r.With(a.cached(func(r *http.Request) string {
			return productViewKey(r, cache.ProductKey(chi.URLParam(r, "productId")))
		})).Get("/{productId}", a.handleGetProduct)
		r.With(a.cached(func(r *http.Request) string {
			return productViewKey(r, cache.ProductBarcodeKey(chi.URLParam(r, "barcode")))
		})).Get("/barcode/{barcode}", a.handleGetProductByBarcode)
		r.With(a.cached(func(r *http.Request) string { return cache.ProductItemsKey(chi.URLParam(r, "productId")) })).
			Get("/items/{productId}", a.handleListProductItems)
		r.With(a.cached(func(r *http.Request) string { return cache.ProductItemsBarcodeKey(chi.URLParam(r, "barcode")) })).
			Get("/items/barcode/{barcode}", a.handleListProductItemsByBarcode)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Post("/", a.handleCreateProduct)
			r.Patch("/{productId}", a.handleUpdateProduct)
			r.Patch("/items/{productItemId}", a.handleUpdateProductItem)
			r.Delete("/items/{productItemId}", a.handleDeleteProductItem)
			r.Delete("/{productId}", a.handleDeleteProduct)
			r.Delete("/barcode/{barcode}", a.handleDeleteProductByBarcode)
		})
	})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := a.service.ListProducts(r.Context(), domain.ProductQuery{
		Category:    q.Get("category"),
		Brand:       q.Get("brand"),
		ProductName: q.Get("productName"),
		Barcode:     q.Get("barcode"),
		MinPrice:    q.Get("minPrice"),
		MaxPrice:    q.Get("maxPrice"),
		Sort:        q.Get("sort"),
		Page:        q.Get("page"),
		Limit:       q.Get("limit"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get products successfully", page)
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get product successfully", a.productView(r, product))
}

func (a *API) handleGetProductByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProductByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get product successfully", a.productView(r, product))
}

// productView hides the import price from non-admin users.
func (a *API) productView(r *http.Request, product domain.Product) any {
	if isAdminRequest(r) {
		return product
	}
	return product.Public()
}

func productViewKey(r *http.Request, key string) string {
	if isAdminRequest(r) {
		return key
	}
	return cache.PublicView(key)
}

func isAdminRequest(r *http.Request) bool {
	actor, ok := service.ActorFromContext(r.Context())
	return ok && actor.IsAdmin()
}

func (a *API) handleListProductItems(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListProductItems(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get product items successfully", items)
}

func (a *API) handleListProductItemsByBarcode(w http.ResponseWriter, r *http.Request) {
	items, err := a.service.ListProductItemsByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get product items successfully", items)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := domain.ProductCreateRequest{
		Name:         formValue(form, "productName"),
		CategoryID:   formValue(form, "categoryId"),
		Manufacturer: formValue(form, "manufacturer"),
		Description:  formValue(form, "description"),
	}
	if req.ImportPrice, err = formInt64(form, "importPrice"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.RetailPrice, err = formInt64(form, "retailPrice"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.StockQuantity, err = formInt(form, "stockQuantity"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Images, err = readImages(form, "images", 0); err != nil {
		writeError(w, r, err)
		return
	}

	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "Product added successfully", product)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	req := domain.ProductUpdateRequest{
		Name:         formOptional(form, "productName"),
		CategoryID:   formOptional(form, "categoryId"),
		Manufacturer: formOptional(form, "manufacturer"),
		Description:  formOptional(form, "description"),
	}
	if req.ImportPrice, err = formInt64(form, "importPrice"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.RetailPrice, err = formInt64(form, "retailPrice"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.StockQuantity, err = formInt(form, "stockQuantity"); err != nil {
		writeError(w, r, err)
		return
	}
	if raw := formOptional(form, "isActive"); raw != nil {
		active, err := strconv.ParseBool(*raw)
		if err != nil {
			writeError(w, r, apperr.Validation("isActive must be true or false"))
			return
		}
		req.IsActive = &active
	}
	if req.Images, err = readImages(form, "images", maxProductImages); err != nil {
		writeError(w, r, err)
		return
	}

	product, err := a.service.UpdateProduct(r.Context(), chi.URLParam(r, "productId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Product updated successfully", product)
}

func (a *API) handleUpdateProductItem(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductItemStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.service.UpdateProductItemStatus(r.Context(), chi.URLParam(r, "productItemId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Product item updated successfully", item)
}

func (a *API) handleDeleteProductItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.service.DeleteProductItem(r.Context(), chi.URLParam(r, "productItemId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Product item deleted successfully", item)
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.DeleteProduct(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Product deleted successfully", product)
}

func (a *API) handleDeleteProductByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.DeleteProductByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Product deleted successfully", product)
}

func parseMultipart(r *http.Request) (*multipart.Form, error) {
	if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, apperr.Validation("Request must be multipart/form-data")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.Validation("Request body is too large")
		}
		return nil, apperr.Validation("Invalid multipart form: %v", err)
	}
	return r.MultipartForm, nil
}

func formValue(form *multipart.Form, name string) string {
	if values := form.Value[name]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func formOptional(form *multipart.Form, name string) *string {
	values, ok := form.Value[name]
	if !ok || len(values) == 0 {
		return nil
	}
	value := strings.TrimSpace(values[0])
	return &value
}

func formInt64(form *multipart.Form, name string) (*int64, error) {
	raw := formOptional(form, name)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(*raw, 10, 64)
	if err != nil {
		return nil, apperr.Validation("%s must be a whole number", name)
	}
	return &value, nil
}

func formInt(form *multipart.Form, name string) (*int, error) {
	raw := formOptional(form, name)
	if raw == nil || *raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(*raw)
	if err != nil {
		return nil, apperr.Validation("%s must be a whole number", name)
	}
	return &value, nil
}

// readImages loads the uploaded files of a field. limit 0 means no limit.
func readImages(form *multipart.Form, field string, limit int) ([]domain.ImageUpload, error) {
	headers := form.File[field]
	if limit > 0 && len(headers) > limit {
		return nil, apperr.Validation("Too many images, max is %d", limit)
	}
	uploads := make([]domain.ImageUpload, 0, len(headers))
	for _, header := range headers {
		upload, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readUpload(header *multipart.FileHeader) (domain.ImageUpload, error) {
	if header.Size > media.MaxImageSize {
		return domain.ImageUpload{}, apperr.Validation("File is too large, max size is %d MB", media.MaxImageSize>>20)
	}
	file, err := header.Open()
	if err != nil {
		return domain.ImageUpload{}, apperr.Internal(err, "reading upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, media.MaxImageSize+1))
	if err != nil {
		return domain.ImageUpload{}, apperr.Internal(err, "reading upload")
	}
	return domain.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
