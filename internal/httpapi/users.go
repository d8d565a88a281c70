package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	resp, err := a.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Login successful", resp)
}

func (a *API) handleLoginWithToken(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.LoginWithToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Login successful", resp)
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := a.service.ResetPassword(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Password has been reset successfully.", nil)
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := a.service.ChangePassword(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Password changed successfully!", nil)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, err := a.service.Profile(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get profile successfully", user)
}

func (a *API) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	form, err := parseMultipart(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	headers := form.File["avatar"]
	if len(headers) == 0 {
		writeError(w, r, apperr.Validation("No file uploaded"))
		return
	}
	upload, err := readUpload(headers[0])
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := a.service.UploadAvatar(r.Context(), upload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Profile picture updated successfully", result)
}

func (a *API) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req domain.EmployeeCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := a.service.CreateEmployee(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "Employee created successfully.", result)
}

func (a *API) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := a.service.ListEmployees(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Employees fetched successfully.", employees)
}

func (a *API) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ToggleEmployeeLock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Employee account status updated successfully.", result)
}

func (a *API) handleResendLoginEmail(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ResendLoginEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Login email resent successfully.", result)
}

func (a *API) handleEmployeeProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := a.service.EmployeeProfile(r.Context(), chi.URLParam(r, "employeeId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Get employe's profile successfully.", profile)
}

func (a *API) mountCategories(r chi.Router) {
	r.With(a.cached(func(*http.Request) string { return cache.CategoriesListKey })).
		Get("/categories", a.handleListCategories)
	r.With(a.requireAdmin).Post("/categories", a.handleCreateCategory)
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, "Categories fetched successfully.", categories)
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	category, err := a.service.CreateCategory(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, "Category created successfully.", category)
}
