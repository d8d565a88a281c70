package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/cache"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/service"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 32 << 20
)

type Options struct {
	AllowedOrigin string
	Cache         cache.ResponseCache
	CacheTTL      time.Duration
	UploadDir     string
	// LoginRateLimit caps login attempts per client IP per minute.
	LoginRateLimit int
	Production     bool
	Logger         *slog.Logger
}

type API struct {
	service        *service.Service
	auth           *AuthManager
	cache          cache.ResponseCache
	cacheTTL       time.Duration
	allowedOrigin  string
	uploadDir      string
	loginRateLimit int
	secure         *secure.Secure
	logger         *slog.Logger
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	responseCache := opts.Cache
	if responseCache == nil {
		responseCache = cache.NoopCache{}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	loginLimit := opts.LoginRateLimit
	if loginLimit <= 0 {
		loginLimit = 5
	}
	return &API{
		service:        svc,
		auth:           auth,
		cache:          responseCache,
		cacheTTL:       ttl,
		allowedOrigin:  opts.AllowedOrigin,
		uploadDir:      opts.UploadDir,
		loginRateLimit: loginLimit,
		secure: secure.New(secure.Options{
			FrameDeny:          true,
			ContentTypeNosniff: true,
			BrowserXssFilter:   true,
			ReferrerPolicy:     "strict-origin-when-cross-origin",
			SSLRedirect:        opts.Production,
			SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
			IsDevelopment:      !opts.Production,
		}),
		logger: logger.With("component", "httpapi"),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.RequestID, middleware.Recoverer, a.withMiddleware)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, apperr.NotFound("Route %s not found", r.URL.Path))
	})
	r.MethodNotAllowed(writeMethodNotAllowed)

	r.Get("/healthz", a.handleHealth)
	if a.uploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(a.uploadDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(httprate.Limit(a.loginRateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeEnvelope(w, http.StatusTooManyRequests, false, "Too many login attempts, please try again later", nil)
				}),
			)).Post("/login", a.handleLogin)
			r.Get("/login/{token}", a.handleLoginWithToken)
		})

		r.Route("/employee", func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Post("/reset-password", a.handleResetPassword)
			r.Post("/change-password", a.handleChangePassword)
			r.Group(func(r chi.Router) {
				r.Use(a.requireActive, a.requireUnlocked)
				r.With(a.cached(func(r *http.Request) string { return cache.EmployeeProfileKey(actorID(r)) })).
					Get("/profile", a.handleProfile)
				r.Post("/upload-avatar", a.handleUploadAvatar)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(a.requireAuth, a.requireAdmin)
			r.Post("/create-employee", a.handleCreateEmployee)
			r.With(a.cached(func(*http.Request) string { return cache.EmployeesListKey })).
				Get("/employees", a.handleListEmployees)
			r.Patch("/employees/{id}/lock", a.handleToggleLock)
			r.Post("/employees/{email}/resend-login-email", a.handleResendLoginEmail)
			r.With(a.cached(func(r *http.Request) string { return cache.AdminEmployeeProfileKey(chi.URLParam(r, "employeeId")) })).
				Get("/profile/{employeeId}", a.handleEmployeeProfile)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth, a.requireActive, a.requireUnlocked)
			a.mountProducts(r)
			a.mountOrders(r)
			a.mountCustomers(r)
			a.mountReports(r)
			a.mountCategories(r)
		})
	})

	return r
}

type userContextKey struct{}

func userFromContext(ctx context.Context) (domain.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(domain.User)
	return user, ok
}

func actorID(r *http.Request) string {
	actor, _ := service.ActorFromContext(r.Context())
	return actor.UserID
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, r, apperr.Unauthorized("Not authorized, no token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		if token == "" {
			writeError(w, r, apperr.Unauthorized("Not authorized, no token"))
			return
		}
		claims, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, r, apperr.Unauthorized("Not authorized, token invalid"))
			return
		}

		user, err := a.service.CurrentUser(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := service.WithActor(r.Context(), domain.Actor{UserID: user.ID, Username: user.Username, Role: user.Role})
		ctx = context.WithValue(ctx, userContextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireActive blocks employees who have not replaced their initial password.
func (a *API) requireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := userFromContext(r.Context()); ok && user.Role == domain.RoleEmployee && !user.IsActive {
			writeError(w, r, apperr.Forbidden("You must reset your password before accessing other features."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireUnlocked(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := userFromContext(r.Context()); ok && user.Role == domain.RoleEmployee && user.IsLocked {
			writeError(w, r, apperr.Forbidden("This employee is locked!"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := service.ActorFromContext(r.Context())
		if !ok || !actor.IsAdmin() {
			writeError(w, r, apperr.Forbidden("Access denied. Admins only."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.secure.Process(w, r); err != nil {
			a.logger.Warn("secure headers blocked request", "path", r.URL.Path, "error", err)
			return
		}
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		switch {
		case strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data"):
			r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
		case r.Body != nil && r.Method != http.MethodGet:
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		}

		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(startedAt),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type envelope struct {
	Code    int    `json:"code"`
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  any    `json:"result"`
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return apperr.Validation("Invalid request body: %v", err)
	}
	return nil
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("Invalid request body: %v", err)
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeEnvelope(w, http.StatusMethodNotAllowed, false, "Method not allowed", nil)
}

func writeResult(w http.ResponseWriter, status int, message string, result any) {
	writeEnvelope(w, status, true, message, result)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	msg := err.Error()
	if status >= 500 {
		slog.Default().Error("internal error",
			"status", status,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		msg = "Internal server error"
	}
	writeEnvelope(w, status, false, msg, nil)
}

func writeEnvelope(w http.ResponseWriter, status int, success bool, message string, result any) {
	writeJSON(w, status, envelope{Code: status, Success: success, Message: message, Result: result})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
