package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/events"
	"retailpos/backend/internal/invoice"
	"retailpos/backend/internal/mailer"
	"retailpos/backend/internal/media"
	"retailpos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hash string, password string) bool
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	IssueToken(user domain.User) (string, error)
}

// InvoiceGenerator writes the invoice document of a checked-out order.
type InvoiceGenerator interface {
	Generate(ctx context.Context, data invoice.Data) (string, error)
}

type Deps struct {
	Repo      store.Repository
	Bus       *events.Bus
	Media     media.Store
	Invoices  InvoiceGenerator
	Mail      mailer.Dispatcher
	Passwords PasswordHasher
	Tokens    TokenIssuer
	Logger    *slog.Logger
}

type Options struct {
	Location      *time.Location
	LoginTokenTTL time.Duration
	// PublicBaseURL prefixes the login link mailed to new employees.
	PublicBaseURL string
	// FrontendURL prefixes the password reset link.
	FrontendURL string
	Now         func() time.Time
}

type Service struct {
	repo      store.Repository
	bus       *events.Bus
	media     media.Store
	invoices  InvoiceGenerator
	mail      mailer.Dispatcher
	passwords PasswordHasher
	tokens    TokenIssuer
	logger    *slog.Logger
	validate  *validator.Validate

	location      *time.Location
	loginTokenTTL time.Duration
	publicBaseURL string
	frontendURL   string
	now           func() time.Time
}

func New(deps Deps, opts Options) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bus := deps.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	mail := deps.Mail
	if mail == nil {
		mail = mailer.NewDirect(mailer.LogSender{Logger: logger})
	}
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	loginTTL := opts.LoginTokenTTL
	if loginTTL <= 0 {
		loginTTL = time.Minute
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:          deps.Repo,
		bus:           bus,
		media:         deps.Media,
		invoices:      deps.Invoices,
		mail:          mail,
		passwords:     deps.Passwords,
		tokens:        deps.Tokens,
		logger:        logger.With("component", "service"),
		validate:      validator.New(),
		location:      location,
		loginTokenTTL: loginTTL,
		publicBaseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		frontendURL:   strings.TrimRight(opts.FrontendURL, "/"),
		now:           now,
	}
}

func (s *Service) Bus() *events.Bus {
	return s.bus
}

func (s *Service) requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Actor{}, apperr.Unauthorized("Not authorized, no token")
	}
	return actor, nil
}

func (s *Service) requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if !actor.IsAdmin() {
		return domain.Actor{}, apperr.Forbidden("Access denied. Admins only.")
	}
	return actor, nil
}

// publish notifies subscribers of a committed change. The write already
// happened, so a failing subscriber is logged and not returned.
func (s *Service) publish(ctx context.Context, change events.Change) {
	if actor, ok := ActorFromContext(ctx); ok && change.ActorID == "" {
		change.ActorID = actor.UserID
	}
	if err := s.bus.Publish(ctx, change); err != nil {
		s.logger.Warn("change subscribers failed", "kind", change.Kind, "id", change.ID, "error", err)
	}
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation("%s", err.Error())
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return apperr.Validation("%s", strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// notFound maps store.ErrNotFound to a typed 404 and wraps anything else.
func notFound(err error, message string, action string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("%s", message)
	}
	return apperr.Internal(err, action)
}

func mediaError(err error, action string) error {
	switch {
	case errors.Is(err, media.ErrEmptyFile):
		return apperr.Validation("No file uploaded")
	case errors.Is(err, media.ErrTooLarge):
		return apperr.Validation("File is too large, max size is %d MB", media.MaxImageSize>>20)
	case errors.Is(err, media.ErrNotAnImage):
		return apperr.Validation("Only image files are allowed")
	}
	return apperr.Internal(err, action)
}
