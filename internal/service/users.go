package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"retailpos/backend/internal/apperr"
	"retailpos/backend/internal/domain"
	"retailpos/backend/internal/events"
	"retailpos/backend/internal/mailer"
	"retailpos/backend/internal/store"
	"retailpos/backend/internal/xid"
)

const loginEmailSubject = "Login to POS"

var weakPasswords = []string{"12345678", "password", "qwerty"}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validateStruct(req); err != nil {
		return domain.LoginResponse{}, err
	}

	user, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, apperr.Unauthorized("Invalid email or password")
		}
		return domain.LoginResponse{}, apperr.Internal(err, "logging in")
	}
	if user.Role == domain.RoleEmployee && user.LoginToken != "" {
		return domain.LoginResponse{}, apperr.Validation("Please login by clicking on the link in your email")
	}
	if !s.passwords.VerifyPassword(user.PasswordHash, req.Password) {
		return domain.LoginResponse{}, apperr.Unauthorized("Invalid email or password")
	}
	return s.loginResponse(*user)
}

// LoginWithToken consumes the one-time token mailed to a new employee.
func (s *Service) LoginWithToken(ctx context.Context, token string) (domain.LoginResponse, error) {
	token = strings.TrimSpace(token)
	user, err := s.repo.GetUserByLoginToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, apperr.Validation("Invalid or expired token")
		}
		return domain.LoginResponse{}, apperr.Internal(err, "logging in with token")
	}
	now := s.now()
	if user.LoginTokenExpires == nil || !now.Before(*user.LoginTokenExpires) {
		return domain.LoginResponse{}, apperr.Validation("Invalid or expired token")
	}

	user.LoginToken = ""
	user.LoginTokenExpires = nil
	user.UpdatedAt = now
	updated, err := s.repo.UpdateUser(ctx, *user)
	if err != nil {
		return domain.LoginResponse{}, apperr.Internal(err, "logging in with token")
	}
	s.publish(ctx, events.Change{Kind: events.KindEmployee, ID: updated.ID})
	return s.loginResponse(*updated)
}

func (s *Service) loginResponse(user domain.User) (domain.LoginResponse, error) {
	token, err := s.tokens.IssueToken(user)
	if err != nil {
		return domain.LoginResponse{}, apperr.Internal(err, "issuing token")
	}
	return domain.LoginResponse{
		UserID:   user.ID,
		FullName: user.FullName,
		Email:    user.Email,
		Role:     user.Role,
		Token:    token,
	}, nil
}

// CurrentUser loads the user behind an authenticated request.
func (s *Service) CurrentUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, apperr.Unauthorized("Not authorized, user not found")
		}
		return domain.User{}, apperr.Internal(err, "loading user")
	}
	return *user, nil
}

// BootstrapAdmin creates the admin account unless the username already exists.
func (s *Service) BootstrapAdmin(ctx context.Context, username, email, password string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return false, fmt.Errorf("admin username and password are required")
	}
	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return false, err
	}
	now := s.now()
	_, err = s.repo.CreateUser(ctx, domain.User{
		ID:           xid.New(),
		FullName:     "Administrator",
		Email:        strings.TrimSpace(email),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) CreateEmployee(ctx context.Context, req domain.EmployeeCreateRequest) (domain.MessageResult, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.MessageResult{}, err
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Mobile = strings.TrimSpace(req.Mobile)
	if req.FullName == "" || req.Email == "" {
		return domain.MessageResult{}, apperr.Validation("Fullname and Email is required")
	}
	if err := s.validateStruct(req); err != nil {
		return domain.MessageResult{}, err
	}

	if _, err := s.repo.GetUserByEmail(ctx, req.Email); err == nil {
		return domain.MessageResult{}, apperr.Validation("Employee already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.MessageResult{}, apperr.Internal(err, "creating employee")
	}

	username := req.Email[:strings.Index(req.Email, "@")]
	hash, err := s.passwords.HashPassword(username)
	if err != nil {
		return domain.MessageResult{}, apperr.Internal(err, "creating employee")
	}
	token, err := xid.Token(32)
	if err != nil {
		return domain.MessageResult{}, apperr.Internal(err, "creating employee")
	}

	now := s.now()
	expires := now.Add(s.loginTokenTTL)
	created, err := s.repo.CreateUser(ctx, domain.User{
		ID:                xid.New(),
		FullName:          req.FullName,
		Email:             req.Email,
		Mobile:            req.Mobile,
		Username:          username,
		PasswordHash:      hash,
		Role:              domain.RoleEmployee,
		LoginToken:        token,
		LoginTokenExpires: &expires,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.MessageResult{}, apperr.Validation("Employee already exists")
		}
		return domain.MessageResult{}, apperr.Internal(err, "creating employee")
	}
	s.publish(ctx, events.Change{Kind: events.KindEmployee, ID: created.ID})

	if err := s.sendLoginEmail(ctx, *created, token); err != nil {
		return domain.MessageResult{}, apperr.Internal(err, "sending login email")
	}
	return domain.MessageResult{Message: "Login email sent."}, nil
}

func (s *Service) sendLoginEmail(ctx context.Context, user domain.User, token string) error {
	loginURL := fmt.Sprintf("%s/api/auth/login/%s", s.publicBaseURL, token)
	resetURL := fmt.Sprintf("%s/reset-password/%s", s.frontendURL, token)
	text := fmt.Sprintf(
		"Hello %s,\n\nClick the link below to log in. It expires in %s.\n%s\n\nThen set your password at %s\n",
		user.FullName, s.loginTokenTTL, loginURL, resetURL,
	)
	body := fmt.Sprintf(
		`<p>Hello %s,</p><p>Click <a href="%s">here</a> to log in. The link expires in %s.</p><p>Then set your password <a href="%s">here</a>.</p>`,
		html.EscapeString(user.FullName), html.EscapeString(loginURL), s.loginTokenTTL, html.EscapeString(resetURL),
	)
	return s.mail.Dispatch(ctx, mailer.Envelope{
		To:      user.Email,
		ToName:  user.FullName,
		Subject: loginEmailSubject,
		Text:    text,
		HTML:    body,
	})
}

func (s *Service) ListEmployees(ctx context.Context) ([]domain.User, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx, domain.RoleEmployee)
	if err != nil {
		return nil, apperr.Internal(err, "getting employees")
	}
	return users, nil
}

func (s *Service) ToggleEmployeeLock(ctx context.Context, employeeID string) (domain.EmployeeLockResult, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.EmployeeLockResult{}, err
	}
	user, err := s.repo.GetUser(ctx, strings.TrimSpace(employeeID))
	if err != nil {
		return domain.EmployeeLockResult{}, notFound(err, "Employee not found", "updating employee status")
	}
	if user.Role != domain.RoleEmployee {
		return domain.EmployeeLockResult{}, apperr.NotFound("Employee not found")
	}

	user.IsLocked = !user.IsLocked
	user.UpdatedAt = s.now()
	updated, err := s.repo.UpdateUser(ctx, *user)
	if err != nil {
		return domain.EmployeeLockResult{}, apperr.Internal(err, "updating employee status")
	}
	s.publish(ctx, events.Change{Kind: events.KindEmployee, ID: updated.ID})

	state := "unlocked"
	if updated.IsLocked {
		state = "locked"
	}
	return domain.EmployeeLockResult{Message: fmt.Sprintf("Employee account %s.", state), IsLocked: updated.IsLocked}, nil
}

func (s *Service) ResendLoginEmail(ctx context.Context, email string) (domain.MessageResult, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.MessageResult{}, err
	}
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return domain.MessageResult{}, notFound(err, "Employee not found", "resending login email")
	}
	if user.Role != domain.RoleEmployee {
		return domain.MessageResult{}, apperr.NotFound("Employee not found")
	}

	token, err := xid.Token(32)
	if err != nil {
		return domain.MessageResult{}, apperr.Internal(err, "resending login email")
	}
	now := s.now()
	expires := now.Add(s.loginTokenTTL)
	user.LoginToken = token
	user.LoginTokenExpires = &expires
	user.UpdatedAt = now
	if _, err := s.repo.UpdateUser(ctx, *user); err != nil {
		return domain.MessageResult{}, apperr.Internal(err, "resending login email")
	}
	if err := s.sendLoginEmail(ctx, *user, token); err != nil {
		return domain.MessageResult{}, apperr.Internal(err, "resending login email")
	}
	return domain.MessageResult{Message: "Login email resent with new token."}, nil
}

func (s *Service) EmployeeProfile(ctx context.Context, employeeID string) (domain.EmployeeProfile, error) {
	if _, err := s.requireAdmin(ctx); err != nil {
		return domain.EmployeeProfile{}, err
	}
	employeeID = strings.TrimSpace(employeeID)

	var (
		user   *domain.User
		orders []domain.Order
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.repo.GetUser(gctx, employeeID)
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = s.repo.ListOrders(gctx, store.OrderFilter{EmployeeID: employeeID})
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.EmployeeProfile{}, notFound(err, "Employee not found", "getting employee profile")
	}
	return domain.EmployeeProfile{Employee: *user, Orders: orders}, nil
}

func (s *Service) Profile(ctx context.Context) (domain.User, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.GetUser(ctx, actor.UserID)
	if err != nil {
		return domain.User{}, notFound(err, "User not found", "getting profile")
	}
	return *user, nil
}

func (s *Service) ResetPassword(ctx context.Context, req domain.PasswordResetRequest) (domain.User, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.GetUser(ctx, actor.UserID)
	if err != nil {
		return domain.User{}, notFound(err, "User not found", "resetting password")
	}
	if user.IsActive {
		return domain.User{}, apperr.Validation("This user's password has been reset. Please use other APIs to change password!")
	}
	if err := s.checkNewPassword(req, req.Password, user.PasswordHash); err != nil {
		return domain.User{}, err
	}
	return s.savePassword(ctx, *user, req.Password, true)
}

func (s *Service) ChangePassword(ctx context.Context, req domain.PasswordChangeRequest) (domain.User, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.repo.GetUser(ctx, actor.UserID)
	if err != nil {
		return domain.User{}, notFound(err, "User not found", "changing password")
	}
	if req.OldPassword == "" || !s.passwords.VerifyPassword(user.PasswordHash, req.OldPassword) {
		return domain.User{}, apperr.Unauthorized("Old password is incorrect!")
	}
	if err := s.checkNewPassword(req, req.NewPassword, user.PasswordHash); err != nil {
		return domain.User{}, err
	}
	return s.savePassword(ctx, *user, req.NewPassword, user.IsActive)
}

func (s *Service) checkNewPassword(req any, password string, currentHash string) error {
	if err := s.validateStruct(req); err != nil {
		return err
	}
	if slices.Contains(weakPasswords, strings.ToLower(password)) {
		return apperr.Validation("Password is too common, please choose another one")
	}
	if s.passwords.VerifyPassword(currentHash, password) {
		return apperr.Validation("New password cannot be the same as the old password!")
	}
	return nil
}

func (s *Service) savePassword(ctx context.Context, user domain.User, password string, active bool) (domain.User, error) {
	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return domain.User{}, apperr.Internal(err, "hashing password")
	}
	user.PasswordHash = hash
	user.IsActive = active
	user.UpdatedAt = s.now()
	updated, err := s.repo.UpdateUser(ctx, user)
	if err != nil {
		return domain.User{}, apperr.Internal(err, "saving password")
	}
	s.publish(ctx, events.Change{Kind: events.KindEmployee, ID: updated.ID})
	return *updated, nil
}

func (s *Service) UploadAvatar(ctx context.Context, upload domain.ImageUpload) (domain.AvatarResult, error) {
	actor, err := s.requireActor(ctx)
	if err != nil {
		return domain.AvatarResult{}, err
	}
	if len(upload.Data) == 0 {
		return domain.AvatarResult{}, apperr.Validation("No file uploaded")
	}
	user, err := s.repo.GetUser(ctx, actor.UserID)
	if err != nil {
		return domain.AvatarResult{}, notFound(err, "User not found", "uploading avatar")
	}
	if s.media == nil {
		return domain.AvatarResult{}, apperr.Internal(errors.New("media store not configured"), "uploading avatar")
	}
	url, err := s.media.Save(ctx, "avatars", upload)
	if err != nil {
		return domain.AvatarResult{}, mediaError(err, "uploading avatar")
	}

	user.Avatar = url
	user.UpdatedAt = s.now()
	if _, err := s.repo.UpdateUser(ctx, *user); err != nil {
		return domain.AvatarResult{}, apperr.Internal(err, "uploading avatar")
	}
	s.publish(ctx, events.Change{Kind: events.KindEmployee, ID: user.ID})
	return domain.AvatarResult{Avatar: url}, nil
}
