package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
	"github.com/iliyamo/library-api/internal/utils"
)

const minPasswordLen = 6

// AuthOptions configures token issuance and password hashing.
type AuthOptions struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

// Session is an issued access/refresh token pair.
type Session struct {
	User           *model.User
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// UserService handles accounts and authentication.
type UserService struct {
	users  UserStore
	tokens TokenStore
	opts   AuthOptions
	log    *zap.Logger
}

func NewUserService(users UserStore, tokens TokenStore, opts AuthOptions, log *zap.Logger) *UserService {
	if users == nil || tokens == nil || log == nil {
		panic("nil dependency passed to NewUserService")
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &UserService{users: users, tokens: tokens, opts: opts, log: log}
}

// UserInput carries the writable fields of a user.
type UserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *model.Role
}

// Register creates a USER account and signs it in.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	role := model.RoleUser
	u, err := s.Create(ctx, UserInput{Name: &name, Email: &email, Password: &password, Role: &role})
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u)
}

// Create adds a user with any role.  Admin only at the HTTP layer.
func (s *UserService) Create(ctx context.Context, in UserInput) (*model.User, error) {
	if in.Name == nil || in.Email == nil || in.Password == nil {
		return nil, invalid(CodeInvalidInput, "name, email and password are required")
	}
	u := &model.User{Role: model.RoleUser}
	if err := s.apply(u, in); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fromStore(err, CodeUserNotFound, "user not found")
	}
	s.log.Info("user created", zap.Uint64("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

// Login verifies credentials and issues a fresh token pair.  Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, CodeInvalidCredentials, "invalid credentials", nil)
		}
		return nil, internal("load user", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, newError(KindUnauthorized, CodeInvalidCredentials, "invalid credentials", nil)
	}
	if utils.NeedsRehash(u.PasswordHash, s.opts.BcryptCost) {
		s.rehash(ctx, u, password)
	}
	return s.issue(ctx, u)
}

// rehash upgrades a stored hash to the configured cost.  Failure only
// costs the upgrade, so it is logged and the login proceeds.
func (s *UserService) rehash(ctx context.Context, u *model.User, password string) {
	hash, err := utils.HashPassword(password, s.opts.BcryptCost)
	if err == nil {
		prev := u.PasswordHash
		u.PasswordHash = hash
		if err = s.users.Update(ctx, u); err != nil {
			u.PasswordHash = prev
		}
	}
	if err != nil {
		s.log.Warn("password rehash failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	}
}

// Refresh rotates a refresh token: the presented one is revoked and a
// new pair is issued.
func (s *UserService) Refresh(ctx context.Context, raw string) (*Session, error) {
	hash := utils.HashRefreshRaw(strings.TrimSpace(raw))
	u, err := s.refreshOwner(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindUnauthorized, CodeInvalidRefreshToken, "invalid refresh token", nil)
		}
		return nil, internal("revoke refresh token", err)
	}
	return s.issue(ctx, u)
}

// RefreshAccess issues a new access token and keeps the refresh token.
func (s *UserService) RefreshAccess(ctx context.Context, raw string) (*Session, error) {
	u, err := s.refreshOwner(ctx, utils.HashRefreshRaw(strings.TrimSpace(raw)))
	if err != nil {
		return nil, err
	}
	access, err := utils.NewAccessToken(s.opts.JWTSecret, u.ID, string(u.Role), s.opts.AccessTTLMin)
	if err != nil {
		return nil, internal("issue access token", err)
	}
	return &Session{User: u, AccessToken: access.Token, AccessExpires: access.Exp}, nil
}

// Logout revokes one refresh token when raw is set, otherwise every
// refresh token of userID.
func (s *UserService) Logout(ctx context.Context, userID uint64, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if userID == 0 {
			return invalid(CodeInvalidInput, "refresh_token required")
		}
		if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
			return internal("revoke refresh tokens", err)
		}
		return nil
	}
	hash := utils.HashRefreshRaw(raw)
	owner, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return newError(KindUnauthorized, CodeInvalidRefreshToken, "invalid refresh token", nil)
	}
	if userID != 0 && owner != userID {
		return newError(KindForbidden, CodeInvalidRefreshToken, "refresh token belongs to another user", nil)
	}
	if err := s.tokens.RevokeByHash(ctx, hash); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return internal("revoke refresh token", err)
	}
	return nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, CodeUserNotFound, "user not found")
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	out, err := s.users.List(ctx)
	if err != nil {
		return nil, internal("list users", err)
	}
	return out, nil
}

func (s *UserService) Update(ctx context.Context, id uint64, in UserInput) (*model.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(u, in); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fromStore(err, CodeUserNotFound, "user not found")
	}
	return u, nil
}

// Delete removes a user.  Users with loans or reservations on record
// cannot be deleted.
func (s *UserService) Delete(ctx context.Context, id uint64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return fromStore(err, CodeUserNotFound, "user not found")
	}
	s.log.Info("user deleted", zap.Uint64("user_id", id))
	return nil
}

func (s *UserService) apply(u *model.User, in UserInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return invalid(CodeInvalidInput, "name is required")
		}
		u.Name = name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
			return invalid(CodeInvalidInput, "invalid email")
		}
		u.Email = email
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return invalid(CodeInvalidInput, "role must be ADMIN or USER")
		}
		u.Role = *in.Role
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLen {
			return invalid(CodeInvalidInput, "password must be at least 6 characters")
		}
		hash, err := utils.HashPassword(*in.Password, s.opts.BcryptCost)
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return invalid(CodeInvalidInput, "password must be at most 72 bytes")
		}
		if err != nil {
			return internal("hash password", err)
		}
		u.PasswordHash = hash
	}
	return nil
}

func (s *UserService) refreshOwner(ctx context.Context, hash string) (*model.User, error) {
	userID, err := s.tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return nil, newError(KindUnauthorized, CodeInvalidRefreshToken, "invalid refresh token", nil)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, newError(KindUnauthorized, CodeInvalidRefreshToken, "invalid refresh token", nil)
	}
	return u, nil
}

func (s *UserService) issue(ctx context.Context, u *model.User) (*Session, error) {
	access, err := utils.NewAccessToken(s.opts.JWTSecret, u.ID, string(u.Role), s.opts.AccessTTLMin)
	if err != nil {
		return nil, internal("issue access token", err)
	}
	refresh, err := utils.NewRefreshToken(s.opts.RefreshTTLDays)
	if err != nil {
		return nil, internal("issue refresh token", err)
	}
	if err := s.tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, internal("store refresh token", err)
	}
	return &Session{
		User:           u,
		AccessToken:    access.Token,
		AccessExpires:  access.Exp,
		RefreshToken:   refresh.Raw,
		RefreshExpires: refresh.Exp,
	}, nil
}
