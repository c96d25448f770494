package services

import (
	"context"
	"net/mail"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/auth"
	"shop_back_end/internal/models"
	"shop_back_end/internal/store"
	"shop_back_end/internal/utils"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials = apperror.Unauthenticated("INVALID_CREDENTIALS", "Invalid email or password")
	ErrEmailInUse         = apperror.Conflict("EMAIL_IN_USE", "Email already in use")
	ErrUsernameTaken      = apperror.Conflict("USERNAME_TAKEN", "Username already taken")
	ErrWrongPassword      = apperror.Unauthenticated("WRONG_PASSWORD", "Current password is incorrect")
	ErrUserNotFound       = apperror.NotFound("USER_NOT_FOUND", "User not found")
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// Session is the result of a successful login.
type Session struct {
	Token    string
	User     models.User
	Identity auth.Identity
}

type AccountService struct {
	store   store.Store
	tokens  *auth.Issuer
	revoker auth.Revoker
	now     Clock
}

func NewAccountService(st store.Store, tokens *auth.Issuer, revoker auth.Revoker) *AccountService {
	return &AccountService{store: st, tokens: tokens, revoker: revoker, now: utcNow}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(username, email, password string) error {
	if strings.TrimSpace(username) == "" {
		return apperror.Validation("INVALID_INPUT", "Username is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return apperror.Validation("INVALID_INPUT", "A valid email is required")
	}
	return validatePassword(password)
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperror.Validation("INVALID_INPUT", "Password must be at least 6 characters")
	}
	return nil
}

// Register creates a Customer (default) or Vendor account.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	role := models.RoleCustomer
	if in.Role != "" {
		parsed, ok := models.ParseRole(in.Role)
		if !ok {
			return models.User{}, apperror.Validation("INVALID_ROLE", "Role must be Customer or Vendor")
		}
		if !parsed.In(models.SelfAssignableRoles...) {
			return models.User{}, apperror.Forbidden("ROLE_NOT_ALLOWED", "Admin accounts cannot be self-registered")
		}
		role = parsed
	}
	return s.createUser(ctx, in.Username, in.Email, in.Password, role)
}

// CreateAdmin bootstraps an Admin account. Only reachable from the CLI.
func (s *AccountService) CreateAdmin(ctx context.Context, username, email, password string) (models.User, error) {
	return s.createUser(ctx, username, email, password, models.RoleAdmin)
}

func (s *AccountService) createUser(ctx context.Context, username, email, password string, role models.Role) (models.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if err := validateCredentials(username, email, password); err != nil {
		return models.User{}, err
	}

	if _, err := s.store.Users().FindByEmail(ctx, email); err == nil {
		return models.User{}, ErrEmailInUse
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, apperror.Internal(err)
	}
	if _, err := s.store.Users().FindByUsername(ctx, username); err == nil {
		return models.User{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, apperror.Internal(err)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return models.User{}, apperror.Internal(err)
	}

	now := s.now()
	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(ctx, &user); err != nil {
		// lost a race with a concurrent registration
		var dup *store.DuplicateError
		if errors.As(err, &dup) && dup.Field == "username" {
			return models.User{}, ErrUsernameTaken
		}
		if errors.As(err, &dup) {
			return models.User{}, ErrEmailInUse
		}
		return models.User{}, apperror.Internal(err)
	}
	return user, nil
}

// Login verifies credentials and issues a token carrying the stored role.
func (s *AccountService) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.store.Users().FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, apperror.Internal(err)
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Error("unreadable password hash")
		return Session{}, ErrInvalidCredentials
	}
	if !ok {
		return Session{}, ErrInvalidCredentials
	}

	if utils.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, password)
	}

	token, identity, err := s.tokens.Issue(user)
	if err != nil {
		return Session{}, apperror.Internal(err)
	}
	return Session{Token: token, User: user, Identity: identity}, nil
}

func (s *AccountService) upgradeHash(ctx context.Context, user models.User, password string) {
	hash, err := utils.HashPassword(password)
	if err == nil {
		err = s.store.Users().UpdatePassword(ctx, user.ID, hash, s.now())
	}
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID.Hex()).Warn("could not upgrade legacy password hash")
	}
}

func (s *AccountService) Profile(ctx context.Context, userID primitive.ObjectID) (models.User, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return models.User{}, notFoundOr(err, ErrUserNotFound)
	}
	return user, nil
}

// ChangePassword replaces the password and revokes every token issued
// before the change, including the one used for this call.
func (s *AccountService) ChangePassword(ctx context.Context, id auth.Identity, oldPassword, newPassword string) error {
	if oldPassword == "" {
		return apperror.Validation("INVALID_INPUT", "Current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.store.Users().FindByID(ctx, id.UserID)
	if err != nil {
		return notFoundOr(err, ErrUserNotFound)
	}
	ok, err := utils.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrWrongPassword
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return apperror.Internal(err)
	}

	// revoke first: a failed revocation must leave the password unchanged
	now := s.now()
	if err := s.revoker.RevokeIssuedBefore(ctx, user.ID.Hex(), now, s.tokens.TTL()); err != nil {
		return apperror.Internal(errors.Wrap(err, "revoking tokens after password change"))
	}
	if err := s.revoker.Revoke(ctx, id.TokenID, id.ExpiresAt); err != nil {
		return apperror.Internal(errors.Wrap(err, "revoking current token"))
	}
	if err := s.store.Users().UpdatePassword(ctx, user.ID, hash, now); err != nil {
		return notFoundOr(err, ErrUserNotFound)
	}
	return nil
}

// Logout revokes the presented token.
func (s *AccountService) Logout(ctx context.Context, id auth.Identity) error {
	if err := s.revoker.Revoke(ctx, id.TokenID, id.ExpiresAt); err != nil {
		return apperror.Internal(err)
	}
	return nil
}
