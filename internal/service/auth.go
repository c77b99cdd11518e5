package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/apperror"
	"github.com/iliyamo/ride-queue-auth/internal/logger"
	"github.com/iliyamo/ride-queue-auth/internal/model"
	"github.com/iliyamo/ride-queue-auth/internal/repository"
	"github.com/iliyamo/ride-queue-auth/internal/token"
	"github.com/iliyamo/ride-queue-auth/internal/utils"
)

// TokenPair is what a successful login or rotation hands back to the client.
type TokenPair struct {
	Access  token.Token
	Refresh token.Token
}

// AuthService manages accounts and the refresh-token credential. Login and
// Rotate read and replace the credential inside one transaction.
type AuthService struct {
	tx         Transactor
	users      UserStore
	creds      CredentialStore
	tokens     *token.Service
	bcryptCost int
	now        func() time.Time
	log        *logger.Logger
}

func NewAuthService(tx Transactor, users UserStore, creds CredentialStore, tokens *token.Service, bcryptCost int, log *logger.Logger) *AuthService {
	return &AuthService{
		tx:         tx,
		users:      users,
		creds:      creds,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		now:        time.Now,
		log:        log,
	}
}

// Tokens exposes the token service the session gate shares with this service.
func (s *AuthService) Tokens() *token.Service { return s.tokens }

// SignUp creates an account. Usernames are unique.
func (s *AuthService) SignUp(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return model.User{}, apperror.ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, err
	}

	hash, err := utils.HashPassword(password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	id, err := s.users.Create(ctx, username, hash)
	if errors.Is(err, repository.ErrDuplicate) {
		return model.User{}, apperror.ErrUsernameTaken
	}
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user signed up", "user_id", id)
	return model.User{ID: id, Username: username, PasswordHash: hash, CreatedAt: s.now()}, nil
}

// Login checks the password and starts a session, replacing any refresh
// token the user held before.
func (s *AuthService) Login(ctx context.Context, username, password string) (model.User, TokenPair, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, TokenPair{}, apperror.ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return model.User{}, TokenPair{}, apperror.ErrInvalidCredentials
	}

	var pair TokenPair
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		pair, err = s.issuePair(ctx, u)
		return err
	})
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	s.log.Info("user logged in", "user_id", u.ID)
	return u, pair, nil
}

// Rotate exchanges a refresh token for a new pair. The old token must be the
// one currently stored for its user; after rotation it no longer is.
func (s *AuthService) Rotate(ctx context.Context, oldRefresh string) (model.User, TokenPair, error) {
	if err := s.tokens.Validate(oldRefresh); err != nil {
		return model.User{}, TokenPair{}, err
	}
	typ, err := s.tokens.TypeOf(oldRefresh)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	if typ != token.TypeRefresh {
		return model.User{}, TokenPair{}, apperror.ErrTokenInvalid.WithMessage("not a refresh token")
	}
	userID, err := s.tokens.SubjectOf(oldRefresh)
	if err != nil {
		return model.User{}, TokenPair{}, err
	}

	var (
		u    model.User
		pair TokenPair
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.users.GetByID(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.ErrTokenInvalid.WithMessage("user not found")
		}
		if err != nil {
			return err
		}

		// the row stays locked until commit, so a concurrent replay of the
		// same token waits here and then sees the replaced digest
		stored, err := s.creds.GetForUpdate(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.ErrTokenInvalid.WithMessage("refresh token not found")
		}
		if err != nil {
			return err
		}
		if stored.Expired(s.now()) {
			return apperror.ErrTokenInvalid.WithMessage("refresh token not found")
		}
		if subtle.ConstantTimeCompare([]byte(stored.TokenHash), []byte(utils.HashRefreshToken(oldRefresh))) != 1 {
			s.log.Warn("refresh token mismatch", "user_id", userID)
			return apperror.ErrTokenInvalid.WithMessage("refresh token does not match")
		}

		pair, err = s.issuePair(ctx, u)
		return err
	})
	if err != nil {
		return model.User{}, TokenPair{}, err
	}
	s.log.Info("refresh token rotated", "user_id", userID)
	return u, pair, nil
}

// Logout drops the user's credential. Access tokens already issued stay
// valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID uint64) error {
	if err := s.creds.Delete(ctx, userID); err != nil {
		return err
	}
	s.log.Info("user logged out", "user_id", userID)
	return nil
}

// User loads an account by id.
func (s *AuthService) User(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return u, apperror.ErrNotFound.WithMessage("user not found")
	}
	return u, err
}

func (s *AuthService) issuePair(ctx context.Context, u model.User) (TokenPair, error) {
	access, err := s.tokens.IssueAccess(u.ID, u.Username)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.creds.Save(ctx, model.RefreshToken{
		UserID:    u.ID,
		TokenHash: utils.HashRefreshToken(refresh.Value),
		ExpiresAt: refresh.ExpiresAt,
	}); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}
