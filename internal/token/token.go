// Package token issues and checks the signed session tokens. Access tokens
// carry the username and live for an hour by default; refresh tokens only
// name the user and live for 30 days. Both are HS256 JWTs bound to an issuer.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/ride-queue-auth/internal/apperror"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the payload of every token the server signs.
type Claims struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Token is a signed token and the instant it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

type Service struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewService(secret, issuer string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssueAccess signs an access token for the user.
func (s *Service) IssueAccess(userID uint64, username string) (Token, error) {
	return s.issue(userID, TypeAccess, username, s.accessTTL)
}

// IssueRefresh signs a refresh token for the user.
func (s *Service) IssueRefresh(userID uint64) (Token, error) {
	return s.issue(userID, TypeRefresh, "", s.refreshTTL)
}

func (s *Service) issue(userID uint64, typ, username string, ttl time.Duration) (Token, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		Type:     typ,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Validate checks signature, issuer and expiry. It returns
// apperror.ErrTokenExpired when expiry is the only problem and
// apperror.ErrTokenInvalid for anything else.
func (s *Service) Validate(raw string) error {
	_, err := s.parse(raw)
	return err
}

// Parse validates raw like Validate and returns its claims.
func (s *Service) Parse(raw string) (*Claims, error) {
	return s.parse(raw)
}

func (s *Service) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err == nil {
		return claims, nil
	}
	if onlyExpired(err) {
		return nil, apperror.ErrTokenExpired.Wrap(err)
	}
	return nil, apperror.ErrTokenInvalid.Wrap(err)
}

// onlyExpired reports whether expiry is the sole claim failure in err.
// Signature and format errors stop parsing before claims are checked, so
// they never carry ErrTokenExpired.
func onlyExpired(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, other := range []error{
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}

// SubjectOf decodes the user id without verifying the token. Call it only
// after Validate has accepted the same string.
func (s *Service) SubjectOf(raw string) (uint64, error) {
	claims, err := decode(raw)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperror.ErrTokenInvalid.Wrap(err)
	}
	return id, nil
}

// TypeOf decodes the type claim without verifying the token.
func (s *Service) TypeOf(raw string) (string, error) {
	claims, err := decode(raw)
	if err != nil {
		return "", err
	}
	return claims.Type, nil
}

func decode(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, apperror.ErrTokenInvalid.Wrap(err)
	}
	return claims, nil
}
