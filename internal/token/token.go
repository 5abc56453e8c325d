package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrTokenExpired marks a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid marks everything else: bad signature, malformed
	// payload, missing or unparsable userId claim.
	ErrTokenInvalid = errors.New("token invalid")
)

type claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Service signs and verifies the access/refresh token pair. The two token
// kinds use distinct secrets, so a refresh token never passes access
// verification or vice versa.
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccess mints a short-lived access token for the user.
func (s *Service) IssueAccess(userID primitive.ObjectID) (string, error) {
	return sign(userID, s.accessSecret, s.accessTTL)
}

// IssueRefresh mints a refresh token for the user.
func (s *Service) IssueRefresh(userID primitive.ObjectID) (string, error) {
	return sign(userID, s.refreshSecret, s.refreshTTL)
}

// IssuePair mints both tokens for the user.
func (s *Service) IssuePair(userID primitive.ObjectID) (access, refresh string, err error) {
	if access, err = s.IssueAccess(userID); err != nil {
		return "", "", err
	}
	if refresh, err = s.IssueRefresh(userID); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// VerifyAccess resolves the user id from an access token.
func (s *Service) VerifyAccess(raw string) (primitive.ObjectID, error) {
	return verify(raw, s.accessSecret)
}

// VerifyRefresh resolves the user id from a refresh token.
func (s *Service) VerifyRefresh(raw string) (primitive.ObjectID, error) {
	return verify(raw, s.refreshSecret)
}

func sign(userID primitive.ObjectID, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		UserID: userID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

func verify(raw string, secret []byte) (primitive.ObjectID, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return primitive.NilObjectID, ErrTokenExpired
		}
		return primitive.NilObjectID, ErrTokenInvalid
	}
	if !parsed.Valid {
		return primitive.NilObjectID, ErrTokenInvalid
	}

	userID, err := primitive.ObjectIDFromHex(c.UserID)
	if err != nil {
		return primitive.NilObjectID, ErrTokenInvalid
	}
	return userID, nil
}
