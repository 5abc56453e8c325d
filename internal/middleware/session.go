package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"snackstore/internal/models"
	"snackstore/internal/token"
)

const (
	CookieAccessToken  = "accessToken"
	CookieRefreshToken = "refreshToken"

	// ContextUser is the gin context key carrying the resolved *models.User.
	ContextUser = "user"
)

// UserResolver looks up the authenticated user; the session middleware
// rejects tokens whose user no longer exists.
type UserResolver interface {
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// RefreshChecker reports whether a refresh token is still honored
// server-side (issued, unrevoked, unexpired).
type RefreshChecker interface {
	IsActive(ctx context.Context, raw string) (bool, error)
}

// MongoUserResolver is the production UserResolver over the users
// collection.
type MongoUserResolver struct {
	DB *mongo.Database
}

func (r MongoUserResolver) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.DB.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SessionAuth resolves the caller's identity from the auth cookies.
//
// Outcomes, in order:
//  1. neither cookie present: 401.
//  2. access cookie present and valid: resolve user, continue.
//  3. access cookie absent or expired, refresh cookie valid and unrevoked:
//     mint a fresh access cookie on the response, resolve user, continue.
//  4. anything else: 401.
//
// A token that verifies but names a user no longer in the store is rejected
// the same way.
func SessionAuth(tokens *token.Service, users UserResolver, refreshes RefreshChecker, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		access, accessErr := c.Cookie(CookieAccessToken)
		refresh, refreshErr := c.Cookie(CookieRefreshToken)

		if accessErr != nil && refreshErr != nil {
			abortUnauthenticated(c, "no token")
			return
		}

		var userID primitive.ObjectID
		if accessErr == nil {
			id, err := tokens.VerifyAccess(access)
			switch {
			case err == nil:
				userID = id
			case errors.Is(err, token.ErrTokenExpired) && refreshErr == nil:
				// fall through to the refresh path below
			default:
				abortUnauthenticated(c, "access token rejected")
				return
			}
		}

		if userID.IsZero() {
			if refreshErr != nil {
				abortUnauthenticated(c, "access token expired")
				return
			}
			id, err := tokens.VerifyRefresh(refresh)
			if err != nil {
				abortUnauthenticated(c, "refresh token rejected")
				return
			}
			active, err := refreshes.IsActive(c.Request.Context(), refresh)
			if err != nil {
				log.Println("[AUTH] [ERROR] refresh token lookup failed:", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "db error"})
				return
			}
			if !active {
				abortUnauthenticated(c, "refresh token revoked")
				return
			}

			rotated, err := tokens.IssueAccess(id)
			if err != nil {
				log.Println("[AUTH] [ERROR] access token rotation failed:", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
				return
			}
			SetAccessCookie(c, rotated, tokens.AccessTTL(), secure)
			userID = id
		}

		user, err := users.FindUserByID(c.Request.Context(), userID)
		if err != nil {
			log.Println("[AUTH] [ERROR] user lookup failed:", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if user == nil {
			abortUnauthenticated(c, "user not found")
			return
		}

		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequireAdmin gates a route on role == admin. It must run after
// SessionAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by SessionAuth, or nil.
func CurrentUser(c *gin.Context) *models.User {
	value, ok := c.Get(ContextUser)
	if !ok {
		return nil
	}
	user, _ := value.(*models.User)
	return user
}

func abortUnauthenticated(c *gin.Context, reason string) {
	log.Println("[AUTH] [ERROR]", reason)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}
