package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"snackstore/internal/config"
	"snackstore/internal/middleware"
	"snackstore/internal/models"
	"snackstore/internal/token"
)

type SignupRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	PhoneNumber string `json:"phoneNumber"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateProfileRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
}

// Signup creates the account and opens a session in one step: both cookies
// are set on the 201 response.
func Signup(db *mongo.Database, tokens *token.Service, refreshes *token.RefreshStore, cfg config.Config) gin.HandlerFunc {
	return signupHandler(mongoUserStore{db: db}, tokens, refreshes, cfg)
}

func signupHandler(users userStore, tokens *token.Service, refreshes refreshStore, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		existing, err := users.FindByEmail(ctx, email)
		if err != nil {
			log.Println("[AUTH] [ERROR] signup db error:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if existing != nil {
			log.Println("[AUTH] [ERROR] signup email exists:", email)
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Println("[AUTH] [ERROR] signup password hash failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "password hash failed"})
			return
		}

		now := time.Now()
		user := models.User{
			Email:        email,
			PasswordHash: string(hash),
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
			Role:         models.RoleCustomer,
			Addresses:    []models.Address{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		user.ID, err = users.Insert(ctx, user)
		if err != nil {
			// the unique email index closes the check-then-insert window
			if mongo.IsDuplicateKeyError(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
				return
			}
			log.Println("[AUTH] [ERROR] signup insert failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		if !openSession(c, user.ID, tokens, refreshes, cfg) {
			return
		}

		log.Println("[AUTH] [INFO] user registered:", email)
		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

func Login(db *mongo.Database, tokens *token.Service, refreshes *token.RefreshStore, cfg config.Config) gin.HandlerFunc {
	return loginHandler(mongoUserStore{db: db}, tokens, refreshes, cfg)
}

func loginHandler(users userStore, tokens *token.Service, refreshes refreshStore, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		email := strings.ToLower(strings.TrimSpace(req.Email))

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		user, err := users.FindByEmail(ctx, email)
		if err != nil {
			log.Println("[AUTH] [ERROR] login user lookup failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if user == nil {
			log.Println("[AUTH] [ERROR] login unknown email")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			log.Println("[AUTH] [ERROR] login invalid credentials for:", email)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		if !openSession(c, user.ID, tokens, refreshes, cfg) {
			return
		}

		log.Println("[AUTH] [INFO] login succeeded:", email)
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// Logout revokes the refresh token server-side and clears both cookies. A
// missing or already-revoked token still clears the cookies; logout never
// fails the client for a stale session.
func Logout(refreshes *token.RefreshStore, cfg config.Config) gin.HandlerFunc {
	return logoutHandler(refreshes, cfg)
}

func logoutHandler(refreshes refreshStore, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if refresh, err := c.Cookie(middleware.CookieRefreshToken); err == nil && refresh != "" {
			ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
			defer cancel()

			if _, err := refreshes.Revoke(ctx, refresh); err != nil {
				log.Println("[AUTH] [ERROR] logout revoke failed:", err)
			}
		}

		middleware.ClearAuthCookies(c, cfg.Production())
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// RefreshToken rotates the whole pair: the presented refresh token is
// revoked and linked to its replacement, then fresh cookies are set.
func RefreshToken(db *mongo.Database, tokens *token.Service, refreshes *token.RefreshStore, cfg config.Config) gin.HandlerFunc {
	return refreshTokenHandler(mongoUserStore{db: db}, tokens, refreshes, cfg)
}

func refreshTokenHandler(users userStore, tokens *token.Service, refreshes refreshStore, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		refresh, err := c.Cookie(middleware.CookieRefreshToken)
		if err != nil || refresh == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token not found"})
			return
		}

		userID, err := tokens.VerifyRefresh(refresh)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		active, err := refreshes.IsActive(ctx, refresh)
		if err != nil {
			log.Println("[AUTH] [ERROR] refresh lookup failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if !active {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}

		user, err := users.FindByID(ctx, userID)
		if err != nil {
			log.Println("[AUTH] [ERROR] refresh user lookup failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		access, newRefresh, err := tokens.IssuePair(userID)
		if err != nil {
			log.Println("[AUTH] [ERROR] refresh token generation failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
			return
		}

		recordID, err := refreshes.Save(ctx, userID, newRefresh, time.Now().Add(tokens.RefreshTTL()))
		if err != nil {
			log.Println("[AUTH] [ERROR] refresh save failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if err := refreshes.RevokeAndReplace(ctx, refresh, recordID); err != nil {
			log.Println("[AUTH] [ERROR] refresh rotation mark failed:", err)
		}

		secure := cfg.Production()
		middleware.SetAccessCookie(c, access, tokens.AccessTTL(), secure)
		middleware.SetRefreshCookie(c, newRefresh, tokens.RefreshTTL(), secure)
		c.JSON(http.StatusOK, gin.H{"message": "token refreshed"})
	}
}

func GetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

func UpdateProfile(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req UpdateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if v := strings.TrimSpace(req.FirstName); v != "" {
			user.FirstName = v
		}
		if v := strings.TrimSpace(req.LastName); v != "" {
			user.LastName = v
		}
		if v := strings.TrimSpace(req.PhoneNumber); v != "" {
			user.PhoneNumber = v
		}
		user.UpdatedAt = time.Now()

		ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
		defer cancel()

		_, err := db.Collection("users").UpdateByID(ctx, user.ID, bson.M{
			"$set": bson.M{
				"firstName":   user.FirstName,
				"lastName":    user.LastName,
				"phoneNumber": user.PhoneNumber,
				"updatedAt":   user.UpdatedAt,
			},
		})
		if err != nil {
			log.Println("[AUTH] [ERROR] profile update failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// openSession issues the token pair, records the refresh token and sets
// both cookies. Responds 500 itself and returns false on failure.
func openSession(c *gin.Context, userID primitive.ObjectID, tokens *token.Service, refreshes refreshStore, cfg config.Config) bool {
	access, refresh, err := tokens.IssuePair(userID)
	if err != nil {
		log.Println("[AUTH] [ERROR] token generation failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	if _, err := refreshes.Save(ctx, userID, refresh, time.Now().Add(tokens.RefreshTTL())); err != nil {
		log.Println("[AUTH] [ERROR] refresh save failed:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return false
	}

	secure := cfg.Production()
	middleware.SetAccessCookie(c, access, tokens.AccessTTL(), secure)
	middleware.SetRefreshCookie(c, refresh, tokens.RefreshTTL(), secure)
	return true
}
