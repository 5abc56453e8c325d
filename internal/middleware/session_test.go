package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"snackstore/internal/models"
	"snackstore/internal/token"
)

type fakeResolver map[primitive.ObjectID]*models.User

func (r fakeResolver) FindUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return r[id], nil
}

type fakeRefreshChecker map[string]bool

func (f fakeRefreshChecker) IsActive(_ context.Context, raw string) (bool, error) {
	return f[raw], nil
}

type sessionFixture struct {
	router   *gin.Engine
	tokens   *token.Service
	expiring *token.Service
	users    fakeResolver
	refresh  fakeRefreshChecker
	user     *models.User
	admin    *models.User
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &sessionFixture{
		tokens: token.NewService("acc", "ref", 15*time.Minute, 7*24*time.Hour),
		// same secrets, negative access TTL: mints already-expired access
		// tokens that still verify as "expired" rather than "invalid"
		expiring: token.NewService("acc", "ref", -time.Minute, 7*24*time.Hour),
		users:    fakeResolver{},
		refresh:  fakeRefreshChecker{},
	}

	f.user = &models.User{ID: primitive.NewObjectID(), Email: "a@b.com", Role: models.RoleCustomer}
	f.admin = &models.User{ID: primitive.NewObjectID(), Email: "root@b.com", Role: models.RoleAdmin}
	f.users[f.user.ID] = f.user
	f.users[f.admin.ID] = f.admin

	f.router = gin.New()
	auth := SessionAuth(f.tokens, f.users, f.refresh, false)
	f.router.GET("/me", auth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).ID.Hex()})
	})
	f.router.GET("/admin", auth, RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return f
}

func (f *sessionFixture) get(t *testing.T, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func accessCookieFrom(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == CookieAccessToken {
			return cookie
		}
	}
	return nil
}

func TestSessionNoTokensRejected(t *testing.T) {
	f := newSessionFixture(t)

	rec := f.get(t, "/me")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionValidAccessToken(t *testing.T) {
	f := newSessionFixture(t)

	access, err := f.tokens.IssueAccess(f.user.ID)
	require.NoError(t, err)

	rec := f.get(t, "/me", &http.Cookie{Name: CookieAccessToken, Value: access})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), f.user.ID.Hex())
	assert.Nil(t, accessCookieFrom(rec), "no rotation on a valid access token")
}

func TestSessionExpiredAccessRotatesFromRefresh(t *testing.T) {
	f := newSessionFixture(t)

	expired, err := f.expiring.IssueAccess(f.user.ID)
	require.NoError(t, err)
	refresh, err := f.tokens.IssueRefresh(f.user.ID)
	require.NoError(t, err)
	f.refresh[refresh] = true

	rec := f.get(t, "/me",
		&http.Cookie{Name: CookieAccessToken, Value: expired},
		&http.Cookie{Name: CookieRefreshToken, Value: refresh},
	)

	require.Equal(t, http.StatusOK, rec.Code)
	rotated := accessCookieFrom(rec)
	require.NotNil(t, rotated, "silent re-authentication must set a fresh access cookie")
	assert.True(t, rotated.HttpOnly)

	id, err := f.tokens.VerifyAccess(rotated.Value)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, id)
}

func TestSessionMissingAccessUsesRefresh(t *testing.T) {
	f := newSessionFixture(t)

	refresh, err := f.tokens.IssueRefresh(f.user.ID)
	require.NoError(t, err)
	f.refresh[refresh] = true

	rec := f.get(t, "/me", &http.Cookie{Name: CookieRefreshToken, Value: refresh})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, accessCookieFrom(rec))
}

func TestSessionRevokedRefreshRejected(t *testing.T) {
	f := newSessionFixture(t)

	refresh, err := f.tokens.IssueRefresh(f.user.ID)
	require.NoError(t, err)
	// not marked active in the store

	rec := f.get(t, "/me", &http.Cookie{Name: CookieRefreshToken, Value: refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionGarbageAccessTokenRejected(t *testing.T) {
	f := newSessionFixture(t)

	refresh, err := f.tokens.IssueRefresh(f.user.ID)
	require.NoError(t, err)
	f.refresh[refresh] = true

	// invalid (not expired) access tokens are terminal even when a good
	// refresh token rides along
	rec := f.get(t, "/me",
		&http.Cookie{Name: CookieAccessToken, Value: "garbage"},
		&http.Cookie{Name: CookieRefreshToken, Value: refresh},
	)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionUnknownUserRejected(t *testing.T) {
	f := newSessionFixture(t)

	access, err := f.tokens.IssueAccess(primitive.NewObjectID())
	require.NoError(t, err)

	rec := f.get(t, "/me", &http.Cookie{Name: CookieAccessToken, Value: access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	f := newSessionFixture(t)

	customerAccess, err := f.tokens.IssueAccess(f.user.ID)
	require.NoError(t, err)
	adminAccess, err := f.tokens.IssueAccess(f.admin.ID)
	require.NoError(t, err)

	rec := f.get(t, "/admin", &http.Cookie{Name: CookieAccessToken, Value: customerAccess})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.get(t, "/admin", &http.Cookie{Name: CookieAccessToken, Value: adminAccess})
	assert.Equal(t, http.StatusOK, rec.Code)
}
