package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/audit"
	"shop_back_end/internal/auth"
	"shop_back_end/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	issuer, err := auth.NewIssuer("middleware-secret", time.Hour)
	require.NoError(t, err)
	return issuer
}

func tokenFor(t *testing.T, issuer *auth.Issuer, role models.Role) (string, auth.Identity) {
	t.Helper()
	token, identity, err := issuer.Issue(models.User{ID: primitive.NewObjectID(), Role: role})
	require.NoError(t, err)
	return token, identity
}

func protectedRouter(issuer *auth.Issuer, revoker auth.Revoker, roles ...models.Role) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	handlers := []gin.HandlerFunc{AuthRequired(issuer, revoker)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		identity, _ := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"role": identity.Role, "id": identity.UserID.Hex()})
	})
	r.GET("/protected", handlers...)
	return r
}

func get(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredUniformFailures(t *testing.T) {
	issuer := newIssuer(t)
	other, err := auth.NewIssuer("someone-else", time.Hour)
	require.NoError(t, err)
	forged, _ := tokenFor(t, other, models.RoleAdmin)

	expiredIssuer := newIssuer(t).WithClock(func() time.Time { return time.Now().Add(-48 * time.Hour) })
	expired, _ := tokenFor(t, expiredIssuer, models.RoleCustomer)

	r := protectedRouter(issuer, nil)
	var bodies []string
	for _, header := range []string{"", "Token abc", "Bearer ", "Bearer not.a.jwt", "Bearer " + forged, "Bearer " + expired} {
		w := get(r, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		bodies = append(bodies, w.Body.String())
	}
	for _, body := range bodies[1:] {
		assert.JSONEq(t, bodies[0], body)
	}
	assert.JSONEq(t, `{"error":"Authentication required","code":"UNAUTHENTICATED"}`, bodies[0])
}

func TestAuthRequiredStoresIdentity(t *testing.T) {
	issuer := newIssuer(t)
	token, identity := tokenFor(t, issuer, models.RoleVendor)

	w := get(protectedRouter(issuer, nil), "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Vendor", body["role"])
	assert.Equal(t, identity.UserID.Hex(), body["id"])
}

func TestAuthRequiredRejectsRevokedTokens(t *testing.T) {
	issuer := newIssuer(t)
	revoker := auth.NewMemoryRevoker()
	token, identity := tokenFor(t, issuer, models.RoleCustomer)
	r := protectedRouter(issuer, revoker)

	assert.Equal(t, http.StatusOK, get(r, "Bearer "+token).Code)
	require.NoError(t, revoker.Revoke(context.Background(), identity.TokenID, identity.ExpiresAt))
	assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)
}

func TestRequireRoles(t *testing.T) {
	issuer := newIssuer(t)
	r := protectedRouter(issuer, nil, models.RoleAdmin, models.RoleVendor)

	customer, _ := tokenFor(t, issuer, models.RoleCustomer)
	w := get(r, "Bearer "+customer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"FORBIDDEN"`)

	vendor, _ := tokenFor(t, issuer, models.RoleVendor)
	assert.Equal(t, http.StatusOK, get(r, "Bearer "+vendor).Code)

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
}

func TestRequireRolesWithoutIdentity(t *testing.T) {
	r := gin.New()
	r.GET("/protected", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
}

func TestRequestIDPropagation(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Body.String(), 36)
}

func TestRecoveryReturnsJSON(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error","code":"INTERNAL_ERROR"}`, w.Body.String())
}

func TestAuditCriticalActions(t *testing.T) {
	issuer := newIssuer(t)
	sink := audit.NewMemorySink(10)
	token, identity := tokenFor(t, issuer, models.RoleAdmin)

	r := gin.New()
	r.Use(RequestID())
	r.DELETE("/products/:id", AuthRequired(issuer, nil),
		AuditCriticalActions(sink, audit.ActionProductDelete, audit.ResourceProduct),
		func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/login", AuditCriticalActions(sink, audit.ActionLoginSuccess, audit.ResourceAuth),
		func(c *gin.Context) {
			c.Set(AuditUserKey, "someone")
			c.Set(AuditActionKey, audit.ActionLoginFailed)
			c.Status(http.StatusUnauthorized)
		})

	req := httptest.NewRequest(http.MethodDelete, "/products/p1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))

	entries, err := sink.List(context.Background(), audit.Query{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	login, deletion := entries[0], entries[1]
	assert.Equal(t, audit.ActionLoginFailed, login.Action)
	assert.Equal(t, "someone", login.UserID)
	assert.False(t, login.Success)
	assert.Equal(t, http.StatusUnauthorized, login.Status)

	assert.Equal(t, audit.ActionProductDelete, deletion.Action)
	assert.Equal(t, identity.UserID.Hex(), deletion.UserID)
	assert.Equal(t, "Admin", deletion.Role)
	assert.Equal(t, "p1", deletion.ResourceID)
	assert.True(t, deletion.Success)
	assert.NotEmpty(t, deletion.RequestID)
}
