package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	token  string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.token = token
	return v.claims, v.err
}

func newTestRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/", handlers...)
	return r
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearerToken(t *testing.T) {
	stub := &validatorStub{claims: &models.JWTClaims{UserID: "u1"}}
	r := newTestRouter(JWT(stub))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Basic abc").Code)

	w := serve(r, "Bearer good-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "good-token", stub.token)
}

func TestJWTRejectsInvalidToken(t *testing.T) {
	r := newTestRouter(JWT(&validatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}))
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer nope").Code)
}

func TestRequireSuperAdmin(t *testing.T) {
	institution := int64(42)
	editor := &validatorStub{claims: &models.JWTClaims{UserID: "e", InstitutionID: &institution, Roles: []string{string(models.RoleInstitutionEditor)}}}
	admin := &validatorStub{claims: &models.JWTClaims{UserID: "a", Roles: []string{string(models.RoleSuperAdmin)}}}

	assert.Equal(t, http.StatusForbidden, serve(newTestRouter(JWT(editor), RequireSuperAdmin()), "Bearer t").Code)
	assert.Equal(t, http.StatusOK, serve(newTestRouter(JWT(admin), RequireSuperAdmin()), "Bearer t").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(newTestRouter(RequireSuperAdmin()), "").Code)
}

func TestResponseMetaRecordsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var meta map[string]interface{}
	r.GET("/", WithResponseMeta(), func(c *gin.Context) {
		SetMeta(c, "participants", 3)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, meta["participants"])
	assert.Contains(t, meta, "processing_time_ms")
}
