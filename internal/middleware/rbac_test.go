package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ShouryaBatra/homestead-careers-api/internal/models"
)

func rbacRouter(allowed ...models.UserRole) (*gin.Engine, *gin.Engine) {
	gin.SetMode(gin.TestMode)

	withClaims := func(role models.UserRole) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Role: role})
			c.Next()
		}
	}

	adminRouter := gin.New()
	adminRouter.GET("/", withClaims(models.RoleAdmin), RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	studentRouter := gin.New()
	studentRouter.GET("/", withClaims(models.RoleStudent), RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	return adminRouter, studentRouter
}

func TestRBACAllowsListedRole(t *testing.T) {
	adminRouter, _ := rbacRouter(models.RoleAdmin)

	recorder := httptest.NewRecorder()
	adminRouter.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACRejectsOtherRoles(t *testing.T) {
	_, studentRouter := rbacRouter(models.RoleAdmin, models.RoleEmployer)

	recorder := httptest.NewRecorder()
	studentRouter.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}

func TestRBACRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", RBAC(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}
