package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"accounts-api/internal/domain"
	"accounts-api/internal/service"
)

func runPolicy(policy Policy, claims *service.Claims, path string) (int, bool) {
	gin.SetMode(gin.TestMode)
	reached := false
	r := gin.New()
	r.GET("/users/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(authClaimsKey, *claims)
		}
		c.Next()
	}, Require(policy), func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, reached
}

func TestPolicies(t *testing.T) {
	user := &service.Claims{SubjectID: "u1", Role: domain.RoleUser}
	admin := &service.Claims{SubjectID: "a1", Role: domain.RoleAdmin}
	provider := &service.Claims{SubjectID: "p1", Role: domain.RoleProvider}

	cases := []struct {
		name   string
		policy Policy
		claims *service.Claims
		path   string
		want   int
	}{
		{"any authenticated", AnyAuthenticated(), user, "/users/x", http.StatusOK},
		{"owner", OwnerOrAdmin("id"), user, "/users/u1", http.StatusOK},
		{"not owner", OwnerOrAdmin("id"), user, "/users/u2", http.StatusForbidden},
		{"admin on other", OwnerOrAdmin("id"), admin, "/users/u2", http.StatusOK},
		{"role equals admin", RoleEquals(domain.RoleAdmin), admin, "/users/x", http.StatusOK},
		{"role differs", RoleEquals(domain.RoleAdmin), provider, "/users/x", http.StatusForbidden},
		{"provider role", RoleEquals(domain.RoleProvider), provider, "/users/x", http.StatusOK},
		{"no claims", AnyAuthenticated(), nil, "/users/x", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, reached := runPolicy(tc.policy, tc.claims, tc.path)
			if code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, code)
			}
			if reached != (tc.want == http.StatusOK) {
				t.Fatalf("handler reached=%v with status %d", reached, code)
			}
		})
	}
}
