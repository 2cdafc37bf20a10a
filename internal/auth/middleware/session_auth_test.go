package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/presensia/presensia-core/internal/auth"
	"github.com/presensia/presensia-core/internal/auth/domain"
)

type fakeSession struct {
	token   string
	profile *domain.UserProfile
}

func (f fakeSession) Token() string                { return f.token }
func (f fakeSession) Current() *domain.UserProfile { return f.profile }

func newRouter(s Session, roles ...domain.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{SessionAuth(s)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, auth.UserID(c)+"/"+auth.Role(c))
	})
	r.GET("/x", handlers...)
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSessionAuth(t *testing.T) {
	admin := &domain.UserProfile{ID: "u1", Role: domain.RoleAdmin}
	signedIn := fakeSession{token: "tok", profile: admin}

	tests := []struct {
		name    string
		session Session
		header  string
		status  int
		body    string
	}{
		{"missing header", signedIn, "", http.StatusUnauthorized, ""},
		{"not bearer", signedIn, "Basic tok", http.StatusUnauthorized, ""},
		{"wrong token", signedIn, "Bearer other", http.StatusUnauthorized, ""},
		{"signed out", fakeSession{}, "Bearer tok", http.StatusUnauthorized, ""},
		{"ok", signedIn, "Bearer tok", http.StatusOK, "u1/Admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newRouter(tt.session), tt.header)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	student := fakeSession{token: "tok", profile: &domain.UserProfile{ID: "u2", Role: domain.RoleStudent}}
	assert.Equal(t, http.StatusForbidden, do(newRouter(student, domain.RoleAdmin), "Bearer tok").Code)
	assert.Equal(t, http.StatusOK, do(newRouter(student, domain.RoleAdmin, domain.RoleStudent), "Bearer tok").Code)
}
