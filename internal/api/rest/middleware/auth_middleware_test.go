package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/atrkk2024-beep/inskate/internal/domain"
	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

const testSecret = "test-secret"

func testLogger() *logger.Logger {
	log := logger.New(logger.ERROR)
	log.SetOutput(io.Discard)
	return log
}

func signToken(t *testing.T, secret string, userID uuid.UUID, role domain.Role) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newAuthRouter(adminOnly bool) (*gin.Engine, *domain.Actor) {
	gin.SetMode(gin.TestMode)

	var seen domain.Actor
	r := gin.New()
	handlers := []gin.HandlerFunc{RequireAuth(testSecret, testLogger())}
	if adminOnly {
		handlers = append(handlers, RequireAdmin())
	}
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := ActorFromContext(c)
		seen = actor
		c.Status(http.StatusOK)
	})
	r.GET("/protected", handlers...)
	return r, &seen
}

func doRequest(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthValidToken(t *testing.T) {
	r, seen := newAuthRouter(false)
	userID := uuid.New()

	w := doRequest(r, "Bearer "+signToken(t, testSecret, userID, domain.RoleSubscriber))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if seen.UserID != userID {
		t.Errorf("actor user id = %s, want %s", seen.UserID, userID)
	}
	if seen.Role != domain.RoleSubscriber {
		t.Errorf("actor role = %s, want SUBSCRIBER", seen.Role)
	}
}

func TestRequireAuthMissingHeader(t *testing.T) {
	r, _ := newAuthRouter(false)

	if w := doRequest(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthWrongSecret(t *testing.T) {
	r, _ := newAuthRouter(false)

	w := doRequest(r, "Bearer "+signToken(t, "other-secret", uuid.New(), domain.RoleUser))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	r, _ := newAuthRouter(false)

	claims := jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if w := doRequest(r, "Bearer "+token); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthBadSubject(t *testing.T) {
	r, _ := newAuthRouter(false)

	claims := jwt.MapClaims{
		"sub": "not-a-uuid",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if w := doRequest(r, "Bearer "+token); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthDefaultsRoleToUser(t *testing.T) {
	r, seen := newAuthRouter(false)

	claims := jwt.MapClaims{
		"sub": uuid.New().String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if w := doRequest(r, "Bearer "+token); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if seen.Role != domain.RoleUser {
		t.Errorf("role = %s, want USER by default", seen.Role)
	}
}

func TestRequireAdmin(t *testing.T) {
	r, _ := newAuthRouter(true)

	w := doRequest(r, "Bearer "+signToken(t, testSecret, uuid.New(), domain.RoleUser))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status for USER = %d, want 403", w.Code)
	}

	w = doRequest(r, "Bearer "+signToken(t, testSecret, uuid.New(), domain.RoleAdmin))
	if w.Code != http.StatusOK {
		t.Fatalf("status for ADMIN = %d, want 200", w.Code)
	}
}
