package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/lab-cases/internal/model"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubIdentity struct {
	tokens map[string]*model.Principal
}

func (s stubIdentity) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	return nil, errors.New("not implemented")
}

func (s stubIdentity) GetSession(ctx context.Context, token string) (*model.Session, error) {
	return nil, errors.New("not implemented")
}

func (s stubIdentity) CurrentUser(ctx context.Context, token string) (*model.Principal, error) {
	p, ok := s.tokens[token]
	if !ok {
		return nil, apperrors.Unauthorized(errors.New("unknown token"))
	}
	return p, nil
}

func (s stubIdentity) SignOut(ctx context.Context, token string) error { return nil }

func newAuthEngine() *gin.Engine {
	m := NewAuthMiddleware(stubIdentity{tokens: map[string]*model.Principal{
		"good": {ID: "u1", Role: model.RoleLab},
	}})
	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", m.Authenticate(), func(c *gin.Context) {
		c.String(http.StatusOK, PrincipalFrom(c).ID)
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	r := newAuthEngine()

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"bearer header", "/me", "Bearer good", http.StatusOK},
		{"lowercase scheme", "/me", "bearer good", http.StatusOK},
		{"query fallback", "/me?access_token=good", "", http.StatusOK},
		{"missing", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic good", http.StatusUnauthorized},
		{"unknown token", "/me", "Bearer bad", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "u1", w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"status":"error"`)
			}
			assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
		})
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "rid-1", w.Body.String())
	assert.Equal(t, "rid-1", w.Header().Get(HeaderXRequestID))
}

func TestRateLimitIsPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, call("10.0.0.2"))
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"internal server error"}`, w.Body.String())
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(5 * time.Second))
	r.GET("/", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.JSONEq(t, `{"deadline":true}`, w.Body.String())
}
