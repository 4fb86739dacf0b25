package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/internal/service/auth"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/httputil"
)

const (
	ContextPrincipal = "principal"
	ContextToken     = "token"
)

type AuthMiddleware struct {
	identity auth.IdentityProvider
}

func NewAuthMiddleware(identity auth.IdentityProvider) *AuthMiddleware {
	return &AuthMiddleware{identity: identity}
}

// Authenticate resolves the bearer token to a principal and stores it in the
// context. EventSource clients can't set headers, so an access_token query
// parameter is accepted as a fallback.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}

		principal, err := m.identity.CurrentUser(c.Request.Context(), token)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Set(ContextToken, token)
		c.Next()
	}
}

// BearerToken extracts the session token from the request.
func BearerToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("access_token"); token != "" {
			return token, nil
		}
		return "", errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// PrincipalFrom returns the authenticated caller, or nil.
func PrincipalFrom(c *gin.Context) *model.Principal {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*model.Principal)
	return p
}
