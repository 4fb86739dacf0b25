package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lab-cases/internal/middleware"
	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/internal/service/auth"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/httputil"
)

type Handler struct {
	identity auth.IdentityProvider
}

func NewHandler(identity auth.IdentityProvider) *Handler {
	return &Handler{identity: identity}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-in", h.SignIn)
		auth.GET("/session", h.Session)
		auth.POST("/sign-out", h.SignOut)
	}
}

func (h *Handler) SignIn(c *gin.Context) {
	var req model.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	session, err := h.identity.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, session)
}

// Session returns the caller's session, including the resolved user.
func (h *Handler) Session(c *gin.Context) {
	token, err := middleware.BearerToken(c)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Unauthorized(err))
		return
	}

	session, err := h.identity.GetSession(c.Request.Context(), token)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, session)
}

func (h *Handler) SignOut(c *gin.Context) {
	token, err := middleware.BearerToken(c)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Unauthorized(err))
		return
	}

	if err := h.identity.SignOut(c.Request.Context(), token); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "signed out")
}
