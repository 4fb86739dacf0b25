package labs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lab-cases/internal/middleware"
	"github.com/jwalitptl/lab-cases/internal/service/cases"
	"github.com/jwalitptl/lab-cases/pkg/httputil"
)

type Handler struct {
	svc *cases.Service
}

func NewHandler(svc *cases.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/labs", h.ListLabs)
}

// ListLabs returns the lab reference list ordered by name.
func (h *Handler) ListLabs(c *gin.Context) {
	labs, err := h.svc.ListLabs(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, labs)
}
