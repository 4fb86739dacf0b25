package cases

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/lab-cases/internal/middleware"
	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/internal/service/cases"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/httputil"
)

// filesField is the multipart field carrying uploads.
const filesField = "files"

type Handler struct {
	svc *cases.Service
}

func NewHandler(svc *cases.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cases := r.Group("/cases")
	{
		cases.GET("", h.ListCases)
		cases.POST("", h.CreateCase)
		cases.GET("/:id", h.GetCase)
		cases.PATCH("/:id", h.UpdateCase)
		cases.DELETE("/:id", h.DeleteCase)

		cases.POST("/:id/send", h.SendCase)
		cases.POST("/:id/done", h.MarkDone)
		cases.POST("/:id/finish", h.FinishCase)

		cases.GET("/:id/attachments", h.ListAttachments)
		cases.POST("/:id/attachments", h.UploadAttachments)
		cases.DELETE("/:id/attachments/:attachmentId", h.DeleteAttachment)
		cases.GET("/:id/bundle", h.DownloadBundle)
	}
}

func (h *Handler) ListCases(c *gin.Context) {
	var filter model.CaseFilter
	if s := c.Query("status"); s != "" {
		status, err := model.ParseCaseStatus(s)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		filter.Status = status
	}
	filter.Query = c.Query("q")

	list, err := h.svc.ListCases(c.Request.Context(), middleware.PrincipalFrom(c), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

// CreateCase accepts either a JSON body or a multipart form whose "files"
// parts are uploaded in order after the case is stored.
func (h *Handler) CreateCase(c *gin.Context) {
	var (
		req     model.CreateCaseRequest
		uploads []model.Upload
	)
	if isMultipart(c) {
		if err := c.ShouldBind(&req); err != nil {
			httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
			return
		}
		var err error
		if uploads, err = formUploads(c); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	fields, status, err := req.Fields()
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	created, err := h.svc.CreateCase(c.Request.Context(), middleware.PrincipalFrom(c), fields, status, uploads)
	if err != nil {
		if created != nil {
			httputil.RespondWithErrorData(c, err, created)
			return
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, created)
}

func (h *Handler) GetCase(c *gin.Context) {
	got, err := h.svc.GetCase(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, got)
}

// UpdateCase applies a partial edit. Omitted fields are unchanged; an empty
// string clears notes, lab_id and delivery_date.
func (h *Handler) UpdateCase(c *gin.Context) {
	var patch model.CasePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		httputil.RespondWithError(c, apperrors.Validation(err.Error(), err))
		return
	}

	updated, err := h.svc.UpdateCase(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), patch)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, updated)
}

func (h *Handler) DeleteCase(c *gin.Context) {
	if err := h.svc.DeleteCase(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "case deleted")
}

func (h *Handler) SendCase(c *gin.Context) {
	h.transition(c, h.svc.SendCase)
}

func (h *Handler) MarkDone(c *gin.Context) {
	h.transition(c, h.svc.MarkDone)
}

func (h *Handler) FinishCase(c *gin.Context) {
	h.transition(c, h.svc.FinishCase)
}

type transitionFunc func(ctx context.Context, p *model.Principal, id string) (*model.Case, error)

func (h *Handler) transition(c *gin.Context, fn transitionFunc) {
	updated, err := fn(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, updated)
}

func (h *Handler) ListAttachments(c *gin.Context) {
	list, err := h.svc.ListAttachments(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

// UploadAttachments stores the "files" parts in order and stops at the first
// failure. The attachments stored before it are returned with the error.
func (h *Handler) UploadAttachments(c *gin.Context) {
	uploads, err := formUploads(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if len(uploads) == 0 {
		httputil.RespondWithError(c, apperrors.Validation("no files uploaded", nil))
		return
	}

	stored, err := h.svc.UploadAttachments(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), uploads)
	if err != nil {
		if len(stored) > 0 {
			httputil.RespondWithErrorData(c, err, stored)
			return
		}
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, stored)
}

func (h *Handler) DeleteAttachment(c *gin.Context) {
	err := h.svc.DeleteAttachment(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, "attachment deleted")
}

// DownloadBundle streams the case's files as a zip archive.
func (h *Handler) DownloadBundle(c *gin.Context) {
	b, err := h.svc.BuildBundle(c.Request.Context(), middleware.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, b.FileName))
	c.Header("X-Bundle-Skipped", strconv.Itoa(b.Skipped))
	c.Data(http.StatusOK, "application/zip", b.Data)
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func formUploads(c *gin.Context) ([]model.Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.Validation("invalid multipart form", err)
	}
	headers := form.File[filesField]
	uploads := make([]model.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, fileUpload(fh))
	}
	return uploads, nil
}

func fileUpload(fh *multipart.FileHeader) model.Upload {
	return model.Upload{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}
