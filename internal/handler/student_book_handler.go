package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/digital-library-api/internal/dto"
	"github.com/noah-isme/digital-library-api/internal/middleware"
	"github.com/noah-isme/digital-library-api/internal/models"
	"github.com/noah-isme/digital-library-api/internal/service"
	appErrors "github.com/noah-isme/digital-library-api/pkg/errors"
	"github.com/noah-isme/digital-library-api/pkg/response"
)

// StudentSearchPath is where student book actions redirect back to on
// failure.
const StudentSearchPath = "/student/search"

type studentBookService interface {
	StudentStats(ctx context.Context) (*dto.DashboardResponse, error)
	List(ctx context.Context, filter models.BookFilter) (*dto.BookListResponse, error)
	Detail(ctx context.Context, id int64) (*dto.BookDetailResponse, error)
	Download(ctx context.Context, id int64) (*service.BookDownload, error)
}

// StudentBookHandler serves the student side: dashboard, search, detail,
// and download.
type StudentBookHandler struct {
	service studentBookService
}

// NewStudentBookHandler constructs the handler.
func NewStudentBookHandler(service studentBookService) *StudentBookHandler {
	return &StudentBookHandler{service: service}
}

// Dashboard godoc
// @Summary Student dashboard counters, recent arrivals, and top subjects
// @Tags Student
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/dashboard [get]
func (h *StudentBookHandler) Dashboard(c *gin.Context) {
	data, err := h.service.StudentStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, popFlashMeta(c))
}

// Search godoc
// @Summary Search the catalog
// @Tags Student
// @Produce json
// @Param q query string false "Match title, author, or subject"
// @Param title query string false "Title filter"
// @Param author query string false "Author filter"
// @Param subject query string false "Subject filter"
// @Success 200 {object} response.Envelope
// @Router /student/search [get]
func (h *StudentBookHandler) Search(c *gin.Context) {
	data, err := h.service.List(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, popFlashMeta(c))
}

// Detail godoc
// @Summary Book detail with related titles
// @Tags Student
// @Produce json
// @Param id path int true "Book id"
// @Success 200 {object} response.Envelope
// @Success 302
// @Router /student/books/{id} [get]
func (h *StudentBookHandler) Detail(c *gin.Context) {
	id, ok := h.bookID(c)
	if !ok {
		return
	}

	data, err := h.service.Detail(c.Request.Context(), id)
	if err != nil {
		h.flashAndBounce(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, popFlashMeta(c))
}

// Download godoc
// @Summary Download the book PDF
// @Tags Student
// @Produce application/pdf
// @Param id path int true "Book id"
// @Success 200 {file} binary
// @Success 302
// @Router /student/books/{id}/download [get]
func (h *StudentBookHandler) Download(c *gin.Context) {
	id, ok := h.bookID(c)
	if !ok {
		return
	}

	dl, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		h.flashAndBounce(c, err)
		return
	}
	defer dl.File.Close() //nolint:errcheck

	// served name derives from the title, never the stored filename
	c.Header("Content-Disposition", `attachment; filename="`+dl.Filename+`"`)
	c.Header("Cache-Control", "private, max-age=0, must-revalidate")
	c.DataFromReader(http.StatusOK, dl.SizeBytes, "application/pdf", dl.File, nil)
}

func (h *StudentBookHandler) bookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		if sess := middleware.CurrentSession(c); sess != nil {
			_ = sess.FlashError(c.Request.Context(), "Invalid book ID.")
		}
		response.Redirect(c, StudentSearchPath)
		return 0, false
	}
	return id, true
}

func (h *StudentBookHandler) flashAndBounce(c *gin.Context, err error) {
	if sess := middleware.CurrentSession(c); sess != nil {
		_ = sess.FlashError(c.Request.Context(), appErrors.FromError(err).Message)
	}
	response.Redirect(c, StudentSearchPath)
}
