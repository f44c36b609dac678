package handler

import (
	"context"
	"errors"
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

// AdminBooksPath is where admin book actions redirect back to.
const AdminBooksPath = "/admin/books"

type adminBookService interface {
	AdminStats(ctx context.Context) (*dto.DashboardResponse, error)
	List(ctx context.Context, filter models.BookFilter) (*dto.BookListResponse, error)
	Subjects(ctx context.Context) ([]string, error)
	Upload(ctx context.Context, req dto.UploadBookRequest, upload *service.BookUpload, addedBy int64) (*models.Book, error)
	Delete(ctx context.Context, id int64) (string, error)
}

// AdminBookHandler serves the admin side of the catalog: dashboard, listing,
// upload, and deletion.
type AdminBookHandler struct {
	service adminBookService
}

// NewAdminBookHandler constructs the handler.
func NewAdminBookHandler(service adminBookService) *AdminBookHandler {
	return &AdminBookHandler{service: service}
}

// Dashboard godoc
// @Summary Admin dashboard counters and newest uploads
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *AdminBookHandler) Dashboard(c *gin.Context) {
	data, err := h.service.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, popFlashMeta(c))
}

// List godoc
// @Summary List or search the catalog
// @Tags Admin
// @Produce json
// @Param q query string false "Match title, author, or subject"
// @Param title query string false "Title filter"
// @Param author query string false "Author filter"
// @Param subject query string false "Subject filter"
// @Success 200 {object} response.Envelope
// @Router /admin/books [get]
func (h *AdminBookHandler) List(c *gin.Context) {
	data, err := h.service.List(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, popFlashMeta(c))
}

// NewForm godoc
// @Summary Add-book view data: subjects already in use
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/books/new [get]
func (h *AdminBookHandler) NewForm(c *gin.Context) {
	subjects, err := h.service.Subjects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"subjects": subjects}, popFlashMeta(c))
}

// Create godoc
// @Summary Upload a new book
// @Tags Admin
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param author formData string true "Author"
// @Param subject formData string true "Subject"
// @Param pdf_file formData file true "PDF document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/books/new [post]
func (h *AdminBookHandler) Create(c *gin.Context) {
	principal := middleware.CurrentPrincipal(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UploadBookRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid book payload"))
		return
	}

	var upload *service.BookUpload
	fileHeader, err := c.FormFile("pdf_file")
	switch {
	case err == nil:
		file, openErr := fileHeader.Open()
		if openErr != nil {
			response.Error(c, appErrors.Validation([]string{"File upload error. Please try again."}))
			return
		}
		defer file.Close() //nolint:errcheck
		upload = &service.BookUpload{
			Filename: fileHeader.Filename,
			Size:     fileHeader.Size,
			Content:  file,
		}
	case errors.Is(err, http.ErrMissingFile):
		// service reports the missing file alongside the field errors
	default:
		response.Error(c, appErrors.Validation([]string{"File upload error. Please try again."}))
		return
	}

	book, err := h.service.Upload(c.Request.Context(), req, upload, principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, book, map[string]interface{}{"success": "Book added successfully!"})
}

// Delete godoc
// @Summary Delete a book and its stored file
// @Tags Admin
// @Param id path int true "Book id"
// @Success 302
// @Router /admin/books/{id}/delete [get]
func (h *AdminBookHandler) Delete(c *gin.Context) {
	sess := middleware.CurrentSession(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		if sess != nil {
			_ = sess.FlashError(c.Request.Context(), "Invalid book ID.")
		}
		response.Redirect(c, AdminBooksPath)
		return
	}

	title, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		if sess != nil {
			_ = sess.FlashError(c.Request.Context(), appErrors.FromError(err).Message)
		}
		response.Redirect(c, AdminBooksPath)
		return
	}

	if sess != nil {
		_ = sess.FlashSuccess(c.Request.Context(), "Book '"+title+"' has been deleted successfully.")
	}
	response.Redirect(c, AdminBooksPath)
}

// filterFromQuery builds the catalog filter from the search query string.
func filterFromQuery(c *gin.Context) models.BookFilter {
	return models.BookFilter{
		Query:   c.Query("q"),
		Title:   c.Query("title"),
		Author:  c.Query("author"),
		Subject: c.Query("subject"),
	}
}
