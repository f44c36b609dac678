package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/digital-library-api/internal/dto"
	"github.com/noah-isme/digital-library-api/internal/models"
	appErrors "github.com/noah-isme/digital-library-api/pkg/errors"
	"github.com/noah-isme/digital-library-api/pkg/sanitize"
)

const (
	maxTitleLen   = 255
	maxAuthorLen  = 150
	maxSubjectLen = 100

	relatedBooksLimit  = 3
	recentBooksAdmin   = 5
	recentBooksStudent = 6
	topSubjectsLimit   = 5

	mimeSniffLen = 512
)

type bookCatalog interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id int64) (*models.Book, error)
	GetDetail(ctx context.Context, id int64) (*models.BookDetail, error)
	List(ctx context.Context, filter models.BookFilter) ([]models.BookDetail, error)
	ListRelated(ctx context.Context, subject string, excludeID int64, limit int) ([]models.Book, error)
	Recent(ctx context.Context, limit int) ([]models.BookDetail, error)
	Delete(ctx context.Context, id int64) error
	DistinctSubjects(ctx context.Context) ([]string, error)
	DistinctAuthors(ctx context.Context) ([]string, error)
	TopSubjects(ctx context.Context, limit int) ([]models.SubjectCount, error)
	CountBooks(ctx context.Context) (int, error)
	CountDistinctSubjects(ctx context.Context) (int, error)
	CountDistinctAuthors(ctx context.Context) (int, error)
	ListFilePaths(ctx context.Context) ([]string, error)
}

type studentCounter interface {
	CountStudents(ctx context.Context) (int, error)
}

type bookFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	SweepOrphans(minAge time.Duration, keep func(name string) bool) ([]string, error)
}

// BookUpload carries the file part of the add-book form. Content must be
// seekable so the MIME sniff can rewind before the full copy.
type BookUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// BookDownload is an open file handle plus the metadata the HTTP layer needs
// to stream it. The caller owns closing File.
type BookDownload struct {
	File      *os.File
	Filename  string
	SizeBytes int64
}

// BookService implements the catalog operations: upload, search, detail,
// delete, download, and the dashboard aggregates.
type BookService struct {
	repo         bookCatalog
	users        studentCounter
	storage      bookFileStorage
	maxBytes     int64
	allowedMIMEs map[string]struct{}
	sweepAge     time.Duration
	logger       *zap.Logger
}

// NewBookService constructs a BookService instance. An empty MIME allow-list
// defaults to PDF only.
func NewBookService(repo bookCatalog, users studentCounter, storage bookFileStorage, maxBytes int64, allowedMIMEs []string, logger *zap.Logger) *BookService {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	if len(allowedMIMEs) == 0 {
		allowedMIMEs = []string{"application/pdf"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		allowed[m] = struct{}{}
	}
	return &BookService{
		repo:         repo,
		users:        users,
		storage:      storage,
		maxBytes:     maxBytes,
		allowedMIMEs: allowed,
		sweepAge:     time.Hour,
		logger:       logger,
	}
}

// Upload validates the metadata and file together, stores the file under a
// generated name, and inserts the catalog record. Every check runs so the
// form can show all problems at once. The file is written first; if the
// insert fails the file is removed again so no orphan survives the request.
func (s *BookService) Upload(ctx context.Context, req dto.UploadBookRequest, upload *BookUpload, addedBy int64) (*models.Book, error) {
	title := sanitize.Clean(req.Title)
	author := sanitize.Clean(req.Author)
	subject := sanitize.Clean(req.Subject)

	var errs []string
	if title == "" {
		errs = append(errs, "Book title is required.")
	} else if len(title) > maxTitleLen {
		errs = append(errs, "Book title must not exceed 255 characters.")
	}
	if author == "" {
		errs = append(errs, "Author name is required.")
	} else if len(author) > maxAuthorLen {
		errs = append(errs, "Author name must not exceed 150 characters.")
	}
	if subject == "" {
		errs = append(errs, "Subject is required.")
	} else if len(subject) > maxSubjectLen {
		errs = append(errs, "Subject must not exceed 100 characters.")
	}

	if upload == nil || upload.Content == nil {
		errs = append(errs, "Please upload a PDF file.")
	} else {
		mime, err := s.detectMime(upload.Content)
		if err != nil {
			errs = append(errs, "File upload error. Please try again.")
		} else if _, ok := s.allowedMIMEs[mime]; !ok {
			errs = append(errs, "Only PDF files are allowed.")
		}
		if upload.Size > s.maxBytes {
			errs = append(errs, "File size must not exceed 10MB.")
		}
		if !strings.EqualFold(filepath.Ext(upload.Filename), ".pdf") {
			errs = append(errs, "Only PDF files are allowed.")
		}
	}
	if len(errs) > 0 {
		return nil, appErrors.Validation(errs)
	}

	storedName := fmt.Sprintf("%s_%d.pdf", strings.ReplaceAll(uuid.NewString(), "-", ""), time.Now().Unix())
	if _, err := s.storage.SaveStream(storedName, upload.Content); err != nil {
		s.logger.Error("book file write failed", zap.String("file", storedName), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to upload file. Please try again.")
	}

	book := &models.Book{
		Title:    title,
		Author:   author,
		Subject:  subject,
		FilePath: storedName,
		AddedBy:  addedBy,
	}
	if err := s.repo.Create(ctx, book); err != nil {
		// the file must not outlive the failed record
		if delErr := s.storage.Delete(storedName); delErr != nil {
			s.logger.Error("orphan cleanup failed", zap.String("file", storedName), zap.Error(delErr))
		}
		s.logger.Error("book insert failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to add book. Please try again.")
	}

	s.logger.Sugar().Infow("book added", "id", book.ID, "title", book.Title, "file", storedName)
	return book, nil
}

// List returns catalog rows for the sanitized filter, plus the distinct
// subject and author values the search form offers.
func (s *BookService) List(ctx context.Context, filter models.BookFilter) (*dto.BookListResponse, error) {
	filter.Query = sanitize.Clean(filter.Query)
	filter.Title = sanitize.Clean(filter.Title)
	filter.Author = sanitize.Clean(filter.Author)
	filter.Subject = sanitize.Clean(filter.Subject)

	books, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("book search failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to search books.")
	}

	resp := &dto.BookListResponse{Books: books}
	if subjects, err := s.repo.DistinctSubjects(ctx); err == nil {
		resp.Subjects = subjects
	}
	if authors, err := s.repo.DistinctAuthors(ctx); err == nil {
		resp.Authors = authors
	}
	return resp, nil
}

// Detail returns one book with its owner name and up to three related titles
// sharing the subject. Related lookup is best-effort: its failure never
// hides the book itself.
func (s *BookService) Detail(ctx context.Context, id int64) (*dto.BookDetailResponse, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Book not found.")
		}
		s.logger.Error("book detail lookup failed", zap.Int64("id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to load book details.")
	}

	related, err := s.repo.ListRelated(ctx, detail.Subject, detail.ID, relatedBooksLimit)
	if err != nil {
		s.logger.Warn("related books lookup failed", zap.Int64("id", id), zap.Error(err))
		related = nil
	}
	return &dto.BookDetailResponse{Book: *detail, Related: related}, nil
}

// Delete removes the stored file and then the catalog record, returning the
// deleted title for the confirmation message. A file that is already gone
// does not block the record deletion.
func (s *BookService) Delete(ctx context.Context, id int64) (string, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "Book not found.")
		}
		s.logger.Error("book delete lookup failed", zap.Int64("id", id), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to delete book. Please try again.")
	}

	if err := s.storage.Delete(book.FilePath); err != nil {
		s.logger.Warn("book file delete failed", zap.String("file", book.FilePath), zap.Error(err))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "Book not found.")
		}
		s.logger.Error("book delete failed", zap.Int64("id", id), zap.Error(err))
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to delete book. Please try again.")
	}

	s.logger.Sugar().Infow("book deleted", "id", id, "title", book.Title)
	return book.Title, nil
}

// Download opens the stored file for streaming. The served filename is the
// sanitized book title, never the stored name.
func (s *BookService) Download(ctx context.Context, id int64) (*BookDownload, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Book not found.")
		}
		s.logger.Error("download lookup failed", zap.Int64("id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to download book. Please try again.")
	}

	file, err := s.storage.Open(book.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found. Please contact administrator.")
		}
		s.logger.Error("download open failed", zap.String("file", book.FilePath), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to download book. Please try again.")
	}

	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		s.logger.Error("download stat failed", zap.String("file", book.FilePath), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to download book. Please try again.")
	}

	return &BookDownload{
		File:      file,
		Filename:  sanitize.Filename(book.Title) + ".pdf",
		SizeBytes: info.Size(),
	}, nil
}

// AdminStats builds the admin dashboard: counters plus the five newest books.
// Counter failures degrade to zero rather than blanking the page.
func (s *BookService) AdminStats(ctx context.Context) (*dto.DashboardResponse, error) {
	stats := models.LibraryStats{}
	if n, err := s.repo.CountBooks(ctx); err == nil {
		stats.TotalBooks = n
	} else {
		s.logger.Warn("book count failed", zap.Error(err))
	}
	if n, err := s.repo.CountDistinctSubjects(ctx); err == nil {
		stats.TotalSubjects = n
	}
	if s.users != nil {
		if n, err := s.users.CountStudents(ctx); err == nil {
			stats.TotalStudents = n
		}
	}

	recent, err := s.repo.Recent(ctx, recentBooksAdmin)
	if err != nil {
		s.logger.Warn("recent books lookup failed", zap.Error(err))
		recent = nil
	}
	return &dto.DashboardResponse{Stats: stats, RecentBooks: recent}, nil
}

// StudentStats builds the student dashboard: counters, the six newest books,
// and the five most populated subjects.
func (s *BookService) StudentStats(ctx context.Context) (*dto.DashboardResponse, error) {
	stats := models.LibraryStats{}
	if n, err := s.repo.CountBooks(ctx); err == nil {
		stats.TotalBooks = n
	} else {
		s.logger.Warn("book count failed", zap.Error(err))
	}
	if n, err := s.repo.CountDistinctSubjects(ctx); err == nil {
		stats.TotalSubjects = n
	}
	if n, err := s.repo.CountDistinctAuthors(ctx); err == nil {
		stats.TotalAuthors = n
	}

	recent, err := s.repo.Recent(ctx, recentBooksStudent)
	if err != nil {
		s.logger.Warn("recent books lookup failed", zap.Error(err))
		recent = nil
	}
	top, err := s.repo.TopSubjects(ctx, topSubjectsLimit)
	if err != nil {
		s.logger.Warn("top subjects lookup failed", zap.Error(err))
		top = nil
	}
	return &dto.DashboardResponse{Stats: stats, RecentBooks: recent, TopSubjects: top}, nil
}

// Subjects returns the distinct subject values for form dropdowns.
func (s *BookService) Subjects(ctx context.Context) ([]string, error) {
	subjects, err := s.repo.DistinctSubjects(ctx)
	if err != nil {
		s.logger.Error("subject list failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to load books.")
	}
	return subjects, nil
}

// SweepOrphans removes stored files old enough to be stale and referenced by
// no catalog record. Wired to the background sweeper.
func (s *BookService) SweepOrphans(ctx context.Context) error {
	paths, err := s.repo.ListFilePaths(ctx)
	if err != nil {
		return fmt.Errorf("load referenced files: %w", err)
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	removed, err := s.storage.SweepOrphans(s.sweepAge, func(name string) bool {
		_, ok := referenced[name]
		return ok
	})
	if len(removed) > 0 {
		s.logger.Sugar().Infow("orphaned files removed", "count", len(removed), "files", removed)
	}
	return err
}

// detectMime sniffs the leading bytes and rewinds the reader. The declared
// client type is never trusted.
func (s *BookService) detectMime(r io.ReadSeeker) (string, error) {
	buf := make([]byte, mimeSniffLen)
	n, err := r.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
