package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-library-api/internal/dto"
	"github.com/noah-isme/digital-library-api/internal/models"
	appErrors "github.com/noah-isme/digital-library-api/pkg/errors"
	"github.com/noah-isme/digital-library-api/pkg/storage"
)

type bookCatalogStub struct {
	books      map[int64]*models.Book
	nextID     int64
	lastFilter models.BookFilter
	createErr  error
	relatedErr error
}

func newBookCatalogStub() *bookCatalogStub {
	return &bookCatalogStub{books: make(map[int64]*models.Book)}
}

func (r *bookCatalogStub) Create(ctx context.Context, book *models.Book) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	book.ID = r.nextID
	r.books[book.ID] = book
	return nil
}

func (r *bookCatalogStub) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	if book, ok := r.books[id]; ok {
		copy := *book
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *bookCatalogStub) GetDetail(ctx context.Context, id int64) (*models.BookDetail, error) {
	if book, ok := r.books[id]; ok {
		return &models.BookDetail{Book: *book, AddedByName: "Administrator"}, nil
	}
	return nil, sql.ErrNoRows
}

func (r *bookCatalogStub) List(ctx context.Context, filter models.BookFilter) ([]models.BookDetail, error) {
	r.lastFilter = filter
	result := make([]models.BookDetail, 0, len(r.books))
	for _, book := range r.books {
		result = append(result, models.BookDetail{Book: *book, AddedByName: "Administrator"})
	}
	return result, nil
}

func (r *bookCatalogStub) ListRelated(ctx context.Context, subject string, excludeID int64, limit int) ([]models.Book, error) {
	if r.relatedErr != nil {
		return nil, r.relatedErr
	}
	related := make([]models.Book, 0)
	for _, book := range r.books {
		if book.Subject == subject && book.ID != excludeID && len(related) < limit {
			related = append(related, *book)
		}
	}
	return related, nil
}

func (r *bookCatalogStub) Recent(ctx context.Context, limit int) ([]models.BookDetail, error) {
	return r.List(ctx, models.BookFilter{})
}

func (r *bookCatalogStub) Delete(ctx context.Context, id int64) error {
	if _, ok := r.books[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.books, id)
	return nil
}

func (r *bookCatalogStub) DistinctSubjects(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	subjects := make([]string, 0)
	for _, book := range r.books {
		if _, ok := seen[book.Subject]; !ok {
			seen[book.Subject] = struct{}{}
			subjects = append(subjects, book.Subject)
		}
	}
	return subjects, nil
}

func (r *bookCatalogStub) DistinctAuthors(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (r *bookCatalogStub) TopSubjects(ctx context.Context, limit int) ([]models.SubjectCount, error) {
	return nil, nil
}

func (r *bookCatalogStub) CountBooks(ctx context.Context) (int, error) {
	return len(r.books), nil
}

func (r *bookCatalogStub) CountDistinctSubjects(ctx context.Context) (int, error) {
	subjects, _ := r.DistinctSubjects(ctx)
	return len(subjects), nil
}

func (r *bookCatalogStub) CountDistinctAuthors(ctx context.Context) (int, error) {
	return 0, nil
}

func (r *bookCatalogStub) ListFilePaths(ctx context.Context) ([]string, error) {
	paths := make([]string, 0, len(r.books))
	for _, book := range r.books {
		paths = append(paths, book.FilePath)
	}
	return paths, nil
}

type studentCounterStub struct{ students int }

func (s *studentCounterStub) CountStudents(ctx context.Context) (int, error) {
	return s.students, nil
}

// pdfBytes renders a minimal real PDF so the MIME sniff sees a genuine
// document, not a faked header.
func pdfBytes(t *testing.T) []byte {
	t.Helper()
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Arial", "", 12)
	doc.Cell(40, 10, "fixture")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

func newTestBookService(t *testing.T) (*BookService, *bookCatalogStub, *storage.LocalStore) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	repo := newBookCatalogStub()
	svc := NewBookService(repo, &studentCounterStub{students: 7}, store, 10*1024*1024, nil, nil)
	return svc, repo, store
}

func TestBookServiceUpload(t *testing.T) {
	svc, repo, store := newTestBookService(t)
	content := pdfBytes(t)

	book, err := svc.Upload(context.Background(), dto.UploadBookRequest{
		Title:   "Calculus I",
		Author:  "Spivak",
		Subject: "Mathematics",
	}, &BookUpload{
		Filename: "calculus.pdf",
		Size:     int64(len(content)),
		Content:  bytes.NewReader(content),
	}, 1)
	require.NoError(t, err)
	require.Equal(t, "Calculus I", book.Title)
	require.Equal(t, int64(1), book.AddedBy)
	require.True(t, strings.HasSuffix(book.FilePath, ".pdf"))
	require.NotEqual(t, "calculus.pdf", book.FilePath)
	require.True(t, store.Exists(book.FilePath))
	require.Len(t, repo.books, 1)
}

func TestBookServiceUploadAccumulatesValidation(t *testing.T) {
	svc, _, _ := newTestBookService(t)
	svc.maxBytes = 16

	content := []byte("plain text, much longer than sixteen bytes")
	_, err := svc.Upload(context.Background(), dto.UploadBookRequest{}, &BookUpload{
		Filename: "notes.txt",
		Size:     int64(len(content)),
		Content:  bytes.NewReader(content),
	}, 1)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	require.Equal(t, []string{
		"Book title is required.",
		"Author name is required.",
		"Subject is required.",
		"Only PDF files are allowed.",
		"File size must not exceed 10MB.",
		"Only PDF files are allowed.",
	}, appErr.Details)
}

func TestBookServiceUploadMissingFile(t *testing.T) {
	svc, _, _ := newTestBookService(t)

	_, err := svc.Upload(context.Background(), dto.UploadBookRequest{
		Title:   "Calculus I",
		Author:  "Spivak",
		Subject: "Mathematics",
	}, nil, 1)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, []string{"Please upload a PDF file."}, appErr.Details)
}

func TestBookServiceUploadIgnoresDeclaredType(t *testing.T) {
	svc, _, _ := newTestBookService(t)

	// correct extension, wrong bytes: the sniff decides
	content := []byte("<html><body>not a pdf</body></html>")
	_, err := svc.Upload(context.Background(), dto.UploadBookRequest{
		Title:   "Calculus I",
		Author:  "Spivak",
		Subject: "Mathematics",
	}, &BookUpload{
		Filename: "calculus.pdf",
		Size:     int64(len(content)),
		Content:  bytes.NewReader(content),
	}, 1)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, []string{"Only PDF files are allowed."}, appErr.Details)
}

func TestBookServiceUploadRollsBackFileOnInsertFailure(t *testing.T) {
	svc, repo, store := newTestBookService(t)
	repo.createErr = errors.New("db down")
	content := pdfBytes(t)

	_, err := svc.Upload(context.Background(), dto.UploadBookRequest{
		Title:   "Calculus I",
		Author:  "Spivak",
		Subject: "Mathematics",
	}, &BookUpload{
		Filename: "calculus.pdf",
		Size:     int64(len(content)),
		Content:  bytes.NewReader(content),
	}, 1)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "Failed to add book. Please try again.", appErr.Message)

	names, listErr := store.List()
	require.NoError(t, listErr)
	require.Empty(t, names)
}

func TestBookServiceListSanitizesFilter(t *testing.T) {
	svc, repo, _ := newTestBookService(t)

	_, err := svc.List(context.Background(), models.BookFilter{Query: "  <script>  "})
	require.NoError(t, err)
	require.Equal(t, "&lt;script&gt;", repo.lastFilter.Query)
}

func TestBookServiceDetail(t *testing.T) {
	svc, repo, _ := newTestBookService(t)
	repo.books[1] = &models.Book{ID: 1, Title: "Calculus I", Subject: "Mathematics", FilePath: "a.pdf"}
	repo.books[2] = &models.Book{ID: 2, Title: "Calculus II", Subject: "Mathematics", FilePath: "b.pdf"}

	data, err := svc.Detail(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Calculus I", data.Book.Title)
	require.Len(t, data.Related, 1)
	require.Equal(t, "Calculus II", data.Related[0].Title)
}

func TestBookServiceDetailRelatedIsBestEffort(t *testing.T) {
	svc, repo, _ := newTestBookService(t)
	repo.books[1] = &models.Book{ID: 1, Title: "Calculus I", Subject: "Mathematics", FilePath: "a.pdf"}
	repo.relatedErr = errors.New("db down")

	data, err := svc.Detail(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, data.Related)
}

func TestBookServiceDetailNotFound(t *testing.T) {
	svc, _, _ := newTestBookService(t)

	_, err := svc.Detail(context.Background(), 42)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "Book not found.", appErr.Message)
}

func TestBookServiceDelete(t *testing.T) {
	svc, repo, store := newTestBookService(t)
	_, err := store.SaveStream("a.pdf", bytes.NewReader(pdfBytes(t)))
	require.NoError(t, err)
	repo.books[1] = &models.Book{ID: 1, Title: "Calculus I", FilePath: "a.pdf"}

	title, err := svc.Delete(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Calculus I", title)
	require.False(t, store.Exists("a.pdf"))
	require.Empty(t, repo.books)
}

func TestBookServiceDeleteMissingFileStillRemovesRecord(t *testing.T) {
	svc, repo, _ := newTestBookService(t)
	repo.books[1] = &models.Book{ID: 1, Title: "Calculus I", FilePath: "gone.pdf"}

	_, err := svc.Delete(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, repo.books)
}

func TestBookServiceDeleteNotFound(t *testing.T) {
	svc, _, _ := newTestBookService(t)

	_, err := svc.Delete(context.Background(), 42)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "Book not found.", appErr.Message)
}

func TestBookServiceDownload(t *testing.T) {
	svc, repo, store := newTestBookService(t)
	content := pdfBytes(t)
	_, err := store.SaveStream("a.pdf", bytes.NewReader(content))
	require.NoError(t, err)
	repo.books[1] = &models.Book{ID: 1, Title: "Data Structures & Algorithms", FilePath: "a.pdf"}

	dl, err := svc.Download(context.Background(), 1)
	require.NoError(t, err)
	defer dl.File.Close()

	require.Equal(t, "Data_Structures___Algorithms.pdf", dl.Filename)
	require.Equal(t, int64(len(content)), dl.SizeBytes)
}

func TestBookServiceDownloadMissingFile(t *testing.T) {
	svc, repo, _ := newTestBookService(t)
	repo.books[1] = &models.Book{ID: 1, Title: "Calculus I", FilePath: "gone.pdf"}

	_, err := svc.Download(context.Background(), 1)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "File not found. Please contact administrator.", appErr.Message)
}

func TestBookServiceStats(t *testing.T) {
	svc, repo, _ := newTestBookService(t)
	repo.books[1] = &models.Book{ID: 1, Title: "Calculus I", Subject: "Mathematics", FilePath: "a.pdf"}
	repo.books[2] = &models.Book{ID: 2, Title: "Physics I", Subject: "Physics", FilePath: "b.pdf"}

	admin, err := svc.AdminStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, admin.Stats.TotalBooks)
	require.Equal(t, 2, admin.Stats.TotalSubjects)
	require.Equal(t, 7, admin.Stats.TotalStudents)
	require.Len(t, admin.RecentBooks, 2)

	student, err := svc.StudentStats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, student.Stats.TotalBooks)
	require.Zero(t, student.Stats.TotalStudents)
}

func TestBookServiceSweepOrphans(t *testing.T) {
	svc, repo, store := newTestBookService(t)
	svc.sweepAge = 0

	_, err := store.SaveStream("kept.pdf", bytes.NewReader(pdfBytes(t)))
	require.NoError(t, err)
	_, err = store.SaveStream("orphan.pdf", bytes.NewReader(pdfBytes(t)))
	require.NoError(t, err)
	repo.books[1] = &models.Book{ID: 1, Title: "Calculus I", FilePath: "kept.pdf"}

	require.NoError(t, svc.SweepOrphans(context.Background()))
	require.True(t, store.Exists("kept.pdf"))
	require.False(t, store.Exists("orphan.pdf"))
}
