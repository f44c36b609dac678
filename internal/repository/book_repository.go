package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/digital-library-api/internal/models"
)

const bookDetailColumns = `b.id, b.title, b.author, b.subject, b.file_path, b.added_by, b.created_at, u.name AS added_by_name`

// BookRepository provides database access for the book catalog.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository creates a new instance of BookRepository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// Create inserts a catalog record and fills in the generated id and
// timestamp. The backing file must already exist at FilePath.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	const query = `INSERT INTO books (title, author, subject, file_path, added_by) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, book.Title, book.Author, book.Subject, book.FilePath, book.AddedBy)
	if err := row.Scan(&book.ID, &book.CreatedAt); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// GetByID returns one catalog row.
func (r *BookRepository) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	const query = `SELECT id, title, author, subject, file_path, added_by, created_at FROM books WHERE id = $1 LIMIT 1`
	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find book by id: %w", err)
	}
	return &book, nil
}

// GetDetail returns one catalog row joined with the owner's display name.
func (r *BookRepository) GetDetail(ctx context.Context, id int64) (*models.BookDetail, error) {
	query := `SELECT ` + bookDetailColumns + ` FROM books b JOIN users u ON b.added_by = u.id WHERE b.id = $1 LIMIT 1`
	var detail models.BookDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find book detail: %w", err)
	}
	return &detail, nil
}

// List returns catalog rows matching the filter, newest first. Each present
// filter is ANDed as a substring match; an empty filter returns the whole
// catalog.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.BookDetail, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + bookDetailColumns + ` FROM books b JOIN users u ON b.added_by = u.id WHERE 1=1`)
	args := make([]interface{}, 0, 4)

	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		n := len(args)
		builder.WriteString(fmt.Sprintf(" AND (b.title LIKE $%d OR b.author LIKE $%d OR b.subject LIKE $%d)", n, n, n))
	}
	if filter.Title != "" {
		args = append(args, "%"+filter.Title+"%")
		builder.WriteString(fmt.Sprintf(" AND b.title LIKE $%d", len(args)))
	}
	if filter.Author != "" {
		args = append(args, "%"+filter.Author+"%")
		builder.WriteString(fmt.Sprintf(" AND b.author LIKE $%d", len(args)))
	}
	if filter.Subject != "" {
		args = append(args, "%"+filter.Subject+"%")
		builder.WriteString(fmt.Sprintf(" AND b.subject LIKE $%d", len(args)))
	}

	builder.WriteString(" ORDER BY b.created_at DESC")

	var books []models.BookDetail
	if err := r.db.SelectContext(ctx, &books, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// ListRelated returns up to limit books sharing the exact subject, excluding
// the given id. No ordering is imposed: any matching rows qualify.
func (r *BookRepository) ListRelated(ctx context.Context, subject string, excludeID int64, limit int) ([]models.Book, error) {
	if limit <= 0 {
		limit = 3
	}
	const query = `SELECT id, title, author, subject, file_path, added_by, created_at FROM books WHERE subject = $1 AND id != $2 LIMIT $3`
	var books []models.Book
	if err := r.db.SelectContext(ctx, &books, query, subject, excludeID, limit); err != nil {
		return nil, fmt.Errorf("list related books: %w", err)
	}
	return books, nil
}

// Recent returns the newest catalog rows with owner names.
func (r *BookRepository) Recent(ctx context.Context, limit int) ([]models.BookDetail, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `SELECT ` + bookDetailColumns + ` FROM books b JOIN users u ON b.added_by = u.id ORDER BY b.created_at DESC LIMIT $1`
	var books []models.BookDetail
	if err := r.db.SelectContext(ctx, &books, query, limit); err != nil {
		return nil, fmt.Errorf("list recent books: %w", err)
	}
	return books, nil
}

// Delete removes a catalog row. sql.ErrNoRows is returned when the id does
// not exist.
func (r *BookRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM books WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DistinctSubjects returns every subject value in use, sorted.
func (r *BookRepository) DistinctSubjects(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT subject FROM books ORDER BY subject ASC`
	var subjects []string
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// DistinctAuthors returns every author value in use, sorted.
func (r *BookRepository) DistinctAuthors(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT author FROM books ORDER BY author ASC`
	var authors []string
	if err := r.db.SelectContext(ctx, &authors, query); err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

// TopSubjects returns the most populated subjects with their book counts.
func (r *BookRepository) TopSubjects(ctx context.Context, limit int) ([]models.SubjectCount, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT subject, COUNT(*) AS count FROM books GROUP BY subject ORDER BY count DESC LIMIT $1`
	var subjects []models.SubjectCount
	if err := r.db.SelectContext(ctx, &subjects, query, limit); err != nil {
		return nil, fmt.Errorf("list top subjects: %w", err)
	}
	return subjects, nil
}

// CountBooks returns the catalog size.
func (r *BookRepository) CountBooks(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM books`)
}

// CountDistinctSubjects returns the number of subject values in use.
func (r *BookRepository) CountDistinctSubjects(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(DISTINCT subject) FROM books`)
}

// CountDistinctAuthors returns the number of author values in use.
func (r *BookRepository) CountDistinctAuthors(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(DISTINCT author) FROM books`)
}

// ListFilePaths returns every stored file path referenced by the catalog.
// The orphan sweeper keeps any file that appears here.
func (r *BookRepository) ListFilePaths(ctx context.Context) ([]string, error) {
	const query = `SELECT file_path FROM books`
	var paths []string
	if err := r.db.SelectContext(ctx, &paths, query); err != nil {
		return nil, fmt.Errorf("list file paths: %w", err)
	}
	return paths, nil
}

func (r *BookRepository) count(ctx context.Context, query string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return count, nil
}
