package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-library-api/internal/models"
)

func bookDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "title", "author", "subject", "file_path", "added_by", "created_at", "added_by_name"})
}

func TestBookRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookRepository(db)
	created := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO books (title, author, subject, file_path, added_by) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at")).
		WithArgs("Calculus I", "Spivak", "Mathematics", "abc_123.pdf", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(3, created))

	book := &models.Book{Title: "Calculus I", Author: "Spivak", Subject: "Mathematics", FilePath: "abc_123.pdf", AddedBy: 1}
	require.NoError(t, repo.Create(context.Background(), book))
	require.Equal(t, int64(3), book.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryListUnfiltered(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookRepository(db)
	rows := bookDetailRows().
		AddRow(1, "Calculus I", "Spivak", "Mathematics", "a.pdf", 1, time.Now(), "Administrator").
		AddRow(2, "Physics I", "Halliday", "Physics", "b.pdf", 1, time.Now(), "Administrator")
	mock.ExpectQuery(regexp.QuoteMeta("FROM books b JOIN users u ON b.added_by = u.id WHERE 1=1 ORDER BY b.created_at DESC")).
		WillReturnRows(rows)

	books, err := repo.List(context.Background(), models.BookFilter{})
	require.NoError(t, err)
	require.Len(t, books, 2)
	require.Equal(t, "Administrator", books[0].AddedByName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryListQueryMatchesAnyField(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookRepository(db)
	rows := bookDetailRows().
		AddRow(1, "Calculus I", "Spivak", "Mathematics", "a.pdf", 1, time.Now(), "Administrator")
	mock.ExpectQuery(regexp.QuoteMeta("AND (b.title LIKE $1 OR b.author LIKE $1 OR b.subject LIKE $1)")).
		WithArgs("%calc%").
		WillReturnRows(rows)

	books, err := repo.List(context.Background(), models.BookFilter{Query: "calc"})
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryListFieldFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("AND b.title LIKE $1 AND b.author LIKE $2 AND b.subject LIKE $3")).
		WithArgs("%Calculus%", "%Spivak%", "%Math%").
		WillReturnRows(bookDetailRows())

	books, err := repo.List(context.Background(), models.BookFilter{Title: "Calculus", Author: "Spivak", Subject: "Math"})
	require.NoError(t, err)
	require.Empty(t, books)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryListRelated(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookRepository(db)
	rows := sqlmock.NewRows([]string{"id", "title", "author", "subject", "file_path", "added_by", "created_at"}).
		AddRow(2, "Calculus II", "Spivak", "Mathematics", "b.pdf", 1, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE subject = $1 AND id != $2 LIMIT $3")).
		WithArgs("Mathematics", int64(1), 3).
		WillReturnRows(rows)

	books, err := repo.ListRelated(context.Background(), "Mathematics", 1, 0)
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM books WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryDeleteMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM books WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 42)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryAggregates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM books")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))
	count, err := repo.CountBooks(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, count)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT subject FROM books ORDER BY subject ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"subject"}).AddRow("Mathematics").AddRow("Physics"))
	subjects, err := repo.DistinctSubjects(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Mathematics", "Physics"}, subjects)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT subject, COUNT(*) AS count FROM books GROUP BY subject ORDER BY count DESC LIMIT $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"subject", "count"}).AddRow("Mathematics", 6))
	top, err := repo.TopSubjects(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, 6, top[0].Count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryListFilePaths(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBookRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT file_path FROM books")).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("a.pdf").AddRow("b.pdf"))

	paths, err := repo.ListFilePaths(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a.pdf", "b.pdf"}, paths)
	require.NoError(t, mock.ExpectationsWereMet())
}
