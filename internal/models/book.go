package models

import "time"

// Book is a catalog record. FilePath is relative to the content store root
// and must reference an existing file for the record's entire lifetime.
type Book struct {
	ID        int64     `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Author    string    `db:"author" json:"author"`
	Subject   string    `db:"subject" json:"subject"`
	FilePath  string    `db:"file_path" json:"-"`
	AddedBy   int64     `db:"added_by" json:"added_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BookDetail is a Book joined with the owning user's display name.
type BookDetail struct {
	Book
	AddedByName string `db:"added_by_name" json:"added_by_name"`
}

// BookFilter captures catalog search criteria. Query matches title, author,
// or subject; the field-specific filters are ANDed substring matches. Absent
// filters impose no constraint.
type BookFilter struct {
	Query   string
	Title   string
	Author  string
	Subject string
}

// Empty reports whether no filter is set.
func (f BookFilter) Empty() bool {
	return f.Query == "" && f.Title == "" && f.Author == "" && f.Subject == ""
}

// SubjectCount pairs a subject with the number of books carrying it.
type SubjectCount struct {
	Subject string `db:"subject" json:"subject"`
	Count   int    `db:"count" json:"count"`
}

// LibraryStats aggregates the dashboard counters.
type LibraryStats struct {
	TotalBooks    int `json:"total_books"`
	TotalSubjects int `json:"total_subjects"`
	TotalAuthors  int `json:"total_authors"`
	TotalStudents int `json:"total_students,omitempty"`
}
