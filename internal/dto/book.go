package dto

import "github.com/noah-isme/digital-library-api/internal/models"

// UploadBookRequest carries the multipart metadata fields of the add-book
// form. The file part is handled separately.
type UploadBookRequest struct {
	Title   string `form:"title"`
	Author  string `form:"author"`
	Subject string `form:"subject"`
}

// BookListResponse bundles the catalog rows with the dropdown data the
// search form needs.
type BookListResponse struct {
	Books    []models.BookDetail `json:"books"`
	Subjects []string            `json:"subjects,omitempty"`
	Authors  []string            `json:"authors,omitempty"`
}

// BookDetailResponse is the student detail view: the book plus up to three
// related titles sharing its subject.
type BookDetailResponse struct {
	Book    models.BookDetail `json:"book"`
	Related []models.Book     `json:"related"`
}

// DashboardResponse carries the role dashboard counters and recent titles.
type DashboardResponse struct {
	Stats       models.LibraryStats   `json:"stats"`
	RecentBooks []models.BookDetail   `json:"recent_books"`
	TopSubjects []models.SubjectCount `json:"top_subjects,omitempty"`
}
