package model

import "time"

// Category groups books by subject.  Names are unique.
type Category struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Book is a catalog title.  Physical copies reference it through
// Copy.BookID; a book cannot be deleted while copies exist.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – book title.
//  Author      – author name.
//  ISBN        – unique 10 to 13 character ISBN.
//  Editorial   – publisher, optional.
//  Year        – publication year, optional.
//  CategoryID  – owning category.
//  Description – free text, optional.
//  ImageURL    – cover image, optional.
type Book struct {
	ID          uint64    `json:"id"`                    // books.id
	Title       string    `json:"title"`                 // books.title
	Author      string    `json:"author"`                // books.author
	ISBN        string    `json:"isbn"`                  // books.isbn
	Editorial   *string   `json:"editorial,omitempty"`   // books.editorial (nullable)
	Year        *int      `json:"year,omitempty"`        // books.year (nullable)
	CategoryID  uint64    `json:"category_id"`           // books.category_id
	Description *string   `json:"description,omitempty"` // books.description (nullable)
	ImageURL    *string   `json:"image_url,omitempty"`   // books.image_url (nullable)
	CreatedAt   time.Time `json:"created_at"`            // books.created_at
	UpdatedAt   time.Time `json:"updated_at"`            // books.updated_at
}

// BookDetail is a book with its category name resolved.
type BookDetail struct {
	Book
	CategoryName string `json:"category_name"`
}
