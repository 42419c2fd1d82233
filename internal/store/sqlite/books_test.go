package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/store"
)

// makeTestAuthor creates a domain.Author with sensible defaults for testing.
func makeTestAuthor(id, name string) *domain.Author {
	now := time.Now()
	return &domain.Author{
		Record: domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		Name:   name,
	}
}

// makeTestBook creates a domain.Book with sensible defaults for testing.
func makeTestBook(id, title, authorID string, year int) *domain.Book {
	now := time.Now()
	return &domain.Book{
		Record:          domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		Title:           title,
		AuthorID:        authorID,
		PublicationYear: year,
	}
}

func mustCreateAuthor(t *testing.T, s *Store, id, name string) *domain.Author {
	t.Helper()
	a := makeTestAuthor(id, name)
	if err := s.CreateAuthor(context.Background(), a); err != nil {
		t.Fatalf("CreateAuthor(%s): %v", name, err)
	}
	return a
}

func mustCreateBook(t *testing.T, s *Store, book *domain.Book) {
	t.Helper()
	if err := s.CreateBook(context.Background(), book); err != nil {
		t.Fatalf("CreateBook(%s): %v", book.Title, err)
	}
}

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")

	book := makeTestBook("book-1", "Nineteen Eighty-Four", "author-1", 1949)
	book.ISBN = "978-0-452-28423-4"
	book.Pages = 328
	book.Language = "en"
	book.Description = "A dystopian social science fiction novel"
	book.Cover = &domain.CoverInfo{
		Path:     "covers/book-1/cover.jpg",
		Format:   "jpeg",
		Size:     150000,
		Width:    600,
		Height:   900,
		BlurHash: "LEHV6nWB2yk8",
	}

	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}

	// Verify scalar fields.
	if got.ID != book.ID {
		t.Errorf("ID: got %q, want %q", got.ID, book.ID)
	}
	if got.Title != book.Title {
		t.Errorf("Title: got %q, want %q", got.Title, book.Title)
	}
	if got.AuthorID != book.AuthorID {
		t.Errorf("AuthorID: got %q, want %q", got.AuthorID, book.AuthorID)
	}
	if got.PublicationYear != book.PublicationYear {
		t.Errorf("PublicationYear: got %d, want %d", got.PublicationYear, book.PublicationYear)
	}
	if got.ISBN != book.ISBN {
		t.Errorf("ISBN: got %q, want %q", got.ISBN, book.ISBN)
	}
	if got.Pages != book.Pages {
		t.Errorf("Pages: got %d, want %d", got.Pages, book.Pages)
	}
	if got.Language != book.Language {
		t.Errorf("Language: got %q, want %q", got.Language, book.Language)
	}
	if got.Description != book.Description {
		t.Errorf("Description: got %q, want %q", got.Description, book.Description)
	}
	if got.DeletedAt != nil {
		t.Error("DeletedAt: expected nil")
	}

	// Timestamps should round-trip through RFC3339Nano.
	if got.CreatedAt.Unix() != book.CreatedAt.Unix() {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, book.CreatedAt)
	}
	if got.UpdatedAt.Unix() != book.UpdatedAt.Unix() {
		t.Errorf("UpdatedAt: got %v, want %v", got.UpdatedAt, book.UpdatedAt)
	}

	// Verify cover.
	if got.Cover == nil {
		t.Fatal("Cover: expected non-nil")
	}
	if got.Cover.Path != book.Cover.Path {
		t.Errorf("Cover.Path: got %q, want %q", got.Cover.Path, book.Cover.Path)
	}
	if got.Cover.Format != book.Cover.Format {
		t.Errorf("Cover.Format: got %q, want %q", got.Cover.Format, book.Cover.Format)
	}
	if got.Cover.Size != book.Cover.Size {
		t.Errorf("Cover.Size: got %d, want %d", got.Cover.Size, book.Cover.Size)
	}
	if got.Cover.Width != book.Cover.Width || got.Cover.Height != book.Cover.Height {
		t.Errorf("Cover dimensions: got %dx%d, want %dx%d",
			got.Cover.Width, got.Cover.Height, book.Cover.Width, book.Cover.Height)
	}
	if got.Cover.BlurHash != book.Cover.BlurHash {
		t.Errorf("Cover.BlurHash: got %q, want %q", got.Cover.BlurHash, book.Cover.BlurHash)
	}
}

func TestGetBook_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetBook(ctx, "nonexistent")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *store.Error, got %T: %v", err, err)
	}
	if storeErr.Code != store.ErrNotFound.Code {
		t.Errorf("expected status %d, got %d", store.ErrNotFound.Code, storeErr.Code)
	}
}

func TestCreateBook_DuplicateISBN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")

	b1 := makeTestBook("book-dup-1", "Book One", "author-1", 1949)
	b1.ISBN = "978-0-452-28423-4"
	if err := s.CreateBook(ctx, b1); err != nil {
		t.Fatalf("CreateBook b1: %v", err)
	}

	// Different ID, same ISBN.
	b2 := makeTestBook("book-dup-2", "Book Two", "author-1", 1950)
	b2.ISBN = "978-0-452-28423-4"
	err := s.CreateBook(ctx, b2)
	if err == nil {
		t.Fatal("expected error for duplicate ISBN, got nil")
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	// Books without an ISBN never collide.
	b3 := makeTestBook("book-dup-3", "Book Three", "author-1", 1951)
	b4 := makeTestBook("book-dup-4", "Book Four", "author-1", 1952)
	if err := s.CreateBook(ctx, b3); err != nil {
		t.Fatalf("CreateBook b3: %v", err)
	}
	if err := s.CreateBook(ctx, b4); err != nil {
		t.Fatalf("CreateBook b4: %v", err)
	}
}

func TestCreateBook_UnknownAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := makeTestBook("book-orphan", "Orphan", "author-missing", 2000)
	err := s.CreateBook(ctx, book)
	if err == nil {
		t.Fatal("expected error for unknown author, got nil")
	}
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetBookByISBN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "Aldous Huxley")
	book := makeTestBook("book-isbn", "Brave New World", "author-1", 1932)
	book.ISBN = "978-0-06-085052-4"
	mustCreateBook(t, s, book)

	got, err := s.GetBookByISBN(ctx, "978-0-06-085052-4")
	if err != nil {
		t.Fatalf("GetBookByISBN: %v", err)
	}
	if got.ID != "book-isbn" {
		t.Errorf("ID: got %q, want %q", got.ID, "book-isbn")
	}

	_, err = s.GetBookByISBN(ctx, "000-0-00-000000-0")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown ISBN, got %v", err)
	}
}

func TestBookExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	mustCreateBook(t, s, makeTestBook("book-exists", "Animal Farm", "author-1", 1945))

	exists, err := s.BookExists(ctx, "book-exists")
	if err != nil {
		t.Fatalf("BookExists: %v", err)
	}
	if !exists {
		t.Error("expected book to exist")
	}

	exists, err = s.BookExists(ctx, "book-never")
	if err != nil {
		t.Fatalf("BookExists missing: %v", err)
	}
	if exists {
		t.Error("expected book to not exist")
	}
}

func TestUpdateBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	mustCreateAuthor(t, s, "author-2", "Eric Blair")

	book := makeTestBook("book-update", "Original Title", "author-1", 1949)
	mustCreateBook(t, s, book)

	book.Title = "Updated Title"
	book.AuthorID = "author-2"
	book.PublicationYear = 1950
	book.Pages = 400
	book.Description = "Updated description"
	book.Cover = &domain.CoverInfo{
		Path: "covers/book-update/cover.webp", Format: "webp",
		Size: 90000, Width: 400, Height: 600, BlurHash: "NEWBLURHASH",
	}
	book.Touch()

	if err := s.UpdateBook(ctx, book); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-update")
	if err != nil {
		t.Fatalf("GetBook after update: %v", err)
	}

	if got.Title != "Updated Title" {
		t.Errorf("Title: got %q, want %q", got.Title, "Updated Title")
	}
	if got.AuthorID != "author-2" {
		t.Errorf("AuthorID: got %q, want %q", got.AuthorID, "author-2")
	}
	if got.PublicationYear != 1950 {
		t.Errorf("PublicationYear: got %d, want 1950", got.PublicationYear)
	}
	if got.Pages != 400 {
		t.Errorf("Pages: got %d, want 400", got.Pages)
	}
	if got.Cover == nil {
		t.Fatal("Cover: expected non-nil after update")
	}
	if got.Cover.BlurHash != "NEWBLURHASH" {
		t.Errorf("Cover.BlurHash: got %q, want %q", got.Cover.BlurHash, "NEWBLURHASH")
	}
}

func TestUpdateBook_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	book := makeTestBook("nonexistent-book", "Ghost", "author-1", 2000)

	err := s.UpdateBook(ctx, book)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var storeErr *store.Error
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *store.Error, got %T: %v", err, err)
	}
	if storeErr.Code != store.ErrNotFound.Code {
		t.Errorf("expected status %d, got %d", store.ErrNotFound.Code, storeErr.Code)
	}
}

func TestDeleteBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	mustCreateBook(t, s, makeTestBook("book-delete", "Delete Me", "author-1", 1949))

	// Shelve it so the delete has a membership to clean up.
	lib := &domain.Library{
		Record: domain.Record{ID: "lib-1", CreatedAt: time.Now(), UpdatedAt: time.Now()},
		Name:   "Classics",
	}
	if err := s.CreateLibrary(ctx, lib); err != nil {
		t.Fatalf("CreateLibrary: %v", err)
	}
	if err := s.AddBookToLibrary(ctx, "lib-1", "book-delete"); err != nil {
		t.Fatalf("AddBookToLibrary: %v", err)
	}

	// Soft delete.
	if err := s.DeleteBook(ctx, "book-delete"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}

	// GetBook should return not found.
	_, err := s.GetBook(ctx, "book-delete")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// The library should no longer list the book.
	gotLib, err := s.GetLibrary(ctx, "lib-1")
	if err != nil {
		t.Fatalf("GetLibrary: %v", err)
	}
	if len(gotLib.BookIDs) != 0 {
		t.Errorf("BookIDs after delete: got %v, want empty", gotLib.BookIDs)
	}

	// Deleting again should return not found (already deleted).
	err = s.DeleteBook(ctx, "book-delete")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestBook_NilCover(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	mustCreateBook(t, s, makeTestBook("book-no-cover", "No Cover", "author-1", 1949))

	got, err := s.GetBook(ctx, "book-no-cover")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Cover != nil {
		t.Errorf("Cover: expected nil, got %+v", got.Cover)
	}
}

func TestListBooks_Pagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	for i := 1; i <= 5; i++ {
		b := makeTestBook(
			fmt.Sprintf("book-list-%d", i),
			fmt.Sprintf("Book %d", i),
			"author-1",
			1940+i,
		)
		mustCreateBook(t, s, b)
	}

	// First page: size 2. Default ordering is title ascending.
	params := store.BookListParams{Page: store.Page{Number: 1, Size: 2}}
	page1, err := s.ListBooks(ctx, params)
	if err != nil {
		t.Fatalf("ListBooks page1: %v", err)
	}

	if len(page1.Items) != 2 {
		t.Fatalf("page1: got %d items, want 2", len(page1.Items))
	}
	if page1.Total != 5 {
		t.Errorf("page1: Total got %d, want 5", page1.Total)
	}
	if page1.TotalPages() != 3 {
		t.Errorf("page1: TotalPages got %d, want 3", page1.TotalPages())
	}
	if !page1.HasNext() {
		t.Error("page1: expected HasNext=true")
	}
	if page1.HasPrevious() {
		t.Error("page1: expected HasPrevious=false")
	}
	if page1.Items[0].Title != "Book 1" {
		t.Errorf("page1[0].Title: got %q, want %q", page1.Items[0].Title, "Book 1")
	}
	if page1.Items[1].Title != "Book 2" {
		t.Errorf("page1[1].Title: got %q, want %q", page1.Items[1].Title, "Book 2")
	}

	// Second page.
	params.Page.Number = 2
	page2, err := s.ListBooks(ctx, params)
	if err != nil {
		t.Fatalf("ListBooks page2: %v", err)
	}

	if len(page2.Items) != 2 {
		t.Fatalf("page2: got %d items, want 2", len(page2.Items))
	}
	if !page2.HasNext() {
		t.Error("page2: expected HasNext=true")
	}
	if !page2.HasPrevious() {
		t.Error("page2: expected HasPrevious=true")
	}
	if page2.Items[0].Title != "Book 3" {
		t.Errorf("page2[0].Title: got %q, want %q", page2.Items[0].Title, "Book 3")
	}

	// Third page: only 1 remaining.
	params.Page.Number = 3
	page3, err := s.ListBooks(ctx, params)
	if err != nil {
		t.Fatalf("ListBooks page3: %v", err)
	}

	if len(page3.Items) != 1 {
		t.Fatalf("page3: got %d items, want 1", len(page3.Items))
	}
	if page3.HasNext() {
		t.Error("page3: expected HasNext=false")
	}
	if page3.Items[0].Title != "Book 5" {
		t.Errorf("page3[0].Title: got %q, want %q", page3.Items[0].Title, "Book 5")
	}

	// A page past the last match is invalid.
	params.Page.Number = 4
	_, err = s.ListBooks(ctx, params)
	if !errors.Is(err, store.ErrInvalidPage) {
		t.Errorf("expected ErrInvalidPage for page 4, got %v", err)
	}
}

func TestListBooks_EmptyFirstPage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Page 1 of an empty catalog is valid, not an error.
	result, err := s.ListBooks(ctx, store.BookListParams{Page: store.Page{Number: 1, Size: 20}})
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("Items: got %d, want 0", len(result.Items))
	}
	if result.Total != 0 {
		t.Errorf("Total: got %d, want 0", result.Total)
	}
	if result.TotalPages() != 1 {
		t.Errorf("TotalPages: got %d, want 1", result.TotalPages())
	}
}

// seedCatalog creates two authors and three books used by the filter,
// search, and ordering tests.
func seedCatalog(t *testing.T, s *Store) {
	t.Helper()
	mustCreateAuthor(t, s, "author-orwell", "George Orwell")
	mustCreateAuthor(t, s, "author-huxley", "Aldous Huxley")

	b1 := makeTestBook("book-1984", "Nineteen Eighty-Four", "author-orwell", 1949)
	b1.ISBN = "978-0-452-28423-4"
	b1.Language = "en"
	mustCreateBook(t, s, b1)

	b2 := makeTestBook("book-farm", "Animal Farm", "author-orwell", 1945)
	b2.Language = "en"
	mustCreateBook(t, s, b2)

	b3 := makeTestBook("book-brave", "Brave New World", "author-huxley", 1932)
	b3.Language = "es"
	mustCreateBook(t, s, b3)
}

func listTitles(t *testing.T, s *Store, params store.BookListParams) []string {
	t.Helper()
	result, err := s.ListBooks(context.Background(), params)
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	titles := make([]string, len(result.Items))
	for i, b := range result.Items {
		titles[i] = b.Title
	}
	return titles
}

func TestListBooks_Filters(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	year1949 := 1949
	yearMin := 1940
	yearMax := 1946

	cases := []struct {
		name   string
		filter store.BookFilter
		want   []string
	}{
		{"title contains", store.BookFilter{Title: "farm"}, []string{"Animal Farm"}},
		{"title exact case-insensitive", store.BookFilter{TitleExact: "animal farm"}, []string{"Animal Farm"}},
		{"author contains", store.BookFilter{Author: "orwell"}, []string{"Animal Farm", "Nineteen Eighty-Four"}},
		{"author exact case-insensitive", store.BookFilter{AuthorExact: "george orwell"}, []string{"Animal Farm", "Nineteen Eighty-Four"}},
		{"year exact", store.BookFilter{Year: &year1949}, []string{"Nineteen Eighty-Four"}},
		{"year range min", store.BookFilter{YearGTE: &yearMin}, []string{"Animal Farm", "Nineteen Eighty-Four"}},
		{"year range max", store.BookFilter{YearLTE: &yearMax}, []string{"Animal Farm", "Brave New World"}},
		{"year range both", store.BookFilter{YearGTE: &yearMin, YearLTE: &yearMax}, []string{"Animal Farm"}},
		{"language", store.BookFilter{Language: "es"}, []string{"Brave New World"}},
		{"isbn", store.BookFilter{ISBN: "978-0-452-28423-4"}, []string{"Nineteen Eighty-Four"}},
		{"no match", store.BookFilter{Title: "wuthering"}, []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := listTitles(t, s, store.BookListParams{Filter: tc.filter})
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("item %d: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestListBooks_Search(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	// Search matches title or author name.
	got := listTitles(t, s, store.BookListParams{Filter: store.BookFilter{Search: "orwell"}})
	if len(got) != 2 {
		t.Fatalf("search orwell: got %v, want 2 books", got)
	}

	got = listTitles(t, s, store.BookListParams{Filter: store.BookFilter{Search: "brave"}})
	if len(got) != 1 || got[0] != "Brave New World" {
		t.Fatalf("search brave: got %v", got)
	}

	// Search combines with filters.
	yearMin := 1946
	got = listTitles(t, s, store.BookListParams{
		Filter: store.BookFilter{Search: "orwell", YearGTE: &yearMin},
	})
	if len(got) != 1 || got[0] != "Nineteen Eighty-Four" {
		t.Fatalf("search+filter: got %v", got)
	}
}

func TestListBooks_Ordering(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	// Newest first.
	got := listTitles(t, s, store.BookListParams{
		OrderBy: []store.Ordering{{Field: store.OrderYear, Desc: true}},
	})
	want := []string{"Nineteen Eighty-Four", "Animal Farm", "Brave New World"}
	if len(got) != len(want) {
		t.Fatalf("year desc: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("year desc item %d: got %q, want %q", i, got[i], want[i])
		}
	}

	// Multi-key: author ascending, then year descending.
	got = listTitles(t, s, store.BookListParams{
		OrderBy: []store.Ordering{
			{Field: store.OrderAuthor},
			{Field: store.OrderYear, Desc: true},
		},
	})
	want = []string{"Brave New World", "Nineteen Eighty-Four", "Animal Farm"}
	if len(got) != len(want) {
		t.Fatalf("author,year desc: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("author,year desc item %d: got %q, want %q", i, got[i], want[i])
		}
	}

	// Unknown fields are dropped; default title ordering applies.
	got = listTitles(t, s, store.BookListParams{
		OrderBy: []store.Ordering{{Field: store.OrderField("rating")}},
	})
	want = []string{"Animal Farm", "Brave New World", "Nineteen Eighty-Four"}
	if len(got) != len(want) {
		t.Fatalf("unknown field: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("unknown field item %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListAllBooks(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	books, err := s.ListAllBooks(context.Background())
	if err != nil {
		t.Fatalf("ListAllBooks: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("got %d books, want 3", len(books))
	}
	if books[0].Title != "Animal Farm" {
		t.Errorf("first title: got %q, want %q", books[0].Title, "Animal Farm")
	}
}

func TestCountBooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedCatalog(t, s)

	count, err := s.CountBooks(ctx)
	if err != nil {
		t.Fatalf("CountBooks: %v", err)
	}
	if count != 3 {
		t.Errorf("count: got %d, want 3", count)
	}

	if err := s.DeleteBook(ctx, "book-farm"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}

	count, err = s.CountBooks(ctx)
	if err != nil {
		t.Fatalf("CountBooks after delete: %v", err)
	}
	if count != 2 {
		t.Errorf("count after delete: got %d, want 2", count)
	}
}
