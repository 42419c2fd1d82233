package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/store"
)

func makeTestLibrary(id, name string) *domain.Library {
	now := time.Now()
	return &domain.Library{
		Record: domain.Record{ID: id, CreatedAt: now, UpdatedAt: now},
		Name:   name,
	}
}

func mustCreateLibrary(t *testing.T, s *Store, id, name string) *domain.Library {
	t.Helper()
	lib := makeTestLibrary(id, name)
	if err := s.CreateLibrary(context.Background(), lib); err != nil {
		t.Fatalf("CreateLibrary(%s): %v", name, err)
	}
	return lib
}

func TestCreateAndGetLibrary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lib := mustCreateLibrary(t, s, "lib-1", "Science Fiction")

	got, err := s.GetLibrary(ctx, "lib-1")
	if err != nil {
		t.Fatalf("GetLibrary: %v", err)
	}
	if got.ID != lib.ID {
		t.Errorf("ID: got %q, want %q", got.ID, lib.ID)
	}
	if got.Name != lib.Name {
		t.Errorf("Name: got %q, want %q", got.Name, lib.Name)
	}
	if len(got.BookIDs) != 0 {
		t.Errorf("BookIDs: got %v, want empty", got.BookIDs)
	}
}

func TestGetLibrary_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetLibrary(context.Background(), "nonexistent")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateLibrary_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateLibrary(t, s, "lib-1", "Classics")

	// Same name, different case.
	dup := makeTestLibrary("lib-2", "CLASSICS")
	err := s.CreateLibrary(ctx, dup)
	if err == nil {
		t.Fatal("expected error for duplicate name, got nil")
	}
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	// Deleting frees the name.
	if err := s.DeleteLibrary(ctx, "lib-1"); err != nil {
		t.Fatalf("DeleteLibrary: %v", err)
	}
	if err := s.CreateLibrary(ctx, dup); err != nil {
		t.Fatalf("CreateLibrary after delete: %v", err)
	}
}

func TestUpdateLibrary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lib := mustCreateLibrary(t, s, "lib-1", "Old Name")
	mustCreateLibrary(t, s, "lib-2", "Taken")

	lib.Name = "New Name"
	lib.Touch()
	if err := s.UpdateLibrary(ctx, lib); err != nil {
		t.Fatalf("UpdateLibrary: %v", err)
	}

	got, err := s.GetLibrary(ctx, "lib-1")
	if err != nil {
		t.Fatalf("GetLibrary: %v", err)
	}
	if got.Name != "New Name" {
		t.Errorf("Name: got %q, want %q", got.Name, "New Name")
	}

	// Renaming onto another live library's name fails.
	lib.Name = "taken"
	err = s.UpdateLibrary(ctx, lib)
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	// Updating a missing library fails.
	ghost := makeTestLibrary("ghost", "Ghost Shelf")
	err = s.UpdateLibrary(ctx, ghost)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddBookToLibrary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	mustCreateBook(t, s, makeTestBook("book-1", "Animal Farm", "author-1", 1945))
	mustCreateBook(t, s, makeTestBook("book-2", "Nineteen Eighty-Four", "author-1", 1949))
	mustCreateLibrary(t, s, "lib-1", "Classics")

	if err := s.AddBookToLibrary(ctx, "lib-1", "book-1"); err != nil {
		t.Fatalf("AddBookToLibrary: %v", err)
	}
	if err := s.AddBookToLibrary(ctx, "lib-1", "book-2"); err != nil {
		t.Fatalf("AddBookToLibrary second: %v", err)
	}

	got, err := s.GetLibrary(ctx, "lib-1")
	if err != nil {
		t.Fatalf("GetLibrary: %v", err)
	}
	if len(got.BookIDs) != 2 {
		t.Fatalf("BookIDs: got %v, want 2 entries", got.BookIDs)
	}

	// Shelving the same book twice is a conflict.
	err = s.AddBookToLibrary(ctx, "lib-1", "book-1")
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	// Missing book.
	err = s.AddBookToLibrary(ctx, "lib-1", "book-missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing book: expected ErrNotFound, got %v", err)
	}

	// Missing library.
	err = s.AddBookToLibrary(ctx, "lib-missing", "book-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing library: expected ErrNotFound, got %v", err)
	}
}

func TestRemoveBookFromLibrary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	mustCreateBook(t, s, makeTestBook("book-1", "Animal Farm", "author-1", 1945))
	mustCreateLibrary(t, s, "lib-1", "Classics")

	if err := s.AddBookToLibrary(ctx, "lib-1", "book-1"); err != nil {
		t.Fatalf("AddBookToLibrary: %v", err)
	}

	if err := s.RemoveBookFromLibrary(ctx, "lib-1", "book-1"); err != nil {
		t.Fatalf("RemoveBookFromLibrary: %v", err)
	}

	got, err := s.GetLibrary(ctx, "lib-1")
	if err != nil {
		t.Fatalf("GetLibrary: %v", err)
	}
	if len(got.BookIDs) != 0 {
		t.Errorf("BookIDs: got %v, want empty", got.BookIDs)
	}

	// The book itself is untouched.
	if _, err := s.GetBook(ctx, "book-1"); err != nil {
		t.Errorf("GetBook after unshelve: %v", err)
	}

	// Removing a book that is not shelved reports not found.
	err = s.RemoveBookFromLibrary(ctx, "lib-1", "book-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// Missing library.
	err = s.RemoveBookFromLibrary(ctx, "lib-missing", "book-1")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing library: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteLibrary_BooksSurvive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	mustCreateBook(t, s, makeTestBook("book-1", "Animal Farm", "author-1", 1945))
	mustCreateLibrary(t, s, "lib-1", "Classics")

	if err := s.AddBookToLibrary(ctx, "lib-1", "book-1"); err != nil {
		t.Fatalf("AddBookToLibrary: %v", err)
	}

	if err := s.DeleteLibrary(ctx, "lib-1"); err != nil {
		t.Fatalf("DeleteLibrary: %v", err)
	}

	if _, err := s.GetLibrary(ctx, "lib-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetLibrary after delete: expected ErrNotFound, got %v", err)
	}

	// Unshelving never deletes the book.
	if _, err := s.GetBook(ctx, "book-1"); err != nil {
		t.Errorf("GetBook after library delete: %v", err)
	}

	// Double delete reports not found.
	if err := s.DeleteLibrary(ctx, "lib-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("double delete: expected ErrNotFound, got %v", err)
	}
}

func TestListLibraries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustCreateAuthor(t, s, "author-1", "George Orwell")
	mustCreateBook(t, s, makeTestBook("book-1", "Animal Farm", "author-1", 1945))

	mustCreateLibrary(t, s, "lib-b", "Banned Books")
	mustCreateLibrary(t, s, "lib-a", "Animal Stories")
	if err := s.AddBookToLibrary(ctx, "lib-a", "book-1"); err != nil {
		t.Fatalf("AddBookToLibrary: %v", err)
	}

	result, err := s.ListLibraries(ctx, store.Page{Number: 1, Size: 20})
	if err != nil {
		t.Fatalf("ListLibraries: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d libraries, want 2", len(result.Items))
	}
	if result.Total != 2 {
		t.Errorf("Total: got %d, want 2", result.Total)
	}

	// Ordered by name, with book IDs loaded.
	if result.Items[0].Name != "Animal Stories" {
		t.Errorf("first library: got %q, want %q", result.Items[0].Name, "Animal Stories")
	}
	if len(result.Items[0].BookIDs) != 1 || result.Items[0].BookIDs[0] != "book-1" {
		t.Errorf("first library BookIDs: got %v, want [book-1]", result.Items[0].BookIDs)
	}
	if len(result.Items[1].BookIDs) != 0 {
		t.Errorf("second library BookIDs: got %v, want empty", result.Items[1].BookIDs)
	}
}
