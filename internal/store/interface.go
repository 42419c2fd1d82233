// Package store defines the persistence interface for the Stacks server.
package store

import (
	"context"

	"github.com/stacksapp/stacks-server/internal/domain"
)

// Store defines the interface for all catalog persistence operations.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error
	SetSearchIndexer(indexer SearchIndexer)

	// Books
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	BookExists(ctx context.Context, id string) (bool, error)
	UpdateBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, id string) error
	ListBooks(ctx context.Context, params BookListParams) (*PagedResult[*domain.Book], error)
	ListAllBooks(ctx context.Context) ([]*domain.Book, error)
	CountBooks(ctx context.Context) (int, error)

	// Authors
	CreateAuthor(ctx context.Context, author *domain.Author) error
	GetAuthor(ctx context.Context, id string) (*domain.Author, error)
	GetAuthorByName(ctx context.Context, name string) (*domain.Author, error)
	GetAuthorsByIDs(ctx context.Context, ids []string) (map[string]*domain.Author, error)
	GetOrCreateAuthorByName(ctx context.Context, name string) (*domain.Author, error)
	UpdateAuthor(ctx context.Context, author *domain.Author) error
	DeleteAuthor(ctx context.Context, id string) error
	ListAuthors(ctx context.Context, page Page) (*PagedResult[*domain.Author], error)
	GetBooksByAuthor(ctx context.Context, authorID string) ([]*domain.Book, error)
	GetBooksByAuthorIDs(ctx context.Context, authorIDs []string) (map[string][]*domain.Book, error)

	// Libraries
	CreateLibrary(ctx context.Context, lib *domain.Library) error
	GetLibrary(ctx context.Context, id string) (*domain.Library, error)
	UpdateLibrary(ctx context.Context, lib *domain.Library) error
	DeleteLibrary(ctx context.Context, id string) error
	ListLibraries(ctx context.Context, page Page) (*PagedResult[*domain.Library], error)
	AddBookToLibrary(ctx context.Context, libraryID, bookID string) error
	RemoveBookFromLibrary(ctx context.Context, libraryID, bookID string) error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context) ([]*domain.User, error)
	CountUsers(ctx context.Context) (int, error)

	// Groups and capabilities
	GetGroup(ctx context.Context, id string) (*domain.Group, error)
	GetGroupBySlug(ctx context.Context, slug string) (*domain.Group, error)
	ListGroups(ctx context.Context) ([]*domain.Group, error)
	AddUserToGroup(ctx context.Context, userID, groupSlug string) error
	SetUserGroups(ctx context.Context, userID string, groupSlugs []string) error
	GetUserCapabilities(ctx context.Context, userID string) (domain.CapabilitySet, error)
	ApplyPolicy(ctx context.Context, version int, groups []domain.Group) error

	// Instance
	GetInstance(ctx context.Context) (*domain.Instance, error)
	InitializeInstance(ctx context.Context, name, version string) (*domain.Instance, error)
	UpdateInstance(ctx context.Context, instance *domain.Instance) error
}

// SessionStore defines the interface for refresh-session persistence.
// Sessions are expiring credentials rather than catalog records, so they
// live in a separate key-value store with TTL support.
type SessionStore interface {
	Close() error
	Ping(ctx context.Context) error

	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	DeleteSession(ctx context.Context, id string) error
	ListUserSessions(ctx context.Context, userID string) ([]*domain.Session, error)
	DeleteAllUserSessions(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context) (int, error)
}

// SearchIndexer is the interface for updating the search index.
// The store uses this to keep search in sync without depending on the
// search implementation. Index updates run asynchronously so catalog
// writes never block on indexing.
type SearchIndexer interface {
	IndexBook(ctx context.Context, book *domain.Book, authorName string) error
	DeleteBook(ctx context.Context, bookID string) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

func (NoopSearchIndexer) IndexBook(context.Context, *domain.Book, string) error { return nil }
func (NoopSearchIndexer) DeleteBook(context.Context, string) error              { return nil }

// NewNoopSearchIndexer creates a new no-op search indexer for testing.
func NewNoopSearchIndexer() SearchIndexer { return NoopSearchIndexer{} }
