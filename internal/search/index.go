package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/stacksapp/stacks-server/internal/domain"
)

// Index wraps a Bleve index over the book catalog.
//
// Thread safety: all public methods are safe for concurrent use. The
// mutex protects against index corruption during rebuild operations.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex // Protects index operations during rebuild
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (uses stderr if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on startup triggers an automatic rebuild, after which the
// caller should refill the index from the catalog.
const mappingVersion = "1"

// NewIndex creates or opens a search index under opts.DataPath.
// An existing index with the current mapping version is reused. A
// corrupt index, or one built with an older mapping, is removed and
// recreated empty.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil {
			logger.Info("search index has no version file, will rebuild with current mapping",
				"new_version", mappingVersion,
			)
			needsRebuild = true
		} else if string(existingVersion) != mappingVersion {
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing search index, will recreate",
				"path", indexPath,
				"error", err,
			)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &Index{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexBook adds or updates a book in the index. It satisfies the
// store's SearchIndexer interface so catalog writes flow through here.
func (s *Index) IndexBook(ctx context.Context, book *domain.Book, authorName string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Convert to map so field names match the mapping (lowercase)
	return s.index.Index(book.ID, BookDocument(book, authorName).ToMap())
}

// DeleteBook removes a book from the index. Deleting an ID that was
// never indexed is not an error.
func (s *Index) DeleteBook(ctx context.Context, bookID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(bookID)
}

// IndexBooks indexes multiple documents in batches. This is
// significantly faster than calling IndexBook in a loop; documents are
// committed in chunks to bound memory during a full rebuild.
func (s *Index) IndexBooks(docs []*Document) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(docs); i += batchSize {
		end := i + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		chunk := docs[i:end]

		batch := s.index.NewBatch()
		for _, doc := range chunk {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DocumentCount returns the total number of indexed books.
func (s *Index) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the existing index and creates a new empty one.
//
// This acquires an exclusive lock and blocks all other operations.
// Searches against the fresh index return nothing until it is refilled,
// so callers almost always want RebuildFrom instead.
func (s *Index) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)

	return nil
}

// CatalogSource provides the catalog data needed to rebuild the index
// from scratch. The sqlite store satisfies it.
type CatalogSource interface {
	ListAllBooks(ctx context.Context) ([]*domain.Book, error)
	GetAuthorsByIDs(ctx context.Context, ids []string) (map[string]*domain.Author, error)
}

// RebuildFrom drops the index and refills it from the catalog. Run on
// startup when the mapping version changed, and on demand when the
// index has drifted from the store.
func (s *Index) RebuildFrom(ctx context.Context, src CatalogSource) error {
	if err := s.Rebuild(); err != nil {
		return err
	}

	books, err := src.ListAllBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	if len(books) == 0 {
		return nil
	}

	authorIDs := make([]string, 0, len(books))
	seen := make(map[string]bool, len(books))
	for _, book := range books {
		if !seen[book.AuthorID] {
			seen[book.AuthorID] = true
			authorIDs = append(authorIDs, book.AuthorID)
		}
	}

	authors, err := src.GetAuthorsByIDs(ctx, authorIDs)
	if err != nil {
		return fmt.Errorf("load authors: %w", err)
	}

	docs := make([]*Document, 0, len(books))
	for _, book := range books {
		var authorName string
		if author, ok := authors[book.AuthorID]; ok {
			authorName = author.Name
		}
		docs = append(docs, BookDocument(book, authorName))
	}

	if err := s.IndexBooks(docs); err != nil {
		return err
	}

	s.logger.Info("search index rebuilt from catalog", "books", len(docs))
	return nil
}
