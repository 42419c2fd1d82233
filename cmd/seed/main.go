// Package main provides a tool to seed the catalog with sample data.
//
// This fills an empty catalog with a handful of well-known authors,
// their books, and a couple of libraries so list, search, and
// permission behavior can be exercised without typing data in by hand.
//
// Usage:
//
//	STACKS_DATA_DIR=~/stacks go run ./cmd/seed
//	go run ./cmd/seed --data-dir ~/stacks --libraries=false
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/id"
	"github.com/stacksapp/stacks-server/internal/store/sqlite"
)

var (
	dataDir       = flag.String("data-dir", "", "Server data directory (default: $STACKS_DATA_DIR or ~/stacks)")
	withLibraries = flag.Bool("libraries", true, "Also create sample libraries and shelve books")
)

type seedBook struct {
	title    string
	author   string
	year     int
	isbn     string
	pages    int
	language string
}

var catalog = []seedBook{
	{"1984", "George Orwell", 1949, "9780451524935", 328, "en"},
	{"Animal Farm", "George Orwell", 1945, "9780451526342", 112, "en"},
	{"Brave New World", "Aldous Huxley", 1932, "9780060850524", 311, "en"},
	{"The Hobbit", "J.R.R. Tolkien", 1937, "9780547928227", 310, "en"},
	{"The Fellowship of the Ring", "J.R.R. Tolkien", 1954, "9780547928210", 423, "en"},
	{"The Left Hand of Darkness", "Ursula K. Le Guin", 1969, "9780441478125", 304, "en"},
	{"A Wizard of Earthsea", "Ursula K. Le Guin", 1968, "9780547773742", 183, "en"},
	{"One Hundred Years of Solitude", "Gabriel García Márquez", 1967, "9780060883287", 417, "es"},
	{"Kafka on the Shore", "Haruki Murakami", 2002, "9781400079278", 467, "ja"},
	{"The Name of the Rose", "Umberto Eco", 1980, "9780544176560", 536, "it"},
}

var libraries = map[string][]string{
	"Dystopian Classics": {"1984", "Animal Farm", "Brave New World"},
	"Fantasy Shelf":      {"The Hobbit", "The Fellowship of the Ring", "A Wizard of Earthsea"},
}

func main() {
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		dir = os.Getenv("STACKS_DATA_DIR")
	}
	if dir == "" {
		dir = os.ExpandEnv("$HOME/stacks")
	}

	dbPath := filepath.Join(dir, "catalog.db")
	fmt.Printf("Opening catalog at: %s\n", dbPath)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	st, err := sqlite.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	byTitle := make(map[string]string, len(catalog))
	created := 0
	for _, sb := range catalog {
		if existing, err := st.GetBookByISBN(ctx, sb.isbn); err == nil {
			byTitle[sb.title] = existing.ID
			continue
		}

		author, err := st.GetOrCreateAuthorByName(ctx, sb.author)
		if err != nil {
			log.Fatalf("Failed to resolve author %q: %v", sb.author, err)
		}

		bookID, err := id.Generate("book")
		if err != nil {
			log.Fatalf("Failed to generate book ID: %v", err)
		}

		book := &domain.Book{
			Title:           sb.title,
			AuthorID:        author.ID,
			PublicationYear: sb.year,
			ISBN:            sb.isbn,
			Pages:           sb.pages,
			Language:        sb.language,
		}
		book.ID = bookID
		book.InitTimestamps()

		if err := st.CreateBook(ctx, book); err != nil {
			log.Fatalf("Failed to create book %q: %v", sb.title, err)
		}
		byTitle[sb.title] = book.ID
		created++
	}
	fmt.Printf("Books: %d created, %d already present\n", created, len(catalog)-created)

	if !*withLibraries {
		return
	}

	for name, titles := range libraries {
		libID, err := id.Generate("lib")
		if err != nil {
			log.Fatalf("Failed to generate library ID: %v", err)
		}

		lib := &domain.Library{Name: name}
		lib.ID = libID
		lib.InitTimestamps()

		if err := st.CreateLibrary(ctx, lib); err != nil {
			// Already seeded on a previous run.
			fmt.Printf("Library %q: %v\n", name, err)
			continue
		}

		for _, title := range titles {
			if err := st.AddBookToLibrary(ctx, lib.ID, byTitle[title]); err != nil {
				log.Fatalf("Failed to shelve %q in %q: %v", title, name, err)
			}
		}
		fmt.Printf("Library %q: %d books shelved\n", name, len(titles))
	}
}
