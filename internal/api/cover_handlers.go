package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/dto"
	"github.com/stacksapp/stacks-server/internal/errors"
)

func (s *Server) registerCoverRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "uploadBookCover",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{id}/cover",
		Summary:     "Upload book cover",
		Description: "Stores a cover image for the book. JPEG, PNG, and WebP are accepted; a blur hash placeholder is computed on upload.",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUploadCover)

	// Cover bytes bypass huma so the response can stream with cache
	// headers instead of being JSON-wrapped.
	s.router.Get("/api/v1/books/{id}/cover", s.handleGetCover)
}

// UploadCoverInput carries the raw image bytes for a cover upload.
type UploadCoverInput struct {
	ID          string `path:"id" doc:"Book ID"`
	ContentType string `header:"Content-Type" doc:"Image MIME type"`
	RawBody     []byte
}

func (s *Server) handleUploadCover(ctx context.Context, input *UploadCoverInput) (*BookOutput, error) {
	if _, err := s.requireCapability(ctx, domain.CapabilityEdit); err != nil {
		return nil, err
	}

	if len(input.RawBody) == 0 {
		return nil, errors.ValidationField("Validation failed", "cover", "image data is required")
	}

	book, err := s.services.Book.UploadCover(ctx, input.ID, input.RawBody)
	if err != nil {
		return nil, err
	}

	return &BookOutput{
		Body: Envelope[*dto.Book]{Message: "Cover uploaded successfully", Data: book},
	}, nil
}

func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")

	data, hash, err := s.services.Book.Cover(r.Context(), bookID)
	if err != nil {
		writeErrorJSON(w, err)
		return
	}

	etag := `"` + hash + `"`
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
