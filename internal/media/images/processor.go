package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	_ "image/gif"  // Register GIF decoder
	_ "image/png"  // Register PNG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder

	"github.com/stacksapp/stacks-server/internal/domain"
)

// ErrUnsupportedImage is returned when uploaded data doesn't decode as
// JPEG, PNG, GIF or WebP.
var ErrUnsupportedImage = errors.New("unsupported image format")

// maxCoverDimension bounds stored covers. Anything larger is scaled
// down; a book cover never needs more pixels than this.
const maxCoverDimension = 1600

// jpegQuality for re-encoded covers.
const jpegQuality = 85

// Processor validates and stores uploaded cover images.
type Processor struct {
	storage *Storage
	logger  *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(storage *Storage, logger *slog.Logger) *Processor {
	return &Processor{
		storage: storage,
		logger:  logger,
	}
}

// Process decodes an uploaded image, normalizes it to a bounded JPEG,
// stores it, and returns the cover metadata to persist on the book.
// Whatever format came in, one .jpg per book goes out.
func (p *Processor) Process(ctx context.Context, bookID string, data []byte) (*domain.CoverInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	img = scaleDown(img, maxCoverDimension)
	bounds := img.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode cover: %w", err)
	}

	if err := p.storage.Save(bookID, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("save cover: %w", err)
	}

	hash, err := ComputeBlurHash(img)
	if err != nil {
		// A cover without a placeholder is still a cover
		p.logger.Warn("blurhash computation failed",
			"book_id", bookID,
			"error", err,
		)
		hash = ""
	}

	p.logger.Debug("stored cover",
		"book_id", bookID,
		"original_format", format,
		"size", buf.Len(),
		"width", bounds.Dx(),
		"height", bounds.Dy(),
	)

	return &domain.CoverInfo{
		Path:     p.storage.Path(bookID),
		Format:   "jpeg",
		Size:     int64(buf.Len()),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		BlurHash: hash,
	}, nil
}

// Remove deletes a book's stored cover. Missing covers are not an error.
func (p *Processor) Remove(bookID string) error {
	return p.storage.Delete(bookID)
}
