package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksapp/stacks-server/internal/logger"
)

// makeTestImage builds a gradient image so blurhash has something to
// chew on.
func makeTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / width),
				G: uint8(y * 255 / height),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// setupTestProcessor creates a Processor with a temporary storage.
func setupTestProcessor(t *testing.T) *Processor {
	t.Helper()
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	log := logger.New(logger.Config{Level: slog.LevelDebug})
	return NewProcessor(storage, log.Logger)
}

func TestProcessor_Process(t *testing.T) {
	t.Run("stores uploaded PNG as JPEG", func(t *testing.T) {
		processor := setupTestProcessor(t)
		data := encodePNG(t, makeTestImage(300, 200))

		info, err := processor.Process(context.Background(), "book-123", data)
		require.NoError(t, err)
		require.NotNil(t, info)

		assert.Equal(t, "jpeg", info.Format)
		assert.Equal(t, 300, info.Width)
		assert.Equal(t, 200, info.Height)
		assert.Greater(t, info.Size, int64(0))
		assert.NotEmpty(t, info.BlurHash)
		assert.Equal(t, processor.storage.Path("book-123"), info.Path)

		// The stored bytes must decode as JPEG regardless of input format.
		stored, err := processor.storage.Get("book-123")
		require.NoError(t, err)
		decoded, err := jpeg.Decode(bytes.NewReader(stored))
		require.NoError(t, err)
		assert.Equal(t, 300, decoded.Bounds().Dx())
	})

	t.Run("scales down oversized covers", func(t *testing.T) {
		processor := setupTestProcessor(t)
		data := encodePNG(t, makeTestImage(maxCoverDimension+200, 900))

		info, err := processor.Process(context.Background(), "book-big", data)
		require.NoError(t, err)

		assert.Equal(t, maxCoverDimension, info.Width)
		assert.Less(t, info.Height, 900)
	})

	t.Run("rejects data that is not an image", func(t *testing.T) {
		processor := setupTestProcessor(t)

		info, err := processor.Process(context.Background(), "book-bad", []byte("not an image"))
		assert.Error(t, err)
		assert.Nil(t, info)
		assert.ErrorIs(t, err, ErrUnsupportedImage)

		assert.False(t, processor.storage.Exists("book-bad"))
	})

	t.Run("replaces an existing cover", func(t *testing.T) {
		processor := setupTestProcessor(t)
		ctx := context.Background()

		first, err := processor.Process(ctx, "book-123", encodePNG(t, makeTestImage(100, 100)))
		require.NoError(t, err)

		second, err := processor.Process(ctx, "book-123", encodePNG(t, makeTestImage(200, 100)))
		require.NoError(t, err)

		assert.NotEqual(t, first.Width, second.Width)

		stored, err := processor.storage.Get("book-123")
		require.NoError(t, err)
		decoded, err := jpeg.Decode(bytes.NewReader(stored))
		require.NoError(t, err)
		assert.Equal(t, 200, decoded.Bounds().Dx())
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		processor := setupTestProcessor(t)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		info, err := processor.Process(ctx, "book-cancelled", encodePNG(t, makeTestImage(100, 100)))
		assert.Error(t, err)
		assert.Nil(t, info)
	})
}

func TestProcessor_Remove(t *testing.T) {
	t.Run("removes a stored cover", func(t *testing.T) {
		processor := setupTestProcessor(t)

		_, err := processor.Process(context.Background(), "book-123", encodePNG(t, makeTestImage(100, 100)))
		require.NoError(t, err)
		require.True(t, processor.storage.Exists("book-123"))

		err = processor.Remove("book-123")
		require.NoError(t, err)
		assert.False(t, processor.storage.Exists("book-123"))
	})

	t.Run("succeeds when no cover exists", func(t *testing.T) {
		processor := setupTestProcessor(t)

		err := processor.Remove("book-never-uploaded")
		assert.NoError(t, err)
	})
}

func TestComputeBlurHash(t *testing.T) {
	t.Run("produces a stable non-empty hash", func(t *testing.T) {
		img := makeTestImage(120, 80)

		hash1, err := ComputeBlurHash(img)
		require.NoError(t, err)
		assert.NotEmpty(t, hash1)

		hash2, err := ComputeBlurHash(img)
		require.NoError(t, err)
		assert.Equal(t, hash1, hash2)
	})

	t.Run("different images produce different hashes", func(t *testing.T) {
		hash1, err := ComputeBlurHash(makeTestImage(120, 80))
		require.NoError(t, err)

		solid := image.NewRGBA(image.Rect(0, 0, 120, 80))
		for y := 0; y < 80; y++ {
			for x := 0; x < 120; x++ {
				solid.Set(x, y, color.RGBA{R: 255, A: 255})
			}
		}
		hash2, err := ComputeBlurHash(solid)
		require.NoError(t, err)

		assert.NotEqual(t, hash1, hash2)
	})
}

func TestScaleDown(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		maxSize    int
		wantWidth  int
		wantHeight int
	}{
		{"landscape above limit", 100, 50, 64, 64, 32},
		{"portrait above limit", 50, 100, 64, 32, 64},
		{"square above limit", 100, 100, 64, 64, 64},
		{"already small enough", 40, 40, 64, 40, 40},
		{"extreme aspect ratio keeps a row", 1000, 2, 64, 64, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scaleDown(makeTestImage(tt.width, tt.height), tt.maxSize)
			assert.Equal(t, tt.wantWidth, got.Bounds().Dx())
			assert.Equal(t, tt.wantHeight, got.Bounds().Dy())
		})
	}
}
