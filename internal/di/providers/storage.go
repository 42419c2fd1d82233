package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/stacksapp/stacks-server/internal/config"
	"github.com/stacksapp/stacks-server/internal/logger"
	"github.com/stacksapp/stacks-server/internal/media/images"
)

// ProvideCoverStorage provides the cover image file store.
func ProvideCoverStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	basePath := filepath.Join(cfg.Data.BaseDir, "covers")
	storage, err := images.NewStorage(basePath)
	if err != nil {
		return nil, err
	}

	log.Info("Cover storage initialized", "path", basePath)

	return storage, nil
}

// ProvideImageProcessor provides the cover image processor.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	storage := do.MustInvoke[*images.Storage](i)
	log := do.MustInvoke[*logger.Logger](i)

	return images.NewProcessor(storage, log.Logger), nil
}
