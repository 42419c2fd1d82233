package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacksapp/stacks-server/internal/store"
)

// Manager resolves the active policy document and applies it to the
// store. Apply is transactional and idempotent, so it is safe to run at
// every startup, from the admin endpoint, and on every file change.
type Manager struct {
	store  store.Store
	logger *slog.Logger
	path   string // optional file override; empty means built-in default
}

// NewManager creates a policy manager. path may be empty, in which case
// the built-in default document is active.
func NewManager(st store.Store, logger *slog.Logger, path string) *Manager {
	return &Manager{
		store:  st,
		logger: logger,
		path:   path,
	}
}

// Active returns the document the server should be enforcing: the file at
// the configured path when one is set, the built-in default otherwise.
func (m *Manager) Active() (Document, error) {
	if m.path == "" {
		return Default(), nil
	}
	return Load(m.path)
}

// Apply writes one document to the store in a single transaction.
func (m *Manager) Apply(ctx context.Context, doc Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid policy document: %w", err)
	}

	if err := m.store.ApplyPolicy(ctx, doc.Version, doc.ToGroups()); err != nil {
		return fmt.Errorf("apply policy: %w", err)
	}

	m.logger.Info("policy applied", "version", doc.Version, "groups", len(doc.Groups))
	return nil
}

// ApplyActive loads the active document and applies it.
func (m *Manager) ApplyActive(ctx context.Context) error {
	doc, err := m.Active()
	if err != nil {
		return err
	}
	return m.Apply(ctx, doc)
}
