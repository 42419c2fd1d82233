package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/stacksapp/stacks-server/internal/config"
	"github.com/stacksapp/stacks-server/internal/logger"
	"github.com/stacksapp/stacks-server/internal/policy"
)

// PolicyHandle wraps the policy manager with its watcher lifecycle.
type PolicyHandle struct {
	*policy.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *PolicyHandle) Shutdown() error {
	if h.cancel != nil {
		h.cancel()
	}
	return nil
}

// ProvidePolicyManager provides the capability policy manager. The
// active policy document is applied to the group tables on startup, so
// a fresh database always has the built-in groups before the first
// request arrives.
func ProvidePolicyManager(i do.Injector) (*PolicyHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	manager := policy.NewManager(storeHandle.Store, log.Logger, cfg.Policy.Path)

	if err := manager.ApplyActive(context.Background()); err != nil {
		return nil, err
	}
	log.Info("Capability policy applied", "policy_file", cfg.Policy.Path)

	handle := &PolicyHandle{Manager: manager}

	if cfg.Policy.Path != "" && cfg.Policy.Watch {
		ctx, cancel := context.WithCancel(context.Background())
		handle.cancel = cancel
		go func() {
			if err := manager.Watch(ctx); err != nil && ctx.Err() == nil {
				log.Warn("Policy file watcher stopped", "error", err)
			}
		}()
		log.Info("Watching policy file for changes", "path", cfg.Policy.Path)
	}

	return handle, nil
}
