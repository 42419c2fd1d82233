package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/store"
)

// Instance key-value table keys. The config blob and the policy version
// live under separate keys so applying a policy never rewrites the
// config record.
const (
	instanceKeyConfig        = "server:config"
	instanceKeyPolicyVersion = "policy:version"
)

// GetInstanceKey retrieves a value from the instance key-value table.
// Returns store.ErrNotFound if the key does not exist.
func (s *Store) GetInstanceKey(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM instance WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetInstanceKey sets a value in the instance key-value table.
// Creates the key if it does not exist, or replaces the existing value.
func (s *Store) SetInstanceKey(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO instance (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetInstance retrieves the singleton server instance configuration.
// Returns store.ErrNotFound if the server has not been initialized.
func (s *Store) GetInstance(ctx context.Context) (*domain.Instance, error) {
	value, err := s.GetInstanceKey(ctx, instanceKeyConfig)
	if err != nil {
		return nil, err
	}

	var instance domain.Instance
	if err := json.Unmarshal([]byte(value), &instance); err != nil {
		return nil, fmt.Errorf("decode instance config: %w", err)
	}

	instance.PolicyVersion, err = s.policyVersion(ctx)
	if err != nil {
		return nil, err
	}
	return &instance, nil
}

// InitializeInstance ensures a server instance configuration exists,
// creating one on first boot. The stored version follows the running
// binary so clients can see what they are talking to.
func (s *Store) InitializeInstance(ctx context.Context, name, version string) (*domain.Instance, error) {
	instance, err := s.GetInstance(ctx)
	if err == nil {
		if instance.Version != version {
			instance.Version = version
			instance.UpdatedAt = time.Now()
			if err := s.setInstanceConfig(ctx, instance); err != nil {
				return nil, err
			}
		}
		if s.logger != nil {
			s.logger.Info("server instance configuration found",
				"id", instance.ID,
				"has_root_user", instance.HasRootUser,
			)
		}
		return instance, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("initialize instance: %w", err)
	}

	now := time.Now()
	instance = &domain.Instance{
		ID:          uuid.New().String(),
		Name:        name,
		Version:     version,
		HasRootUser: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.setInstanceConfig(ctx, instance); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("server instance configuration created",
			"id", instance.ID,
			"name", instance.Name,
		)
	}
	return instance, nil
}

// UpdateInstance updates the server instance configuration.
// Returns store.ErrNotFound if the server has not been initialized.
func (s *Store) UpdateInstance(ctx context.Context, instance *domain.Instance) error {
	if _, err := s.GetInstance(ctx); err != nil {
		return err
	}

	instance.UpdatedAt = time.Now()
	return s.setInstanceConfig(ctx, instance)
}

func (s *Store) setInstanceConfig(ctx context.Context, instance *domain.Instance) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("encode instance config: %w", err)
	}
	return s.SetInstanceKey(ctx, instanceKeyConfig, string(data))
}

// policyVersion reads the applied policy version, zero when no policy
// has been applied yet.
func (s *Store) policyVersion(ctx context.Context) (int, error) {
	value, err := s.GetInstanceKey(ctx, instanceKeyPolicyVersion)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse policy version: %w", err)
	}
	return version, nil
}
