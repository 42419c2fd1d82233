package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stacksapp/stacks-server/internal/domain"
	"github.com/stacksapp/stacks-server/internal/store"
)

func TestInitializeInstance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Before initialization there is nothing to get.
	_, err := s.GetInstance(ctx)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before init, got %v", err)
	}

	instance, err := s.InitializeInstance(ctx, "My Stacks", "1.0.0")
	if err != nil {
		t.Fatalf("InitializeInstance: %v", err)
	}
	if instance.ID == "" {
		t.Fatal("expected generated instance ID")
	}
	if instance.Name != "My Stacks" {
		t.Errorf("Name: got %q, want %q", instance.Name, "My Stacks")
	}
	if instance.Version != "1.0.0" {
		t.Errorf("Version: got %q, want %q", instance.Version, "1.0.0")
	}
	if instance.HasRootUser {
		t.Error("HasRootUser: expected false on fresh instance")
	}

	// A second call finds the existing record with the same identity.
	again, err := s.InitializeInstance(ctx, "Ignored Name", "1.0.0")
	if err != nil {
		t.Fatalf("InitializeInstance again: %v", err)
	}
	if again.ID != instance.ID {
		t.Errorf("ID changed: got %q, want %q", again.ID, instance.ID)
	}
	if again.Name != "My Stacks" {
		t.Errorf("Name: got %q, want %q", again.Name, "My Stacks")
	}

	// A version bump is persisted.
	upgraded, err := s.InitializeInstance(ctx, "Ignored Name", "1.1.0")
	if err != nil {
		t.Fatalf("InitializeInstance upgrade: %v", err)
	}
	if upgraded.Version != "1.1.0" {
		t.Errorf("Version after upgrade: got %q, want %q", upgraded.Version, "1.1.0")
	}
	got, err := s.GetInstance(ctx)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if got.Version != "1.1.0" {
		t.Errorf("persisted Version: got %q, want %q", got.Version, "1.1.0")
	}
}

func TestUpdateInstance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Updating before initialization fails.
	err := s.UpdateInstance(ctx, &domain.Instance{ID: "nope"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	instance, err := s.InitializeInstance(ctx, "My Stacks", "1.0.0")
	if err != nil {
		t.Fatalf("InitializeInstance: %v", err)
	}

	instance.Name = "Renamed Stacks"
	instance.HasRootUser = true
	if err := s.UpdateInstance(ctx, instance); err != nil {
		t.Fatalf("UpdateInstance: %v", err)
	}

	got, err := s.GetInstance(ctx)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if got.Name != "Renamed Stacks" {
		t.Errorf("Name: got %q, want %q", got.Name, "Renamed Stacks")
	}
	if !got.HasRootUser {
		t.Error("HasRootUser: expected true")
	}
}

func TestGetInstance_PolicyVersion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InitializeInstance(ctx, "My Stacks", "1.0.0"); err != nil {
		t.Fatalf("InitializeInstance: %v", err)
	}

	got, err := s.GetInstance(ctx)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if got.PolicyVersion != 0 {
		t.Errorf("PolicyVersion before apply: got %d, want 0", got.PolicyVersion)
	}

	err = s.ApplyPolicy(ctx, 3, []domain.Group{
		{Name: "Viewers", Slug: "viewers", Capabilities: []domain.Capability{domain.CapabilityView}},
	})
	if err != nil {
		t.Fatalf("ApplyPolicy: %v", err)
	}

	got, err = s.GetInstance(ctx)
	if err != nil {
		t.Fatalf("GetInstance after apply: %v", err)
	}
	if got.PolicyVersion != 3 {
		t.Errorf("PolicyVersion: got %d, want 3", got.PolicyVersion)
	}
}

func TestInstanceKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetInstanceKey(ctx, "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetInstanceKey(ctx, "greeting", "hello"); err != nil {
		t.Fatalf("SetInstanceKey: %v", err)
	}
	value, err := s.GetInstanceKey(ctx, "greeting")
	if err != nil {
		t.Fatalf("GetInstanceKey: %v", err)
	}
	if value != "hello" {
		t.Errorf("value: got %q, want %q", value, "hello")
	}

	// Replacing overwrites.
	if err := s.SetInstanceKey(ctx, "greeting", "goodbye"); err != nil {
		t.Fatalf("SetInstanceKey replace: %v", err)
	}
	value, err = s.GetInstanceKey(ctx, "greeting")
	if err != nil {
		t.Fatalf("GetInstanceKey after replace: %v", err)
	}
	if value != "goodbye" {
		t.Errorf("value: got %q, want %q", value, "goodbye")
	}
}
