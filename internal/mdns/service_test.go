package mdns

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacksapp/stacks-server/internal/domain"
)

func newTestService() (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewService(logger), &buf
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "_stacks._tcp", ServiceType)
	assert.Equal(t, "v1", APIVersion)
}

func TestNewService(t *testing.T) {
	service, _ := newTestService()

	require.NotNil(t, service)
	assert.Nil(t, service.server, "server should be nil before Start")
}

func TestServiceStop(t *testing.T) {
	t.Run("stop when not started is safe", func(t *testing.T) {
		service, _ := newTestService()

		service.Stop()
		assert.Nil(t, service.server)
	})

	t.Run("stop can be called multiple times", func(t *testing.T) {
		service, _ := newTestService()

		service.Stop()
		service.Stop()
		service.Stop()
	})
}

func TestServiceStart(t *testing.T) {
	// These tests tolerate environments without multicast support
	// (containers, CI without network access)

	t.Run("start with valid instance succeeds", func(t *testing.T) {
		service, buf := newTestService()

		instance := &domain.Instance{
			ID:      "instance-test-123",
			Name:    "Test Stacks",
			Version: "1.0.0",
		}

		err := service.Start(instance, 8080)
		if err != nil {
			t.Logf("mDNS start failed (expected in some environments): %v", err)
			return
		}

		assert.NotNil(t, service.server)
		assert.Contains(t, buf.String(), "mDNS advertisement started")

		service.Stop()
	})

	t.Run("start with local URL includes it in TXT records", func(t *testing.T) {
		service, _ := newTestService()

		instance := &domain.Instance{
			ID:       "instance-test-456",
			Name:     "Stacks With URL",
			LocalURL: "http://stacks.local:8080",
		}

		err := service.Start(instance, 8080)
		if err != nil {
			t.Logf("mDNS start failed (expected in some environments): %v", err)
			return
		}

		assert.NotNil(t, service.server)
		service.Stop()
	})

	t.Run("start can restart existing server", func(t *testing.T) {
		service, _ := newTestService()

		instance := &domain.Instance{
			ID:   "instance-restart",
			Name: "Restart Test",
		}

		err1 := service.Start(instance, 8080)
		if err1 != nil {
			t.Skipf("mDNS not available in this environment: %v", err1)
		}

		err2 := service.Start(instance, 8081)
		require.NoError(t, err2)
		assert.NotNil(t, service.server)

		service.Stop()
	})
}

func TestServiceLifecycle(t *testing.T) {
	service, buf := newTestService()

	instance := &domain.Instance{
		ID:   "instance-lifecycle",
		Name: "Lifecycle Test",
	}

	err := service.Start(instance, 8080)
	if err != nil {
		t.Skipf("mDNS not available: %v", err)
	}
	assert.NotNil(t, service.server)

	service.Stop()
	assert.Nil(t, service.server)
	assert.Contains(t, buf.String(), "mDNS advertisement stopped")
}

func TestServiceConcurrency(t *testing.T) {
	service, _ := newTestService()

	instance := &domain.Instance{
		ID:   "instance-concurrent",
		Name: "Concurrent Test",
	}

	err := service.Start(instance, 8080)
	if err != nil {
		t.Skipf("mDNS not available: %v", err)
	}

	done := make(chan struct{})
	for range 10 {
		go func() {
			service.Stop()
			done <- struct{}{}
		}()
	}

	for range 10 {
		<-done
	}

	assert.Nil(t, service.server)
}
