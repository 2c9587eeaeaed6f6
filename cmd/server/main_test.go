package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/mysphere/internal/config"
	"github.com/mcoot/mysphere/internal/factory"
	"github.com/mcoot/mysphere/internal/testutil"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	return cfg
}

func TestRunClosesAppWhenServerFails(t *testing.T) {
	mr := miniredis.RunT(t)

	// Hold the port so the HTTP server cannot bind
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := loadConfig(t)
	cfg.Server.Port = ln.Addr().(*net.TCPAddr).Port
	cfg.Storage.Type = factory.StorageTypeRedis
	cfg.Storage.RedisURL = "redis://" + mr.Addr()

	err = run(context.Background(), cfg, testutil.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")

	assert.Eventually(t, func() bool {
		return mr.CurrentConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunReturnsFactoryError(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Storage.Type = "bogus"

	err := run(context.Background(), cfg, testutil.NopLogger())
	assert.ErrorContains(t, err, "create application")
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	cfg := loadConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, testutil.NopLogger()) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
