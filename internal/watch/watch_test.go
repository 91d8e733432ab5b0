package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhac/nrpc/internal/logging"
)

func TestIsProto(t *testing.T) {
	assert.True(t, IsProto("a/b/greeter.proto"))
	assert.False(t, IsProto("a/b/greeter_nrpc.pb.go"))
	assert.False(t, IsProto("a/b/.proto.swp"))
}

func TestWatcher_RerunsOnProtoChanges(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)

	w := New([]string{dir}, 20*time.Millisecond, logging.NewNopLogger())
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			runs.Add(1)
			return nil
		}, ready)
	}()
	<-ready

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "x.txt"), []byte("ignored"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "a.proto"), []byte("syntax = \"proto3\";"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.proto"), []byte("syntax = \"proto3\";"), 0644))

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "missing")}, time.Millisecond, logging.NewNopLogger())
	err := w.Run(context.Background(), func(context.Context) error { return nil }, nil)
	assert.Error(t, err)
}
