package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThatCatDev/ggufdeck/internal/logutil"
)

// spawn starts name as the child of a llamaServer pointed at baseURL.
func spawn(t *testing.T, baseURL, name string, args ...string) *llamaServer {
	t.Helper()
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start %s: %v", name, err)
	}
	s := &llamaServer{
		cmd:     cmd,
		label:   "test",
		baseURL: baseURL,
		done:    make(chan struct{}),
		log:     logrus.NewEntry(logutil.Discard()),
	}
	go func() {
		cmd.Wait()
		close(s.done)
	}()
	t.Cleanup(func() { s.kill() })
	return s
}

// idle is a llamaServer with no child that never exits.
func idle(baseURL string) *llamaServer {
	return &llamaServer{
		cmd:     &exec.Cmd{},
		label:   "test",
		baseURL: baseURL,
		done:    make(chan struct{}),
		log:     logrus.NewEntry(logutil.Discard()),
	}
}

func statusServer(t *testing.T, healthyAfter int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if hits.Add(1) <= healthyAfter {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestFreePort(t *testing.T) {
	port, err := freePort()
	require.NoError(t, err)
	assert.Greater(t, port, 0)
	assert.LessOrEqual(t, port, 65535)
}

func TestFindBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	t.Run("missing", func(t *testing.T) {
		_, err := findBinary(t.TempDir())
		assert.True(t, errors.Is(err, ErrBinaryNotFound))
	})

	t.Run("in bin dir", func(t *testing.T) {
		dir := t.TempDir()
		want := filepath.Join(dir, binaryName())
		require.NoError(t, os.WriteFile(want, []byte("#!/bin/sh\n"), 0755))
		got, err := findBinary(dir)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("directory with the binary name", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(dir, binaryName()), 0755))
		_, err := findBinary(dir)
		assert.True(t, errors.Is(err, ErrBinaryNotFound))
	})
}

func TestStartServerMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := startServer(context.Background(), "/m/x.gguf", Options{BinDir: t.TempDir()}, logutil.Discard())
	assert.True(t, errors.Is(err, ErrBinaryNotFound))
}

func TestStartServerExitsDuringStartup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a shell script binary")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\necho \"booting $*\"\nexit 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, binaryName()), []byte(script), 0755))

	_, err := startServer(context.Background(), "/m/x.gguf", Options{BinDir: dir, HealthTimeout: 10 * time.Second}, logutil.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited during startup (code 3)")
}

func TestAwaitReadyAfterRetries(t *testing.T) {
	srv, hits := statusServer(t, 2)
	s := idle(srv.URL)

	require.NoError(t, s.awaitReady(context.Background(), 10*time.Second))
	assert.GreaterOrEqual(t, hits.Load(), int32(3))
}

func TestAwaitReadyTimeout(t *testing.T) {
	srv, _ := statusServer(t, 1<<30)
	s := idle(srv.URL)

	err := s.awaitReady(context.Background(), time.Second)
	assert.True(t, errors.Is(err, errReadyTimeout), "got %v", err)
}

func TestAwaitReadyCallerCancelled(t *testing.T) {
	srv, _ := statusServer(t, 1<<30)
	s := idle(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.awaitReady(ctx, 30*time.Second)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestAwaitReadyProcessGone(t *testing.T) {
	s := idle("http://127.0.0.1:1")
	close(s.done)

	err := s.awaitReady(context.Background(), 10*time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited during startup")
}

func TestPing(t *testing.T) {
	ok, _ := statusServer(t, 0)
	assert.NoError(t, idle(ok.URL).ping(context.Background()))

	down, _ := statusServer(t, 1<<30)
	assert.Error(t, idle(down.URL).ping(context.Background()))
}

func TestStopTerminatesChild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no sleep binary")
	}
	s := spawn(t, "", "sleep", "60")

	require.NoError(t, s.stop())
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		t.Fatal("child still running after stop")
	}
	assert.True(t, s.stopping.Load())
	assert.NotEqual(t, -1, s.exitCode())
}

func TestStopAfterExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no true binary")
	}
	s := spawn(t, "", "true")
	<-s.done

	assert.NoError(t, s.stop())
	assert.Equal(t, 0, s.exitCode())
}

func TestStopWithoutProcess(t *testing.T) {
	assert.NoError(t, idle("").stop())
}
