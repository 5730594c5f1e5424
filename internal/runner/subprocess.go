package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBinaryNotFound is returned when llama-server is in neither BinDir nor PATH.
var ErrBinaryNotFound = errors.New("llama-server binary not found")

var errReadyTimeout = errors.New("timed out waiting for /health")

const (
	defaultHealthTimeout = 120 * time.Second
	stopGrace            = 5 * time.Second
	pollEvery            = 500 * time.Millisecond
	noteEvery            = 5 * time.Second
)

var pingClient = &http.Client{Timeout: 2 * time.Second}

// llamaServer is one running llama-server child.
type llamaServer struct {
	cmd      *exec.Cmd
	label    string
	port     int
	baseURL  string
	done     chan struct{}
	stopping atomic.Bool
	log      *logrus.Entry
}

func binaryName() string {
	if runtime.GOOS == "windows" {
		return "llama-server.exe"
	}
	return "llama-server"
}

func findBinary(binDir string) (string, error) {
	name := binaryName()
	if binDir != "" {
		p := filepath.Join(binDir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("%w (looked in %q and PATH)", ErrBinaryNotFound, binDir)
}

// freePort asks the kernel for an unused loopback port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("pick port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// startServer launches llama-server for modelPath and returns once it
// answers /health. ctx bounds the wait, not the process.
func startServer(ctx context.Context, modelPath string, opts Options, logger *logrus.Logger) (*llamaServer, error) {
	bin, err := findBinary(opts.BinDir)
	if err != nil {
		return nil, err
	}
	port := opts.Port
	if port == 0 {
		if port, err = freePort(); err != nil {
			return nil, err
		}
	}
	label := "llama-server"
	if opts.Embedding {
		label = "embedding"
	}

	cmd := exec.Command(bin, buildArgs(modelPath, opts, port)...)
	cmd.Env = os.Environ()
	if opts.BinDir != "" {
		cmd.Env = append(cmd.Env, "LD_LIBRARY_PATH="+opts.BinDir)
	}
	cmd.WaitDelay = stopGrace

	log := logger.WithField("proc", label)
	var out *io.PipeWriter
	if !opts.Quiet {
		out = log.WriterLevel(logrus.DebugLevel)
		cmd.Stdout = out
		cmd.Stderr = out
	}

	log.WithFields(logrus.Fields{"bin": bin, "port": port}).Info("starting")
	if err := cmd.Start(); err != nil {
		if out != nil {
			out.Close()
		}
		return nil, fmt.Errorf("start %s: %w", label, err)
	}

	s := &llamaServer{
		cmd:     cmd,
		label:   label,
		port:    port,
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		done:    make(chan struct{}),
		log:     log,
	}
	go func() {
		cmd.Wait()
		if out != nil {
			out.Close()
		}
		close(s.done)
	}()

	timeout := opts.HealthTimeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	if err := s.awaitReady(ctx, timeout); err != nil {
		s.stop()
		return nil, fmt.Errorf("%s not ready: %w", label, err)
	}
	log.WithField("port", port).Info("ready")
	return s, nil
}

func (s *llamaServer) awaitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeoutCause(ctx, timeout, errReadyTimeout)
	defer cancel()

	poll := time.NewTicker(pollEvery)
	defer poll.Stop()
	start := time.Now()
	next := start.Add(noteEvery)

	for {
		select {
		case <-s.done:
			return fmt.Errorf("exited during startup (code %d)", s.exitCode())
		case <-ctx.Done():
			return context.Cause(ctx)
		case now := <-poll.C:
			if s.ping(ctx) == nil {
				return nil
			}
			if now.After(next) {
				s.log.Infof("still loading model (%s)", now.Sub(start).Round(time.Second))
				next = now.Add(noteEvery)
			}
		}
	}
}

func (s *llamaServer) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := pingClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("/health: %s", resp.Status)
	}
	return nil
}

// exitCode is -1 until the process has been reaped.
func (s *llamaServer) exitCode() int {
	select {
	case <-s.done:
	default:
		return -1
	}
	if s.cmd.ProcessState == nil {
		return -1
	}
	return s.cmd.ProcessState.ExitCode()
}

// stop sends SIGTERM and kills the process if it is still alive after
// stopGrace. Where SIGTERM cannot be delivered it kills right away.
func (s *llamaServer) stop() error {
	s.stopping.Store(true)
	if s.cmd.Process == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	default:
	}

	if err := s.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.log.WithError(err).Debug("SIGTERM not delivered")
		return s.kill()
	}
	select {
	case <-s.done:
		return nil
	case <-time.After(stopGrace):
		s.log.Warnf("pid %d ignored SIGTERM, killing", s.cmd.Process.Pid)
		return s.kill()
	}
}

func (s *llamaServer) kill() error {
	if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s: %w", s.label, err)
	}
	<-s.done
	return nil
}
