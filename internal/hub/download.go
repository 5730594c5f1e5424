package hub

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Commander runs an external program and returns its combined output.
type Commander interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecCommander runs programs with os/exec.
type ExecCommander struct{}

func (ExecCommander) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RepoName is the last path segment of a model id, used as the clone
// directory name.
func RepoName(modelID string) string {
	return modelID[strings.LastIndex(modelID, "/")+1:]
}

// Download clones the model repository into destDir/<repo name> with git
// and git-lfs. It returns the absolute clone path. A failed clone is left
// as is.
func (c *Client) Download(ctx context.Context, modelID, destDir string) (string, error) {
	if err := ValidateModelID(modelID); err != nil {
		return "", err
	}
	// git runs inside destDir, so a relative clone target would nest.
	destDir, err := filepath.Abs(destDir)
	if err != nil {
		return "", &DownloadError{ModelID: modelID, Op: "download", Err: fmt.Errorf("resolve destination: %w", err)}
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", &DownloadError{ModelID: modelID, Op: "download", Err: fmt.Errorf("create destination: %w", err)}
	}

	log := c.log.WithField("model", modelID)

	log.Debug("git lfs install")
	if out, err := c.cmd.Run(ctx, destDir, c.gitBinary, "lfs", "install"); err != nil {
		return "", &DownloadError{ModelID: modelID, Op: "git lfs install", Output: string(out), Err: err}
	}

	clonePath := filepath.Join(destDir, RepoName(modelID))
	repoURL := c.endpoint + "/" + modelID

	log.WithField("dest", clonePath).Info("cloning model repository")
	if out, err := c.cmd.Run(ctx, destDir, c.gitBinary, "clone", repoURL, clonePath); err != nil {
		return "", &DownloadError{ModelID: modelID, Op: "git clone", Output: string(out), Err: err}
	}

	log.Info("model downloaded")
	return clonePath, nil
}
