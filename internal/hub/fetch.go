package hub

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Progress is called periodically during FetchFile.
type Progress func(downloaded, total int64)

// FileURL is the direct download URL of one repository file.
func (c *Client) FileURL(modelID, file string) string {
	return fmt.Sprintf("%s/%s/resolve/main/%s", c.endpoint, modelID, file)
}

// FetchFile downloads one GGUF file of a repository into destDir, resuming
// from a previous ".partial" file when one exists.
func (c *Client) FetchFile(ctx context.Context, modelID, file, destDir string, progress Progress) (string, error) {
	if err := ValidateModelID(modelID); err != nil {
		return "", err
	}
	if !strings.HasSuffix(strings.ToLower(file), ".gguf") {
		return "", &DownloadError{ModelID: modelID, Op: "fetch", Err: fmt.Errorf("not a .gguf file: %s", file)}
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", &DownloadError{ModelID: modelID, Op: "fetch", Err: fmt.Errorf("create destination: %w", err)}
	}

	destPath := filepath.Join(destDir, filepath.Base(file))
	partialPath := destPath + ".partial"

	var startByte int64
	if info, err := os.Stat(partialPath); err == nil {
		startByte = info.Size()
	}

	fail := func(err error) (string, error) {
		return "", &DownloadError{ModelID: modelID, Op: "fetch " + file, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.FileURL(modelID, file), nil)
	if err != nil {
		return fail(err)
	}
	if startByte > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startByte))
	}
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// Large files outlive the catalog client's timeout.
	hc := *c.httpClient
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	switch resp.StatusCode {
	case http.StatusPartialContent:
		flags |= os.O_APPEND
	case http.StatusOK:
		// Server ignored the range; start over.
		startByte = 0
		flags |= os.O_TRUNC
	default:
		return fail(fmt.Errorf("hub returned %d", resp.StatusCode))
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = resp.ContentLength + startByte
	}

	f, err := os.OpenFile(partialPath, flags, 0644)
	if err != nil {
		return fail(fmt.Errorf("open file: %w", err))
	}
	defer f.Close()

	buf := make([]byte, 32*1024)
	downloaded := startByte
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fail(fmt.Errorf("write file: %w", err))
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fail(fmt.Errorf("read body: %w", readErr))
		}
	}

	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("close file: %w", err))
	}
	if err := os.Rename(partialPath, destPath); err != nil {
		return fail(fmt.Errorf("rename file: %w", err))
	}

	c.log.WithField("path", destPath).Info("file downloaded")
	return destPath, nil
}
