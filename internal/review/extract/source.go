package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/AICC2024/video-review/internal/platform/httpx"
)

// Source locates the bytes of an asset: a storage key in the media bucket
// or a plain URL. StorageKey wins when both are set.
type Source struct {
	URL        string
	StorageKey string
}

func (s Source) Empty() bool {
	return strings.TrimSpace(s.URL) == "" && strings.TrimSpace(s.StorageKey) == ""
}

// Name is the file name the source refers to.
func (s Source) Name() string {
	if k := strings.TrimSpace(s.StorageKey); k != "" {
		return path.Base(k)
	}
	raw := strings.TrimSpace(s.URL)
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		if name, err := url.PathUnescape(path.Base(u.Path)); err == nil {
			return name
		}
		return path.Base(u.Path)
	}
	return path.Base(raw)
}

// Ext is the lower-cased extension of Name, including the dot.
func (s Source) Ext() string {
	return strings.ToLower(path.Ext(s.Name()))
}

func (s Source) String() string {
	if k := strings.TrimSpace(s.StorageKey); k != "" {
		return "key:" + k
	}
	return s.URL
}

func isOfficeExt(ext string) bool {
	switch ext {
	case ".docx", ".doc", ".pptx", ".ppt", ".odt", ".odp":
		return true
	default:
		return false
	}
}

// materialize copies the source into dir and returns the local path.
func (e *Extractor) materialize(ctx context.Context, src Source, dir string) (string, error) {
	if src.Empty() {
		return "", fmt.Errorf("empty source")
	}
	body, err := e.open(ctx, src)
	if err != nil {
		return "", err
	}
	defer body.Close()

	dst := filepath.Join(dir, "source"+src.Ext())
	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr != nil {
		return "", fmt.Errorf("download %s: %w", src, copyErr)
	}
	if closeErr != nil {
		return "", closeErr
	}
	if n == 0 {
		return "", fmt.Errorf("download %s: empty body", src)
	}
	e.log.Debug("source materialized", "source", src.String(), "bytes", n)
	return dst, nil
}

func (e *Extractor) open(ctx context.Context, src Source) (io.ReadCloser, error) {
	if key := strings.TrimSpace(src.StorageKey); key != "" {
		if e.bucket == nil {
			return nil, fmt.Errorf("storage key %q given but no bucket configured", key)
		}
		return e.bucket.DownloadFile(ctx, key)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(src.URL), nil)
	if err != nil {
		return nil, fmt.Errorf("source url: %w", err)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &httpx.StatusError{URL: src.URL, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
