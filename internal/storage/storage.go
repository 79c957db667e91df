// Package storage is the document object store. Files live on local disk
// and are served read-only over HTTP under their public URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidPath    = errors.New("invalid object path")
)

// Fetcher reads an object back by its download URL.
type Fetcher interface {
	Fetch(ctx context.Context, downloadURL string) (io.ReadCloser, error)
}

type LocalStore struct {
	root          string
	publicBaseURL string
	httpClient    *http.Client
}

func NewLocalStore(root, publicBaseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root failed: %w", err)
	}
	return &LocalStore{
		root:          root,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (s *LocalStore) Root() string {
	return s.root
}

// ObjectPath is where a user's upload lives inside the store.
func ObjectPath(userID uint, documentID string) string {
	return fmt.Sprintf("users/%d/files/%s", userID, documentID)
}

func (s *LocalStore) URLFor(objectPath string) string {
	return s.publicBaseURL + "/" + objectPath
}

// Save streams r into objectPath and returns the object's download URL.
// A partially written file is removed on failure.
func (s *LocalStore) Save(ctx context.Context, objectPath string, r io.Reader) (string, int64, error) {
	full, err := s.resolve(objectPath)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", 0, fmt.Errorf("create object dir failed: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", 0, fmt.Errorf("create object failed: %w", err)
	}
	n, copyErr := io.Copy(f, contextReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(full)
		return "", 0, fmt.Errorf("write object failed: %w", errors.Join(copyErr, closeErr))
	}
	return s.URLFor(objectPath), n, nil
}

// Fetch opens objects of this store straight from disk and falls back to
// an HTTP GET for any other URL.
func (s *LocalStore) Fetch(ctx context.Context, downloadURL string) (io.ReadCloser, error) {
	if rel, ok := strings.CutPrefix(downloadURL, s.publicBaseURL+"/"); ok && s.publicBaseURL != "" {
		full, err := s.resolve(rel)
		if err != nil {
			return nil, err
		}
		f, err := os.Open(full)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, rel)
			}
			return nil, fmt.Errorf("open object failed: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build fetch request failed: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch object failed: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, downloadURL)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch object status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *LocalStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" || strings.Contains(objectPath, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
