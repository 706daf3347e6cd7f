// Package blobstore archives rendered documents. It defines the Store
// interface, an in-memory implementation for development and tests, an
// S3-compatible implementation, and Echo handlers for listing and download.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/empathic/podiatry/internal/platform/apperror"
)

var (
	ErrBlobNotFound    = fmt.Errorf("blob %w", apperror.ErrNotFound)
	ErrBlobExists      = errors.New("blob already exists")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingKey      = errors.New("blob key is required")
	ErrInvalidKey      = errors.New("blob key is invalid")
	ErrUnknownDriver   = errors.New("unknown document store driver")
	ErrMissingS3Bucket = errors.New("s3 bucket is required")
)

// MaxFileSize is the maximum allowed blob size in bytes (25 MB).
const MaxFileSize = 25 * 1024 * 1024

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	ContentType  string    `json:"content_type,omitempty"`
	Size         int64     `json:"size"`
	Hash         string    `json:"hash,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the contract for blob storage backends. Keys are slash-separated
// paths; Put never overwrites.
type Store interface {
	Put(ctx context.Context, key, contentType string, content io.Reader) (*Info, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *Info, error)
	List(ctx context.Context, prefix string) ([]Info, error)
}

// ValidateKey rejects empty keys and keys that escape their prefix.
func ValidateKey(key string) error {
	if key == "" {
		return ErrMissingKey
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	return nil
}

// readLimited reads content fully, failing when it exceeds MaxFileSize.
func readLimited(content io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

type storedBlob struct {
	info    Info
	content []byte
}

// MemoryStore is a thread-safe, in-memory Store.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string]*storedBlob),
		now:   time.Now,
	}
}

// Put stores content under key together with its SHA-256 hash.
func (s *MemoryStore) Put(_ context.Context, key, contentType string, content io.Reader) (*Info, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	info := Info{
		Key:          key,
		ContentType:  contentType,
		Size:         int64(len(data)),
		Hash:         fmt.Sprintf("%x", sha256.Sum256(data)),
		LastModified: s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; ok {
		return nil, ErrBlobExists
	}
	s.blobs[key] = &storedBlob{info: info, content: data}

	out := info
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *Info, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	info := blob.info
	return io.NopCloser(bytes.NewReader(blob.content)), &info, nil
}

// List returns the blobs under prefix ordered by key.
func (s *MemoryStore) List(_ context.Context, prefix string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Info
	for k, b := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, b.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
