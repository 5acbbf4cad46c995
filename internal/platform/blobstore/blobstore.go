// Package blobstore wraps the content-addressable blob collaborator used for
// document pinning. Documents go in as bytes and come back under a CID; the
// production implementation pins through an IPFS node's HTTP API and an
// in-memory implementation backs tests and development.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	ErrEmptyBlob    = errors.New("blob is empty")
)

// MaxBlobSize is the largest document accepted for pinning (25 MB).
const MaxBlobSize = 25 * 1024 * 1024

// Store is the blob-store collaborator contract.
type Store interface {
	Put(ctx context.Context, data []byte) (cid string, err error)
	Get(ctx context.Context, cid string) ([]byte, error)
}

// MemStore is a SHA-256-addressed in-memory Store.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (s *MemStore) Put(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBlob
	}
	if len(data) > MaxBlobSize {
		return "", ErrFileTooLarge
	}
	sum := sha256.Sum256(data)
	cid := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[cid]; !ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.blobs[cid] = cp
	}
	return cid, nil
}

func (s *MemStore) Get(_ context.Context, cid string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[cid]
	if !ok {
		return nil, ErrBlobNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}
