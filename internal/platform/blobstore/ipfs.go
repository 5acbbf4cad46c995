package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	ipfsapi "github.com/ipfs/go-ipfs-api"
)

// IPFSStore pins blobs through the HTTP API of an IPFS node.
type IPFSStore struct {
	shell *ipfsapi.Shell
}

// NewIPFSStore connects to the node's API endpoint (e.g. "localhost:5001").
func NewIPFSStore(apiURL string) (*IPFSStore, error) {
	shell := ipfsapi.NewShell(apiURL)
	if !shell.IsUp() {
		return nil, fmt.Errorf("ipfs node at %s is not reachable", apiURL)
	}
	return &IPFSStore{shell: shell}, nil
}

func (s *IPFSStore) Put(_ context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBlob
	}
	if len(data) > MaxBlobSize {
		return "", ErrFileTooLarge
	}
	cid, err := s.shell.Add(bytes.NewReader(data), ipfsapi.Pin(true))
	if err != nil {
		return "", fmt.Errorf("pin blob: %w", err)
	}
	return cid, nil
}

func (s *IPFSStore) Get(_ context.Context, cid string) ([]byte, error) {
	rc, err := s.shell.Cat(cid)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("fetch blob %s: %w", cid, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", cid, err)
	}
	if len(data) > MaxBlobSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
