package blobstore

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestMemStore_PutGet(t *testing.T) {
	store := NewMemStore()
	data := []byte("emergency contact card")

	cid, err := store.Put(context.Background(), data)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if cid == "" {
		t.Fatal("expected a non-empty CID")
	}

	got, err := store.Get(context.Background(), cid)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("expected %q, got %q", data, got)
	}
}

func TestMemStore_ContentAddressed(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	a, _ := store.Put(ctx, []byte("same bytes"))
	b, _ := store.Put(ctx, []byte("same bytes"))
	if a != b {
		t.Errorf("identical content must map to one CID, got %s and %s", a, b)
	}

	c, _ := store.Put(ctx, []byte("different bytes"))
	if c == a {
		t.Error("different content must map to different CIDs")
	}
}

func TestMemStore_NotFound(t *testing.T) {
	store := NewMemStore()

	_, err := store.Get(context.Background(), "deadbeef")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestMemStore_Empty(t *testing.T) {
	store := NewMemStore()

	_, err := store.Put(context.Background(), nil)
	if !errors.Is(err, ErrEmptyBlob) {
		t.Fatalf("expected ErrEmptyBlob, got %v", err)
	}
}

func TestMemStore_TooLarge(t *testing.T) {
	store := NewMemStore()

	_, err := store.Put(context.Background(), make([]byte, MaxBlobSize+1))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestMemStore_GetReturnsCopy(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	cid, _ := store.Put(ctx, []byte("original"))
	got, _ := store.Get(ctx, cid)
	got[0] = 'X'

	again, _ := store.Get(ctx, cid)
	if !bytes.Equal(again, []byte("original")) {
		t.Error("mutating a returned blob must not affect the store")
	}
}
