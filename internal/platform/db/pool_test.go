package db

import (
	"context"
	"testing"
)

func TestNewPool_InvalidURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "not-a-database-url://%%", 4, 1); err == nil {
		t.Fatal("NewPool accepted a malformed URL")
	}
}
