package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"gridboard/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("driver %s", s.Driver())
	}
	meta := map[string]string{"format": "csv"}
	info, err := s.Put(ctx, "exports/a/dashboard.csv", strings.NewReader("id,x\n"), core.PutOptions{ContentType: "text/csv", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["format"] = "mutated"
	if info.Size != 5 || info.ETag == "" || info.Metadata["format"] != "csv" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "exports/a/dashboard.csv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, rc, err := s.Get(ctx, "exports/a/dashboard.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "id,x\n" || got.ContentType != "text/csv" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}
	if _, err := s.Put(ctx, "other/b", strings.NewReader("1"), core.PutOptions{}); err != nil {
		t.Fatalf("put other: %v", err)
	}
	list, _ := s.List(ctx, "exports/")
	if len(list) != 1 || list[0].Key != "exports/a/dashboard.csv" {
		t.Fatalf("unexpected list %+v", list)
	}
	if ok, _ := s.Delete(ctx, "exports/a/dashboard.csv"); !ok {
		t.Fatalf("expected delete true")
	}
	if ok, _ := s.Delete(ctx, "exports/a/dashboard.csv"); ok {
		t.Fatalf("expected second delete false")
	}
	if _, _, err := s.Get(ctx, "exports/a/dashboard.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreRejectsEmptyKey(t *testing.T) {
	if _, err := New().Put(context.Background(), " ", strings.NewReader(""), core.PutOptions{}); err == nil {
		t.Fatalf("expected error for blank key")
	}
}
