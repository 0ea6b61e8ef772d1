package districts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestStoreReplaceSwapsAtomically(t *testing.T) {
	first := NewTable(map[string][]Mapping{"12345": {{State: "OH", District: "03"}}})
	second := NewTable(map[string][]Mapping{"54321": {{State: "WA", District: "07"}}})

	store := NewStore(first)
	if got := store.Table().StateForZIP("12345"); got != "OH" {
		t.Fatalf("expected initial table, got state %q", got)
	}

	store.Replace(second)
	if got := store.Table().StateForZIP("54321"); got != "WA" {
		t.Fatalf("expected replacement table, got state %q", got)
	}
	if got := store.Table().AllForZIP("12345"); len(got) != 0 {
		t.Fatalf("old table still visible after replace")
	}

	// A nil replacement keeps the current table.
	store.Replace(nil)
	if store.Table() == nil {
		t.Fatalf("nil replace cleared the table")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "districts.csv")
	write := func(doc string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
			t.Fatalf("write dataset: %v", err)
		}
	}
	write("zip,state,district,primary\n30303,GA,05,\n")

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load initial dataset: %v", err)
	}
	store := NewStore(table)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := store.Watch(ctx, path, discardLogger())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer watcher.Stop()

	write("zip,state,district,primary\n30303,GA,05,\n98101,WA,07,\n")

	deadline := time.After(2 * time.Second)
	for {
		if store.Table().StateForZIP("98101") == "WA" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("table did not reload within deadline")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestWatchKeepsTableOnBrokenReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "districts.csv")
	if err := os.WriteFile(path, []byte("zip,state,district,primary\n70112,LA,02,\n"), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}

	table, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	store := NewStore(table)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher, err := store.Watch(ctx, path, discardLogger())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer watcher.Stop()

	// Garbage that csvutil cannot decode must not evict the working table.
	if err := os.WriteFile(path, []byte("not,a,valid\nheader"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := store.Table().StateForZIP("70112"); got != "LA" {
		t.Fatalf("working table evicted by broken reload, got state %q", got)
	}
}
