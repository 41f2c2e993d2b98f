package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/cache"
	"github.com/joseph-ayodele/shipdocs/internal/common"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func write(t *testing.T, p, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListAndPairs(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a", "salesorder_3004.pdf"), "%PDF")
	write(t, filepath.Join(root, "a", "salesorder_3020.pdf"), "%PDF")
	write(t, filepath.Join(root, "a", "notice.eml"), "orders 3004 & 3020")
	write(t, filepath.Join(root, "a", "readme.md"), "skip")
	write(t, filepath.Join(root, "b", "salesorder_3015.pdf"), "%PDF")
	write(t, filepath.Join(root, ".hidden", "x.txt"), "skip")

	l := New(nil)
	entries, err := l.List(context.Background(), root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %+v", entries)
	}

	pairs := Pairs(entries)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %+v", pairs)
	}
	want := Pair{
		Dir:    filepath.Join(root, "a"),
		Orders: []string{filepath.Join(root, "a", "salesorder_3004.pdf"), filepath.Join(root, "a", "salesorder_3020.pdf")},
		Email:  filepath.Join(root, "a", "notice.eml"),
	}
	if !reflect.DeepEqual(pairs[0], want) {
		t.Errorf("pair = %+v, want %+v", pairs[0], want)
	}
}

func TestListIsCachedUntilExpiry(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "one.pdf"), "%PDF")

	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	l := New(nil, WithListCache(cache.NewTTL[string, []Entry](time.Minute, clock)))
	ctx := context.Background()

	first, err := l.List(ctx, root)
	if err != nil || len(first) != 1 {
		t.Fatalf("List = %v, %v", first, err)
	}
	write(t, filepath.Join(root, "two.pdf"), "%PDF")

	cached, _ := l.List(ctx, root)
	if len(cached) != 1 {
		t.Fatalf("fresh entry not served: %d", len(cached))
	}
	clock.now = clock.now.Add(time.Minute)
	fresh, _ := l.List(ctx, root)
	if len(fresh) != 2 {
		t.Fatalf("stale entry served: %d", len(fresh))
	}

	write(t, filepath.Join(root, "three.pdf"), "%PDF")
	l.Invalidate(root)
	if again, _ := l.List(ctx, root); len(again) != 3 {
		t.Fatalf("invalidate ignored: %d", len(again))
	}
}

func TestLocate(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "mail.txt")
	write(t, p, "SO 3015")
	l := New(nil)

	b, err := l.Locate(context.Background(), p)
	if err != nil || string(b) != "SO 3015" {
		t.Fatalf("Locate = %q, %v", b, err)
	}
	if _, err := l.Locate(context.Background(), filepath.Join(root, "missing.pdf")); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if _, err := l.Locate(context.Background(), "gs://bucket/so.pdf"); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("gs without client err = %v", err)
	}
}

func TestParseGSRef(t *testing.T) {
	tests := []struct {
		ref            string
		bucket, object string
		wantErr        bool
	}{
		{"gs://orders/2025/salesorder_3015.pdf", "orders", "2025/salesorder_3015.pdf", false},
		{"gs://orders", "orders", "", false},
		{"gs:///x", "", "", true},
		{"/tmp/x.pdf", "", "", true},
	}
	for _, tt := range tests {
		b, o, err := ParseGSRef(tt.ref)
		if (err != nil) != tt.wantErr || b != tt.bucket || o != tt.object {
			t.Errorf("ParseGSRef(%q) = %q, %q, %v", tt.ref, b, o, err)
		}
	}
}

func TestObjectEntry(t *testing.T) {
	e, ok := objectEntry("orders", "inbox/a/salesorder_3015.pdf", 10, time.Time{})
	if !ok || e.Kind != constants.FileKindOrder || e.Dir != "gs://orders/inbox/a" || e.Ref != "gs://orders/inbox/a/salesorder_3015.pdf" {
		t.Errorf("entry = %+v", e)
	}
	if _, ok := objectEntry("orders", "inbox/a/", 0, time.Time{}); ok {
		t.Error("folder placeholder accepted")
	}
}

func TestWatchEmitsFolder(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, Debounce: 50 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	write(t, filepath.Join(root, "salesorder_3015.pdf"), "%PDF")
	write(t, filepath.Join(root, "notice.txt"), "SO 3015")
	write(t, filepath.Join(root, "ignored.md"), "x")

	select {
	case dir := <-events:
		if dir != root {
			t.Errorf("dir = %q, want %q", dir, root)
		}
	case <-ctx.Done():
		t.Fatal("no event")
	}
	cancel()
	for range events {
	}
}
