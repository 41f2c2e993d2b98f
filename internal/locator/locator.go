// Package locator fetches order documents and email bodies from the filesystem or from
// Cloud Storage, and pairs them by folder.
package locator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/shipdocs/constants"
	"github.com/joseph-ayodele/shipdocs/internal/cache"
	"github.com/joseph-ayodele/shipdocs/internal/common"
)

// Entry is one candidate input found by a folder scan.
type Entry struct {
	Ref     string             // path or gs:// URL accepted by Locate
	Dir     string             // folder the entry belongs to
	Name    string             // base name
	Kind    constants.FileKind // order or email
	Size    int64
	ModTime time.Time
}

// Store is a place documents can be read from.
type Store interface {
	Read(ctx context.Context, ref string) ([]byte, error)
	List(ctx context.Context, dir string) ([]Entry, error)
}

// Locator routes refs to the filesystem or Cloud Storage. Folder scans go through an
// advisory cache; reads never do.
type Locator struct {
	fs       Store
	gcs      Store
	listings *cache.TTL[string, []Entry]
	logger   *slog.Logger
}

type Option func(*Locator)

// WithGCS enables gs:// refs.
func WithGCS(s Store) Option {
	return func(l *Locator) { l.gcs = s }
}

// WithListCache serves repeated folder scans from c until they expire.
func WithListCache(c *cache.TTL[string, []Entry]) Option {
	return func(l *Locator) { l.listings = c }
}

func New(logger *slog.Logger, opts ...Option) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Locator{fs: FS{}, logger: logger}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Locator) store(ref string) (Store, error) {
	if strings.HasPrefix(ref, gsScheme) {
		if l.gcs == nil {
			return nil, fmt.Errorf("%w: %s: cloud storage is not configured", common.ErrInvalidInput, ref)
		}
		return l.gcs, nil
	}
	return l.fs, nil
}

// Locate returns the bytes behind ref.
func (l *Locator) Locate(ctx context.Context, ref string) ([]byte, error) {
	s, err := l.store(ref)
	if err != nil {
		return nil, err
	}
	b, err := s.Read(ctx, ref)
	if err != nil {
		l.logger.Warn("locator.read.failed", "ref", ref, "error", err)
		return nil, err
	}
	l.logger.Debug("locator.read.ok", "ref", ref, "bytes", len(b))
	return b, nil
}

// List returns the order and email entries under dir, sorted by ref.
func (l *Locator) List(ctx context.Context, dir string) ([]Entry, error) {
	s, err := l.store(dir)
	if err != nil {
		return nil, err
	}
	entries, err := l.listings.GetOrLoad(dir, func() ([]Entry, error) {
		l.logger.Debug("locator.list.scan", "dir", dir)
		return s.List(ctx, dir)
	})
	if err != nil {
		return nil, err
	}
	return append([]Entry(nil), entries...), nil
}

// Invalidate drops the cached scan of dir.
func (l *Locator) Invalidate(dir string) {
	l.listings.Invalidate(dir)
}

// Pair is the set of inputs for one shipment: its order documents and the email declaring them.
type Pair struct {
	Dir    string
	Orders []string
	Email  string
}

// Pairs groups entries by folder. A folder forms a pair when it holds at least one order
// document and an email; the first email by name is used.
func Pairs(entries []Entry) []Pair {
	byDir := map[string]*Pair{}
	var dirs []string
	for _, e := range entries {
		p, ok := byDir[e.Dir]
		if !ok {
			p = &Pair{Dir: e.Dir}
			byDir[e.Dir] = p
			dirs = append(dirs, e.Dir)
		}
		switch e.Kind {
		case constants.FileKindOrder:
			p.Orders = append(p.Orders, e.Ref)
		case constants.FileKindEmail:
			if p.Email == "" || e.Ref < p.Email {
				p.Email = e.Ref
			}
		}
	}
	sort.Strings(dirs)
	var out []Pair
	for _, d := range dirs {
		p := byDir[d]
		if len(p.Orders) == 0 || p.Email == "" {
			continue
		}
		sort.Strings(p.Orders)
		out = append(out, *p)
	}
	return out
}

// FS reads from the local filesystem.
type FS struct{}

func (FS) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(ref)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", common.ErrNotFound, ref)
	}
	return b, err
}

// List walks dir recursively, skipping hidden files and folders.
func (FS) List(ctx context.Context, dir string) ([]Entry, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: directory is required", common.ErrInvalidInput)
	}
	var out []Entry
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p != dir && IsHidden(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		kind := constants.KindForExt(filepath.Ext(p))
		if kind == constants.FileKindUnknown {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, Entry{
			Ref:     p,
			Dir:     filepath.Dir(p),
			Name:    d.Name(),
			Kind:    kind,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(p string) bool {
	return strings.HasPrefix(filepath.Base(p), ".")
}

func objectEntry(bucket, name string, size int64, updated time.Time) (Entry, bool) {
	kind := constants.KindForExt(path.Ext(name))
	if kind == constants.FileKindUnknown || strings.HasSuffix(name, "/") {
		return Entry{}, false
	}
	return Entry{
		Ref:     gsScheme + bucket + "/" + name,
		Dir:     gsScheme + bucket + "/" + path.Dir(name),
		Name:    path.Base(name),
		Kind:    kind,
		Size:    size,
		ModTime: updated,
	}, true
}
