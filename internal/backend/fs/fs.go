// Package fs is the filesystem Backend implementation: one JSON value
// per key under MASC_ROOT/.masc/, atomic write-via-tempfile-rename,
// and advisory cross-process locking via flock(2) on a sidecar
// ".lock" file — the only real cross-process advisory-lock primitive
// in the retrieved corpus (golang.org/x/sys/unix.Flock).
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/masc-dev/masc/internal/backend"
)

// Backend persists keys as files under root. Keys map to paths by
// replacing "/" with the OS separator; callers are expected to use
// "/"-delimited keys (e.g. "rooms/r1/agents/a1").
type Backend struct {
	root string

	// fsLocksMu serializes in-process access to the same scope so that
	// goroutines in this process don't race each other between the
	// flock syscall (which only arbitrates across processes) and their
	// own critical section.
	fsLocksMu sync.Mutex
	fsLocks   map[string]*sync.Mutex
}

// New returns a Backend rooted at dir, creating dir if necessary.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("fs: mkdir root: %w", err)
	}
	return &Backend{root: dir, fsLocks: make(map[string]*sync.Mutex)}, nil
}

func (b *Backend) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key)+".json")
}

func (b *Backend) logPath(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key)+".jsonl")
}

func (b *Backend) Get(_ context.Context, key string) (string, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", backend.NewError(backend.KindNotFound, "get", key, nil)
		}
		return "", backend.NewError(backend.KindTransient, "get", key, err)
	}
	return string(data), nil
}

// atomicWrite writes data to path via a tempfile in the same directory
// followed by rename, which is atomic on POSIX filesystems. Files are
// created owner-only (0600).
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (b *Backend) Set(_ context.Context, key, value string) error {
	if err := atomicWrite(b.path(key), []byte(value)); err != nil {
		return backend.NewError(backend.KindTransient, "set", key, err)
	}
	return nil
}

func (b *Backend) CAS(ctx context.Context, key, expected, newValue string) error {
	g, err := b.Lock(ctx, "cas:"+key)
	if err != nil {
		return backend.NewError(backend.KindTransient, "cas", key, err)
	}
	defer g.Release(ctx)

	cur, err := b.Get(ctx, key)
	if err != nil && !backend.IsNotFound(err) {
		return err
	}
	if cur != expected {
		return backend.NewError(backend.KindConflict, "cas", key, nil)
	}
	return b.Set(ctx, key, newValue)
}

func (b *Backend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return backend.NewError(backend.KindTransient, "delete", key, err)
	}
	if err := os.Remove(b.logPath(key)); err != nil && !os.IsNotExist(err) {
		return backend.NewError(backend.KindTransient, "delete", key, err)
	}
	return nil
}

func (b *Backend) List(_ context.Context, prefix string) ([]string, error) {
	base := filepath.Join(b.root, filepath.FromSlash(prefix))
	dir := filepath.Dir(base)

	var out []string
	err := filepath.Walk(b.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".json") {
			return nil
		}
		rel, err := filepath.Rel(b.root, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(filepath.ToSlash(rel), ".json")
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
		return nil
	})
	_ = dir
	if err != nil {
		return nil, backend.NewError(backend.KindTransient, "list", prefix, err)
	}
	sort.Strings(out)
	return out, nil
}

func (b *Backend) Append(ctx context.Context, logKey, line string) error {
	g, err := b.Lock(ctx, "append:"+logKey)
	if err != nil {
		return backend.NewError(backend.KindTransient, "append", logKey, err)
	}
	defer g.Release(ctx)

	path := b.logPath(logKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return backend.NewError(backend.KindTransient, "append", logKey, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return backend.NewError(backend.KindTransient, "append", logKey, err)
	}
	defer f.Close()

	if _, err := f.WriteString(line + "\n"); err != nil {
		return backend.NewError(backend.KindTransient, "append", logKey, err)
	}
	return nil
}

func (b *Backend) ReadLog(_ context.Context, logKey string) ([]string, error) {
	data, err := os.ReadFile(b.logPath(logKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, backend.NewError(backend.KindTransient, "read_log", logKey, err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	return lines, nil
}

// fsGuard holds both the in-process mutex and the cross-process flock
// file descriptor; Release drops both, in-process mutex last so that
// no other goroutine in this process can race the unlock syscall.
type fsGuard struct {
	f      *os.File
	procMu *sync.Mutex
}

func (g *fsGuard) Release(_ context.Context) error {
	err := unix.Flock(int(g.f.Fd()), unix.LOCK_UN)
	g.f.Close()
	g.procMu.Unlock()
	return err
}

func (b *Backend) Lock(ctx context.Context, scope string) (backend.Guard, error) {
	sanitized := strings.ReplaceAll(scope, "/", "_")
	lockPath := filepath.Join(b.root, ".locks", sanitized+".lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return nil, err
	}

	b.fsLocksMu.Lock()
	procMu, ok := b.fsLocks[scope]
	if !ok {
		procMu = &sync.Mutex{}
		b.fsLocks[scope] = procMu
	}
	b.fsLocksMu.Unlock()

	done := make(chan struct{})
	var file *os.File
	var flockErr error
	go func() {
		procMu.Lock()
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			flockErr = err
			close(done)
			return
		}
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
			flockErr = err
			f.Close()
			close(done)
			return
		}
		file = f
		close(done)
	}()

	select {
	case <-done:
		if flockErr != nil {
			procMu.Unlock()
			return nil, backend.NewError(backend.KindTransient, "lock", scope, flockErr)
		}
		return &fsGuard{f: file, procMu: procMu}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Backend) Close() error { return nil }
