package scratch

import (
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
)

// Prefix names every scratch directory we create so Sweep can find leftovers.
const Prefix = "pdf2a5-"

// Area is a private scratch directory owned by one task. Release removes it
// and is safe to call more than once.
type Area struct {
    dir  string
    once sync.Once
    err  error
}

// New creates a fresh area under root (os.TempDir() when empty). tag ends up
// in the directory name to make leftovers attributable.
func New(root, tag string) (*Area, error) {
    if root == "" { root = os.TempDir() }
    if err := os.MkdirAll(root, 0o755); err != nil {
        return nil, fmt.Errorf("create scratch root: %w", err)
    }
    dir, err := os.MkdirTemp(root, Prefix+sanitize(tag)+"-")
    if err != nil {
        return nil, fmt.Errorf("create scratch area: %w", err)
    }
    return &Area{dir: dir}, nil
}

// Dir returns the area's directory.
func (a *Area) Dir() string { return a.dir }

// NewFile returns a unique path inside the area with the given extension.
// The file itself is not created.
func (a *Area) NewFile(ext string) string {
    if ext != "" && !strings.HasPrefix(ext, ".") { ext = "." + ext }
    return filepath.Join(a.dir, uuid.NewString()+ext)
}

// Release deletes the area and everything in it.
func (a *Area) Release() error {
    a.once.Do(func() { a.err = os.RemoveAll(a.dir) })
    return a.err
}

// Factory creates areas under a fixed root.
type Factory struct {
    Root string
}

// New creates an area tagged with tag.
func (f Factory) New(tag string) (*Area, error) { return New(f.Root, tag) }

// Sweep removes scratch areas under root older than maxAge, left behind by
// runs that were killed before they could release. It returns how many
// areas were removed.
func Sweep(root string, maxAge time.Duration) int {
    if root == "" { root = os.TempDir() }
    entries, err := os.ReadDir(root)
    if err != nil { return 0 }
    now := time.Now()
    removed := 0
    for _, e := range entries {
        if !e.IsDir() || !strings.HasPrefix(e.Name(), Prefix) { continue }
        info, err := e.Info()
        if err != nil { continue }
        if now.Sub(info.ModTime()) >= maxAge {
            if os.RemoveAll(filepath.Join(root, e.Name())) == nil { removed++ }
        }
    }
    return removed
}

func sanitize(tag string) string {
    if tag == "" { return "task" }
    return strings.Map(func(r rune) rune {
        switch {
        case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
            return r
        }
        return '_'
    }, tag)
}
