// Package snapshot captures an immutable, in-memory view of a repository at
// the start of a verification run. Search tools query the snapshot only;
// disk changes after Load are invisible for the rest of the run.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cardaudit/internal/logging"
)

// SourceFile is one text file captured at load time.
type SourceFile struct {
	Path    string // relative to the snapshot root
	Content string
	Lines   []string
}

// Artifact is a binary file recorded by name, size, and content hash.
// Artifact bytes are never loaded; tools only check existence and usage.
type Artifact struct {
	Path string
	Name string
	Kind string // file extension without the dot
	Size int64
	Hash string
}

// Snapshot is the read-only repository view shared by all workers. It is
// safe for concurrent use without locking: nothing mutates it after Load.
type Snapshot struct {
	Root      string
	Files     []SourceFile
	Notebooks []Notebook
	Artifacts []Artifact

	parse *parseCache
}

var sourceExts = map[string]bool{
	".py": true, ".pyw": true, ".r": true, ".sql": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true,
	".cfg": true, ".ini": true, ".txt": true, ".md": true,
	".sh": true,
}

var artifactExts = map[string]bool{
	".pkl": true, ".pickle": true, ".joblib": true, ".sav": true,
	".h5": true, ".hdf5": true, ".onnx": true, ".pt": true, ".pth": true,
	".pb": true, ".bin": true, ".model": true, ".cbm": true,
}

var skipDirs = map[string]bool{
	".git": true, ".venv": true, "venv": true, "node_modules": true,
	"__pycache__": true, ".ipynb_checkpoints": true,
}

const maxFileSize = 2 << 20 // source files above 2 MiB are skipped

// Load walks dir once and builds the snapshot. File reads fan out across a
// bounded errgroup; the result is sorted by path so runs are deterministic.
func Load(ctx context.Context, dir string) (*Snapshot, error) {
	log := logging.Named("snapshot")

	type entry struct {
		rel  string
		abs  string
		size int64
		kind string // "source", "notebook", "artifact"
	}
	var entries []entry

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		switch {
		case ext == ".ipynb":
			entries = append(entries, entry{rel, path, info.Size(), "notebook"})
		case artifactExts[ext]:
			entries = append(entries, entry{rel, path, info.Size(), "artifact"})
		case sourceExts[ext] && info.Size() <= maxFileSize:
			entries = append(entries, entry{rel, path, info.Size(), "source"})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	snap := &Snapshot{Root: dir, parse: newParseCache()}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			switch e.kind {
			case "source":
				data, err := os.ReadFile(e.abs)
				if err != nil {
					return nil
				}
				content := string(data)
				mu.Lock()
				snap.Files = append(snap.Files, SourceFile{
					Path:    e.rel,
					Content: content,
					Lines:   strings.Split(content, "\n"),
				})
				mu.Unlock()
			case "notebook":
				data, err := os.ReadFile(e.abs)
				if err != nil {
					return nil
				}
				nb, err := parseNotebook(e.rel, data)
				if err != nil {
					log.Warn("skipping malformed notebook",
						zap.String("path", e.rel), zap.Error(err))
					return nil
				}
				mu.Lock()
				snap.Notebooks = append(snap.Notebooks, nb)
				mu.Unlock()
			case "artifact":
				hash, err := hashFile(e.abs)
				if err != nil {
					return nil
				}
				ext := strings.ToLower(filepath.Ext(e.rel))
				mu.Lock()
				snap.Artifacts = append(snap.Artifacts, Artifact{
					Path: e.rel,
					Name: filepath.Base(e.rel),
					Kind: strings.TrimPrefix(ext, "."),
					Size: e.size,
					Hash: hash,
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })
	sort.Slice(snap.Notebooks, func(i, j int) bool { return snap.Notebooks[i].Path < snap.Notebooks[j].Path })
	sort.Slice(snap.Artifacts, func(i, j int) bool { return snap.Artifacts[i].Path < snap.Artifacts[j].Path })

	log.Info("snapshot loaded",
		zap.String("root", dir),
		zap.Int("files", len(snap.Files)),
		zap.Int("notebooks", len(snap.Notebooks)),
		zap.Int("artifacts", len(snap.Artifacts)))
	return snap, nil
}

// FromFiles builds an in-memory snapshot without touching disk. Test helper
// and entry point for callers that already hold file contents.
func FromFiles(files map[string]string) *Snapshot {
	snap := &Snapshot{Root: "<memory>", parse: newParseCache()}
	for path, content := range files {
		if strings.HasSuffix(path, ".ipynb") {
			nb, err := parseNotebook(path, []byte(content))
			if err == nil {
				snap.Notebooks = append(snap.Notebooks, nb)
			}
			continue
		}
		ext := strings.ToLower(filepath.Ext(path))
		if artifactExts[ext] {
			sum := sha256.Sum256([]byte(content))
			snap.Artifacts = append(snap.Artifacts, Artifact{
				Path: path,
				Name: filepath.Base(path),
				Kind: strings.TrimPrefix(ext, "."),
				Size: int64(len(content)),
				Hash: hex.EncodeToString(sum[:]),
			})
			continue
		}
		snap.Files = append(snap.Files, SourceFile{
			Path:    path,
			Content: content,
			Lines:   strings.Split(content, "\n"),
		})
	}
	sort.Slice(snap.Files, func(i, j int) bool { return snap.Files[i].Path < snap.Files[j].Path })
	sort.Slice(snap.Notebooks, func(i, j int) bool { return snap.Notebooks[i].Path < snap.Notebooks[j].Path })
	sort.Slice(snap.Artifacts, func(i, j int) bool { return snap.Artifacts[i].Path < snap.Artifacts[j].Path })
	return snap
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
