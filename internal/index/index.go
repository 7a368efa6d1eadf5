// Package index maintains a local cache of known dependency shortcuts
// (specifier -> directory path), mirroring a community package index without
// requiring the build engine itself to know anything about it.
package index

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"

	"github.com/kyanite-build/kyanite/internal/msg"
)

const (
	IndexFilename = "kyanite_index.json"
	indexRepoURL  = "https://github.com/kyanite-build/index.git"
	indexBranch   = "main"
)

// Index maps a dependency specifier to the path it was resolved to the last
// time it was fetched, cached under the user's cache directory (e.g.
// ~/.cache/kyanite/index on Linux, %LocalAppData%/kyanite/index on Windows).
type Index struct {
	basePath string
	Deps     map[string]string
}

func ParseIndex(r io.Reader, basePath string) (*Index, error) {
	var deps map[string]string
	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&deps); err != nil {
		return nil, err
	}
	return &Index{Deps: deps, basePath: basePath}, nil
}

func (idx Index) Save(basePath string) error {
	f, err := os.Create(filepath.Join(basePath, IndexFilename))
	if err != nil {
		return err
	}
	defer f.Close()

	bufw := bufio.NewWriter(f)
	defer bufw.Flush()

	enc := json.NewEncoder(bufw)
	enc.SetIndent("", "  ")
	return enc.Encode(idx.Deps)
}

// FetchIndex clones (or pulls, if already present) the community index
// repository into basePath.
func FetchIndex(basePath string) (*Index, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}

	if _, err := os.Stat(filepath.Join(basePath, ".git")); os.IsNotExist(err) {
		msg.Info("fetching dependency index")
		_, err := git.PlainClone(basePath, &git.CloneOptions{
			URL:           indexRepoURL,
			ReferenceName: plumbing.NewBranchReferenceName(indexBranch),
			SingleBranch:  true,
			Depth:         1,
			Progress:      &msg.IndentWriter{Prefix: "    ", W: os.Stdout},
		})
		if err != nil {
			return nil, err
		}
	} else {
		repo, err := git.PlainOpen(basePath)
		if err != nil {
			return nil, err
		}
		w, err := repo.Worktree()
		if err != nil {
			return nil, err
		}
		err = w.Pull(&git.PullOptions{
			RemoteName:    "origin",
			ReferenceName: plumbing.NewBranchReferenceName(indexBranch),
			SingleBranch:  true,
			Depth:         1,
			Progress:      os.Stdout,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return nil, err
		}
	}

	return ParseIndexInPath(basePath)
}

func ParseIndexInPath(basePath string) (*Index, error) {
	f, err := os.Open(filepath.Join(basePath, IndexFilename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseIndex(bufio.NewReader(f), basePath)
}

func LoadOrFetchIndex(basePath string) (*Index, error) {
	path := filepath.Join(basePath, IndexFilename)
	if _, err := os.Stat(path); err == nil {
		return ParseIndexInPath(basePath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return FetchIndex(basePath)
}

var global *Index

// GetAnyhow returns the process-wide index, loading or fetching it into the
// user cache directory the first time it's needed.
func GetAnyhow() (*Index, error) {
	if global != nil {
		return global, nil
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	idx, err := LoadOrFetchIndex(filepath.Join(cacheDir, "kyanite", "index"))
	if err != nil {
		return nil, err
	}
	global = idx
	return idx, nil
}

// Copy copies the cached files for a resolved dependency spec into destPath.
func (idx Index) Copy(destPath, spec string) error {
	path, ok := idx.Deps[spec]
	if !ok {
		return errors.New("index: dependency not found in index")
	}
	return os.CopyFS(destPath, os.DirFS(filepath.Join(idx.basePath, path)))
}

func (idx *Index) SetDep(spec, path string) {
	if idx.Deps == nil {
		idx.Deps = make(map[string]string)
	}
	idx.Deps[spec] = path
}

func (idx *Index) HasDep(spec string) bool {
	_, ok := idx.Deps[spec]
	return ok
}

func (idx *Index) RemoveDep(spec string) bool {
	if idx.Deps == nil {
		return false
	}
	if _, ok := idx.Deps[spec]; ok {
		delete(idx.Deps, spec)
		return true
	}
	return false
}

// UpdateGlobal re-fetches the process-wide index from its remote.
func UpdateGlobal() (*Index, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	return FetchIndex(filepath.Join(cacheDir, "kyanite", "index"))
}
