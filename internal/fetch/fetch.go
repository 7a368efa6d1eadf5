// Package fetch resolves a dependency specifier into a directory on disk:
// a Git remote (with shortcut prefixes for the popular forges), a plain
// archive URL, or a local path. This sits entirely outside the build engine
// proper: no other package in this module, engine or cmd, imports it.
package fetch

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"

	"github.com/kyanite-build/kyanite/internal/msg"
)

var shortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://sr.ht/",
	"cb:": "https://codeberg.org/",
}

var ErrEmptySpec = errors.New("fetch: empty or illegal dependency specifier")

// Dependency resolves spec into dest: a "git:" prefix or ".git" suffix
// clones a repository, a bare forge shortcut ("gh:", "gl:", ...) expands to
// its full URL before cloning, any other URL is downloaded as an archive,
// and anything else is assumed to already be a local path.
func Dependency(spec, dest string) (string, error) {
	if spec == "" {
		return "", ErrEmptySpec
	}

	const gitPrefix = "git:"
	if strings.HasPrefix(spec, gitPrefix) {
		return cloneGit(spec[len(gitPrefix):], dest)
	}
	if strings.HasSuffix(spec, ".git") {
		return cloneGit(spec, dest)
	}
	for prefix, base := range shortcuts {
		if strings.HasPrefix(spec, prefix) {
			return cloneGit(base+spec[len(prefix):], dest)
		}
	}
	if isURL(spec) {
		return downloadArchive(spec, dest)
	}
	return spec, nil
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// gitRef is a parsed "owner/repo@branch#commit-or-tag" dependency string.
type gitRef struct {
	url         string
	branch      string
	commitOrTag string
}

func parseGitRef(raw string) gitRef {
	var ref gitRef

	parts := strings.SplitN(raw, "#", 2)
	base := parts[0]
	if len(parts) == 2 {
		ref.commitOrTag = parts[1]
	}

	parts = strings.SplitN(base, "@", 2)
	ref.url = parts[0]
	if len(parts) == 2 {
		ref.branch = parts[1]
	}
	if !strings.HasSuffix(ref.url, ".git") {
		ref.url += ".git"
	}
	return ref
}

// cloneGit clones rawURL into dest, doing a shallow clone unless a specific
// commit or tag was requested (a shallow history may not contain it).
func cloneGit(rawURL, dest string) (string, error) {
	ref := parseGitRef(rawURL)

	opts := &git.CloneOptions{
		URL:               ref.url,
		Progress:          &msg.IndentWriter{Prefix: "    ", W: os.Stdout},
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}
	if ref.commitOrTag == "" {
		opts.Depth = 1
	}
	if ref.branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref.branch)
		opts.SingleBranch = true
	}

	msg.Info("cloning %s", ref.url)

	repo, err := git.PlainClone(dest, opts)
	if err != nil {
		return dest, fmt.Errorf("fetch: clone %s: %w", ref.url, err)
	}

	if ref.commitOrTag != "" {
		w, err := repo.Worktree()
		if err != nil {
			return dest, fmt.Errorf("fetch: worktree for %s: %w", ref.url, err)
		}
		hash, err := repo.ResolveRevision(plumbing.Revision(ref.commitOrTag))
		if err != nil {
			return dest, fmt.Errorf("fetch: resolve %q in %s: %w", ref.commitOrTag, ref.url, err)
		}
		if err := w.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
			return dest, fmt.Errorf("fetch: checkout %q in %s: %w", ref.commitOrTag, ref.url, err)
		}
	}

	return dest, nil
}

// archiveFormat sniffs a downloaded file's format via magic bytes, falling
// back to the response Content-Type and finally the URL's own suffix.
func archiveFormat(filePath string, resp *http.Response, originalURL string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := f.Read(header); err != nil && err != io.EOF {
		return "", err
	}

	if bytes.Equal(header, []byte{0x50, 0x4b, 0x03, 0x04}) {
		return "zip", nil
	}
	if bytes.Equal(header[:2], []byte{0x1f, 0x8b}) {
		return "tar.gz", nil
	}

	switch resp.Header.Get("Content-Type") {
	case "application/zip", "application/x-zip-compressed":
		return "zip", nil
	case "application/gzip", "application/x-gzip", "application/x-tar":
		return "tar.gz", nil
	}

	if u, err := url.Parse(originalURL); err == nil {
		switch path.Ext(u.Path) {
		case ".zip":
			return "zip", nil
		case ".tgz", ".tar.gz":
			return "tar.gz", nil
		}
	}

	return "", fmt.Errorf("fetch: unsupported archive format for %s", originalURL)
}

// downloadArchive downloads downloadURL into dest and extracts it, verifying
// an optional "#MD5=<hex>" checksum suffix.
func downloadArchive(downloadURL, dest string) (string, error) {
	cleanURL := downloadURL
	var expectedMD5 string
	if parts := strings.SplitN(downloadURL, "#MD5=", 2); len(parts) == 2 {
		cleanURL, expectedMD5 = parts[0], parts[1]
	}

	msg.Info("fetching %s", cleanURL)

	resp, err := http.Get(cleanURL)
	if err != nil {
		return "", fmt.Errorf("fetch: download %s: %w", cleanURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: download %s: status %d", cleanURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dest, "archive-*.tmp")
	if err != nil {
		return "", fmt.Errorf("fetch: temp file: %w", err)
	}
	archivePath := tmp.Name()
	defer os.Remove(archivePath)

	hash := md5.New()
	pb := msg.NewProgressBar(resp.ContentLength, 2, os.Stdout)

	if _, err := io.Copy(io.MultiWriter(tmp, hash, pb), resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("fetch: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	pb.Finish()

	if expectedMD5 != "" {
		got := hex.EncodeToString(hash.Sum(nil))
		if !strings.EqualFold(expectedMD5, got) {
			return "", fmt.Errorf("fetch: md5 mismatch for %s: want %s, got %s", cleanURL, expectedMD5, got)
		}
	}

	format, err := archiveFormat(archivePath, resp, downloadURL)
	if err != nil {
		return "", err
	}

	var extractErr error
	switch format {
	case "zip":
		extractErr = unzip(archivePath, dest)
	case "tar.gz":
		extractErr = untar(archivePath, dest)
	}
	if extractErr != nil {
		return "", fmt.Errorf("fetch: extract %s: %w", cleanURL, extractErr)
	}
	return dest, nil
}
