// File: internal/gitinfo/gitinfo.go
// Brief: Repository root, tracked files, and HEAD lookup via go-git.

package gitinfo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
)

// ErrNotRepository is returned when no enclosing git work tree exists.
var ErrNotRepository = errors.New("not inside a git work tree")

func open(start string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(start, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", start, ErrNotRepository)
		}
		return nil, err
	}
	return repo, nil
}

// RepoRoot returns the absolute work tree root of the repository containing start.
func RepoRoot(start string) (string, error) {
	start = strings.TrimSpace(start)
	if start == "" {
		start = "."
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	repo, err := open(abs)
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("%s: %w", abs, ErrNotRepository)
	}
	return filepath.Clean(wt.Filesystem.Root()), nil
}

// TrackedFiles lists the index entries of the repository containing root as
// absolute, sorted paths.
func TrackedFiles(root string) ([]string, error) {
	repo, err := open(root)
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", root, ErrNotRepository)
	}
	root = wt.Filesystem.Root()
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	out := make([]string, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		out = append(out, filepath.Join(root, filepath.FromSlash(e.Name)))
	}
	sort.Strings(out)
	return out, nil
}

// Head returns the current commit hash and dirty state of the repository rooted at root.
func Head(root string) (commit string, dirty bool, err error) {
	repo, err := open(root)
	if err != nil {
		return "", false, err
	}
	commit, err = headHash(repo)
	if err != nil {
		return "", false, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return commit, false, nil
	}
	status, err := wt.Status()
	if err != nil {
		return commit, false, fmt.Errorf("git status: %w", err)
	}
	return commit, !status.IsClean(), nil
}

// Commit returns the HEAD commit hash without scanning the work tree.
func Commit(root string) (string, error) {
	repo, err := open(root)
	if err != nil {
		return "", err
	}
	return headHash(repo)
}

func headHash(repo *git.Repository) (string, error) {
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}
