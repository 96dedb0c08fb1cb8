package deck

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/example/deckz/internal/gitinfo"
	"github.com/example/deckz/internal/paths"
)

// DiscoverDecks returns every directory under root holding a targets.yml,
// sorted. Tracked files are used when root is a git work tree so that
// untracked scratch decks are skipped.
func DiscoverDecks(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	set := map[string]bool{}
	if files, err := gitinfo.TrackedFiles(root); err == nil {
		for _, f := range files {
			if filepath.Base(f) == paths.TargetsFile && paths.Within(root, f) {
				set[filepath.Dir(f)] = true
			}
		}
	} else {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				switch d.Name() {
				case ".git", paths.BuildDirName, paths.PDFDirName:
					return filepath.SkipDir
				}
				return nil
			}
			if d.Name() == paths.TargetsFile {
				set[filepath.Dir(p)] = true
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}
