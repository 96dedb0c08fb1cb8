package deck

import (
	"path/filepath"
	"sort"

	"github.com/example/deckz/internal/paths"
	"github.com/example/deckz/internal/resolve"
)

// AffectedTargets maps changed paths to the targets that must be rebuilt.
// all is true when a change can reach every target: the catalog, a config
// layer, settings, templates, anything shared between decks, or a path no
// resolved tree uses.
func AffectedTargets(changed []string, trees []*resolve.Tree, l *paths.Layout) (names []string, all bool) {
	if len(trees) == 0 {
		return nil, true
	}
	global := map[string]bool{
		l.Targets:      true,
		l.DebugTargets: true,
		l.Settings:     true,
	}
	for _, f := range l.ConfigFiles() {
		global[f] = true
	}
	users := map[string][]string{}
	for _, t := range trees {
		for _, f := range t.Files() {
			users[f] = append(users[f], t.Target)
		}
	}
	set := map[string]bool{}
	for _, c := range changed {
		c = filepath.Clean(c)
		if global[c] || l.IsShared(c) {
			return nil, true
		}
		targets, ok := users[c]
		if !ok {
			return nil, true
		}
		for _, t := range targets {
			set[t] = true
		}
	}
	for t := range set {
		names = append(names, t)
	}
	sort.Strings(names)
	return names, false
}

// WatchRoots lists the directories watched recursively and the single files
// watched through their parent directory.
func (p *Pipeline) WatchRoots() (dirs, files []string) {
	l := p.Layout
	dirs = []string{l.Deck, l.Shared, l.Templates}
	if l.CompanyLatex != "" {
		dirs = append(dirs, filepath.Dir(l.CompanyLatex))
	}
	files = []string{l.Settings, l.GlobalConfig, l.UserConfig, l.CompanyConfig}
	return dirs, files
}
