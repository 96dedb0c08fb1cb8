// File: internal/settings/settings.go
// Brief: Repository settings.yml (build command, concurrency, watch tuning).

package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/mitchellh/go-homedir"
	"sigs.k8s.io/yaml"
)

const (
	DefaultDebounce   = 500 * time.Millisecond
	DefaultLeftDelim  = `\V{`
	DefaultRightDelim = `}`
)

// DefaultBuildCommand compiles a document with latexmk and stops at the first error.
var DefaultBuildCommand = Command{"latexmk", "-pdf", "-interaction=nonstopmode", "-halt-on-error"}

// Settings is the repository-level tool configuration.
type Settings struct {
	BuildCommand  Command  `json:"build_command,omitempty"`
	Concurrency   int      `json:"concurrency,omitempty"`
	UserConfigDir string   `json:"user_config_dir,omitempty"`
	SharedLinks   []string `json:"shared_links,omitempty"`
	Watch         Watch    `json:"watch,omitempty"`
	Template      Template `json:"template,omitempty"`
}

type Watch struct {
	Debounce Duration `json:"debounce,omitempty"`
	Ignore   []string `json:"ignore,omitempty"`
	// Initial runs a full build before waiting for changes.
	Initial *bool `json:"initial,omitempty"`
}

type Template struct {
	LeftDelim  string `json:"left_delim,omitempty"`
	RightDelim string `json:"right_delim,omitempty"`
}

// Command is an argv that also accepts a single shell-style string in YAML.
type Command []string

func (c *Command) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = list
		return nil
	}
	var line string
	if err := json.Unmarshal(data, &line); err != nil {
		return fmt.Errorf("build_command must be a string or a list of strings")
	}
	args, err := shellwords.Parse(line)
	if err != nil {
		return fmt.Errorf("parse build_command %q: %w", line, err)
	}
	*c = args
	return nil
}

func (c Command) String() string { return strings.Join(c, " ") }

// Duration accepts Go duration strings ("750ms") or integer milliseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("duration must be a string or milliseconds")
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Default returns settings used when settings.yml is absent.
func Default() Settings {
	s := Settings{}
	s.applyDefaults()
	return s
}

// Load reads path, tolerating a missing file, and fills defaults.
func Load(path string) (Settings, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Settings{}, err
	}
	var s Settings
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}
	if s.UserConfigDir != "" {
		expanded, err := homedir.Expand(s.UserConfigDir)
		if err != nil {
			return Settings{}, fmt.Errorf("expand user_config_dir: %w", err)
		}
		s.UserConfigDir = expanded
	}
	s.applyDefaults()
	if s.Concurrency < 0 {
		return Settings{}, fmt.Errorf("parse settings %s: concurrency must be >= 0", path)
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	if len(s.BuildCommand) == 0 {
		s.BuildCommand = append(Command(nil), DefaultBuildCommand...)
	}
	if s.Concurrency == 0 {
		s.Concurrency = runtime.GOMAXPROCS(0)
	}
	if s.Watch.Debounce <= 0 {
		s.Watch.Debounce = Duration(DefaultDebounce)
	}
	if s.Template.LeftDelim == "" {
		s.Template.LeftDelim = DefaultLeftDelim
	}
	if s.Template.RightDelim == "" {
		s.Template.RightDelim = DefaultRightDelim
	}
}

// InitialBuild reports whether watch mode builds once before waiting for changes.
func (s Settings) InitialBuild() bool {
	return s.Watch.Initial == nil || *s.Watch.Initial
}

// YAML renders the effective settings for print-settings.
func (s Settings) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}
