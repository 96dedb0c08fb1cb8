package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ImageMeta is the license record stored next to a shared image as <image>.yml.
type ImageMeta struct {
	Title   string `yaml:"title"`
	Author  string `yaml:"author"`
	License string `yaml:"license"`
}

// ImageLookup returns metadata for an image path relative to the image root.
type ImageLookup func(image string) (ImageMeta, bool, error)

// ImagesFrom looks metadata up as <dir>/<image>.yml.
func ImagesFrom(dir string) ImageLookup {
	return func(image string) (ImageMeta, bool, error) {
		p := filepath.Join(dir, filepath.FromSlash(strings.TrimSuffix(image, filepath.Ext(image)))+".yml")
		raw, err := os.ReadFile(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return ImageMeta{}, false, nil
			}
			return ImageMeta{}, false, err
		}
		var meta ImageMeta
		if err := yaml.Unmarshal(raw, &meta); err != nil {
			return ImageMeta{}, false, fmt.Errorf("parse %s: %w", p, err)
		}
		return meta, true, nil
	}
}

// image renders \img<modifier>[<title>, <author>, <license>.]{<path>}{<scale>}.
// Arguments: path, optional modifier, optional scale.
func (r *Renderer) image(args ...any) (string, error) {
	if len(args) == 0 || len(args) > 3 {
		return "", fmt.Errorf("image expects 1 to 3 arguments, got %d", len(args))
	}
	p := fmt.Sprint(args[0])
	modifier, scale := "", ""
	if len(args) >= 2 {
		modifier = fmt.Sprint(args[1])
		scale = "{1}"
	}
	if len(args) == 3 {
		switch v := args[2].(type) {
		case float64:
			scale = fmt.Sprintf("{%.2f}", v)
		case int:
			scale = fmt.Sprintf("{%.2f}", float64(v))
		case int64:
			scale = fmt.Sprintf("{%.2f}", float64(v))
		default:
			scale = fmt.Sprintf("{%v}", v)
		}
	}
	info := ""
	if r.opts.Images != nil {
		meta, ok, err := r.opts.Images(p)
		if err != nil {
			return "", err
		}
		if ok {
			info = fmt.Sprintf("[%s, %s, %s.]", meta.Title, meta.Author, meta.License)
		}
	}
	return fmt.Sprintf(`\img%s%s{%s}%s`, modifier, info, p, scale), nil
}
