// Package gallery builds the face gallery from a directory of enrollment
// images laid out as <root>/<identity>/<image>.
package gallery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// imagePattern matches enrollment file names, compared lowercase.
const imagePattern = "*.{jpg,jpeg,png,bmp,gif}"

// Image is one enrollment image.
type Image struct {
	Rel  string // slash separated path relative to the gallery root
	Size int64
	Mod  int64 // modification time, unix nanoseconds
}

// Group is the enrollment images of one identity, in lexical order.
type Group struct {
	Identity facematch.Identity
	Images   []Image
}

// DirSource lists enrollment images under Root.
type DirSource struct {
	Root string
	fsys fs.FS
}

func NewDirSource(root string) *DirSource {
	return &DirSource{Root: root, fsys: os.DirFS(root)}
}

// IsImage reports whether name has an accepted enrollment extension.
func IsImage(name string) bool {
	ok, _ := doublestar.Match(imagePattern, strings.ToLower(path.Base(name)))
	return ok
}

// Groups returns one group per identity directory that holds at least one
// image, sorted by identity name and then image name. A missing root is an
// empty gallery.
func (s *DirSource) Groups() ([]Group, error) {
	if _, err := fs.Stat(s.fsys, "."); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	matches, err := doublestar.Glob(s.fsys, "*/*")
	if err != nil {
		return nil, fmt.Errorf("list enrollment images: %w", err)
	}
	sort.Slice(matches, func(i, j int) bool {
		di, dj := path.Dir(matches[i]), path.Dir(matches[j])
		if di != dj {
			return di < dj
		}
		return path.Base(matches[i]) < path.Base(matches[j])
	})

	var groups []Group
	index := make(map[facematch.Identity]int)
	for _, rel := range matches {
		if !IsImage(rel) {
			continue
		}
		info, err := fs.Stat(s.fsys, rel)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		id := facematch.Identity(path.Dir(rel))
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, Group{Identity: id})
		}
		groups[i].Images = append(groups[i].Images, Image{
			Rel:  rel,
			Size: info.Size(),
			Mod:  info.ModTime().UnixNano(),
		})
	}
	return groups, nil
}

// ReadFile reads an enrollment image by its relative path.
func (s *DirSource) ReadFile(rel string) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, rel)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, nil
}
