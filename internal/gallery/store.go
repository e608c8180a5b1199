package gallery

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
)

var (
	ErrInvalidIdentity = errors.New("invalid identity name")
	ErrInvalidImage    = errors.New("file is not a supported image")
)

// Store writes uploaded enrollment images into the gallery tree.
type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Save validates data as an image and stores it as JPEG under the identity
// directory. Existing files are never overwritten. Returns the path relative
// to the root.
func (s *Store) Save(name, filename string, data []byte) (string, error) {
	id := facematch.SanitizeIdentity(name)
	if id.IsUnknown() {
		return "", ErrInvalidIdentity
	}
	if !IsImage(filename) {
		return "", fmt.Errorf("%w: %s", ErrInvalidImage, filename)
	}

	img, _, err := imageutil.Decode(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	encoded, err := imageutil.EncodeJPEG(img, imageutil.DefaultJPEGQuality)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.Root, string(id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create identity dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "face"
	}
	for i := 0; ; i++ {
		name := base + ".jpg"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.jpg", base, i)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create image file: %w", err)
		}
		if _, err := f.Write(encoded); err != nil {
			f.Close()
			return "", fmt.Errorf("write image file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close image file: %w", err)
		}
		return filepath.ToSlash(filepath.Join(string(id), name)), nil
	}
}

// Remove deletes an identity and all its enrollment images.
func (s *Store) Remove(name string) error {
	id := facematch.SanitizeIdentity(name)
	if id.IsUnknown() {
		return ErrInvalidIdentity
	}
	dir := filepath.Join(s.Root, string(id))
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("identity %s: %w", id, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove identity %s: %w", id, err)
	}
	return nil
}
