package gallery

import (
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSource_Groups(t *testing.T) {
	root := t.TempDir()
	red := pngBytes(t, color.RGBA{R: 255, A: 255})
	writeFile(t, root, "bob/b.PNG", red)
	writeFile(t, root, "bob/a.jpg", red)
	writeFile(t, root, "alice/1.png", red)
	writeFile(t, root, "alice/notes.txt", []byte("hi"))
	writeFile(t, root, "alice/nested/deep.png", red)
	writeFile(t, root, "stray.png", red)
	writeFile(t, root, "empty/readme.md", []byte("x"))

	groups, err := NewDirSource(root).Groups()

	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "alice", string(groups[0].Identity))
	require.Len(t, groups[0].Images, 1)
	assert.Equal(t, "alice/1.png", groups[0].Images[0].Rel)
	assert.Equal(t, "bob", string(groups[1].Identity))
	require.Len(t, groups[1].Images, 2)
	assert.Equal(t, "bob/a.jpg", groups[1].Images[0].Rel)
	assert.Equal(t, "bob/b.PNG", groups[1].Images[1].Rel)
	assert.Equal(t, int64(len(red)), groups[1].Images[0].Size)
}

func TestDirSource_GroupsOrderByIdentityThenImage(t *testing.T) {
	root := t.TempDir()
	red := pngBytes(t, color.RGBA{R: 255, A: 255})
	writeFile(t, root, "alice-b/1.png", red)
	writeFile(t, root, "alice/2.png", red)
	writeFile(t, root, "alice/10.png", red)

	groups, err := NewDirSource(root).Groups()

	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "alice", string(groups[0].Identity))
	assert.Equal(t, "alice-b", string(groups[1].Identity))
	require.Len(t, groups[0].Images, 2)
	assert.Equal(t, "alice/10.png", groups[0].Images[0].Rel)
	assert.Equal(t, "alice/2.png", groups[0].Images[1].Rel)
}

func TestDirSource_MissingRoot(t *testing.T) {
	groups, err := NewDirSource(filepath.Join(t.TempDir(), "missing")).Groups()

	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"dir/a.png", true},
		{"a.bmp", true},
		{"a.gif", true},
		{"a.webp", false},
		{"a.txt", false},
		{"jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsImage(tt.name))
		})
	}
}
