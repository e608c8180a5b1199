package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <name> <image>...",
	Short: "Add enrollment images for a person",
	Long: `Copies one or more images into GALLERY_DIR/<name>/. Images are re-encoded
as JPEG and never overwrite existing files. A running server picks the new
images up on its next session start.`,
	Example: `  face-attendance enroll "Jane Doe" jane1.jpg jane2.png`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store := gallery.NewStore(cfg.Gallery.Dir)
	name := args[0]

	saved := 0
	for _, file := range args[1:] {
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Printf("  skip %s: %v\n", file, err)
			continue
		}
		rel, err := store.Save(name, filepath.Base(file), data)
		if err != nil {
			fmt.Printf("  skip %s: %v\n", file, err)
			continue
		}
		fmt.Printf("  saved %s\n", rel)
		saved++
	}

	if saved == 0 {
		return fmt.Errorf("no images were enrolled for %q", name)
	}
	fmt.Printf("Enrolled %d images for %s\n", saved, name)
	return nil
}
