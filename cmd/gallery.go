package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect and build the face gallery",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities and their images",
	Long:  `Lists every identity directory under GALLERY_DIR with the number of enrollment images it holds. No faces are detected.`,
	RunE:  runGalleryList,
}

var galleryBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed every enrollment image and report the result",
	Long: `Detects faces in every enrollment image and prints how many gallery entries
each identity produced. With DATABASE_URL set, embeddings are cached in
PostgreSQL so later loads only embed new or changed images.`,
	Example: `  face-attendance gallery build
  face-attendance gallery build --prune
  face-attendance gallery build --json`,
	RunE: runGalleryBuild,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryBuildCmd)

	galleryBuildCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
	galleryBuildCmd.Flags().Bool("prune", false, "Delete cached embeddings of images no longer in the gallery")
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	groups, err := gallery.NewDirSource(cfg.Gallery.Dir).Groups()
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Printf("No identities found in %s.\n", cfg.Gallery.Dir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tIMAGES")
	fmt.Fprintln(w, "--------\t------")
	images := 0
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%d\n", g.Identity, len(g.Images))
		images += len(g.Images)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d identities, %d images\n", len(groups), images)
	return nil
}

// GalleryBuildOutput is the JSON result of gallery build.
type GalleryBuildOutput struct {
	Success       bool                       `json:"success"`
	Stats         gallery.Stats              `json:"stats"`
	PerIdentity   map[facematch.Identity]int `json:"per_identity"`
	Pruned        int64                      `json:"pruned"`
	DurationMs    int64                      `json:"duration_ms"`
	DurationHuman string                     `json:"duration_human,omitempty"`
}

func runGalleryBuild(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	prune := mustGetBool(cmd, "prune")
	cfg := config.Load()
	ctx := context.Background()

	a := newApp(cfg)
	defer a.Close()

	loader, err := a.newLoader(ctx)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		loader.OnProgress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Embedding gallery"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("images"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(done)
		}
	}

	start := time.Now()
	src := gallery.NewDirSource(cfg.Gallery.Dir)
	g, stats, err := loader.Load(ctx, src)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return fmt.Errorf("failed to build gallery: %w", err)
	}

	var pruned int64
	if prune {
		pruned, err = pruneCache(ctx, a.pool, src, cfg.Embedder.Backend)
		if err != nil {
			return err
		}
	}

	perIdentity := make(map[facematch.Identity]int)
	for _, e := range g {
		perIdentity[e.Identity]++
	}
	duration := time.Since(start)

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(GalleryBuildOutput{
			Success:       true,
			Stats:         stats,
			PerIdentity:   perIdentity,
			Pruned:        pruned,
			DurationMs:    duration.Milliseconds(),
			DurationHuman: duration.Round(time.Millisecond).String(),
		})
	}

	if len(g) == 0 {
		fmt.Println("No known faces found. Please upload some first.")
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "IDENTITY\tENTRIES")
		fmt.Fprintln(w, "--------\t-------")
		for _, id := range g.Identities() {
			fmt.Fprintf(w, "%s\t%d\n", id, perIdentity[id])
		}
		w.Flush()
	}

	fmt.Printf("\nIdentities: %d, images: %d, entries: %d\n", stats.Groups, stats.Images, stats.Entries)
	fmt.Printf("Skipped: %d without a face, %d unreadable\n", stats.NoFace, stats.Failed)
	if loader.Cache != nil {
		fmt.Printf("Cache hits: %d\n", stats.CacheHit)
	}
	if prune {
		fmt.Printf("Pruned: %d cached embeddings\n", pruned)
	}
	fmt.Printf("Took %s\n", duration.Round(time.Millisecond))
	return nil
}

// pruneCache drops cached embeddings for images that are no longer enrolled.
func pruneCache(ctx context.Context, pool *postgres.Pool, src gallery.Source, model string) (int64, error) {
	if pool == nil {
		return 0, errors.New("--prune needs DATABASE_URL")
	}
	groups, err := src.Groups()
	if err != nil {
		return 0, err
	}
	keep := []string{}
	for _, g := range groups {
		for _, img := range g.Images {
			keep = append(keep, img.Rel)
		}
	}
	n, err := postgres.NewEmbeddingRepository(pool).Prune(ctx, model, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune embedding cache: %w", err)
	}
	return n, nil
}
