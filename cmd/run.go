package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a live attendance session in the terminal",
	Long: `Open the camera and mark attendance until interrupted.
Every known face is recorded once per session. Press Ctrl+C (or q in the
preview window) to stop after the current frame.`,
	Example: `  face-attendance run
  face-attendance run --preview --threshold 0.5`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("preview", false, "Show the annotated feed in a window")
	runCmd.Flags().Float64("threshold", 0, "Match distance threshold (overrides MATCH_THRESHOLD)")
	runCmd.Flags().Int("camera", -1, "Camera index (overrides CAMERA_INDEX)")
}

// printMarks writes one line per new attendance mark.
func printMarks(out stream.Output) {
	for _, e := range out.Marked {
		fmt.Printf("%s  %s\n", e.Timestamp.Format(ledger.TimestampLayout), e.Identity)
	}
}

// previewSink shows frames in a window and stops the session when q or Esc
// is pressed.
func previewSink(win *camera.Window, sess *session.Context) stream.Sink {
	return stream.SinkFunc(func(out stream.Output) {
		key, err := win.Show(out.Frame)
		if err != nil {
			logging.Warn(logging.Fields{"error": err}, "preview failed")
			return
		}
		if key == 'q' || key == 27 {
			sess.Stop()
		}
	})
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if idx := mustGetInt(cmd, "camera"); idx >= 0 {
		cfg.Camera.Index = idx
	}

	a := newApp(cfg)
	defer a.Close()
	if err := a.applyThreshold(mustGetFloat64(cmd, "threshold")); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := a.newProvider(ctx, false)
	if err != nil {
		return err
	}
	g, stats, err := provider.Current(ctx)
	if err != nil {
		return fmt.Errorf("failed to load gallery: %w", err)
	}
	sess, err := session.Start(g, true)
	if errors.Is(err, session.ErrEmptyGallery) {
		return errors.New("no known faces found, enroll some first")
	}
	if err != nil {
		return err
	}

	loop, err := a.newLoop(ctx)
	if err != nil {
		return err
	}

	sinks := []stream.Sink{stream.SinkFunc(printMarks)}
	if mustGetBool(cmd, "preview") {
		win := camera.NewWindow("Face Attendance")
		defer win.Close()
		sinks = append(sinks, previewSink(win, sess))
	}
	notifier, closeNotifier := connectNotifier(cfg)
	defer closeNotifier()
	if notifier != nil {
		sinks = append(sinks, notifier)
	}

	// first signal stops at the next frame boundary, a second one cancels
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\nStopping after the current frame...")
			sess.Stop()
		case <-ctx.Done():
			return
		}
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	fmt.Printf("Session %s: %d identities, %d gallery entries, threshold %.2f\n",
		sess.ID, stats.Groups, stats.Entries, cfg.Match.Threshold)
	fmt.Println("Press Ctrl+C to stop")

	sum, err := loop.Run(ctx, sess, stream.Tee(sinks...))
	fmt.Printf("\nProcessed %d frames, marked %d people\n", sum.Frames, len(sum.Marked))
	if errors.Is(err, camera.ErrReadFailed) || errors.Is(err, camera.ErrOpenFailed) {
		return fmt.Errorf("failed to access camera: %w", err)
	}
	return err
}
