package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/notify"
	"github.com/kozaktomas/face-attendance/internal/stream"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance web server.
The web interface starts and stops live attendance sessions, shows the
annotated camera feed, accepts new enrollment images and lists the
attendance ledger.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (defaults to random)")
	serveCmd.Flags().Float64("threshold", 0, "Match distance threshold (overrides MATCH_THRESHOLD)")
}

// resolveServeHostPort applies flag overrides on top of the environment.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		cfg.Web.SessionSecret = secret
	}
}

// connectNotifier returns the MQTT publisher as a sink, or a nil interface
// when notifications are disabled or the broker is unreachable.
func connectNotifier(cfg *config.Config) (stream.Sink, func()) {
	pub, err := notify.Connect(cfg.MQTT, logging.Component("mqtt"))
	if err != nil {
		fmt.Printf("Warning: MQTT notifications disabled: %v\n", err)
		return nil, func() {}
	}
	if pub == nil {
		return nil, func() {}
	}
	fmt.Printf("Publishing attendance to MQTT topic %s\n", cfg.MQTT.Topic)
	return pub, func() { _ = pub.Close() }
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	resolveServeHostPort(cmd, cfg)

	a := newApp(cfg)
	defer a.Close()
	if err := a.applyThreshold(mustGetFloat64(cmd, "threshold")); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := a.newProvider(ctx, true)
	if err != nil {
		return err
	}
	loop, err := a.newLoop(ctx)
	if err != nil {
		return err
	}

	notifier, closeNotifier := connectNotifier(cfg)
	defer closeNotifier()

	log := logging.Component("web")
	live := handlers.NewLiveHandler(provider, loop, handlers.NewFrameHub(log), notifier, log)

	server, err := web.NewServer(cfg, web.Deps{
		Gallery: provider,
		Store:   gallery.NewStore(cfg.Gallery.Dir),
		Ledger:  a.ledger,
		Live:    live,
	}, log)
	if err != nil {
		return err
	}

	// warm the gallery so the first start does not wait on embedding
	go func() {
		if _, stats, err := provider.Current(ctx); err != nil {
			log.WithError(err).Warn("initial gallery load failed")
		} else if stats.Entries == 0 {
			log.Warn("gallery is empty, enroll faces before starting attendance")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance Web UI on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
