package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Gowithe/scangrade-thai/internal/config"
	"github.com/Gowithe/scangrade-thai/internal/detector"
	"github.com/Gowithe/scangrade-thai/internal/geometry"
	"github.com/Gowithe/scangrade-thai/internal/keystore"
	"github.com/Gowithe/scangrade-thai/internal/logging"
	"github.com/Gowithe/scangrade-thai/internal/marks"
	"github.com/Gowithe/scangrade-thai/internal/ocr"
	"github.com/Gowithe/scangrade-thai/internal/omr"
	"github.com/Gowithe/scangrade-thai/internal/server"
	"github.com/Gowithe/scangrade-thai/internal/template"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("scangrade %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "scangrade: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	log.WithFields(logrus.Fields{
		"version":  Version,
		"commit":   GitCommit,
		"detector": cfg.Detector,
	}).Info("Starting scangrade")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, log, os.Stdin, os.Stdout)
	stop()
	if err != nil {
		log.WithField("error", err.Error()).Fatal("Server error")
	}
	log.Info("Stopped")
}

// run wires the grading engine and serves MCP requests from in until in is
// closed or ctx is cancelled. Everything it opens is closed before it
// returns.
func run(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, in io.Reader, out io.Writer) error {
	registry := template.NewDirRegistry(cfg.TemplateDir)
	if err := registry.LoadAll(); err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	det, err := detector.Default.Get(cfg.Detector+"|"+cfg.DetectorURL, func() (marks.Detector, error) {
		return detector.New(cfg.Detector, cfg.DetectorURL, detector.WithLogger(log))
	})
	if err != nil {
		return fmt.Errorf("failed to set up mark detector: %w", err)
	}
	if c, ok := det.(io.Closer); ok {
		defer c.Close()
	}

	keys, closeKeys, err := openKeyStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open key store: %w", err)
	}
	defer closeKeys()

	opts := []omr.Option{
		omr.WithLogger(log),
		omr.WithSettings(omr.SettingsFromConfig(cfg)),
	}
	if cfg.OCREnabled {
		reader := ocr.NewReader(cfg.OCRLanguage)
		reader.Whitelist = cfg.OCRWhitelist
		reader.TessdataPrefix = cfg.TessdataPrefix
		opts = append(opts, omr.WithHeaderReader(reader))
	}
	engine := omr.New(geometry.NewRectifier(cfg.Rectifier()), registry, det, opts...)

	srv := server.New(engine, keys, server.WithLogger(log), server.WithVersion(Version))
	if err := srv.Serve(ctx, in, out); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// openKeyStore connects to Postgres when a database URL is configured and
// falls back to process memory otherwise.
func openKeyStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (keystore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("No database configured, saved keys are kept in memory")
		return keystore.NewMemory(), func() {}, nil
	}
	pg, err := keystore.OpenPostgres(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}
	return pg, func() { _ = pg.Close() }, nil
}

func printHelp() {
	fmt.Println("scangrade - MCP server for grading photographed answer sheets")
	fmt.Println()
	fmt.Println("Usage: scangrade [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables (also read from ./.env):")
	fmt.Println("  SCANGRADE_DETECTOR=blob|websocket    Mark detector (default blob)")
	fmt.Println("  SCANGRADE_DETECTOR_URL=ws://...      Model server for the websocket detector")
	fmt.Println("  SCANGRADE_TEMPLATE_DIR=/path         Read layouts from disk instead of the built-in ones")
	fmt.Println("  SCANGRADE_DATABASE_URL=postgres://   Keep saved answer keys in Postgres")
	fmt.Println("  SCANGRADE_DEFAULT_KEY_60=ABCD...     Default answer key per layout")
	fmt.Println("  SCANGRADE_OCR_ENABLED=false          Skip reading the student id box")
	fmt.Println("  SCANGRADE_LOG_LEVEL=debug            Log level (default info)")
	fmt.Println("  SCANGRADE_LOG_FILE=/path             Also write logs to a rotating file")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}
