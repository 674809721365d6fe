// ABOUTME: Entry point for the real-time pitch-shifting passthrough
// ABOUTME: Parses configuration and runs the controller, TUI and status server together
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-pitch/internal/app"
	"github.com/Resonate-Protocol/resonate-pitch/internal/config"
	"github.com/Resonate-Protocol/resonate-pitch/internal/discovery"
	"github.com/Resonate-Protocol/resonate-pitch/internal/observe"
	"github.com/Resonate-Protocol/resonate-pitch/internal/server"
	"github.com/Resonate-Protocol/resonate-pitch/internal/ui"
	"github.com/Resonate-Protocol/resonate-pitch/internal/version"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/driver"
	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio/engine"
	tea "github.com/charmbracelet/bubbletea"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var (
	listDevices = flag.Bool("list", false, "List audio devices and exit")
	browse      = flag.Duration("discover", 0, "Browse the LAN for other instances for this long and exit")
)

// osExit is replaced in tests
var osExit = os.Exit

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	if *browse > 0 {
		discoverInstances(os.Stdout, *browse)
		return
	}

	drv, err := driver.New(cfg.Driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	params := engine.Params{Semitones: cfg.Semitones}
	controller := app.New(drv, app.Config{
		Input:           cfg.InputDevice,
		Output:          cfg.OutputDevice,
		FramesPerBuffer: cfg.FramesPerBuffer,
		Engine:          engine.NewFactory(cfg.EngineOptions()),
		Params:          params,
	})

	if *listDevices {
		if err := app.ListDevices(os.Stdout, controller); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list devices: %v\n", err)
			os.Exit(1)
		}
		return
	}

	useTUI := !cfg.NoTUI

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s %s (driver: %s, engine: %s, session: %s)",
		version.Product, version.Version, drv.Name(), ui.EngineLabel(engine.Kind(cfg.Engine), params), controller.SessionID())

	if err := run(cfg, drv, controller, useTUI, params); err != nil {
		log.Printf("Passthrough failed: %v", err)
		if useTUI {
			fmt.Fprintf(os.Stderr, "Passthrough failed: %v\n", err)
		}
		exitWith(f, 1)
	}

	log.Printf("Passthrough stopped")
}

// exitWith closes the log file, then exits with code
func exitWith(logFile io.Closer, code int) {
	if err := logFile.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
	}
	osExit(code)
}

// run streams until a signal, TUI quit, ENTER (without TUI) or a failure
func run(cfg *config.Config, drv driver.Driver, controller *app.Controller, useTUI bool, params engine.Params) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.ListenAddr != "" {
		shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version.Version})
		if err != nil {
			return fmt.Errorf("metrics provider: %w", err)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdown(shutdownCtx); err != nil {
				log.Printf("Metrics shutdown error: %v", err)
			}
		}()

		metrics, err := observe.NewMetrics(otel.GetMeterProvider(), controller,
			attribute.String("driver", drv.Name()), attribute.String("session", controller.SessionID()))
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		defer metrics.Close()

		srv := server.New(server.Config{
			Addr:       cfg.ListenAddr,
			Name:       cfg.Name,
			EnableMDNS: cfg.MDNS,
		}, controller)
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	var tuiProg *tea.Program
	if useTUI {
		var err error
		tuiProg, err = ui.Run(ui.EngineLabel(engine.Kind(cfg.Engine), params))
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
	}

	g.Go(func() error {
		return controller.Run(gctx)
	})

	if tuiProg != nil {
		g.Go(func() error {
			defer cancel()
			if _, err := tuiProg.Run(); err != nil {
				return fmt.Errorf("TUI: %w", err)
			}
			log.Printf("Received quit signal from TUI")
			return nil
		})
		g.Go(func() error {
			statusLoop(gctx, controller, tuiProg)
			tuiProg.Quit()
			return nil
		})
	} else {
		log.Printf("TUI disabled - press ENTER to stop")
		go func() {
			_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
			cancel()
		}()
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// statusLoop periodically sends controller snapshots to the TUI
func statusLoop(ctx context.Context, controller *app.Controller, prog *tea.Program) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		prog.Send(ui.StatusMsg{Status: controller.Status(), At: time.Now()})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// discoverInstances lists instances advertising their status feed
func discoverInstances(w io.Writer, timeout time.Duration) {
	log.SetOutput(io.Discard)

	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()
	disc.Browse()

	seen := make(map[string]bool)
	deadline := time.After(timeout)
	for {
		select {
		case s := <-disc.Servers():
			url := s.URL()
			if seen[url] {
				continue
			}
			seen[url] = true
			fmt.Fprintf(w, "%s\t%s\n", s.Name, url)
		case <-deadline:
			if len(seen) == 0 {
				fmt.Fprintln(w, "No instances found")
			}
			return
		}
	}
}
