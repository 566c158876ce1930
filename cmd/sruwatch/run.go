package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sruwatch/config"
	"sruwatch/distributor"
	"sruwatch/econlog"
	"sruwatch/overlay"
	"sruwatch/overlay/window"
	"sruwatch/session"
	"sruwatch/telemetry"
)

func runCmd() *cobra.Command {
	var noOverlay bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Attach to the game and stream telemetry until it exits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if noOverlay {
				cfg.Overlay.Enabled = false
			}
			return runSession(cmd, cfg)
		},
	}
	cmd.Flags().BoolVar(&noOverlay, "no-overlay", false, "Run headless, printing deliveries instead of drawing them")
	return cmd
}

func runSession(cmd *cobra.Command, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer shutdownTracing(context.Background())

	dist := distributor.New(distributor.Config{Logger: logger("DISTRIBUTOR")})
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dist.Close(closeCtx); err != nil {
			fmt.Fprintf(os.Stderr, "closing distributor: %v\n", err)
		}
	}()

	view := overlay.NewView()
	if err := dist.Register("overlay", view); err != nil {
		return err
	}
	if !cfg.Overlay.Enabled {
		out := cmd.OutOrStdout()
		if err := dist.Register("console", distributor.ConsumerFunc(func(d distributor.Delivery) error {
			_, err := fmt.Fprintln(out, d)
			return err
		})); err != nil {
			return err
		}
	}
	var econ *econlog.Logger
	if cfg.Log.DB != "" {
		if econ, err = openEconomyLog(ctx, cfg); err != nil {
			return err
		}
		if err := dist.Register("econlog", econ); err != nil {
			return err
		}
	}

	sess, err := session.Open(session.Options{
		Config:      cfg,
		Distributor: dist,
		Logger:      logger("SESSION"),
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sess.Run(gctx) })
	if configPath != "" {
		g.Go(func() error {
			// a janela do overlay não é recriada; só sessão e gravação mudam
			return watchConfig(gctx, configPath, watchEvery, func(next config.Config) error {
				if err := sess.Update(next); err != nil {
					return err
				}
				if econ != nil {
					mode, err := econlog.ParseSaveMode(next.Log.Mode)
					if err != nil {
						return err
					}
					econ.SetMode(mode)
				}
				return nil
			}, logger("CONFIG"))
		})
	}

	if cfg.Overlay.Enabled {
		// o ebiten fica com a goroutine principal
		werr := window.Run(gctx, view, window.Options{
			Title:        "sruwatch",
			Width:        cfg.Overlay.Width,
			Height:       cfg.Overlay.Height,
			Alpha:        byte(cfg.Overlay.Alpha),
			ClickThrough: cfg.Overlay.ClickThrough,
			Logger:       logger("OVERLAY"),
		})
		stop()
		if werr != nil {
			return fmt.Errorf("overlay: %w", werr)
		}
	}
	return g.Wait()
}

func openEconomyLog(ctx context.Context, cfg config.Config) (*econlog.Logger, error) {
	start, err := cfg.StartDate()
	if err != nil {
		return nil, err
	}
	mode, err := econlog.ParseSaveMode(cfg.Log.Mode)
	if err != nil {
		return nil, err
	}
	store, err := econlog.OpenStore(ctx, cfg.Log.DB)
	if err != nil {
		return nil, err
	}
	l, err := econlog.NewLogger(ctx, store, econlog.Options{
		Game:   cfg.Log.Game,
		Nation: cfg.Log.Nation,
		Start:  start,
		Mode:   mode,
		Logger: logger("ECONLOG"),
	})
	if err != nil {
		store.Close(ctx)
		return nil, err
	}
	return l, nil
}
