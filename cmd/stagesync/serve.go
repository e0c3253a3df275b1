package main

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lotusstage/stagesync/internal/api"
	"github.com/lotusstage/stagesync/internal/config"
	"github.com/lotusstage/stagesync/internal/dashboard"
	"github.com/lotusstage/stagesync/internal/security"
	"github.com/lotusstage/stagesync/internal/sheet"
	"github.com/lotusstage/stagesync/internal/sheetsync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Serve the events API, admin sync endpoints and dashboard",
	Long: `Start the HTTP server.

Public routes:
  GET /health
  GET /api/events            ?months=N  ?category=weekly  ?upcoming=N
  GET /api/events/{id}
  GET /api/events.ics

Admin routes (Authorization: Bearer <auth.admin_token>):
  POST  /api/admin/sync         preview sheet conflicts
  PUT   /api/admin/sync         apply {"resolutions": [...]}
  GET   /api/admin/events
  PATCH /api/admin/events/{id}
  GET   /api/admin/ws           live dashboard feed

Changes to log.level in the config file take effect without a restart.
With sheet.source file and sheet.watch true, every save of the schedule
file triggers a preview that is pushed to dashboard clients. Nothing is
applied until an operator sends PUT /api/admin/sync.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.ValidateServer(); err != nil {
			fatalf("%v", err)
		}
		if err := runServe(cmd.Context()); err != nil {
			fatalf("%v", err)
		}
	},
}

func runServe(ctx context.Context) error {
	log := logger.Logger

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reader, err := newReader(ctx, cfg, log)
	if err != nil {
		return err
	}

	opts := api.Options{
		Store:        db,
		Auth:         security.BearerAuth{Enabled: cfg.Auth.RequireToken, Token: cfg.Auth.AdminToken},
		Location:     cfg.Location(),
		CalendarName: "Lotus Stage",
		Logger:       log.Named("http"),
	}

	var (
		hub    *dashboard.Hub
		syncer *sheetsync.Syncer
	)
	if cfg.Dashboard.Enabled {
		hub = dashboard.NewHub(dashboard.Config{Logger: log.Named("dashboard")})
		hub.Start()
		notifier := dashboard.NewNotifier(hub).WithStats(func(ctx context.Context) (dashboard.StatsData, error) {
			c, err := db.CountEvents(ctx)
			return dashboard.StatsData{Total: c.Total, Public: c.Public, Synced: c.Synced}, err
		})
		opts.Dashboard = hub
		opts.Events = notifier
		syncer = newSyncer(reader, db, cfg, log, notifier)
	} else {
		syncer = newSyncer(reader, db, cfg, log, nil)
	}
	opts.Syncer = syncer

	loader.Watch(func(ev fsnotify.Event, next *config.Config, err error) {
		if err != nil {
			log.Warn("ignoring invalid config change", zap.String("file", ev.Name), zap.Error(err))
			return
		}
		if next.Log.Level != logger.Level().String() {
			if err := logger.SetLevel(next.Log.Level); err == nil {
				log.Info("log level changed", zap.String("level", next.Log.Level))
			}
		}
		if next.Listen != cfg.Listen || next.Database != cfg.Database || next.Sheet != cfg.Sheet || next.Auth != cfg.Auth {
			log.Warn("config changed; restart to apply", zap.String("file", ev.Name))
		}
	})

	srv := api.New(opts)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Sheet.Watch {
		if err := watchSheet(gctx, g, syncer, log); err != nil {
			if hub != nil {
				hub.Stop()
			}
			return err
		}
	}
	g.Go(func() error {
		return srv.ListenAndServe(gctx, cfg.Listen)
	})
	if hub != nil {
		g.Go(func() error {
			<-gctx.Done()
			hub.Stop()
			return nil
		})
	}

	log.Info("stagesync serving",
		zap.String("listen", cfg.Listen),
		zap.String("database", db.Backend()),
		zap.String("sheet_source", cfg.Sheet.Source),
		zap.Bool("dashboard", hub != nil),
		zap.Bool("watch", cfg.Sheet.Watch),
	)
	return g.Wait()
}

// watchSheet previews the schedule file every time it changes. Previews
// reach dashboard clients through the syncer's notifier.
func watchSheet(ctx context.Context, g *errgroup.Group, syncer *sheetsync.Syncer, log *zap.Logger) error {
	w, err := sheet.NewWatcher(cfg.Sheet.File, sheet.DefaultDebounce)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return err
	}
	log.Info("watching schedule file", zap.String("file", cfg.Sheet.File))

	g.Go(func() error {
		return syncer.PreviewOnChange(ctx, w.Changes())
	})
	g.Go(func() error {
		for err := range w.Errors() {
			log.Warn("schedule watcher error", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return w.Stop()
	})
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
