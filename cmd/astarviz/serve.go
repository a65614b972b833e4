package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/astarviz/internal/api"
	"github.com/AaronLay10/astarviz/internal/config"
	"github.com/AaronLay10/astarviz/internal/events"
	"github.com/AaronLay10/astarviz/internal/metrics"
	"github.com/AaronLay10/astarviz/internal/mqtt"
	"github.com/AaronLay10/astarviz/internal/relay"
	"github.com/AaronLay10/astarviz/internal/scheduler"
	"github.com/AaronLay10/astarviz/internal/session"
	"github.com/AaronLay10/astarviz/internal/storage/postgres"
	"github.com/AaronLay10/astarviz/internal/version"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the visualizer UI, HTTP API and live streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if root.logLevel != "" {
				cfg.Log.Level = root.logLevel
			}
			if root.logFormat != "" {
				cfg.Log.Format = root.logFormat
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cmd)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "override server.port")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logger := newLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	setLogger(logger)

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "astarviz starting", map[string]interface{}{
		"service":  "astarviz",
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})
	defer events.CloseAllSubscribers()

	creds, err := config.ResolveCredentials()
	if err != nil {
		return err
	}

	var store *postgres.Store
	if cfg.Postgres.Enabled || cfg.Graph.Source == config.SourcePostgres {
		store, err = postgres.New(ctx)
		if err != nil {
			if cfg.Graph.Source == config.SourcePostgres {
				return err
			}
			logger.Warn("postgres unavailable, continuing without it", "error", err)
			metrics.SetComponentUp("postgres", false)
		} else {
			defer store.Close()
			metrics.SetComponentUp("postgres", true)
		}
	}

	var loader graphLoader
	if store != nil {
		loader = store
	}
	g, err := loadConfiguredGraph(ctx, cfg, loader)
	if err != nil {
		return err
	}

	speed, err := scheduler.ParseSpeed(cfg.Search.Speed)
	if err != nil {
		return err
	}
	sched := scheduler.New(
		scheduler.WithBaseDelay(cfg.Search.BaseDelay),
		scheduler.WithLogger(logger),
	)
	sess, err := session.New(g,
		session.WithLogger(logger),
		session.WithSpeed(speed),
		session.WithScheduler(sched),
		session.WithTickPeriod(cfg.Search.TickPeriod),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	auth := api.NewAuth(creds)
	if !auth.Enabled() {
		logger.Warn("basic auth disabled, control endpoints are open")
	}
	opts := []api.Option{api.WithLogger(logger), api.WithAuth(auth)}
	if store != nil {
		opts = append(opts, api.WithReadinessCheck("postgres", store.Ping))
	}

	if cfg.MQTT.Enabled {
		bridge := mqtt.NewBridge(mqtt.Options{
			URL:      cfg.MQTT.URL,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: creds.MQTTPassword,
			Logger:   logger,
		}, cfg.MQTT.TopicPrefix, sess)
		sess.AddPublisher(bridge)
		if err := bridge.Start(); err != nil {
			logger.Warn("mqtt bridge not connected yet", "error", err)
		}
		defer bridge.Close()
		opts = append(opts, api.WithReadinessCheck("mqtt", bridge.Check))
	}

	if cfg.Redis.Enabled {
		rel, err := relay.NewRedis(relay.Config{
			URL:      cfg.Redis.URL,
			Password: creds.RedisPassword,
			Channel:  cfg.Redis.Channel,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		sess.AddPublisher(rel)
		if err := rel.Start(ctx); err != nil {
			logger.Warn("redis relay not connected yet", "error", err)
		}
		defer rel.Close()
		opts = append(opts, api.WithReadinessCheck("redis", rel.Check))
	}

	tlsCfg, err := api.LoadTLSConfig(cfg.Server.TLSCert, cfg.Server.TLSKey)
	if err != nil {
		return err
	}

	srv := api.NewServer(sess, opts...)
	sess.StartTicker()

	logger.Info("astarviz ready",
		"graph", g.Name(),
		"nodes", g.Len(),
		"speed", speed.String(),
		"addr", cfg.Addr(),
	)
	err = srv.ListenAndServe(ctx, cfg.Addr(), tlsCfg)

	events.Emit("info", "system.shutdown", "astarviz stopping", map[string]interface{}{
		"service": "astarviz",
	})
	return err
}
