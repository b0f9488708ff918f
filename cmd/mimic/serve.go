package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/hub"
	"github.com/teslashibe/go-mimic/pkg/ingest"
	"github.com/teslashibe/go-mimic/pkg/kinematics"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/record"
	"github.com/teslashibe/go-mimic/pkg/remote"
	"github.com/teslashibe/go-mimic/pkg/retarget"
	"github.com/teslashibe/go-mimic/pkg/servo"
	"github.com/teslashibe/go-mimic/pkg/urdf"
	"github.com/teslashibe/go-mimic/pkg/web"
)

type ServeCommand struct {
	Port     string `short:"p" long:"port" description:"HTTP port (overrides server.port)"`
	Robot    string `short:"r" long:"robot" description:"URDF path or URL (overrides robot.description)"`
	Remote   string `long:"remote" description:"Renderer WebSocket URL to push joints to (overrides remote.url)"`
	NoRecord bool   `long:"no-record" description:"Do not record sessions"`
	Preview  bool   `long:"preview" description:"Broadcast rendered overlay JPEGs to renderers"`
}

func (c *ServeCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Server.Port = c.Port
	}
	if c.Robot != "" {
		cfg.Robot.Description = c.Robot
	}
	if c.Remote != "" {
		cfg.Remote.URL = c.Remote
	}
	if c.Preview {
		cfg.Server.Preview = true
	}
	logger := log.Component("serve")

	// Graceful shutdown on SIGINT / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		tree     *kinematics.Tree
		warnings []urdf.Warning
	)
	if cfg.Robot.Description != "" {
		res, err := urdf.Load(ctx, cfg.Robot.Description)
		if err != nil {
			return fmt.Errorf("load robot: %w", err)
		}
		tree, warnings = res.Tree, res.Warnings
	} else {
		logger.Warn("no robot description configured, joint commands will not drive a tree")
	}

	engine := retarget.NewEngine(cfg.Retarget, nil)
	driver := pipeline.NewDriver(cfg.Pipeline, engine, tree)

	renderers := hub.New("renderers")
	renderer := hub.NewRenderer(renderers)
	renderer.Preview = cfg.Server.Preview
	driver.AddFrameSink(renderer)
	driver.SetOverlaySink(renderer)

	estimators := ingest.NewHub()
	estimators.OnConnect(func(s *ingest.Stream) {
		// The newest estimator takes over
		driver.SwitchSource(s.ID, s, s)
	})

	var store *record.Store
	if cfg.Record.Path != "" && !c.NoRecord {
		if store, err = record.Open(cfg.Record.Path); err != nil {
			return err
		}
		defer store.Close()

		robotName := ""
		if tree != nil {
			robotName = tree.Name
		}
		recorder := record.NewRecorder(store, robotName, cfg.Record.Every)
		defer recorder.Close()
		driver.AddFrameSink(recorder)
		logger.Info("recording sessions", "path", cfg.Record.Path)
	}

	var rc *remote.Client
	if cfg.Remote.URL != "" {
		rc = remote.New(cfg.Remote)
		defer rc.Close()
		driver.AddFrameSink(rc)
		logger.Info("pushing joints to remote renderer", "url", cfg.Remote.URL)
	}

	if cfg.Servo.Port != "" {
		out, err := servo.Open(cfg.Servo)
		if err != nil {
			return err
		}
		if err := out.Enable(ctx); err != nil {
			out.Close(context.WithoutCancel(ctx))
			return err
		}
		defer out.Close(context.WithoutCancel(ctx))
		driver.AddFrameSink(out)
	}

	server := web.NewServer(web.Options{
		Port:        cfg.Server.Port,
		Driver:      driver,
		Estimators:  estimators,
		Renderers:   renderers,
		Store:       store,
		Remote:      rc,
		Description: cfg.Robot.Description,
		Warnings:    warnings,
	})
	server.StartAsync(ctx)

	logger.Info("mimic running",
		"port", cfg.Server.Port,
		"estimator", "ws://localhost:"+cfg.Server.Port+"/ws/estimator",
		"renderer", "ws://localhost:"+cfg.Server.Port+web.RendererPath,
		"frame_interval", cfg.Pipeline.FrameInterval)

	err = driver.Run(ctx)
	logger.Info("shutting down")

	done := make(chan error, 1)
	go func() { done <- server.Shutdown() }()
	select {
	case serr := <-done:
		if serr != nil {
			logger.Warn("server shutdown", "error", serr)
		}
	case <-time.After(5 * time.Second):
		logger.Warn("server shutdown timed out")
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
