/*
Demo application that drives the engine with the testbed game: a
spinning triangle and a small stats overlay.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/vktogo/engine"
	"github.com/spaghettifunk/vktogo/engine/config"
	"github.com/spaghettifunk/vktogo/engine/core"
	"github.com/spaghettifunk/vktogo/testbed"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			core.LogFatal("unable to load configuration: %s", err)
		}
	}
	core.SetLogLevel(cfg.Log.Level)

	tb, err := testbed.NewTestGame(cfg.Renderer.ShaderDir)
	if err != nil {
		core.LogFatal(err.Error())
	}

	e, err := engine.New(cfg, tb.Game)
	if err != nil {
		core.LogFatal(err.Error())
	}
	defer func() {
		if err := e.Shutdown(); err != nil {
			core.LogError("shutdown: %s", err)
		}
	}()

	if err := e.Initialize(); err != nil {
		core.LogError("initialization failed: %s", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := e.Run(ctx); err != nil {
		core.LogError("engine stopped: %s", err)
	}
}
