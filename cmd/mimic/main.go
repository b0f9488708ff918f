// Command mimic retargets human pose landmarks onto a robot described by
// a URDF file.
package main

import (
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/teslashibe/go-mimic/internal/config"
	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/debug"
)

type Options struct {
	Config      string `short:"c" long:"config" env:"MIMIC_CONFIG" description:"YAML config file"`
	Debug       bool   `long:"debug" description:"Enable debug logging"`
	DebugFrames bool   `long:"debug-frames" description:"Also log per-frame retargeting details (very verbose)"`

	Serve    ServeCommand    `command:"serve" description:"Run the retargeting server"`
	Inspect  InspectCommand  `command:"inspect" description:"Parse a robot description and print its tree"`
	Sessions SessionsCommand `command:"sessions" description:"List recorded sessions and their frames"`
	Monitor  MonitorCommand  `command:"monitor" description:"Chart live joint commands from a running server"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

// loadConfig reads configuration and initializes logging
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	level := cfg.Log.Level
	if opts.Debug || opts.DebugFrames {
		level = "debug"
		debug.Enabled = true
		debug.Frames = opts.DebugFrames
	}
	log.Init(log.Options{Level: level, Format: cfg.Log.Format, Output: os.Stderr})
	return cfg, nil
}

func main() {
	parser.LongDescription = "mimic - real-time human pose to robot joint retargeting"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
