package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"

	"github.com/ledenev737/BuhWise/internal/cli"
	"github.com/ledenev737/BuhWise/pkg/config"
	"github.com/ledenev737/BuhWise/pkg/logger"
)

var (
	configPath = flag.String("config", "", "Path to a buhwise.yaml config file.")
	verbose    = flag.Bool("v", false, "Log store activity to stderr.")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	app := &cli.App{}
	cli.Register(commander, app)

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}

	log := logger.Discard()
	if *verbose {
		log = logger.New(logger.Options{Env: cfg.Env, Format: cfg.LogFormat, Output: os.Stderr})
	}
	*app = *cli.NewApp(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(int(commander.Execute(ctx)))
}
