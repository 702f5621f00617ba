package main

import (
	"fmt"
	"os"

	"nedwiyt/internal/cli"
	"nedwiyt/internal/config"
	"nedwiyt/internal/log"
)

func main() {
	cfg := config.LoadWithDotEnv()
	// stdout carries command output; logs go to stderr
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})

	ctx, cancel := cli.SignalContext(logger)
	root := cli.NewRootCommand(cli.Options{Logger: logger})
	err := root.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
