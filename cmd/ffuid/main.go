package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"ffui/internal/config"
	"ffui/internal/daemonrun"
	"ffui/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ffuid %s\n", version.Version)
		return
	}

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ffuid: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "ffuid: %v\n", err)
		os.Exit(1)
	}
}
