package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"gamezipserver/internal/cli/command"
	"gamezipserver/internal/cli/config"
	httpclient "gamezipserver/internal/cli/http"
	"gamezipserver/internal/cli/repl"
)

const defaultConfigPath = "configs/cli.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to CLI config file")
	baseURL := flag.String("base", "", "archive server base URL (overrides config)")
	timeout := flag.Duration("timeout", 0, "HTTP timeout, e.g. 10s (overrides config)")
	pretty := flag.Bool("pretty", false, "indent JSON responses")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// A missing default config is fine; anything else is fatal.
		if !errors.Is(err, os.ErrNotExist) || *configPath != defaultConfigPath {
			fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
			return
		}
		cfg = config.Default()
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Timeout = *timeout
	}
	if *pretty {
		on := true
		cfg.PrettyJSON = &on
	}

	client := httpclient.New(cfg.BaseURL, cfg.Timeout)
	commands := command.Registry()
	session := repl.New(client, commands, cfg.HistoryPath, cfg.PrettyJSON != nil && *cfg.PrettyJSON)
	if err := session.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "repl failed: %v\n", err)
	}
}
