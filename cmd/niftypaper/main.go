package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"nifty-paper/internal/cli"
	"nifty-paper/internal/config"
	"nifty-paper/internal/logging"
)

func main() {
	// Optional .env in the working directory; real env vars win.
	_ = godotenv.Load()

	configDir := ""
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			configDir = os.Args[i+1]
		}
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger()

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
