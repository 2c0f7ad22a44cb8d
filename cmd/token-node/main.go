package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chainsafe/canton-token-flows/pkg/app"
	"github.com/chainsafe/canton-token-flows/pkg/app/node"
	"github.com/chainsafe/canton-token-flows/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = node.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Token node stopped with error: %v\n", err)
		os.Exit(1)
	}
}
