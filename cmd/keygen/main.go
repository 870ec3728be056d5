package main

import (
	"fmt"
	"os"

	"github.com/arnavshah/rota-api-go/pkg/auth"
	"github.com/arnavshah/rota-api-go/pkg/config"
)

func main() {
	config.LoadEnv()

	if len(os.Args) < 2 {
		fmt.Println("Usage: keygen <organizationID>")
		os.Exit(1)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.MasterSecret == "" {
		fmt.Println("Error: API_MASTER_SECRET is not configured")
		os.Exit(1)
	}

	orgID := os.Args[1]
	apiKey := auth.New(cfg.Auth).GenerateHMACKey(orgID)
	fmt.Printf("Generated Key for %s:\n%s\n", orgID, apiKey)
}
