package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/tradecore-lab/tradecore/internal/config"
)

// Generates the JSON schema for the run configuration so editors with a
// yaml-language-server can validate config files.
func main() {
	var cfg config.Config

	schemaJSON, err := cfg.GenerateSchemaJSON()
	if err != nil {
		log.Fatalf("Failed to generate schema: %v", err)
	}

	schemaPath := filepath.Join("./config", "tradecore-config.json")

	if err := os.MkdirAll(filepath.Dir(schemaPath), 0755); err != nil {
		log.Fatalf("Failed to create config directory: %v", err)
	}

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		log.Fatalf("Failed to write schema to file: %v", err)
	}

	log.Printf("Schema written to %s", schemaPath)
}
