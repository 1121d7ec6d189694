// Command schema-generator writes the embedded storybook.yml JSON schema.
package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/grovetools/storybook/config"
)

func main() {
	output := filepath.Join("schema", "storybook.schema.json")

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("Error generating schema: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		log.Fatalf("Error creating schema directory: %v", err)
	}
	if err := os.WriteFile(output, append(schemaBytes, '\n'), 0644); err != nil {
		log.Fatalf("Error writing schema file: %v", err)
	}

	log.Printf("Generated config schema at %s", output)
}
