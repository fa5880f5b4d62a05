package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const migrationsDir = "db/migrations"

func main() {
	flag.Parse()
	name := strings.Join(flag.Args(), "_")
	if name == "" {
		log.Fatal("usage: migrate-create <name>")
	}

	version := time.Now().UTC().Format("20060102150405")
	base := filepath.Join(migrationsDir, fmt.Sprintf("%s_%s", version, name))

	if err := os.MkdirAll(migrationsDir, 0o755); err != nil {
		log.Fatalf("create migrations dir: %v", err)
	}
	for _, suffix := range []string{".up.sql", ".down.sql"} {
		path := base + suffix
		if _, err := os.Stat(path); err == nil {
			log.Fatalf("file already exists: %s", path)
		}
		if err := os.WriteFile(path, []byte("-- "+name+"\n"), 0o644); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		log.Printf("created %s", path)
	}
}
