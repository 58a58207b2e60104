package main

import (
	"errors"
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"

	"github.com/kirillkom/docflow/internal/config"
	"github.com/kirillkom/docflow/internal/infrastructure/repository/postgres"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration")
	steps := flag.Int("steps", 0, "apply n migrations (negative rolls back)")
	flag.Parse()

	cfg := config.Load()
	m, err := postgres.NewMigrator(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("migrator error: %v", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Printf("migrator close: source=%v database=%v", srcErr, dbErr)
		}
	}()

	switch {
	case *steps != 0:
		err = m.Steps(*steps)
	case *down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate error: %v", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatalf("migrate version error: %v", err)
	}
	log.Printf("schema version %d (dirty=%t)", version, dirty)
}
