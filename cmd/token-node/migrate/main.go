package main

import (
	"context"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/canton-token-flows/pkg/config"
	"github.com/chainsafe/canton-token-flows/pkg/migrations/nodedb"
	"github.com/chainsafe/canton-token-flows/pkg/pgutil"
	mghelper "github.com/chainsafe/canton-token-flows/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	ctx := context.Background()
	db, err := pgutil.ConnectDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for token node database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, nodedb.Migrations)

	if err := mghelper.RunMigrations(ctx, migrator, flag.Args()...); err != nil {
		mghelper.Exitf("%s", err.Error())
	}
}
