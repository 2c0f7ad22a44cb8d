// Package migrations holds migrations related helpers
package migrations

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

const usageText = `Usage:
  token-node-migrate -config node.yaml <command>

Supported commands:
  - init   - creates migration info table in the database
  - up     - runs all available migrations
  - down   - reverts last migration group
  - status - prints migration status
`

// Usage prints command usage
func Usage() {
	fmt.Print(usageText)
	flag.PrintDefaults()
	os.Exit(2)
}

// Exitf exits command printing usage
func Exitf(s string, args ...any) {
	fmt.Fprintf(os.Stderr, s+"\n", args...)
	Usage()
}

// CreateSchema creates tables for models
func CreateSchema(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		log.Println("Creating table for", reflect.TypeOf(model))
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DropTables drops tables for models
func DropTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		log.Println("Dropping table for", reflect.TypeOf(model))
		if _, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// TruncateTables removes every row from the model tables
func TruncateTables(ctx context.Context, db bun.IDB, models ...any) error {
	for _, model := range models {
		if _, err := db.NewDelete().Model(model).Where("1=1").Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// CreateModelIndexes creates one index per column on the model table.
// Index names are generated as idx_<table>_<column>.
func CreateModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	for _, column := range columns {
		if err := createModelIndex(ctx, db, model, false, column); err != nil {
			return err
		}
	}
	return nil
}

// CreateModelUniqueIndex creates one unique index spanning all columns.
// The index name is idx_<table>_<col1>_<col2>...
func CreateModelUniqueIndex(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	if len(columns) == 0 {
		return fmt.Errorf("unique index needs at least one column")
	}
	return createModelIndex(ctx, db, model, true, columns...)
}

func createModelIndex(ctx context.Context, db bun.IDB, model any, unique bool, columns ...string) error {
	indexName, err := modelIndexName(db, model, strings.Join(columns, "_"))
	if err != nil {
		return err
	}
	q := db.NewCreateIndex().
		Model(model).
		Index(indexName).
		Column(columns...).
		IfNotExists()
	if unique {
		q = q.Unique()
	}
	_, err = q.Exec(ctx)
	return err
}

// DropModelIndexes drops indexes created by CreateModelIndexes
func DropModelIndexes(ctx context.Context, db bun.IDB, model any, columns ...string) error {
	for _, column := range columns {
		indexName, err := modelIndexName(db, model, column)
		if err != nil {
			return err
		}
		if _, err = db.NewDropIndex().Model(model).Index(indexName).IfExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func modelIndexName(db bun.IDB, model any, suffix string) (string, error) {
	if model == nil {
		return "", fmt.Errorf("model cannot be nil")
	}
	tableName := db.NewCreateIndex().Model(model).GetTableName()
	if tableName == "" {
		return "", fmt.Errorf("failed to resolve table name for model %T", model)
	}

	indexTableName := strings.NewReplacer(`"`, "", ".", "_").Replace(tableName)
	return fmt.Sprintf("idx_%s_%s", indexTableName, suffix), nil
}

// RunMigrations runs migrations based on provided command arguments
func RunMigrations(ctx context.Context, migrator *migrate.Migrator, args ...string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command provided")
	}

	switch args[0] {
	case "init":
		if err := migrator.Init(ctx); err != nil {
			return err
		}
		log.Println("migration table created")
		return nil

	case "up":
		return withLock(ctx, migrator, func() error {
			group, err := migrator.Migrate(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				log.Println("no new migrations to run (database is up to date)")
			} else {
				log.Printf("migrated to %s\n", group)
			}
			return nil
		})

	case "down":
		return withLock(ctx, migrator, func() error {
			group, err := migrator.Rollback(ctx)
			if err != nil {
				return err
			}
			if group.IsZero() {
				log.Println("no migrations to rollback")
			} else {
				log.Printf("rolled back %s\n", group)
			}
			return nil
		})

	case "status":
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}
		log.Printf("migrations: %s\n", ms)
		log.Printf("unapplied migrations: %s\n", ms.Unapplied())
		log.Printf("last migration group: %s\n", ms.LastGroup())
		return nil

	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func withLock(ctx context.Context, migrator *migrate.Migrator, fn func() error) error {
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			log.Printf("failed to release migration lock: %v", err)
		}
	}()
	return fn()
}
