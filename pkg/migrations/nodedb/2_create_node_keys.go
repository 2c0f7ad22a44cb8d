package nodedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/chainsafe/canton-token-flows/pkg/keys"
	mghelper "github.com/chainsafe/canton-token-flows/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating node_keys table...")
		if err := mghelper.CreateSchema(ctx, db, &keys.KeyDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &keys.KeyDao{}, "purpose")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping node_keys table...")
		return mghelper.DropTables(ctx, db, &keys.KeyDao{})
	})
}
