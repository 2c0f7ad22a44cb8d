package nodedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/canton-token-flows/pkg/pgutil/migrations"
	"github.com/chainsafe/canton-token-flows/pkg/vault"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating transactions and token_states tables...")
		if err := mghelper.CreateSchema(ctx, db, &vault.TransactionDao{}, &vault.StateDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &vault.StateDao{}, "linear_id", "token_type_id", "consumed_by")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transactions and token_states tables...")
		return mghelper.DropTables(ctx, db, &vault.StateDao{}, &vault.TransactionDao{})
	})
}
