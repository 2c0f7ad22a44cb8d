package nodedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	mghelper "github.com/chainsafe/canton-token-flows/pkg/pgutil/migrations"
	"github.com/chainsafe/canton-token-flows/pkg/saga"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating sagas table...")
		if err := mghelper.CreateSchema(ctx, db, &saga.SagaDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &saga.SagaDao{}, "step")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping sagas table...")
		return mghelper.DropTables(ctx, db, &saga.SagaDao{})
	})
}
