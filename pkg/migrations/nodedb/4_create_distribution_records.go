package nodedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/chainsafe/canton-token-flows/pkg/flows/distribution"
	mghelper "github.com/chainsafe/canton-token-flows/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating distribution_records table...")
		if err := mghelper.CreateSchema(ctx, db, &distribution.DistributionDao{}); err != nil {
			return err
		}
		// Insert-if-absent relies on this index.
		return mghelper.CreateModelUniqueIndex(ctx, db, &distribution.DistributionDao{}, "token_type_id", "holder_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping distribution_records table...")
		return mghelper.DropTables(ctx, db, &distribution.DistributionDao{})
	})
}
