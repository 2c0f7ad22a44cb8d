package nodedb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/chainsafe/canton-token-flows/pkg/party"
	mghelper "github.com/chainsafe/canton-token-flows/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating parties table...")
		if err := mghelper.CreateSchema(ctx, db, &party.PartyDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &party.PartyDao{}, "owner_id")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping parties table...")
		return mghelper.DropTables(ctx, db, &party.PartyDao{})
	})
}
