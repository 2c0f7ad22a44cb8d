package migrations

import (
	"context"
	"testing"

	"github.com/uptrace/bun"

	"github.com/chainsafe/canton-token-flows/pkg/pgutil"
)

type testDao struct {
	bun.BaseModel `bun:"table:test_table"`
	ID            int64  `bun:",pk,autoincrement"`
	Kind          string `bun:",notnull,type:varchar(100)"`
	Holder        string `bun:",notnull,type:varchar(100)"`
}

func TestCreateSchemaAndDropTables(t *testing.T) {
	db := pgutil.SetupTestDB(t)
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &testDao{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	pgutil.AssertTableExists(t, db, "test_table")

	if err := CreateSchema(ctx, db, &testDao{}); err != nil {
		t.Errorf("CreateSchema() second call failed: %v", err)
	}

	if err := DropTables(ctx, db, &testDao{}); err != nil {
		t.Fatalf("DropTables() failed: %v", err)
	}
	if err := DropTables(ctx, db, &testDao{}); err != nil {
		t.Errorf("DropTables() second call failed: %v", err)
	}
}

func TestCreateModelIndexes(t *testing.T) {
	db := pgutil.SetupTestDB(t)
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &testDao{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	if err := CreateModelIndexes(ctx, db, &testDao{}, "kind", "holder"); err != nil {
		t.Fatalf("CreateModelIndexes() failed: %v", err)
	}
	pgutil.AssertIndexExists(t, db, "idx_test_table_kind")
	pgutil.AssertIndexExists(t, db, "idx_test_table_holder")

	if err := DropModelIndexes(ctx, db, &testDao{}, "kind", "holder"); err != nil {
		t.Fatalf("DropModelIndexes() failed: %v", err)
	}
}

func TestCreateModelUniqueIndex(t *testing.T) {
	db := pgutil.SetupTestDB(t)
	ctx := context.Background()

	if err := CreateSchema(ctx, db, &testDao{}); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	if err := CreateModelUniqueIndex(ctx, db, &testDao{}, "kind", "holder"); err != nil {
		t.Fatalf("CreateModelUniqueIndex() failed: %v", err)
	}
	pgutil.AssertIndexExists(t, db, "idx_test_table_kind_holder")

	if _, err := db.NewInsert().Model(&testDao{Kind: "X", Holder: "bob"}).Exec(ctx); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := db.NewInsert().Model(&testDao{Kind: "X", Holder: "carol"}).Exec(ctx); err != nil {
		t.Fatalf("second insert failed: %v", err)
	}
	if _, err := db.NewInsert().Model(&testDao{Kind: "X", Holder: "bob"}).Exec(ctx); err == nil {
		t.Error("expected duplicate (kind, holder) insert to fail")
	}

	if err := TruncateTables(ctx, db, &testDao{}); err != nil {
		t.Fatalf("TruncateTables() failed: %v", err)
	}
	pgutil.AssertRowCount(t, db, "test_table", 0)
}

func TestCreateModelUniqueIndex_NoColumns(t *testing.T) {
	if err := CreateModelUniqueIndex(context.Background(), nil, &testDao{}); err == nil {
		t.Fatal("expected error without columns")
	}
}
