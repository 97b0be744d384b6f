//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
)

var (
	testDB    *TestDB
	testRedis *TestRedis
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var err error
	testDB, err = SetupTestDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database setup failed: %v\n", err)
		os.Exit(1)
	}

	testRedis, err = SetupTestRedis(ctx)
	if err != nil {
		_ = testDB.Teardown(ctx)
		fmt.Fprintf(os.Stderr, "redis setup failed: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	_ = testRedis.Teardown(ctx)
	_ = testDB.Teardown(ctx)
	os.Exit(code)
}

// resetState empties both stores so each test starts from zero counters and rows
func resetState(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := testDB.CleanupTables(ctx); err != nil {
		t.Fatalf("cleanup tables: %v", err)
	}
	if err := testRedis.FlushAll(ctx); err != nil {
		t.Fatalf("flush redis: %v", err)
	}
}
