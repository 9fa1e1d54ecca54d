package services_test

import (
	"fmt"
	"sync"
	"testing"

	"fitmixapi/dbhelper"
	"fitmixapi/models"
	"fitmixapi/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerLastSlotUnderConcurrency(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	ledger := &services.UsageLedger{
		DB:                db,
		UserSearchLimit:   1,
		UserRenderLimit:   1,
		GlobalSearchLimit: 100,
		GlobalRenderLimit: 50,
	}

	const attempts = 8
	var wg sync.WaitGroup
	allowed := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := ledger.CheckAndIncrement("user-42", services.UsageSearch)
			if !assert.NoError(t, err) {
				allowed <- false
				return
			}
			allowed <- decision.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	allowedCount := 0
	for a := range allowed {
		if a {
			allowedCount++
		}
	}
	assert.Equal(t, 1, allowedCount, "the single slot must be handed out exactly once")

	var record models.UsageRecord
	require.NoError(t, db.Where("identity_key = ?", "user-42").Take(&record).Error)
	assert.Equal(t, 1, record.SearchCount)
}

func TestLedgerGlobalCapUnderConcurrency(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	ledger := &services.UsageLedger{
		DB:                db,
		UserSearchLimit:   1,
		UserRenderLimit:   1,
		GlobalSearchLimit: 5,
		GlobalRenderLimit: 50,
	}

	// distinct identities, each with a personal slot left, racing the
	// shared cap
	const attempts = 12
	var wg sync.WaitGroup
	allowed := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			decision, err := ledger.CheckAndIncrement(fmt.Sprintf("visitor-%02d", i), services.UsageSearch)
			if !assert.NoError(t, err) {
				allowed <- false
				return
			}
			allowed <- decision.Allowed
		}(i)
	}
	wg.Wait()
	close(allowed)

	allowedCount := 0
	for a := range allowed {
		if a {
			allowedCount++
		}
	}
	assert.Equal(t, 5, allowedCount, "the shared cap must be handed out exactly cap times")

	var global models.GlobalUsage
	require.NoError(t, db.First(&global, 1).Error)
	assert.Equal(t, 5, global.SearchCount)
}

func TestLedgerUserCapReason(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	ledger := &services.UsageLedger{DB: db, UserSearchLimit: 1, UserRenderLimit: 1, GlobalSearchLimit: 100, GlobalRenderLimit: 50}

	first, err := ledger.CheckAndIncrement("user-1", services.UsageSearch)
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	assert.Equal(t, 0, first.UserRemaining)

	second, err := ledger.CheckAndIncrement("user-1", services.UsageSearch)
	require.NoError(t, err)
	assert.False(t, second.Allowed)
	assert.Equal(t, services.ReasonUserExhausted, second.Reason)
}

func TestLedgerGlobalCapReason(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	ledger := &services.UsageLedger{DB: db, UserSearchLimit: 5, UserRenderLimit: 5, GlobalSearchLimit: 2, GlobalRenderLimit: 50}

	for i := 0; i < 2; i++ {
		decision, err := ledger.CheckAndIncrement("user-a", services.UsageSearch)
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}

	// a different identity with personal slots left still hits the shared cap
	decision, err := ledger.CheckAndIncrement("user-b", services.UsageSearch)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, services.ReasonGlobalExhausted, decision.Reason)
	assert.Equal(t, 0, decision.GlobalRemaining)
}

func TestLedgerKindsAreIndependent(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	ledger := &services.UsageLedger{DB: db, UserSearchLimit: 1, UserRenderLimit: 1, GlobalSearchLimit: 100, GlobalRenderLimit: 50}

	search, err := ledger.CheckAndIncrement("user-7", services.UsageSearch)
	require.NoError(t, err)
	require.True(t, search.Allowed)

	render, err := ledger.CheckAndIncrement("user-7", services.UsageRender)
	require.NoError(t, err)
	assert.True(t, render.Allowed, "a spent search slot must not consume the render slot")
}

func TestLedgerSnapshot(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	ledger := &services.UsageLedger{DB: db, UserSearchLimit: 1, UserRenderLimit: 1, GlobalSearchLimit: 100, GlobalRenderLimit: 50}

	_, err := ledger.CheckAndIncrement("user-9", services.UsageSearch)
	require.NoError(t, err)

	snapshot, err := ledger.Snapshot("user-9")
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.SearchCount)
	assert.Equal(t, 0, snapshot.RenderCount)
	assert.False(t, snapshot.CanSearch)
	assert.True(t, snapshot.CanRender)
	assert.True(t, snapshot.SearchExhausted)
	assert.Equal(t, 99, snapshot.GlobalSearchesRemaining)
	assert.Equal(t, 50, snapshot.GlobalRendersRemaining)
}

func TestLedgerSnapshotUnknownIdentity(t *testing.T) {
	db := dbhelper.SetupTestDB()
	cleaner := dbhelper.SetupCleaner(db)
	defer cleaner()

	ledger := &services.UsageLedger{DB: db, UserSearchLimit: 1, UserRenderLimit: 1, GlobalSearchLimit: 100, GlobalRenderLimit: 50}

	snapshot, err := ledger.Snapshot("never-seen")
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.SearchCount)
	assert.True(t, snapshot.CanSearch)
}
