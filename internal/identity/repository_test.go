package identity

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campfire-hq/backend/internal/models"
	"github.com/campfire-hq/backend/pkg/database"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool))
	return pool
}

func TestClaimByEmailKeepsExistingClaim(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	extID := "ext-" + uuid.NewString()
	email := "casey-" + uuid.NewString() + "@example.com"
	claimed := &models.UserProfile{ExternalID: &extID, Email: email, FirstName: "Casey"}
	require.NoError(t, repo.ClaimByEmail(ctx, claimed))

	// A claimless upsert, like campaign registration, must not sever the
	// provider linkage or blank existing names.
	again := &models.UserProfile{Email: email, LastName: "Nilsen"}
	require.NoError(t, repo.ClaimByEmail(ctx, again))

	got, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, extID, *got.ExternalID)
	assert.Equal(t, "Casey", got.FirstName)
	assert.Equal(t, "Nilsen", got.LastName)
	assert.Equal(t, claimed.ID, got.ID)
}

func TestClaimByEmailClaimsUnclaimedProfile(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewRepository(pool)

	email := "jordan-" + uuid.NewString() + "@example.com"
	unclaimed := &models.UserProfile{Email: email, FirstName: "Jordan"}
	require.NoError(t, repo.ClaimByEmail(ctx, unclaimed))

	extID := "ext-" + uuid.NewString()
	claim := &models.UserProfile{ExternalID: &extID, Email: email}
	require.NoError(t, repo.ClaimByEmail(ctx, claim))

	got, err := repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, extID, *got.ExternalID)
	assert.Equal(t, "Jordan", got.FirstName)
}
