package leads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/pkg/database"
	"github.com/campfire-hq/backend/pkg/redis"
)

func TestDedupeKey(t *testing.T) {
	assert.Equal(t, "leads:dedupe:jo@acme.com", DedupeKey("jo@acme.com"))
	assert.Equal(t, "leads:dedupe:jo@acme.com", DedupeKey("JO@ACME.COM"))
}

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

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb, err := redis.NewClient(context.Background(), addr, "", 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func leadsRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/leads", h.Create)
	return r
}

func postLead(r *gin.Engine, email string) *httptest.ResponseRecorder {
	body := `{"email":"` + email + `","name":"Sam","source":"website"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leads", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateLeadDedupWindow(t *testing.T) {
	pool := testPool(t)
	rdb := testRedis(t)
	r := leadsRouter(NewHandler(NewRepository(pool), rdb, zap.NewNop()))

	email := "lead-" + strings.ToLower(uuid.NewString()) + "@example.com"
	assert.Equal(t, http.StatusCreated, postLead(r, email).Code)

	// A repeat inside the window is rejected; the key's TTL bounds how long.
	assert.Equal(t, http.StatusTooManyRequests, postLead(r, email).Code)
	ttl, err := rdb.TTL(context.Background(), DedupeKey(email)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 0.0)
	assert.LessOrEqual(t, ttl, DedupeWindow)
}

func TestCreateLeadInsertFailureReleasesWindow(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	rdb := testRedis(t)
	ctx := context.Background()

	// A closed pool makes every insert fail.
	deadPool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	deadPool.Close()
	r := leadsRouter(NewHandler(NewRepository(deadPool), rdb, zap.NewNop()))

	email := "lead-" + strings.ToLower(uuid.NewString()) + "@example.com"
	assert.Equal(t, http.StatusInternalServerError, postLead(r, email).Code)

	// The failed submission must not burn the de-duplication window.
	exists, err := rdb.Exists(ctx, DedupeKey(email)).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
