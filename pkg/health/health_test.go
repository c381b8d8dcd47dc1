package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func serve(t *testing.T, hs HealthService, path string) (int, Health) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", hs.Liveness)
	r.GET("/readyz", hs.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var h Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	return w.Code, h
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db
}

func TestLiveness(t *testing.T) {
	code, h := serve(t, ProvideHealth(HealthParams{}), "/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusHealthy, h.Status)
}

func TestReadinessHealthy(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	code, h := serve(t, ProvideHealth(HealthParams{DB: openDB(t), Redis: rdb}), "/readyz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusHealthy, h.Status)
	require.Len(t, h.Deps, 2)
	require.Equal(t, "sqlite", h.Deps[0].Name)
	require.Equal(t, "redis", h.Deps[1].Name)
}

func TestReadinessRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	code, h := serve(t, ProvideHealth(HealthParams{DB: openDB(t), Redis: rdb}), "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, StatusUnhealthy, h.Status)
	require.Equal(t, "redis unavailable", h.Message)
	require.Equal(t, StatusHealthy, h.Deps[0].Status)
	require.Equal(t, StatusUnhealthy, h.Deps[1].Status)
}

func TestReadinessDatabaseClosed(t *testing.T) {
	db := openDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	code, h := serve(t, ProvideHealth(HealthParams{DB: db}), "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "sqlite unavailable", h.Message)
}
