package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simplecms/internal/cache"
	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/render"
	"github.com/simplecms/internal/view"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// countingCache records invalidations; it never serves anything.
type countingCache struct {
	invalidations int
}

func (c *countingCache) Get(context.Context, uint, string) ([]byte, cache.Token, bool) {
	return nil, cache.Token{}, false
}
func (c *countingCache) Set(context.Context, cache.Token, uint, string, []byte) {}
func (c *countingCache) Invalidate(context.Context) error {
	c.invalidations++
	return nil
}

type testEnv struct {
	api    *API
	gdb    *gorm.DB
	engine *render.Engine
	cache  *countingCache
}

func setupTestDB(t *testing.T) (*testEnv, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handler-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := gdb.Create(&db.Site{ID: 1, Domain: "example.com", Name: "Example"}).Error; err != nil {
		t.Fatalf("failed to seed site: %v", err)
	}

	pageCache := &countingCache{}
	api := NewAPI(gdb, Options{
		DefaultSiteID:   1,
		PageTemplate:    "cms/page.html",
		ArticlesPerPage: 2,
		UploadDir:       t.TempDir(),
		UploadURL:       "/media",
		Cache:           pageCache,
	})
	engine := render.NewEngine(api.Helpers().FuncMap(), view.Templates())
	if err := engine.Load(); err != nil {
		t.Fatalf("failed to load templates: %v", err)
	}

	return &testEnv{api: api, gdb: gdb, engine: engine, cache: pageCache}, func() {
		sqlDB.Close()
	}
}

// newContext builds a test context with an optional JSON body and path params.
func (e *testEnv) newContext(method, target string, payload any, params ...gin.Param) (*gin.Context, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Host = "example.com"
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	c, engine := gin.CreateTestContext(w)
	engine.HTMLRender = e.engine
	c.Request = req
	c.Params = params
	return c, w
}

func idParam(id uint) gin.Param {
	return gin.Param{Key: "id", Value: fmt.Sprint(id)}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid json response %q: %v", w.Body.String(), err)
	}
	return out
}

// createdID extracts the ID of the entity stored under key.
func createdID(t *testing.T, w *httptest.ResponseRecorder, key string) uint {
	t.Helper()
	entity, ok := decodeBody(t, w)[key].(map[string]any)
	if !ok {
		t.Fatalf("response has no %q object: %s", key, w.Body.String())
	}
	return uint(entity["ID"].(float64))
}

