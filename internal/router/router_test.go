package router

import (
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/simplecms/internal/cache"
	"github.com/simplecms/internal/db"
	"github.com/simplecms/internal/handler"
	"github.com/simplecms/internal/metrics"
	"github.com/simplecms/internal/service"
	"github.com/simplecms/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

type testServer struct {
	router    *gin.Engine
	gdb       *gorm.DB
	metrics   *metrics.Metrics
	uploadDir string
}

func newTestServer(t *testing.T, templates ...fs.FS) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBSeq.Add(1))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	require.NoError(t, gdb.Create(&db.Site{ID: 1, Domain: "example.com", Name: "Example"}).Error)

	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&db.User{Username: "admin", Password: string(hashed)}).Error)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	uploadDir := t.TempDir()
	api := handler.NewAPI(gdb, handler.Options{
		DefaultSiteID: 1,
		PageTemplate:  "cms/page.html",
		UploadDir:     uploadDir,
		UploadURL:     "/media",
		Cache:         cache.NewRedis(rdb, "test", time.Minute, nil),
	})
	m := metrics.New(nil)

	r, err := SetupRouter(api, Options{
		SessionSecret: "test-secret",
		UploadDir:     uploadDir,
		UploadURLPath: "/media",
		Templates:     append([]fs.FS{view.Templates()}, templates...),
		Metrics:       m,
	})
	require.NoError(t, err)
	return &testServer{router: r, gdb: gdb, metrics: m, uploadDir: uploadDir}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	req.Host = "example.com"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(target string) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (s *testServer) login(t *testing.T) []*http.Cookie {
	t.Helper()
	form := url.Values{"username": {"admin"}, "password": {"s3cret"}}
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := s.do(req)
	require.Equal(t, http.StatusFound, w.Code)
	return w.Result().Cookies()
}

func TestSetupRouterServesUploads(t *testing.T) {
	s := newTestServer(t)

	fileContent := []byte("hello uploads")
	if err := os.WriteFile(filepath.Join(s.uploadDir, "example.txt"), fileContent, 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	rr := s.get("/media/example.txt")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != string(fileContent) {
		t.Fatalf("unexpected body, got %q", rr.Body.String())
	}

	assert.Equal(t, http.StatusOK, s.get("/ping").Code)
}

func TestRouterDispatchesPagesThroughCache(t *testing.T) {
	s := newTestServer(t)
	pages := service.NewPageService(s.gdb, "")
	page, err := pages.Create(service.PageInput{Title: "About", SiteID: 1, Text: "<p>hello</p>", InheritBlocks: true, Active: true})
	require.NoError(t, err)

	w := s.get("/about/")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "<h1>About</h1>")
	assert.Contains(t, w.Body.String(), "<p>hello</p>")

	w = s.get("/about/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.CacheTotal.WithLabelValues("hit")))

	cookies := s.login(t)
	req := httptest.NewRequest(http.MethodPut, fmt.Sprintf("/admin/api/pages/%d", page.ID),
		strings.NewReader(`{"title":"About us","slug":"about","text":"<p>updated</p>"}`))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	require.Equal(t, http.StatusOK, s.do(req).Code)

	w = s.get("/about/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>About us</h1>", "admin writes invalidate cached pages")

	w = s.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `simplecms_dispatch_total{outcome="render"}`)
}

func TestRouterNotFoundAndRedirect(t *testing.T) {
	s := newTestServer(t)
	pages := service.NewPageService(s.gdb, "")
	_, err := pages.Create(service.PageInput{Title: "Old", SiteID: 1, RedirectURL: "/new/", RedirectPermanent: true, Active: true})
	require.NoError(t, err)

	w := s.get("/missing/")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "找不到 /missing/")

	w = s.get("/old/")
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/new/", w.Header().Get("Location"))

	w = s.get("/admin/api/pages")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouterTemplateOverrides(t *testing.T) {
	s := newTestServer(t, fstest.MapFS{
		"errors/404.html": {Data: []byte(`custom missing page`)},
	})

	w := s.get("/nothing-here/")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "custom missing page", w.Body.String())
}

func TestRouterArticleRoutes(t *testing.T) {
	s := newTestServer(t)
	articles := service.NewArticleService(s.gdb, service.NewTagService(s.gdb))
	_, err := articles.Create(service.ArticleInput{
		Title:        "Routed",
		PostDate:     time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC),
		TagNames:     []string{"Go"},
		DisplayTitle: true,
		Active:       true,
	})
	require.NoError(t, err)

	for _, target := range []string{"/articles/", "/articles/tag/go/", "/articles/2024/", "/articles/2024/04/05/routed/", "/articles/search/?q=rout"} {
		w := s.get(target)
		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.Contains(t, w.Body.String(), "Routed", target)
	}
}
