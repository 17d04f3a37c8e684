package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aldenlin/celebmatch-linebot-go/internal/config"
	"github.com/aldenlin/celebmatch-linebot-go/internal/ctxutil"
	"github.com/aldenlin/celebmatch-linebot-go/internal/logger"
	"github.com/aldenlin/celebmatch-linebot-go/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestApp creates a minimal Application for endpoint testing. A temp
// file database avoids shared in-memory state between parallel tests.
func setupTestApp(t *testing.T, cacheTTL time.Duration) *Application {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.New(dbPath, cacheTTL)
	if err != nil {
		t.Fatalf("create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return &Application{
		cfg: &config.Config{
			FaceDetectEnabled: true,
		},
		logger: logger.NewWithWriter("error", io.Discard),
		db:     db,
	}
}

func seedCelebrity(t *testing.T, db *storage.DB, id string) {
	t.Helper()
	err := db.UpsertCelebrity(context.Background(), &storage.Celebrity{
		CelebID:  id,
		EnName:   "Test Celebrity",
		Sex:      "F",
		Age:      30,
		ImageURL: "https://img.example/" + id + ".jpg",
	})
	if err != nil {
		t.Fatalf("seed celebrity: %v", err)
	}
}

func TestLivenessCheck(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, 168*time.Hour)

	engine := gin.New()
	engine.GET("/livez", app.livenessCheck)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestReadinessCheck(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, 168*time.Hour)
	seedCelebrity(t, app.db, "celebs/alice")
	seedCelebrity(t, app.db, "celebs/bob")

	engine := gin.New()
	engine.GET("/readyz", app.readinessCheck)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body struct {
		Status string `json:"status"`
		Cache  struct {
			Celebs int `json:"celebs"`
		} `json:"cache"`
		Features struct {
			FaceDetect bool `json:"face_detect"`
			Archive    bool `json:"archive"`
		} `json:"features"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ready" {
		t.Errorf("status = %q, want ready", body.Status)
	}
	if body.Cache.Celebs != 2 {
		t.Errorf("cached celebs = %d, want 2", body.Cache.Celebs)
	}
	if !body.Features.FaceDetect {
		t.Error("face_detect feature should be reported enabled")
	}
	if body.Features.Archive {
		t.Error("archive feature should be reported disabled without an archiver")
	}
}

func TestReadinessCheckDatabaseUnavailable(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, 168*time.Hour)
	_ = app.db.Close()

	engine := gin.New()
	engine.GET("/readyz", app.readinessCheck)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRedirectToGitHub(t *testing.T) {
	t.Parallel()
	app := setupTestApp(t, 168*time.Hour)

	engine := gin.New()
	engine.GET("/", app.redirectToGitHub)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want 307", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.Contains(loc, "github.com") {
		t.Errorf("unexpected redirect location %q", loc)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	t.Parallel()

	engine := gin.New()
	engine.Use(securityHeadersMiddleware())
	engine.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'",
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

func TestLoggingMiddlewarePropagatesRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter("debug", &buf)

	var gotRequestID string
	engine := gin.New()
	engine.Use(loggingMiddleware(log))
	engine.GET("/", func(c *gin.Context) {
		gotRequestID, _ = ctxutil.GetRequestID(c.Request.Context())
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if gotRequestID != "req-42" {
		t.Errorf("request id in handler context = %q, want req-42", gotRequestID)
	}
	if !strings.Contains(buf.String(), "req-42") {
		t.Error("request log should include the request id")
	}
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"server error", http.StatusInternalServerError, "ERROR"},
		{"client error", http.StatusBadRequest, "WARN"},
		{"not found", http.StatusNotFound, "DEBUG"},
		{"success", http.StatusOK, "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.NewWithWriter("debug", &buf)

			engine := gin.New()
			engine.Use(loggingMiddleware(log))
			engine.GET("/", func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if !strings.Contains(buf.String(), tt.wantLevel) {
				t.Errorf("log output %q should contain level %s", buf.String(), tt.wantLevel)
			}
		})
	}
}

func TestRunCacheCleanupDeletesExpired(t *testing.T) {
	t.Parallel()
	// A 1ms TTL expires records within the same second they were written.
	app := setupTestApp(t, time.Millisecond)
	seedCelebrity(t, app.db, "celebs/expired")

	app.runCacheCleanup(context.Background())

	var n int
	err := app.db.Conn().QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM celebs").Scan(&n)
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if n != 0 {
		t.Errorf("rows after cleanup = %d, want 0", n)
	}
}
