package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/empathic/podiatry/internal/platform/apperror"
)

func seedBlob(t *testing.T, store Store, key, contentType, content string) *Info {
	t.Helper()
	info, err := store.Put(context.Background(), key, contentType, strings.NewReader(content))
	if err != nil {
		t.Fatalf("seedBlob: %v", err)
	}
	return info
}

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	content := "<html>order</html>"

	info := seedBlob(t, store, "documents/physician-order/a.html", "text/html", content)
	if info.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), info.Size)
	}
	if want := fmt.Sprintf("%x", sha256.Sum256([]byte(content))); info.Hash != want {
		t.Errorf("expected hash %s, got %s", want, info.Hash)
	}

	rc, got, err := store.Get(context.Background(), info.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != content || got.ContentType != "text/html" {
		t.Errorf("unexpected blob %q %+v", body, got)
	}
}

func TestMemoryStore_Errors(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	seedBlob(t, store, "documents/x.html", "text/html", "x")

	if _, err := store.Put(ctx, "documents/x.html", "text/html", strings.NewReader("y")); !errors.Is(err, ErrBlobExists) {
		t.Errorf("expected ErrBlobExists, got %v", err)
	}
	if _, err := store.Put(ctx, "", "text/html", strings.NewReader("y")); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
	if _, err := store.Put(ctx, "documents/../etc", "text/html", strings.NewReader("y")); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	big := strings.NewReader(strings.Repeat("a", MaxFileSize+1))
	if _, err := store.Put(ctx, "documents/big.bin", "", big); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}

	_, _, err := store.Get(ctx, "documents/missing.html")
	if !errors.Is(err, ErrBlobNotFound) || !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMemoryStore_ListPrefix(t *testing.T) {
	store := NewMemoryStore()
	seedBlob(t, store, "documents/podiatry-visit/b.html", "text/html", "b")
	seedBlob(t, store, "documents/podiatry-visit/a.html", "text/html", "a")
	seedBlob(t, store, "documents/physician-order/c.html", "text/html", "c")

	items, err := store.List(context.Background(), "documents/podiatry-visit/")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].Key != "documents/podiatry-visit/a.html" {
		t.Errorf("unexpected list %+v", items)
	}
}

func TestMemoryStore_ConcurrentPut(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Put(context.Background(), fmt.Sprintf("documents/%d.html", i), "text/html", strings.NewReader("x"))
		}(i)
	}
	wg.Wait()

	items, _ := store.List(context.Background(), Prefix)
	if len(items) != 20 {
		t.Errorf("expected 20 blobs, got %d", len(items))
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	if s, err := Open(ctx, "none", S3Config{}); err != nil || s != nil {
		t.Errorf("none should yield no store, got %v, %v", s, err)
	}
	if s, err := Open(ctx, "memory", S3Config{}); err != nil || s == nil {
		t.Errorf("memory should yield a store, got %v, %v", s, err)
	}
	if _, err := Open(ctx, "s3", S3Config{}); !errors.Is(err, ErrMissingS3Bucket) {
		t.Errorf("expected ErrMissingS3Bucket, got %v", err)
	}
	if _, err := Open(ctx, "gcs", S3Config{}); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
}

// -- Handler --

func TestHandler_ListAndDownload(t *testing.T) {
	store := NewMemoryStore()
	seedBlob(t, store, "documents/physician-order/20240615-1.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx")
	seedBlob(t, store, "documents/podiatry-visit/20240615-2.html", "text/html", "<p>visit</p>")

	e := echo.New()
	NewHandler(store).RegisterRoutes(e.Group("/api/v1"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents?template=podiatry-visit", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list listResponse
	json.Unmarshal(rec.Body.Bytes(), &list)
	if list.Total != 1 || list.Items[0].Key != "documents/podiatry-visit/20240615-2.html" {
		t.Errorf("unexpected list %+v", list)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/podiatry-visit/20240615-2.html", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "<p>visit</p>" {
		t.Fatalf("unexpected download %d %q", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, `filename="20240615-2.html"`) {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
}

func TestHandler_DownloadMissing(t *testing.T) {
	h := NewHandler(NewMemoryStore())
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("*")
	c.SetParamValues("physician-order/none.html")

	if err := h.handleDownload(c); apperror.Status(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
