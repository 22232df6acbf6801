package chapel

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessImageResizes(t *testing.T) {
	meta, data, err := processImage(bytes.NewReader(pngBytes(t, 2400, 100)))
	if err != nil {
		t.Fatalf("processImage: %v", err)
	}
	if meta.Width != maxImageWidth || meta.Height != 50 {
		t.Errorf("size = %dx%d, want %dx50", meta.Width, meta.Height, maxImageWidth)
	}
	if meta.Size != len(data) || len(data) == 0 {
		t.Errorf("Size = %d, len(data) = %d", meta.Size, len(data))
	}
}

func TestProcessImageKeepsSmallImages(t *testing.T) {
	meta, _, err := processImage(bytes.NewReader(pngBytes(t, 300, 200)))
	if err != nil {
		t.Fatalf("processImage: %v", err)
	}
	if meta.Width != 300 || meta.Height != 200 {
		t.Errorf("size = %dx%d, want 300x200", meta.Width, meta.Height)
	}
}

func TestProcessImageRejectsGarbage(t *testing.T) {
	if _, _, err := processImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSourceKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://prod-files-secure.s3.us-west-2.amazonaws.com/a/b.png?X-Amz-Signature=1", "https://prod-files-secure.s3.us-west-2.amazonaws.com/a/b.png"},
		{"https://www.notion.so/image/x.png?t=1", "https://www.notion.so/image/x.png"},
		{"https://cdn.example.org/x.png?v=2", "https://cdn.example.org/x.png?v=2"},
	}
	for _, tt := range tests {
		if got := sourceKey(tt.in); got != tt.want {
			t.Errorf("sourceKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestImageMirror(t *testing.T) {
	body := pngBytes(t, 640, 480)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	store := setupTestStore(t)
	static := t.TempDir()
	m := NewImageMirror(store, static, zap.NewNop())
	ctx := context.Background()

	got, err := m.Mirror(ctx, "block-1", srv.URL+"/a.png")
	if err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	if got != "/public/uploads/notion/block-1.jpg" {
		t.Errorf("Mirror = %q", got)
	}
	if _, err := os.Stat(filepath.Join(static, "uploads", "notion", "block-1.jpg")); err != nil {
		t.Fatalf("mirrored file missing: %v", err)
	}
	img, err := store.LookupImage("block-1")
	if err != nil {
		t.Fatalf("LookupImage: %v", err)
	}
	if img.Width != 640 || img.Height != 480 {
		t.Errorf("stored size = %dx%d", img.Width, img.Height)
	}

	if _, err := m.Mirror(ctx, "block-1", srv.URL+"/a.png"); err != nil {
		t.Fatalf("second Mirror: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("downloads = %d, want 1 for an unchanged source", n)
	}

	if _, err := m.Mirror(ctx, "block-1", srv.URL+"/b.png"); err != nil {
		t.Fatalf("changed Mirror: %v", err)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("downloads = %d, want 2 after the source changed", n)
	}

	if got, err := m.Mirror(ctx, "local", "/public/logo.png"); err != nil || got != "/public/logo.png" {
		t.Errorf("local path = %q, %v", got, err)
	}

	src := srv.URL + "/missing.png"
	got, err = m.Mirror(ctx, "block-2", src)
	if err == nil {
		t.Error("expected error for a missing image")
	}
	if got != src {
		t.Errorf("failed Mirror = %q, want the remote URL", got)
	}

	removed, err := m.Prune(map[string]bool{})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(filepath.Join(static, "uploads", "notion", "block-1.jpg")); !os.IsNotExist(err) {
		t.Errorf("pruned file still present: %v", err)
	}
}
