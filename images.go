package chapel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/eringen/chapel/content"
)

const (
	maxImageWidth   = 1200
	jpegQuality     = 80
	maxDownloadSize = 20 << 20 // 20MB
	mirrorSubdir    = "uploads/notion"
)

// ImageMirror copies remote images into the static directory. Notion file
// URLs are signed and expire after an hour, so pages must not link to them.
type ImageMirror struct {
	store  *Store
	dir    string
	client *http.Client
	log    *zap.Logger
	now    func() time.Time
}

// NewImageMirror stores images under staticDir/uploads/notion.
func NewImageMirror(store *Store, staticDir string, log *zap.Logger) *ImageMirror {
	return &ImageMirror{
		store:  store,
		dir:    filepath.Join(staticDir, filepath.FromSlash(mirrorSubdir)),
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
		now:    time.Now,
	}
}

// Mirror returns the public path of a local copy of src, downloading it when
// id has no copy yet or its source changed. Non-http URLs are returned as
// is. On error src is returned along with the error.
func (m *ImageMirror) Mirror(ctx context.Context, id, src string) (string, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return src, nil
	}
	source := sourceKey(src)
	if img, err := m.store.LookupImage(id); err == nil && img.Source == source {
		if _, err := os.Stat(filepath.Join(m.dir, img.Filename)); err == nil {
			return publicImagePath(img.Filename), nil
		}
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return src, err
	}

	img, data, err := m.fetch(ctx, src)
	if err != nil {
		return src, fmt.Errorf("mirror image %s: %w", id, err)
	}
	img.NotionID = id
	img.Source = source
	img.Filename = content.Slugify(id) + ".jpg"
	img.FetchedAt = m.now().UTC()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return src, fmt.Errorf("create mirror dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, img.Filename), data, 0o644); err != nil {
		return src, fmt.Errorf("write image: %w", err)
	}
	if err := m.store.SaveImage(img); err != nil {
		return src, err
	}
	return publicImagePath(img.Filename), nil
}

func (m *ImageMirror) fetch(ctx context.Context, src string) (MirroredImage, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return MirroredImage{}, nil, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return MirroredImage{}, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return MirroredImage{}, nil, fmt.Errorf("GET: %s", resp.Status)
	}
	return processImage(io.LimitReader(resp.Body, maxDownloadSize))
}

// Prune deletes mirrored images whose Notion ID is not in keep, returning
// how many were removed.
func (m *ImageMirror) Prune(keep map[string]bool) (int, error) {
	images, err := m.store.ListImages()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, img := range images {
		if keep[img.NotionID] {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, img.Filename)); err != nil && !os.IsNotExist(err) {
			m.log.Warn("removing mirrored image", zap.String("file", img.Filename), zap.Error(err))
		}
		if err := m.store.DeleteImage(img.NotionID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// processImage decodes an image from src, resizes it to maxImageWidth when
// wider, and encodes it as JPEG. Returns metadata and the encoded bytes.
func processImage(src io.Reader) (MirroredImage, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return MirroredImage{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxImageWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return MirroredImage{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return MirroredImage{Width: w, Height: h, Size: buf.Len()}, buf.Bytes(), nil
}

// sourceKey identifies an image across syncs. Notion's signed S3 URLs get a
// new query string on every request, so it is dropped for those hosts.
func sourceKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	host := strings.ToLower(u.Hostname())
	if strings.HasSuffix(host, ".amazonaws.com") || strings.HasSuffix(host, "notion.so") ||
		strings.HasSuffix(host, "notion-static.com") || strings.HasSuffix(host, "notionusercontent.com") {
		u.RawQuery = ""
	}
	return u.String()
}

func publicImagePath(filename string) string {
	return "/public/" + mirrorSubdir + "/" + filename
}
