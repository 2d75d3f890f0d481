package workers

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	_ "image/gif"
	_ "image/png"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/config"
)

// ObjectStore is the blob-storage surface the image pipeline uses.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
}

// PropertyStore updates the stored image list after a batch lands.
type PropertyStore interface {
	UpdatePropertyImages(ctx context.Context, propertyID uuid.UUID, imageURLs []string) error
}

// ImagePipeline downloads listing photos, re-encodes them, and uploads them
// to object storage, deduplicating against blobs already stored. Within one
// process it also remembers source URLs it has already handled so repeated
// batches skip the network entirely.
type ImagePipeline struct {
	objects ObjectStore
	props   PropertyStore
	client  *http.Client
	cfg     config.ImageConfig
	referer string
	folder  string

	mu    sync.Mutex
	cache map[string]string // source URL -> stored public URL
}

func NewImagePipeline(objects ObjectStore, props PropertyStore, client *http.Client, cfg config.ImageConfig, referer, folder string) *ImagePipeline {
	return &ImagePipeline{
		objects: objects,
		props:   props,
		client:  client,
		cfg:     cfg,
		referer: referer,
		folder:  folder,
		cache:   make(map[string]string),
	}
}

// Ingest processes one property's image batch and returns the resolved
// object-store locations in input order, minus failures. Individual image
// failures are absorbed; the property record is only written when at least
// one image survived.
func (p *ImagePipeline) Ingest(ctx context.Context, propertyID uuid.UUID, imageURLs []string) ([]string, error) {
	if len(imageURLs) == 0 {
		return nil, nil
	}

	type outcome struct {
		location string
		existed  bool
		err      error
	}
	outcomes := make([]outcome, len(imageURLs))

	g, gctx := errgroup.WithContext(ctx)
	limit := p.cfg.Concurrency
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for i, src := range imageURLs {
		g.Go(func() error {
			loc, existed, err := p.processOne(gctx, src)
			outcomes[i] = outcome{location: loc, existed: existed, err: err}
			return nil
		})
	}
	g.Wait()

	var stored []string
	var existedCount, uploaded, failed int
	for i, o := range outcomes {
		if o.err != nil {
			log.Printf("Warning: image %s: %v", imageURLs[i], o.err)
			failed++
			continue
		}
		if o.existed {
			existedCount++
		} else {
			uploaded++
		}
		stored = append(stored, o.location)
	}

	p.logSummary(len(imageURLs), existedCount, uploaded, failed)

	if len(stored) == 0 {
		return nil, nil
	}
	if err := p.props.UpdatePropertyImages(ctx, propertyID, stored); err != nil {
		return nil, fmt.Errorf("update property images: %w", err)
	}
	return stored, nil
}

// processOne resolves one source URL to its stored location, uploading only
// when neither the in-process cache nor the object store has it.
func (p *ImagePipeline) processOne(ctx context.Context, src string) (location string, existed bool, err error) {
	p.mu.Lock()
	if loc, ok := p.cache[src]; ok {
		p.mu.Unlock()
		return loc, true, nil
	}
	p.mu.Unlock()

	key := BlobName(src, p.folder)

	ok, err := p.objects.Exists(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("check blob %s: %w", key, err)
	}
	if ok {
		loc := p.objects.PublicURL(key)
		p.remember(src, loc)
		return loc, true, nil
	}

	data, err := p.download(ctx, src)
	if err != nil {
		return "", false, err
	}

	normalized, err := p.normalizeImage(data)
	if err != nil {
		return "", false, err
	}

	if err := p.objects.Upload(ctx, key, bytes.NewReader(normalized), "image/jpeg"); err != nil {
		return "", false, fmt.Errorf("upload %s: %w", key, err)
	}

	loc := p.objects.PublicURL(key)
	p.remember(src, loc)
	return loc, false, nil
}

func (p *ImagePipeline) remember(src, location string) {
	p.mu.Lock()
	p.cache[src] = location
	p.mu.Unlock()
}

// download fetches the image with a couple of retries. Bad status codes and
// non-image payloads are permanent: retrying will not change them.
func (p *ImagePipeline) download(ctx context.Context, src string) ([]byte, error) {
	var data []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "image/*")
		if p.referer != "" {
			req.Header.Set("Referer", p.referer)
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return backoff.Permanent(fmt.Errorf("download status %d", resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
		if err != nil {
			return err
		}

		if mt := mimetype.Detect(body); !strings.HasPrefix(mt.String(), "image/") {
			return backoff.Permanent(fmt.Errorf("not an image: %s", mt.String()))
		}

		data = body
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("download %s: %w", src, err)
	}
	return data, nil
}

// normalizeImage re-encodes any supported format as a compact JPEG,
// flattening transparency onto white. Thumbnails below the minimum
// dimension are rejected.
func (p *ImagePipeline) normalizeImage(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() < p.cfg.MinDimension || bounds.Dy() < p.cfg.MinDimension {
		return nil, fmt.Errorf("image too small: %dx%d", bounds.Dx(), bounds.Dy())
	}

	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Over)

	var buf bytes.Buffer
	quality := p.cfg.JPEGQuality
	if quality <= 0 {
		quality = 50
	}
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// logSummary emits exactly one line per batch. A batch where every image
// was already stored stays silent.
func (p *ImagePipeline) logSummary(total, existed, uploaded, failed int) {
	switch {
	case failed > 0:
		log.Printf("Image batch partial update: %d of %d already existed, %d uploaded, %d failed", existed, total, uploaded, failed)
	case uploaded == total:
		log.Printf("Uploaded %d new images", uploaded)
	case existed == total:
		// All hits, nothing to report.
	default:
		log.Printf("Processed %d images: %d already existed, %d uploaded", total, existed, uploaded)
	}
}

var blobNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// BlobName derives a stable object key from an image URL so the same image
// always maps to the same blob. Resize-proxy URLs are unwrapped to the
// underlying source path first.
func BlobName(rawURL, folder string) string {
	name := blobFileName(rawURL)
	if folder != "" {
		return folder + "/" + name
	}
	return name
}

func blobFileName(rawURL string) string {
	decoded, err := url.QueryUnescape(rawURL)
	if err != nil {
		decoded = rawURL
	}

	var name string
	if strings.Contains(decoded, "resizeImage") {
		if u, perr := url.Parse(rawURL); perr == nil {
			if src := u.Query().Get("src"); src != "" {
				if unq, uerr := url.QueryUnescape(src); uerr == nil {
					src = unq
				}
				parts := strings.Split(strings.Trim(src, "/"), "/")
				switch {
				case len(parts) >= 2:
					name = parts[len(parts)-2] + "_" + parts[len(parts)-1]
				case len(parts) == 1:
					name = parts[0]
				}
			}
		}
	} else {
		name = path.Base(decoded)
	}

	if name == "" || name == "." || name == "/" {
		name = hashedName(rawURL)
	}
	if i := strings.Index(name, "?"); i >= 0 {
		name = name[:i]
	}
	if !hasImageExt(name) {
		name += ".jpg"
	}
	return blobNameSanitizer.ReplaceAllString(name, "_")
}

func hashedName(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	return "image_" + hex.EncodeToString(sum[:])[:10] + ".jpg"
}

func hasImageExt(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}
