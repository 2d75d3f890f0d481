package workers

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/config"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	uploads int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeObjectStore) Upload(ctx context.Context, key string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	f.uploads++
	return nil
}

func (f *fakeObjectStore) PublicURL(key string) string {
	return "https://bucket.example.com/" + key
}

type fakePropertyStore struct {
	mu       sync.Mutex
	imageSet map[uuid.UUID][]string
}

func newFakePropertyStore() *fakePropertyStore {
	return &fakePropertyStore{imageSet: make(map[uuid.UUID][]string)}
}

func (f *fakePropertyStore) UpdatePropertyImages(ctx context.Context, propertyID uuid.UUID, imageURLs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageSet[propertyID] = imageURLs
	return nil
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newTestPipeline(objects *fakeObjectStore, props *fakePropertyStore, client *http.Client) *ImagePipeline {
	cfg := config.ImageConfig{MinDimension: 50, JPEGQuality: 50, Concurrency: 2}
	return NewImagePipeline(objects, props, client, cfg, "https://suumo.jp/", "property_images")
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(encodeJPEG(t, 100, 80))
	})
	mux.HandleFunc("/png/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(encodePNG(t, 120, 90))
	})
	mux.HandleFunc("/small/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(encodeJPEG(t, 30, 30))
	})
	mux.HandleFunc("/missing/", http.NotFound)
	mux.HandleFunc("/text/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not an image</html>"))
	})
	return httptest.NewServer(mux)
}

func TestIngest_UploadsAndStoresOrder(t *testing.T) {
	srv := imageServer(t)
	defer srv.Close()

	objects := newFakeObjectStore()
	props := newFakePropertyStore()
	pipeline := newTestPipeline(objects, props, srv.Client())

	propertyID := uuid.New()
	urls := []string{srv.URL + "/img/N001.jpg", srv.URL + "/png/N002.png", srv.URL + "/img/N003.jpg"}

	locations, err := pipeline.Ingest(context.Background(), propertyID, urls)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if objects.uploads != 3 {
		t.Fatalf("expected 3 uploads, got %d", objects.uploads)
	}

	want := []string{
		"https://bucket.example.com/property_images/N001.jpg",
		"https://bucket.example.com/property_images/N002.png",
		"https://bucket.example.com/property_images/N003.jpg",
	}
	if len(locations) != 3 {
		t.Fatalf("expected 3 locations, got %v", locations)
	}
	stored := props.imageSet[propertyID]
	if len(stored) != 3 {
		t.Fatalf("expected 3 stored urls, got %v", stored)
	}
	for i, w := range want {
		if locations[i] != w {
			t.Fatalf("locations[%d]: expected %s, got %s", i, w, locations[i])
		}
		if stored[i] != w {
			t.Fatalf("stored[%d]: expected %s, got %s", i, w, stored[i])
		}
	}

	// Everything lands re-encoded as JPEG regardless of source format.
	for key, blob := range objects.objects {
		if _, err := jpeg.Decode(bytes.NewReader(blob)); err != nil {
			t.Fatalf("blob %s is not a jpeg: %v", key, err)
		}
	}
}

func TestIngest_DeduplicatesAgainstStore(t *testing.T) {
	srv := imageServer(t)
	defer srv.Close()

	objects := newFakeObjectStore()
	props := newFakePropertyStore()

	propertyID := uuid.New()
	urls := []string{srv.URL + "/img/N001.jpg", srv.URL + "/img/N002.jpg"}

	pipeline := newTestPipeline(objects, props, srv.Client())
	first, err := pipeline.Ingest(context.Background(), propertyID, urls)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if objects.uploads != 2 {
		t.Fatalf("expected 2 uploads on first pass, got %d", objects.uploads)
	}

	// A fresh pipeline has no in-process cache, so the skip must come from
	// the object store itself.
	pipeline = newTestPipeline(objects, props, srv.Client())
	second, err := pipeline.Ingest(context.Background(), propertyID, urls)
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if objects.uploads != 2 {
		t.Fatalf("second pass must not re-upload, got %d uploads", objects.uploads)
	}

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 locations both passes, got %v / %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("location %d changed across runs: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestIngest_PartialFailure(t *testing.T) {
	srv := imageServer(t)
	defer srv.Close()

	var logBuf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&logBuf)
	defer log.SetOutput(prev)

	objects := newFakeObjectStore()
	props := newFakePropertyStore()
	pipeline := newTestPipeline(objects, props, srv.Client())

	propertyID := uuid.New()
	urls := []string{
		srv.URL + "/img/N001.jpg",
		srv.URL + "/missing/N002.jpg",
		srv.URL + "/small/N003.jpg",
		srv.URL + "/text/N004.jpg",
	}

	locations, err := pipeline.Ingest(context.Background(), propertyID, urls)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if objects.uploads != 1 {
		t.Fatalf("expected 1 upload, got %d", objects.uploads)
	}
	if len(locations) != 1 || !strings.HasSuffix(locations[0], "/property_images/N001.jpg") {
		t.Fatalf("expected only the good image resolved, got %v", locations)
	}
	stored := props.imageSet[propertyID]
	if len(stored) != 1 || !strings.HasSuffix(stored[0], "/property_images/N001.jpg") {
		t.Fatalf("expected only the good image stored, got %v", stored)
	}
	if !strings.Contains(logBuf.String(), "Image batch partial update: 0 of 4 already existed, 1 uploaded, 3 failed") {
		t.Fatalf("missing partial update summary in log:\n%s", logBuf.String())
	}
}

func TestIngest_MixedExistingNewAndFailed(t *testing.T) {
	srv := imageServer(t)
	defer srv.Close()

	var logBuf bytes.Buffer
	prev := log.Writer()
	log.SetOutput(&logBuf)
	defer log.SetOutput(prev)

	objects := newFakeObjectStore()
	props := newFakePropertyStore()

	urls := []string{
		srv.URL + "/img/N001.jpg",
		srv.URL + "/img/N002.jpg",
		srv.URL + "/img/N003.jpg",
		srv.URL + "/img/N004.jpg",
		srv.URL + "/missing/N005.jpg",
	}

	// Seed the store so the first two count as hits.
	objects.objects[BlobName(urls[0], "property_images")] = encodeJPEG(t, 100, 80)
	objects.objects[BlobName(urls[1], "property_images")] = encodeJPEG(t, 100, 80)

	pipeline := newTestPipeline(objects, props, srv.Client())
	locations, err := pipeline.Ingest(context.Background(), uuid.New(), urls)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(locations) != 4 {
		t.Fatalf("expected 4 resolved locations, got %v", locations)
	}
	if objects.uploads != 2 {
		t.Fatalf("expected 2 uploads, got %d", objects.uploads)
	}
	if !strings.Contains(logBuf.String(), "Image batch partial update: 2 of 5 already existed, 2 uploaded, 1 failed") {
		t.Fatalf("missing partial update summary in log:\n%s", logBuf.String())
	}
}

func TestIngest_AllFailuresKeepsStoredList(t *testing.T) {
	srv := imageServer(t)
	defer srv.Close()

	objects := newFakeObjectStore()
	props := newFakePropertyStore()
	pipeline := newTestPipeline(objects, props, srv.Client())

	propertyID := uuid.New()
	locations, err := pipeline.Ingest(context.Background(), propertyID, []string{srv.URL + "/missing/N001.jpg"})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(locations) != 0 {
		t.Fatalf("expected no resolved locations, got %v", locations)
	}
	if _, ok := props.imageSet[propertyID]; ok {
		t.Fatalf("all-failed batch must not touch the property record")
	}
}

func dropConnection(w http.ResponseWriter) {
	if hj, ok := w.(http.Hijacker); ok {
		if conn, _, err := hj.Hijack(); err == nil {
			conn.Close()
		}
	}
}

func TestIngest_RetriesTransientFailure(t *testing.T) {
	img := encodeJPEG(t, 100, 80)

	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		first := attempts == 1
		mu.Unlock()

		// Drop the first connection mid-request so the client sees a
		// transport error rather than an HTTP status.
		if first {
			dropConnection(w)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(img)
	}))
	defer srv.Close()

	objects := newFakeObjectStore()
	props := newFakePropertyStore()
	pipeline := newTestPipeline(objects, props, srv.Client())

	locations, err := pipeline.Ingest(context.Background(), uuid.New(), []string{srv.URL + "/img/N001.jpg"})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(locations) != 1 {
		t.Fatalf("image should land after a transient failure, got %v", locations)
	}
	if objects.uploads != 1 {
		t.Fatalf("expected 1 upload, got %d", objects.uploads)
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 2 {
		t.Fatalf("expected 2 download attempts, got %d", attempts)
	}
}

func TestIngest_RetryExhaustion(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		dropConnection(w)
	}))
	defer srv.Close()

	objects := newFakeObjectStore()
	props := newFakePropertyStore()
	pipeline := newTestPipeline(objects, props, srv.Client())

	propertyID := uuid.New()
	locations, err := pipeline.Ingest(context.Background(), propertyID, []string{srv.URL + "/img/N001.jpg"})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(locations) != 0 {
		t.Fatalf("expected no resolved locations, got %v", locations)
	}
	if objects.uploads != 0 {
		t.Fatalf("expected no uploads, got %d", objects.uploads)
	}
	if _, ok := props.imageSet[propertyID]; ok {
		t.Fatalf("exhausted batch must not touch the property record")
	}

	// Initial attempt plus two retries.
	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Fatalf("expected 3 download attempts, got %d", attempts)
	}
}

func TestIngest_NonOKSuccessStatus(t *testing.T) {
	img := encodeJPEG(t, 100, 80)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusNonAuthoritativeInfo)
		w.Write(img)
	}))
	defer srv.Close()

	objects := newFakeObjectStore()
	props := newFakePropertyStore()
	pipeline := newTestPipeline(objects, props, srv.Client())

	locations, err := pipeline.Ingest(context.Background(), uuid.New(), []string{srv.URL + "/img/N001.jpg"})
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(locations) != 1 || objects.uploads != 1 {
		t.Fatalf("2xx status should be accepted, got %v with %d uploads", locations, objects.uploads)
	}
}

func TestBlobName(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{
			url:  "https://img01.suumo.com/front/gazo/fr/bukken/001/N001.jpg",
			want: "property_images/N001.jpg",
		},
		{
			url:  "https://suumo.jp/jj/resizeImage?src=%2Ffront%2Fgazo%2Fbukken%2F001%2FN002.jpg",
			want: "property_images/001_N002.jpg",
		},
		{
			url:  "https://img01.suumo.com/front/gazo/fr/bukken/001/N003.jpg?some=query",
			want: "property_images/N003.jpg",
		},
		{
			url:  "https://img01.suumo.com/front/gazo/fr/bukken/001/N004",
			want: "property_images/N004.jpg",
		},
	}
	for _, c := range cases {
		if got := BlobName(c.url, "property_images"); got != c.want {
			t.Fatalf("BlobName(%s): expected %s, got %s", c.url, c.want, got)
		}
	}

	// Same URL always maps to the same key.
	a := BlobName("https://img01.suumo.com/a/b.jpg", "property_images")
	b := BlobName("https://img01.suumo.com/a/b.jpg", "property_images")
	if a != b {
		t.Fatalf("blob name not stable: %s vs %s", a, b)
	}
}
