package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/config"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/models"
)

func serveFixture(t *testing.T, name string) http.HandlerFunc {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(data)
	}
}

func newTestSpider(client *http.Client) *Spider {
	return NewSpider(client, config.DefaultSourceConfig())
}

func TestSpiderRun_Basic(t *testing.T) {
	srv := httptest.NewServer(serveFixture(t, "listing_basic.html"))
	defer srv.Close()

	spider := newTestSpider(srv.Client())
	unit, err := spider.Run(context.Background(), srv.URL+"/ms/chuko/tokyo/nc_12345/", "U1234567890")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	prop := unit.Property
	if prop == nil {
		t.Fatalf("expected property")
	}
	if prop.Name != "グランドマンション品川" {
		t.Fatalf("unexpected name %q", prop.Name)
	}
	if !prop.IsActive {
		t.Fatalf("expected active property")
	}
	if len(prop.ImageURLs) != 2 {
		t.Fatalf("expected 2 deduplicated image urls, got %d: %v", len(prop.ImageURLs), prop.ImageURLs)
	}

	up := unit.UserProperty
	if up == nil {
		t.Fatalf("expected user property")
	}
	if up.LineUserID != "U1234567890" {
		t.Fatalf("unexpected line user id %q", up.LineUserID)
	}
	if up.PropertyID != prop.ID {
		t.Fatalf("user property not linked to property")
	}
	if got := up.NextAggregatedAt.Sub(up.LastAggregatedAt); got != models.AggregationInterval {
		t.Fatalf("expected aggregation window of %s, got %s", models.AggregationInterval, got)
	}

	po := unit.PropertyOverview
	if po == nil {
		t.Fatalf("expected property overview")
	}
	if po.Price != "5980万円" {
		t.Fatalf("unexpected price %q", po.Price)
	}
	if po.RepairReserveFund != "8500円／月" {
		t.Fatalf("unexpected repair reserve fund %q", po.RepairReserveFund)
	}
	if po.FirstRepairReserveFund != "25万円" {
		t.Fatalf("unexpected first repair reserve fund %q", po.FirstRepairReserveFund)
	}
	if po.EventInformation != "" {
		t.Fatalf("event information should stay empty, got %q", po.EventInformation)
	}

	co := unit.CommonOverview
	if co == nil {
		t.Fatalf("expected common overview")
	}
	if co.Location != "東京都品川区西品川１" {
		t.Fatalf("unexpected location %q", co.Location)
	}
	if len(co.Transportation) != 3 {
		t.Fatalf("expected 3 transportation entries, got %v", co.Transportation)
	}
}

func TestSpiderRun_NoUser(t *testing.T) {
	srv := httptest.NewServer(serveFixture(t, "listing_basic.html"))
	defer srv.Close()

	spider := newTestSpider(srv.Client())
	unit, err := spider.Run(context.Background(), srv.URL+"/ms/chuko/tokyo/nc_12345/", "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if unit.UserProperty != nil {
		t.Fatalf("expected no user property without a subscriber")
	}
}

func TestSpiderRun_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	spider := newTestSpider(srv.Client())
	_, err := spider.Run(context.Background(), srv.URL+"/ms/gone/", "U1234567890")
	if err == nil {
		t.Fatalf("expected error")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.Kind != FailNotFound {
		t.Fatalf("expected not-found classification, got %s", fetchErr.Kind)
	}
}

func TestSpiderRun_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	spider := newTestSpider(srv.Client())
	_, err := spider.Run(context.Background(), srv.URL+"/ms/broken/", "U1234567890")

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
	if fetchErr.Kind != FailHTTP || fetchErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected http classification with status 500, got %s / %d", fetchErr.Kind, fetchErr.Status)
	}
}

func TestSpiderRun_LibraryRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ms/chuko/tokyo/nc_12345/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/library/article/12345/", http.StatusFound)
	})
	mux.HandleFunc("/library/article/12345/", serveFixture(t, "listing_basic.html"))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	spider := newTestSpider(srv.Client())
	unit, err := spider.Run(context.Background(), srv.URL+"/ms/chuko/tokyo/nc_12345/", "U1234567890")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if unit.Property.IsActive {
		t.Fatalf("redirect into /library/ should deactivate the property")
	}
	if unit.Property.URL != srv.URL+"/ms/chuko/tokyo/nc_12345/" {
		t.Fatalf("property should keep the requested url, got %s", unit.Property.URL)
	}
}

func TestSpiderRun_MissingName(t *testing.T) {
	srv := httptest.NewServer(serveFixture(t, "listing_noname.html"))
	defer srv.Close()

	spider := newTestSpider(srv.Client())
	unit, err := spider.Run(context.Background(), srv.URL+"/ms/chuko/tokyo/nc_99999/", "U1234567890")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if unit.Property.Name != models.UnknownPropertyName {
		t.Fatalf("expected placeholder name, got %q", unit.Property.Name)
	}
	if unit.Property.IsActive {
		t.Fatalf("property without a name should be inactive")
	}
	if unit.PropertyOverview != nil {
		t.Fatalf("expected no property overview without a named section")
	}
}
