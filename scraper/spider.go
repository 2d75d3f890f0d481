package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/taguhoiya/mansion-watch-scraper-sub000/config"
	"github.com/taguhoiya/mansion-watch-scraper-sub000/models"
)

// Fetch failure classes, in the order they are checked.
type FailKind string

const (
	FailNotFound FailKind = "not_found"
	FailDNS      FailKind = "dns"
	FailTimeout  FailKind = "timeout"
	FailHTTP     FailKind = "http"
)

// FetchError classifies why a page could not be fetched so callers can
// report the failure in user-facing terms.
type FetchError struct {
	Kind   FailKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FailNotFound:
		return fmt.Sprintf("property not found (HTTP 404): %s", e.URL)
	case FailDNS:
		return fmt.Sprintf("could not resolve host: %s", e.URL)
	case FailTimeout:
		return fmt.Sprintf("request timed out: %s", e.URL)
	default:
		if e.Status != 0 {
			return fmt.Sprintf("fetch failed with HTTP %d: %s", e.Status, e.URL)
		}
		return fmt.Sprintf("fetch failed: %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Spider fetches one listing page and turns it into a work unit. It follows
// redirects; a final URL under /library/ means the listing was removed and
// the property is marked inactive instead of failing the run.
type Spider struct {
	client *http.Client
	source *config.SourceConfig
}

func NewSpider(client *http.Client, source *config.SourceConfig) *Spider {
	return &Spider{client: client, source: source}
}

// Run fetches pageURL on behalf of lineUserID and parses it into a work
// unit. Fetch failures come back as *FetchError.
func (s *Spider) Run(ctx context.Context, pageURL, lineUserID string) (*models.WorkUnit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", pageURL, err)
	}
	if s.source.UserAgent != "" {
		req.Header.Set("User-Agent", s.source.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &FetchError{Kind: FailNotFound, URL: pageURL, Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Kind: FailHTTP, URL: pageURL, Status: resp.StatusCode}
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", finalURL, err)
	}

	return s.parse(doc, pageURL, finalURL, lineUserID), nil
}

func classifyTransportError(pageURL string, err error) *FetchError {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &FetchError{Kind: FailDNS, URL: pageURL, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: FailTimeout, URL: pageURL, Err: err}
	}
	return &FetchError{Kind: FailHTTP, URL: pageURL, Err: err}
}

// parse builds the work unit from a fetched document. The original request
// URL stays the property's identity even when the server redirected.
func (s *Spider) parse(doc *goquery.Document, pageURL, finalURL, lineUserID string) *models.WorkUnit {
	now := time.Now().UTC()

	name := s.propertyName(doc)
	active := true
	if strings.Contains(finalURL, "/library/") {
		// Removed listings redirect into the site's archive section.
		active = false
	}
	if name == "" {
		name = models.UnknownPropertyName
		active = false
	}

	prop := &models.Property{
		ID:        uuid.New(),
		Name:      name,
		URL:       pageURL,
		IsActive:  active,
		ImageURLs: s.imageURLs(doc),
		CreatedAt: now,
		UpdatedAt: now,
	}

	unit := &models.WorkUnit{Property: prop}

	if lineUserID != "" {
		unit.UserProperty = &models.UserProperty{
			ID:               uuid.New(),
			LineUserID:       lineUserID,
			PropertyID:       prop.ID,
			FirstSucceededAt: now,
			LastSucceededAt:  now,
			LastAggregatedAt: now,
			NextAggregatedAt: now.Add(models.AggregationInterval),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}

	propRaw := ExtractOverview(doc, NameSuffixLocator{Name: name, Suffix: s.source.ApartmentSuffix}, s.source.TrafficLabel)
	fields := models.TranslateKeys(propRaw.Fields, models.PropertyOverviewTranslationMap)
	if len(fields) > 0 {
		po := models.PropertyOverviewFromFields(fields, now)
		po.ID = uuid.New()
		po.PropertyID = prop.ID
		unit.PropertyOverview = po
	}

	commonRaw := ExtractOverview(doc, FixedMarkerLocator{Marker: s.source.CommonOverviewMarker}, s.source.TrafficLabel)
	commonFields := models.TranslateKeys(commonRaw.Fields, models.CommonOverviewTranslationMap)
	if len(commonFields) > 0 || len(commonRaw.Transit) > 0 {
		co := models.CommonOverviewFromFields(commonFields, commonRaw.Transit, now)
		co.ID = uuid.New()
		co.PropertyID = prop.ID
		unit.CommonOverview = co
	}

	return unit
}

// propertyName reads the name from the overview row labelled with the
// configured property-name marker, collapsing internal whitespace.
func (s *Spider) propertyName(doc *goquery.Document) string {
	var name string
	doc.Find("table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		label := strings.TrimSpace(row.Find("th div").Text())
		if !strings.Contains(label, s.source.PropertyNameLabel) {
			return true
		}
		name = strings.Join(strings.Fields(row.Find("td").First().Text()), " ")
		return false
	})
	return name
}

func (s *Spider) imageURLs(doc *goquery.Document) []string {
	var urls []string
	seen := make(map[string]bool)
	doc.Find("#js-lightbox li div a").Each(func(_ int, a *goquery.Selection) {
		src, ok := a.Attr("data-src")
		if !ok || src == "" || seen[src] {
			return
		}
		seen[src] = true
		urls = append(urls, src)
	})
	return urls
}
