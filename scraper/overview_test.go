package scraper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func loadFixtureDoc(t *testing.T, name string) *goquery.Document {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to parse fixture %s: %v", name, err)
	}
	return doc
}

func TestExtractOverview_PropertySection(t *testing.T) {
	doc := loadFixtureDoc(t, "listing_basic.html")

	loc := NameSuffixLocator{Name: "グランドマンション品川", Suffix: " 　【マンション】"}
	raw := ExtractOverview(doc, loc, "交通")

	want := map[string]string{
		"物件名":    "グランドマンション品川",
		"価格":     "5980万円",
		"管理費":    "1万2000円／月",
		"間取り":    "2LDK",
		"専有面積":   "55.52m2",
		"修繕積立金":  "8500円／月",
		"修繕積立基金": "25万円",
	}
	for label, value := range want {
		if got := raw.Fields[label]; got != value {
			t.Fatalf("field %s: expected %q, got %q", label, value, got)
		}
	}
	if _, ok := raw.Fields["イベント情報"]; ok {
		t.Fatalf("label without a value should be absent, got %q", raw.Fields["イベント情報"])
	}
	if len(raw.Transit) != 0 {
		t.Fatalf("property section has no transit run, got %v", raw.Transit)
	}
}

func TestExtractOverview_CommonSection(t *testing.T) {
	doc := loadFixtureDoc(t, "listing_basic.html")

	raw := ExtractOverview(doc, FixedMarkerLocator{Marker: "共通概要"}, "交通")

	if got := raw.Fields["所在地"]; got != "東京都品川区西品川１" {
		t.Fatalf("unexpected location %q", got)
	}
	if got := raw.Fields["総戸数"]; got != "120戸" {
		t.Fatalf("unexpected total units %q", got)
	}
	if got := raw.Fields["構造・階建て"]; got != "RC20階建" {
		t.Fatalf("unexpected structure %q", got)
	}

	wantTransit := []string{
		"ＪＲ山手線「大崎」歩5分",
		"りんかい線「大崎」歩6分",
		"東急大井町線「下神明」歩8分",
	}
	if len(raw.Transit) != len(wantTransit) {
		t.Fatalf("expected %d transit entries, got %d: %v", len(wantTransit), len(raw.Transit), raw.Transit)
	}
	for i, want := range wantTransit {
		if raw.Transit[i] != want {
			t.Fatalf("transit[%d]: expected %q, got %q", i, want, raw.Transit[i])
		}
	}
	if _, ok := raw.Fields["交通"]; ok {
		t.Fatalf("traffic label must not appear as a scalar field")
	}
}

func TestExtractOverview_MissingSection(t *testing.T) {
	doc := loadFixtureDoc(t, "listing_basic.html")

	raw := ExtractOverview(doc, FixedMarkerLocator{Marker: "存在しないセクション"}, "交通")
	if len(raw.Fields) != 0 || len(raw.Transit) != 0 {
		t.Fatalf("missing section should yield empty result, got %v / %v", raw.Fields, raw.Transit)
	}
}

func TestExtractOverview_NameMismatch(t *testing.T) {
	doc := loadFixtureDoc(t, "listing_basic.html")

	loc := NameSuffixLocator{Name: "別のマンション", Suffix: " 　【マンション】"}
	raw := ExtractOverview(doc, loc, "交通")
	if len(raw.Fields) != 0 {
		t.Fatalf("mismatched name should not match any section, got %v", raw.Fields)
	}
}
