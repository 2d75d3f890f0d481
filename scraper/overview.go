package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SectionLocator decides which overview-section heading marks the table to
// extract. Listing pages carry two such sections: one titled after the
// property itself and one under a fixed shared marker.
type SectionLocator interface {
	Matches(heading string) bool
}

// NameSuffixLocator matches the section whose heading is the property name
// followed by a site-specific suffix.
type NameSuffixLocator struct {
	Name   string
	Suffix string
}

func (l NameSuffixLocator) Matches(heading string) bool {
	return strings.Contains(heading, l.Name+l.Suffix)
}

// FixedMarkerLocator matches a section by its literal heading text.
type FixedMarkerLocator struct {
	Marker string
}

func (l FixedMarkerLocator) Matches(heading string) bool {
	return strings.Contains(heading, l.Marker)
}

// RawOverview is one extracted overview table before label translation.
// Transit holds the multi-valued transportation run separately since it is
// the only label that spans more than one cell value.
type RawOverview struct {
	Fields  map[string]string
	Transit []string
}

// ExtractOverview finds the section whose heading the locator matches and
// walks its table rows, pairing labels with cell values positionally. A page
// without a matching section yields an empty result, not an error.
func ExtractOverview(doc *goquery.Document, loc SectionLocator, trafficLabel string) *RawOverview {
	raw := &RawOverview{Fields: make(map[string]string)}

	table := findSectionTable(doc, loc)
	if table == nil {
		return raw
	}

	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		labels := textNodes(row.Find("th div"))
		values := textNodes(row.Find("td"))

		for i, label := range labels {
			if i >= len(values) {
				// Fewer values than labels: the trailing labels have no
				// cell content on this listing, so they stay absent.
				break
			}
			if label == trafficLabel {
				raw.Transit = append([]string(nil), values[i:]...)
				continue
			}
			raw.Fields[label] = values[i]
		}
	})

	return raw
}

func findSectionTable(doc *goquery.Document, loc SectionLocator) *goquery.Selection {
	var table *goquery.Selection
	doc.Find("div.secTitleOuterR").EachWithBreak(func(_ int, sec *goquery.Selection) bool {
		heading := strings.TrimSpace(sec.Find("h3.secTitleInnerR").Text())
		if !loc.Matches(heading) {
			return true
		}
		t := sec.NextAllFiltered("table").First()
		if t.Length() > 0 {
			table = t
		}
		return false
	})
	return table
}

// textNodes collects the trimmed, non-empty direct text-node children of
// each element in the selection. Text inside nested elements is skipped so
// markup like inline links does not leak into cell values.
func textNodes(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, el *goquery.Selection) {
		el.Contents().Each(func(_ int, n *goquery.Selection) {
			if goquery.NodeName(n) != "#text" {
				return
			}
			if text := strings.TrimSpace(n.Text()); text != "" {
				out = append(out, text)
			}
		})
	})
	return out
}
