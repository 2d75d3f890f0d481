package webhook

import (
	"fmt"
	"regexp"
	"strings"
)

var listingURLPattern = regexp.MustCompile(`https://suumo\.jp/ms/[^\s]+`)

// ExtractListingURL pulls the first listing URL out of a chat message.
func ExtractListingURL(text string) (string, bool) {
	match := listingURLPattern.FindString(text)
	if match == "" {
		return "", false
	}
	// Trailing punctuation from surrounding prose is not part of the URL.
	match = strings.TrimRight(match, ".,!?)")
	return match, true
}

// ValidateListingURL checks that a URL points at a listing page we can
// scrape.
func ValidateListingURL(rawURL string) error {
	if !strings.HasPrefix(rawURL, "https://suumo.jp") {
		return fmt.Errorf("url must start with https://suumo.jp: %s", rawURL)
	}
	return nil
}
