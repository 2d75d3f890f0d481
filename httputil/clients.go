package httputil

import (
	"net/http"
	"time"
)

// Clients bundles the HTTP clients the daemon uses. Page fetches follow
// redirects so delisted listings can be detected by their final URL; image
// downloads get a longer timeout.
type Clients struct {
	Scraping *http.Client
	Images   *http.Client
}

func NewClients() *Clients {
	return &Clients{
		Scraping: &http.Client{Timeout: 30 * time.Second},
		Images:   &http.Client{Timeout: 60 * time.Second},
	}
}
