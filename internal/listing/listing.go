package listing

// Source identifies which search backend produced a record.
type Source string

const (
	// SourceMirror is the primary third-party mirror site, searched via its sitemap.
	SourceMirror Source = "mirror"
	// SourcePlay is the secondary official-store scraper.
	SourcePlay Source = "play"
)

// Record is one app or game entry returned by a search adapter.
// URL is the identity key for mirror records, Package for play records.
type Record struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Version     string `json:"version"`
	Size        string `json:"size"`
	Category    string `json:"category"`
	ModFeatures string `json:"mod_features"`
	Image       string `json:"image"`
	Score       int    `json:"score,omitempty"`
	Source      Source `json:"source"`
	Package     string `json:"package,omitempty"`
	Developer   string `json:"developer,omitempty"`
}

// DownloadLink is one candidate download extracted from a download page.
// Direct means the URL resolves to a binary without further navigation.
type DownloadLink struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Size   string `json:"size"`
	Direct bool   `json:"direct"`
}

// AppDetails holds the fields scraped from a mirror detail page.
// Missing fields stay empty; a parse miss never fails the whole record.
type AppDetails struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Size         string `json:"size"`
	Category     string `json:"category"`
	Publisher    string `json:"publisher"`
	Requirements string `json:"requirements"`
	LastUpdated  string `json:"last_updated"`
	Rating       string `json:"rating"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	DownloadPage string `json:"download_page"`
}
