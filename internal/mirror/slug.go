package mirror

import (
	"regexp"
	"strings"
)

var (
	packageSuffixPattern = regexp.MustCompile(`-mod-apk.*|-apk.*`)
	nonSlugPattern       = regexp.MustCompile(`[^a-z0-9-]`)
)

// SlugFromURL returns the last path segment of a listing URL.
func SlugFromURL(u string) string {
	trimmed := strings.TrimRight(u, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx == -1 {
		return trimmed
	}
	return trimmed[idx+1:]
}

// NameFromSlug derives a display name from a URL slug: de-hyphenate, strip the
// generic "mod apk"/"apk" suffix tokens, title-case.
func NameFromSlug(slug string) string {
	name := strings.ReplaceAll(slug, "-", " ")
	name = strings.ReplaceAll(name, "mod apk", "")
	name = strings.ReplaceAll(name, "apk", "")
	return titleCase(strings.TrimSpace(name))
}

// Slugify normalizes a free-text name into a slug: lowercase, spaces to
// hyphens, everything outside [a-z0-9-] dropped.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	return nonSlugPattern.ReplaceAllString(slug, "")
}

// PackageKeyFromURL strips marketing suffixes from a listing slug so it can
// stand in for a package identifier in API responses.
func PackageKeyFromURL(u string) string {
	slug := SlugFromURL(u)
	if slug == "" || slug == "app" || slug == "game" || slug == "download" {
		return ""
	}
	return packageSuffixPattern.ReplaceAllString(slug, "")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
