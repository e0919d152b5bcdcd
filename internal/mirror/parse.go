package mirror

import (
	"regexp"
	"strings"
)

// anchor is one <a> element pulled out of a page.
type anchor struct {
	href  string
	text  string
	class string
	title string
}

var (
	versionPattern = regexp.MustCompile(`(\d+\.\d+[\d.]*)`)
	sizePattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(MB|GB|KB)`)
	androidPattern = regexp.MustCompile(`Android\s*[\d.]+`)
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
)

// extractAnchors scans a document for <a> elements. Scraped pages are not
// trusted to be well-formed, so this deliberately stays a forgiving string
// scan rather than a strict DOM parse.
func extractAnchors(html string) []anchor {
	var anchors []anchor
	rest := html
	for {
		start := strings.Index(rest, "<a ")
		if start == -1 {
			break
		}
		rest = rest[start:]

		tagEnd := strings.Index(rest, ">")
		if tagEnd == -1 {
			break
		}
		tag := rest[:tagEnd]
		rest = rest[tagEnd+1:]

		textEnd := strings.Index(rest, "</a>")
		if textEnd == -1 {
			break
		}
		text := stripTags(rest[:textEnd])
		rest = rest[textEnd+len("</a>"):]

		href := attrValue(tag, "href")
		if href == "" {
			continue
		}
		anchors = append(anchors, anchor{
			href:  href,
			text:  text,
			class: attrValue(tag, "class"),
			title: attrValue(tag, "title"),
		})
	}
	return anchors
}

func attrValue(tag, name string) string {
	marker := name + `="`
	start := strings.Index(tag, marker)
	if start == -1 {
		marker = name + `='`
		start = strings.Index(tag, marker)
		if start == -1 {
			return ""
		}
	}
	quote := marker[len(marker)-1:]
	rest := tag[start+len(marker):]
	end := strings.Index(rest, quote)
	if end == -1 {
		return ""
	}
	return rest[:end]
}

func stripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// firstTagText returns the text content of the first occurrence of the given
// tag, or "" when the tag is absent.
func firstTagText(html, tag string) string {
	open := strings.Index(html, "<"+tag)
	if open == -1 {
		return ""
	}
	rest := html[open:]
	tagEnd := strings.Index(rest, ">")
	if tagEnd == -1 {
		return ""
	}
	rest = rest[tagEnd+1:]
	close := strings.Index(rest, "</"+tag+">")
	if close == -1 {
		return ""
	}
	return stripTags(rest[:close])
}

// matchSize extracts a human-readable size like "145 MB" from text.
func matchSize(text string) string {
	m := sizePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1] + " " + strings.ToUpper(m[2])
}

func matchVersion(text string) string {
	return versionPattern.FindString(text)
}

func matchAndroidRequirement(text string) string {
	return androidPattern.FindString(text)
}
