package extract

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'` + "`" + `]+`)

// trailing characters that belong to surrounding prose, not the URL
const urlTrimSet = ".,;:!?)]}>\"'"

// URLs scans free text for http(s) URLs, trims punctuation the model
// glued onto them, and deduplicates preserving first-seen order.
func URLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, m := range matches {
		m = strings.TrimRight(m, urlTrimSet)
		// a bare scheme with no real host is prose debris
		host := strings.TrimPrefix(strings.TrimPrefix(m, "https://"), "http://")
		if !strings.Contains(host, ".") {
			continue
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		urls = append(urls, m)
	}
	return urls
}
