package feeds

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// maxContentWords caps extracted page text so classification prompts stay
// bounded.
const maxContentWords = 500

// browserHeaders sets browser-like request headers so sites that check Accept
// or User-Agent don't reject the request with 406.
func browserHeaders(r *http.Request) {
	r.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	r.Header.Set("User-Agent", "Mozilla/5.0 (compatible; cloudbrief/1.0; +https://github.com/rowanlabs/cloudbrief)")
}

// extractFullText fetches the web page at the given URL and returns its main
// readable text content using go-readability.
func extractFullText(url string, timeout time.Duration) (string, error) {
	article, err := readability.FromURL(url, timeout, browserHeaders)
	if err != nil {
		return "", fmt.Errorf("readability extraction: %w", err)
	}
	return article.TextContent, nil
}

// truncateWords returns the first maxWords whitespace-delimited words from s.
// If s contains fewer than maxWords words, it is returned unchanged.
func truncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}
