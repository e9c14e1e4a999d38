package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SnippetLength is how many characters of an error body are kept.
const SnippetLength = 200

// HTTPError reports a backend response with a status other than 200.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Snippet    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Snippet)
}

// Retryable reports whether a later attempt could plausibly succeed.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AsHTTPError unwraps err to an *HTTPError.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}

// Snippet returns the first SnippetLength characters of an error body.
// HTML bodies are reduced to their visible text first.
func Snippet(body []byte, contentType string) string {
	text := string(body)
	if strings.Contains(strings.ToLower(contentType), "html") {
		if extracted, ok := htmlText(text); ok {
			text = extracted
		}
	}
	return truncate(text, SnippetLength)
}

func htmlText(raw string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", false
	}
	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if text == "" {
		text = strings.Join(strings.Fields(doc.Text()), " ")
	}
	if text == "" {
		return "", false
	}
	return text, true
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
