package extract

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractURL fetches a page and reduces it to its primary textual content.
// Navigation, scripts and other boilerplate are stripped; the main content
// region is preferred when the page declares one.
func (e *Extractor) extractURL(ctx context.Context, in URLInput) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", in.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", in.URL, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "text/") {
		return "", fmt.Errorf("fetch %s: non-text content type %q", in.URL, ct)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	text := reduceToContent(doc)
	e.logger.Debug("url extracted", "url", in.URL, "chars", len(text))
	return text, nil
}

// reduceToContent strips boilerplate elements and returns the text of the
// main content region, falling back to the whole body.
func reduceToContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, noscript, iframe, form").Remove()

	for _, sel := range []string{"main", "article", "[role='main']", "#content", ".content"} {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if text := blockText(node); strings.TrimSpace(text) != "" {
				return text
			}
		}
	}
	return blockText(doc.Find("body"))
}

// blockText joins the text of block-level children with newlines so
// paragraph boundaries survive into the normalized blob.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	blocks := sel.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre, td")
	if blocks.Length() == 0 {
		return sel.Text()
	}
	blocks.Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			b.WriteString(t)
			b.WriteString("\n")
		}
	})
	return b.String()
}
