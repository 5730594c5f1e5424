package hub

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Card is the summary shown on a model's hub page.
type Card struct {
	ID          string   `json:"id"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// PageURL is the browser URL of a model repository.
func (c *Client) PageURL(modelID string) string {
	return c.endpoint + "/" + modelID
}

// Card scrapes the model's hub page for its title, description and tags.
func (c *Client) Card(ctx context.Context, modelID string) (*Card, error) {
	if err := ValidateModelID(modelID); err != nil {
		return nil, err
	}

	pageURL := c.PageURL(modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &DownloadError{ModelID: modelID, Op: "card", Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{ModelID: modelID, Op: "card", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &DownloadError{ModelID: modelID, Op: "card", Err: fmt.Errorf("hub returned %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &DownloadError{ModelID: modelID, Op: "card", Err: fmt.Errorf("parse page: %w", err)}
	}

	card := &Card{ID: modelID, URL: pageURL}
	card.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
		modelID,
	)
	card.Description = firstNonEmpty(
		metaContent(doc, `meta[property="og:description"]`),
		metaContent(doc, `meta[name="description"]`),
	)
	card.Image = metaContent(doc, `meta[property="og:image"]`)

	seen := map[string]bool{}
	doc.Find(`a[href*="/models?other="], a[href*="/models?library="], a[href*="/models?pipeline_tag="]`).Each(func(_ int, s *goquery.Selection) {
		tag := strings.Join(strings.Fields(s.Text()), " ")
		if tag != "" && !seen[tag] {
			seen[tag] = true
			card.Tags = append(card.Tags, tag)
		}
	})
	return card, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
