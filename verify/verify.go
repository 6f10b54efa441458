package verify

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Verifier fetches the deployed site's front page and confirms it still
// serves article links. Advisory only: the orchestrator logs the report but
// never fails a run on it.
type Verifier struct {
	siteURL string
	client  *http.Client
}

func New(siteURL string, client *http.Client) *Verifier {
	return &Verifier{siteURL: siteURL, client: client}
}

type Report struct {
	StatusCode   int
	Title        string
	ArticleLinks int
}

func (r Report) OK() bool {
	return r.StatusCode == http.StatusOK && r.ArticleLinks > 0
}

func (v *Verifier) Check(ctx context.Context) (*Report, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", v.siteURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "blogpipe-verify/1.0")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	report := &Report{StatusCode: resp.StatusCode}
	if resp.StatusCode != http.StatusOK {
		return report, fmt.Errorf("site returned status %d", resp.StatusCode)
	}

	title, links, err := parseFrontPage(resp.Body)
	if err != nil {
		return report, fmt.Errorf("parse front page: %w", err)
	}
	report.Title = title
	report.ArticleLinks = links

	if report.ArticleLinks == 0 {
		log.Printf("Site verification: %s serves no article links", v.siteURL)
	}

	return report, nil
}

// parseFrontPage counts links that look like article permalinks: anchors
// inside <article> elements, falling back to internal links with a path.
func parseFrontPage(r io.Reader) (string, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", 0, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	count := 0
	doc.Find("article a[href]").Each(func(_ int, sel *goquery.Selection) {
		count++
	})

	if count == 0 {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			if strings.HasPrefix(href, "/") && len(strings.Trim(href, "/")) > 0 {
				count++
			}
		})
	}

	return title, count, nil
}
