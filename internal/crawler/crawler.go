// Package crawler builds the seed dataset from Wikipedia's list of
// computer scientists: one page fetch for the index, one per scientist for
// the education and award details. Entries that cannot be parsed are
// skipped; the crawl is one-shot and best-effort.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/DmMeta/ChordSeek/internal/seed"
)

const unknownUniversity = "Unknown University"

type Config struct {
	ListURL   string `env:"CRAWLER_LIST_URL" env-default:"https://en.wikipedia.org/wiki/List_of_computer_scientists"`
	BaseURL   string `env:"CRAWLER_BASE_URL" env-default:"https://en.wikipedia.org"`
	UserAgent string `env:"CRAWLER_USER_AGENT" env-default:"ChordSeek/1.0 (research crawler)"`
	Workers   int    `env:"CRAWLER_WORKERS" env-default:"4"`
	// Limit caps the number of scientists fetched; 0 means all.
	Limit int `env:"CRAWLER_LIMIT" env-default:"0"`
}

type Crawler struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Crawler {
	return &Crawler{
		cfg:    cfg,
		client: &http.Client{},
		log:    log,
	}
}

type entry struct {
	name string
	link string
}

// Run crawls the index and every scientist page, returning the dataset
// grouped by university.
func (c *Crawler) Run(ctx context.Context) (seed.Dataset, error) {
	entries, err := c.listScientists(ctx)
	if err != nil {
		return nil, err
	}
	if c.cfg.Limit > 0 && len(entries) > c.cfg.Limit {
		entries = entries[:c.cfg.Limit]
	}
	c.log.Info("index fetched", "scientists", len(entries))

	ds := make(seed.Dataset)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, e := range entries {
		g.Go(func() error {
			universities, awards, err := c.scientistDetails(ctx, e.link)
			if err != nil {
				c.log.Warn("scientist page skipped", "name", e.name, "error", err)
				return nil
			}
			if len(universities) == 0 {
				universities = []string{unknownUniversity}
			}

			mu.Lock()
			for _, u := range universities {
				ds[u] = append(ds[u], seed.Scientist{Surname: e.name, Education: u, Awards: awards})
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.log.Info("crawl finished", "universities", len(ds))
	return ds, nil
}

// listScientists extracts the per-letter name lists of the index page.
func (c *Crawler) listScientists(ctx context.Context) ([]entry, error) {
	doc, err := c.fetch(ctx, c.cfg.ListURL)
	if err != nil {
		return nil, err
	}

	var out []entry
	seen := make(map[string]bool)
	doc.Find("div.mw-parser-output > ul > li > a:first-child").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !strings.HasPrefix(href, "/wiki/") || strings.Contains(href, ":") {
			return
		}
		name := strings.TrimSpace(sel.Text())
		if name == "" || seen[href] {
			return
		}
		seen[href] = true
		out = append(out, entry{name: name, link: c.cfg.BaseURL + href})
	})
	if len(out) == 0 {
		return nil, fmt.Errorf("no scientists found on %s", c.cfg.ListURL)
	}
	return out, nil
}

// scientistDetails parses a scientist's infobox for universities and the
// award count.
func (c *Crawler) scientistDetails(ctx context.Context, url string) ([]string, int, error) {
	doc, err := c.fetch(ctx, url)
	if err != nil {
		return nil, 0, err
	}

	var universities []string
	awards := 0
	doc.Find("table.infobox tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("th").First().Text())
		switch label {
		case "Alma mater", "Education":
			row.Find("td a").Each(func(_ int, a *goquery.Selection) {
				name := strings.TrimSpace(a.Text())
				if name != "" && !strings.HasPrefix(name, "[") {
					universities = append(universities, name)
				}
			})
		case "Awards":
			awards = row.Find("td a").Length()
		}
	})
	return dedupe(universities), awards, nil
}

func (c *Crawler) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	return doc, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
