package crawler_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DmMeta/ChordSeek/internal/crawler"
	"github.com/DmMeta/ChordSeek/internal/test"
)

var quiet = test.Logger()

const listPage = `<html><body><div class="mw-parser-output">
<ul>
<li><a href="/wiki/Barbara_Liskov">Barbara Liskov</a> &ndash; programming languages</li>
<li><a href="/wiki/Edsger_W._Dijkstra">Edsger W. Dijkstra</a> &ndash; algorithms</li>
<li><a href="/wiki/Help:Category">Not a scientist</a></li>
</ul>
</div></body></html>`

const liskovPage = `<html><body><table class="infobox">
<tr><th>Alma mater</th><td><a>University of California, Berkeley</a> <a>Stanford University</a></td></tr>
<tr><th>Awards</th><td><a>Turing Award</a> <a>John von Neumann Medal</a></td></tr>
</table></body></html>`

const dijkstraPage = `<html><body><table class="infobox">
<tr><th>Awards</th><td><a>Turing Award</a></td></tr>
</table></body></html>`

type CrawlerSuite struct {
	*test.Suite
}

func TestCrawlerSuite(t *testing.T) {
	test.Run(t, &CrawlerSuite{Suite: test.NewSuite()})
}

func (s *CrawlerSuite) TestRun() {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, listPage)
	})
	mux.HandleFunc("/wiki/Barbara_Liskov", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, liskovPage)
	})
	mux.HandleFunc("/wiki/Edsger_W._Dijkstra", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, dijkstraPage)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := crawler.New(crawler.Config{
		ListURL: ts.URL + "/list",
		BaseURL: ts.URL,
		Workers: 2,
	}, quiet)

	ds, err := c.Run(s.Ctx)
	s.Require().NoError(err)

	// Liskov appears under both universities with two awards.
	s.Require().Len(ds["Stanford University"], 1)
	s.Equal("Barbara Liskov", ds["Stanford University"][0].Surname)
	s.Equal(2, ds["Stanford University"][0].Awards)
	s.Len(ds["University of California, Berkeley"], 1)

	// Dijkstra has no education row and lands in the fallback group.
	s.Require().Len(ds["Unknown University"], 1)
	s.Equal("Edsger W. Dijkstra", ds["Unknown University"][0].Surname)
	s.Equal(1, ds["Unknown University"][0].Awards)
}

func (s *CrawlerSuite) TestRunEmptyIndexFails() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html><body></body></html>")
	}))
	defer ts.Close()

	c := crawler.New(crawler.Config{ListURL: ts.URL, BaseURL: ts.URL, Workers: 1}, quiet)
	_, err := c.Run(s.Ctx)
	s.Error(err)
}

func (s *CrawlerSuite) TestLimit() {
	hits := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, listPage)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = io.WriteString(w, dijkstraPage)
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := crawler.New(crawler.Config{ListURL: ts.URL + "/list", BaseURL: ts.URL, Workers: 1, Limit: 1}, quiet)
	ds, err := c.Run(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, hits)
	s.Len(ds, 1)
}
