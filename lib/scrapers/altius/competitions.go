package altius

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/arv-anshul/hockey/lib/crawl"
	"github.com/arv-anshul/hockey/lib/htmlutil"
)

// View is an upstream filter partition of the competitions listing.
type View string

const (
	ViewUpcoming   View = "upcoming"
	ViewPrevious   View = "previous"
	ViewInProgress View = "inprogress"
)

// ParseViews resolves a view selector, "all" fans out to every partition.
// The upstream "view=all" page itself is never requested, it lists nearly
// every competition on the site and most of them are irrelevant.
func ParseViews(selector string) ([]View, error) {
	switch View(selector) {
	case ViewUpcoming, ViewPrevious, ViewInProgress:
		return []View{View(selector)}, nil
	}
	if selector == "all" {
		return []View{ViewUpcoming, ViewPrevious, ViewInProgress}, nil
	}
	return nil, fmt.Errorf("unknown competitions view %q", selector)
}

type Competition struct {
	Index           int    `json:"index" validate:"required,gte=1"`
	ID              int    `json:"id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	CompetitionType string `json:"competition_type" validate:"required"`
	Location        string `json:"location" validate:"required"`
	Date            string `json:"date"`
	TotalMatches    int    `json:"total_matches" validate:"gte=0"`
	URL             string `json:"url" validate:"required,url"`
}

// CompetitionsJob paginates the competitions listing for one or more views.
// The index counter is 1-based and monotonic across every page and view one
// job instance processes; the engine drains a job's frontier sequentially so
// the counter needs no locking.
type CompetitionsJob struct {
	site  Site
	views []View
	index int
}

func NewCompetitionsJob(site Site, viewSelector string) (*CompetitionsJob, error) {
	views, err := ParseViews(viewSelector)
	if err != nil {
		return nil, err
	}
	return &CompetitionsJob{site: site, views: views}, nil
}

func (j *CompetitionsJob) Seeds() []crawl.Request {
	seeds := make([]crawl.Request, len(j.views))
	for i, view := range j.views {
		seeds[i] = j.site.competitionsRequest(view, 1)
	}
	return seeds
}

func (j *CompetitionsJob) Parse(ctx context.Context, res *crawl.Response) (crawl.ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return crawl.ParseResult{}, err
	}

	rows, err := tableRows(doc, "#admin_list_of_competitions table tbody tr")
	if errors.Is(err, ErrNoResults) {
		slog.ErrorContext(ctx, "no more competitions, stopping pagination",
			"url", res.Request.URL)
		return crawl.ParseResult{}, nil
	}

	var items []any
	rows.Each(func(_ int, row *goquery.Selection) {
		j.index++ // each row consumes an index, even when dropped
		competition, err := j.parseRow(row, res.Request.URL)
		if err != nil {
			slog.ErrorContext(ctx, "dropping competition row",
				"url", res.Request.URL, "err", err)
			return
		}
		items = append(items, competition)
	})

	return crawl.ParseResult{
		Items: items,
		Next:  []crawl.Request{j.nextPage(res.Request)},
	}, nil
}

func (j *CompetitionsJob) parseRow(row *goquery.Selection, pageURL string) (Competition, error) {
	link := row.Find("td:nth-child(2) a")
	href, ok := link.Attr("href")
	if !ok {
		return Competition{}, errors.New("competition link missing")
	}
	id, err := htmlutil.IDFromHref(href)
	if err != nil {
		return Competition{}, fmt.Errorf("competition id from %q: %w", href, err)
	}

	totalText := htmlutil.Text(row.Find("td:nth-child(6)"))
	totalMatches, err := strconv.Atoi(totalText)
	if err != nil {
		return Competition{}, fmt.Errorf("total matches %q: %w", totalText, err)
	}

	competition := Competition{
		Index:           j.index,
		ID:              id,
		Name:            htmlutil.Text(link),
		CompetitionType: htmlutil.Text(row.Find("td:nth-child(5)")),
		Location:        htmlutil.Text(row.Find("td:nth-child(4)")),
		Date:            htmlutil.Text(row.Find("td:nth-child(3)")),
		TotalMatches:    totalMatches,
		URL:             pageURL,
	}
	if err := validateRecord(competition); err != nil {
		return Competition{}, err
	}
	return competition, nil
}

func (j *CompetitionsJob) nextPage(req crawl.Request) crawl.Request {
	view := View(req.Meta["view"])
	page, err := strconv.Atoi(req.Meta["page"])
	if err != nil {
		page = 1
	}
	return j.site.competitionsRequest(view, page+1)
}
