package altius

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/arv-anshul/hockey/lib/crawl"
	"github.com/arv-anshul/hockey/lib/htmlutil"
)

// MatchDate pairs the venue-local kickoff instant with its timezone label,
// both lifted off the listing row's data attributes.
type MatchDate struct {
	Isoformat time.Time `json:"isoformat" validate:"required"`
	Timezone  string    `json:"timezone" validate:"required"`
}

type Match struct {
	ID            int       `json:"id" validate:"required"`
	CompetitionID int       `json:"competition_id" validate:"required"`
	MatchNumber   int       `json:"match_number"`
	URL           string    `json:"url" validate:"required,url"`
	// nil exactly when the match has not been officially completed
	Scoreline *string   `json:"scoreline"`
	MatchType string    `json:"match_type"`
	HomeTeam  string    `json:"home_team"`
	AwayTeam  string    `json:"away_team"`
	Date      MatchDate `json:"date"`
	Venue     string    `json:"venue" validate:"required"`
}

// MatchesJob scrapes the single matches listing page of a competition.
type MatchesJob struct {
	site          Site
	competitionID int
}

func NewMatchesJob(site Site, competitionID int) *MatchesJob {
	return &MatchesJob{site: site, competitionID: competitionID}
}

func (j *MatchesJob) Seeds() []crawl.Request {
	return []crawl.Request{j.site.matchesRequest(j.competitionID)}
}

func (j *MatchesJob) Parse(ctx context.Context, res *crawl.Response) (crawl.ParseResult, error) {
	matches, err := parseMatchesPage(ctx, res.Body, j.competitionID, res.Request.URL)
	if errors.Is(err, ErrNoResults) {
		slog.ErrorContext(ctx, "no matches found, stopping",
			"competition_id", j.competitionID, "url", res.Request.URL)
		return crawl.ParseResult{}, nil
	}
	if err != nil {
		return crawl.ParseResult{}, err
	}

	items := make([]any, len(matches))
	for i, m := range matches {
		items[i] = m
	}
	return crawl.ParseResult{Items: items}, nil
}

// parseMatchesPage extracts every valid match row from a matches listing
// page. Bad rows are logged and skipped; ErrNoResults is returned when the
// listing is empty.
func parseMatchesPage(ctx context.Context, body []byte, competitionID int, pageURL string) ([]Match, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	rows, err := tableRows(doc, ".tab-content table tbody tr")
	if err != nil {
		return nil, err
	}

	var matches []Match
	rows.Each(func(_ int, row *goquery.Selection) {
		match, err := parseMatchRow(row, competitionID, pageURL)
		if err != nil {
			slog.ErrorContext(ctx, "dropping match row",
				"competition_id", competitionID, "err", err)
			return
		}
		matches = append(matches, match)
	})
	return matches, nil
}

// the parenthesized suffix, when present, is the match type e.g. "Pool A"
var matchTitle = regexp.MustCompile(`^(?:([A-Za-z0-9/&' -]+) )?v ([A-Za-z0-9/&' -]+)?(?: \((.+)\))?$`)

// ParseMatchTitle splits a listing title of the form
// "<home> v <away> (<type>)" where home, away and type may each be absent.
func ParseMatchTitle(title string) (home, away, matchType string, err error) {
	groups := matchTitle.FindStringSubmatch(title)
	if groups == nil {
		return "", "", "", fmt.Errorf("unrecognized match title %q", title)
	}
	return groups[1], groups[2], groups[3], nil
}

func parseMatchRow(row *goquery.Selection, competitionID int, pageURL string) (Match, error) {
	link := row.Find("td:nth-child(3) a")
	href, ok := link.Attr("href")
	if !ok {
		return Match{}, errors.New("match link missing")
	}
	id, err := htmlutil.IDFromHref(href)
	if err != nil {
		return Match{}, fmt.Errorf("match id from %q: %w", href, err)
	}

	home, away, matchType, err := ParseMatchTitle(htmlutil.Text(link))
	if err != nil {
		return Match{}, err
	}

	var scoreline *string
	if text := htmlutil.Text(row.Find("td:nth-child(4)")); text != "" && text != "-" {
		scoreline = &text
	}

	dateSpan := row.Find("td:nth-child(2) span[data-timezone]")
	kickoff, err := parseLocalTime(dateSpan.AttrOr("data-datetimelocal__notimechange", ""))
	if err != nil {
		return Match{}, fmt.Errorf("match %d date: %w", id, err)
	}

	match := Match{
		ID:            id,
		CompetitionID: competitionID,
		MatchNumber:   htmlutil.FirstInt(htmlutil.Text(row.Find("td:nth-child(1)")), -1),
		URL:           pageURL,
		Scoreline:     scoreline,
		MatchType:     matchType,
		HomeTeam:      home,
		AwayTeam:      away,
		Date: MatchDate{
			Isoformat: kickoff,
			Timezone:  strings.TrimSpace(dateSpan.AttrOr("data-timezone", "")),
		},
		Venue: htmlutil.Text(row.Find("td:nth-child(6)")),
	}
	if err := validateRecord(match); err != nil {
		return Match{}, err
	}
	return match, nil
}

var localTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseLocalTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range localTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// CompletedMatchIDs filters for matches whose scoreline has been posted,
// only those have details worth fetching.
func CompletedMatchIDs(matches []Match) []int {
	var ids []int
	for _, m := range matches {
		if m.Scoreline != nil {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
