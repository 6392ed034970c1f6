// Package altius scrapes structured hockey-competition data out of an
// altiusrt results host. Each entity has a job type exposing seed requests
// and a parse callback for the crawl engine, records are validated before
// they are emitted and bad rows are logged and dropped, never fatal.
package altius

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/arv-anshul/hockey/lib/crawl"
	"github.com/go-playground/validator/v10"
)

// DefaultDomain is the results host scraped when no override is configured.
const DefaultDomain = "hockeyindia.altiusrt.com"

// Site knows how to build request urls for one altiusrt host. Domain may be
// a bare hostname (https assumed) or carry an explicit scheme.
type Site struct {
	Domain string
}

func NewSite(domain string) Site {
	if domain == "" {
		domain = DefaultDomain
	}
	return Site{Domain: domain}
}

func (s Site) baseURL() string {
	if strings.Contains(s.Domain, "://") {
		return strings.TrimSuffix(s.Domain, "/")
	}
	return "https://" + s.Domain
}

func (s Site) competitionsRequest(view View, page int) crawl.Request {
	return crawl.Request{
		URL: fmt.Sprintf("%s/competitions?view=%s&page=%d", s.baseURL(), view, page),
		Meta: map[string]string{
			"view": string(view),
			"page": strconv.Itoa(page),
		},
	}
}

func (s Site) teamsRequest(competitionID int) crawl.Request {
	return crawl.Request{
		URL:  fmt.Sprintf("%s/competitions/%d/teams", s.baseURL(), competitionID),
		Meta: map[string]string{"kind": "teams"},
	}
}

func (s Site) matchesRequest(competitionID int) crawl.Request {
	return crawl.Request{
		URL:  fmt.Sprintf("%s/competitions/%d/matches", s.baseURL(), competitionID),
		Meta: map[string]string{"kind": "matches"},
	}
}

func (s Site) teamRequest(teamID int) crawl.Request {
	return crawl.Request{
		URL: fmt.Sprintf("%s/teams/%d", s.baseURL(), teamID),
		Meta: map[string]string{
			"kind":    "players",
			"team_id": strconv.Itoa(teamID),
		},
	}
}

func (s Site) matchDetailsRequest(matchID int, embed Embed) crawl.Request {
	return crawl.Request{
		URL:  fmt.Sprintf("%s/rt/matches/%d?embeds=%s", s.baseURL(), matchID, embed),
		Meta: map[string]string{"kind": "details"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateRecord checks a candidate record against its declared schema. The
// returned validator.ValidationErrors lists every non-conforming field.
func validateRecord(v any) error {
	return validate.Struct(v)
}

// ErrNoResults marks the end of a listing: the table is empty or carries the
// upstream "No results" placeholder row. Expected steady-state, not a
// failure.
var ErrNoResults = errors.New("no results")

const noResultsSentinel = "No results"

// tableRows selects the data rows of a listing table, returning ErrNoResults
// when the listing is exhausted.
func tableRows(doc *goquery.Document, selector string) (*goquery.Selection, error) {
	rows := doc.Find(selector)
	if isNoResults(rows) {
		return nil, ErrNoResults
	}
	return rows, nil
}

func isNoResults(rows *goquery.Selection) bool {
	switch rows.Length() {
	case 0:
		return true
	case 1:
		text := strings.TrimSpace(rows.First().Text())
		return text == "" || text == noResultsSentinel
	default:
		return false
	}
}
