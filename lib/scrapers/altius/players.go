package altius

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/arv-anshul/hockey/lib/crawl"
	"github.com/arv-anshul/hockey/lib/htmlutil"
)

type Player struct {
	ID     int    `json:"id" validate:"required"`
	TeamID int    `json:"team_id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Shirt  int    `json:"shirt"`
}

// PlayersJob harvests the rosters of every team in a competition. It seeds
// from the competition's teams listing, collects team ids and follows up
// with one team page per id.
type PlayersJob struct {
	site          Site
	competitionID int
}

func NewPlayersJob(site Site, competitionID int) *PlayersJob {
	return &PlayersJob{site: site, competitionID: competitionID}
}

func (j *PlayersJob) Seeds() []crawl.Request {
	return []crawl.Request{j.site.teamsRequest(j.competitionID)}
}

func (j *PlayersJob) Parse(ctx context.Context, res *crawl.Response) (crawl.ParseResult, error) {
	if res.Request.Meta["kind"] == "players" {
		return j.parseRoster(ctx, res)
	}
	return j.parseTeamIDs(ctx, res)
}

func (j *PlayersJob) parseTeamIDs(ctx context.Context, res *crawl.Response) (crawl.ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return crawl.ParseResult{}, err
	}

	rows, err := tableRows(doc, ".tab-content table tbody tr")
	if err != nil {
		slog.ErrorContext(ctx, "no teams found, no rosters to fetch",
			"competition_id", j.competitionID, "url", res.Request.URL)
		return crawl.ParseResult{}, nil
	}

	var next []crawl.Request
	rows.Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find("td:nth-child(1) [href]").Attr("href")
		if !ok {
			slog.ErrorContext(ctx, "team row without a link, skipping roster",
				"competition_id", j.competitionID)
			return
		}
		teamID, err := htmlutil.IDFromHref(href)
		if err != nil {
			slog.ErrorContext(ctx, "bad team link, skipping roster",
				"competition_id", j.competitionID, "href", href, "err", err)
			return
		}
		next = append(next, j.site.teamRequest(teamID))
	})

	return crawl.ParseResult{Next: next}, nil
}

func (j *PlayersJob) parseRoster(ctx context.Context, res *crawl.Response) (crawl.ParseResult, error) {
	teamID, err := strconv.Atoi(res.Request.Meta["team_id"])
	if err != nil {
		return crawl.ParseResult{}, fmt.Errorf("roster request without team id: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return crawl.ParseResult{}, err
	}

	rows := rosterRows(doc)
	if isNoResults(rows) {
		slog.ErrorContext(ctx, "no players found, stopping",
			"team_id", teamID, "url", res.Request.URL)
		return crawl.ParseResult{}, nil
	}

	var items []any
	rows.Each(func(_ int, row *goquery.Selection) {
		player, err := parsePlayerRow(row, teamID)
		if err != nil {
			slog.ErrorContext(ctx, "dropping player row", "team_id", teamID, "err", err)
			return
		}
		items = append(items, player)
	})

	return crawl.ParseResult{Items: items}, nil
}

// rosterRows trims the roster table down to its data rows: the first row is
// the header and the last is a non-data footer.
func rosterRows(doc *goquery.Document) *goquery.Selection {
	rows := doc.Find("#players table tr")
	if rows.Length() <= 2 {
		return rows.Slice(0, 0)
	}
	return rows.Slice(1, rows.Length()-1)
}

func parsePlayerRow(row *goquery.Selection, teamID int) (Player, error) {
	href := row.Find("td:nth-child(2) a").AttrOr("href", "-1")
	id, err := htmlutil.IDFromHref(href)
	if err != nil {
		return Player{}, fmt.Errorf("player id from %q: %w", href, err)
	}

	shirtText := htmlutil.Text(row.Find("td:nth-child(1)"))
	if shirtText == "" {
		shirtText = "-1"
	}
	shirt, err := strconv.Atoi(shirtText)
	if err != nil {
		return Player{}, fmt.Errorf("shirt number %q: %w", shirtText, err)
	}

	player := Player{
		ID:     id,
		TeamID: teamID,
		Name:   htmlutil.Text(row.Find("td:nth-child(2) a")),
		Shirt:  shirt,
	}
	if err := validateRecord(player); err != nil {
		return Player{}, err
	}
	return player, nil
}
