package altius

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/arv-anshul/hockey/lib/crawl"
	"github.com/arv-anshul/hockey/lib/htmlutil"
)

// Team is scoped to a competition by the directory its output lands in, the
// record itself carries no competition field.
type Team struct {
	ID   int    `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required"`
}

// TeamsJob scrapes the single teams listing page of a competition.
type TeamsJob struct {
	site          Site
	competitionID int
}

func NewTeamsJob(site Site, competitionID int) *TeamsJob {
	return &TeamsJob{site: site, competitionID: competitionID}
}

func (j *TeamsJob) Seeds() []crawl.Request {
	return []crawl.Request{j.site.teamsRequest(j.competitionID)}
}

func (j *TeamsJob) Parse(ctx context.Context, res *crawl.Response) (crawl.ParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return crawl.ParseResult{}, err
	}

	rows, err := tableRows(doc, ".tab-content table tbody tr")
	if errors.Is(err, ErrNoResults) {
		slog.ErrorContext(ctx, "no teams found, stopping",
			"competition_id", j.competitionID, "url", res.Request.URL)
		return crawl.ParseResult{}, nil
	}

	var items []any
	rows.Each(func(_ int, row *goquery.Selection) {
		team, err := parseTeamRow(row)
		if err != nil {
			slog.ErrorContext(ctx, "dropping team row",
				"competition_id", j.competitionID, "err", err)
			return
		}
		items = append(items, team)
	})

	return crawl.ParseResult{Items: items}, nil
}

func parseTeamRow(row *goquery.Selection) (Team, error) {
	// a team row without a link yields id -1, matching the upstream pages
	// that render unlinked placeholder teams
	href := row.Find("td:nth-child(1) [href]").AttrOr("href", "-1")
	id, err := htmlutil.IDFromHref(href)
	if err != nil {
		return Team{}, fmt.Errorf("team id from %q: %w", href, err)
	}

	team := Team{
		ID:   id,
		Name: htmlutil.Text(row.Find("td:nth-child(1)")),
		Code: htmlutil.Text(row.Find("td:nth-child(2)")),
	}
	if err := validateRecord(team); err != nil {
		return Team{}, err
	}
	return team, nil
}
