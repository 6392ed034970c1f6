package altius

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arv-anshul/hockey/lib/crawl"
)

// Embed selects which related sub-objects the detail endpoint inlines into
// its response. The choice is made at request construction and decides which
// payload fields are required on the decoded record.
type Embed string

const (
	// EmbedGoals inlines the goal events and the statistics mapping.
	EmbedGoals Embed = "statistics,goals"
	// EmbedTeams inlines the home/away team objects and the statistics
	// mapping.
	EmbedTeams Embed = "statistics,hometeam,awayteam"
)

type MatchOfficial struct {
	ID          int    `json:"id" validate:"required"`
	PersonID    int    `json:"person_id" validate:"required"`
	Role        string `json:"role" validate:"required"`
	DisplayName string `json:"displayname" validate:"required"`
	MediaName   string `json:"medianame" validate:"required"`
}

type MatchGoal struct {
	ID         int     `json:"id" validate:"required"`
	MatchID    int     `json:"match_id" validate:"required"`
	Seconds    float64 `json:"seconds" validate:"gte=0"`
	TeamID     int     `json:"team_id" validate:"required"`
	Event      string  `json:"event" validate:"required"`
	PlayerID   int     `json:"player_id" validate:"required"`
	DefenderID *int    `json:"defender_id"`
	OfficialID *int    `json:"official_id"`
	Type       *string `json:"type"`
	Outcome    *string `json:"outcome"`
	MinuteDisp string  `json:"minutedisp" validate:"required"`
}

type MatchTeam struct {
	ID             int    `json:"id" validate:"required"`
	Name           string `json:"name" validate:"required"`
	Code           string `json:"code"`
	OrganizationID int    `json:"organization_id"`
}

// MatchDetails is the full point-in-time snapshot served by the detail
// endpoint. An Upcoming status means the score fields are placeholders and
// must not feed standings. Goals is populated under EmbedGoals, HomeTeam
// and AwayTeam under EmbedTeams.
type MatchDetails struct {
	ID            int            `json:"id" validate:"required"`
	URL           string         `json:"url" validate:"required,url"`
	CompetitionID int            `json:"competition_id" validate:"required"`
	Status        string         `json:"status" validate:"required,oneof=Official Upcoming"`
	Number        int            `json:"number"`
	Title         *string        `json:"title"`
	PoolsText     string         `json:"poolstext"`
	Venue         string         `json:"venue"`
	PitchID       int            `json:"pitch_id"`
	HomeTeamID    int            `json:"hometeam_id" validate:"required"`
	AwayTeamID    int            `json:"awayteam_id" validate:"required"`
	HomeScore     int            `json:"homescore" validate:"gte=0"`
	AwayScore     int            `json:"awayscore" validate:"gte=0"`
	HomePS        int            `json:"homeps" validate:"gte=0"`
	AwayPS        int            `json:"awayps" validate:"gte=0"`
	U1            MatchOfficial  `json:"U1"`
	U2            MatchOfficial  `json:"U2"`
	PeriodShort   string         `json:"period_short" validate:"required"`
	PeriodMinutes float64        `json:"period_minutes" validate:"gt=0"`
	PeriodCount   int            `json:"period_count" validate:"gt=0"`
	ShootoutCount int            `json:"shootout_count" validate:"gte=0"`
	Goals         []MatchGoal    `json:"goals,omitempty" validate:"omitempty,dive"`
	HomeTeam      *MatchTeam     `json:"hometeam,omitempty"`
	AwayTeam      *MatchTeam     `json:"awayteam,omitempty"`
	Statistics    map[string]any `json:"statistics" validate:"required"`
}

// DecodeMatchDetails validates a detail endpoint response as-is: the decoded
// document only gains the request url, and the competition id when the body
// does not carry one. The embed decides which payload shape is required.
func DecodeMatchDetails(body []byte, url string, competitionID int, embed Embed) (MatchDetails, error) {
	var details MatchDetails
	if err := json.Unmarshal(body, &details); err != nil {
		return MatchDetails{}, fmt.Errorf("decode match details: %w", err)
	}
	details.URL = url
	if details.CompetitionID == 0 {
		details.CompetitionID = competitionID
	}

	if err := validateRecord(details); err != nil {
		return MatchDetails{}, err
	}
	switch embed {
	case EmbedGoals:
		if details.Goals == nil {
			return MatchDetails{}, fmt.Errorf("match %d: goals embed missing from response", details.ID)
		}
	case EmbedTeams:
		if details.HomeTeam == nil || details.AwayTeam == nil {
			return MatchDetails{}, fmt.Errorf("match %d: team embeds missing from response", details.ID)
		}
	default:
		return MatchDetails{}, fmt.Errorf("unknown embed %q", embed)
	}
	return details, nil
}

// MatchDetailsJob harvests full details for every completed match of a
// competition. It seeds from the matches listing, builds its worklist from
// the rows with a posted scoreline and follows up with one detail request
// per match id.
type MatchDetailsJob struct {
	site          Site
	competitionID int
	embed         Embed
}

func NewMatchDetailsJob(site Site, competitionID int, embed Embed) *MatchDetailsJob {
	return &MatchDetailsJob{site: site, competitionID: competitionID, embed: embed}
}

func (j *MatchDetailsJob) Seeds() []crawl.Request {
	return []crawl.Request{j.site.matchesRequest(j.competitionID)}
}

func (j *MatchDetailsJob) Parse(ctx context.Context, res *crawl.Response) (crawl.ParseResult, error) {
	if res.Request.Meta["kind"] == "details" {
		details, err := DecodeMatchDetails(res.Body, res.Request.URL, j.competitionID, j.embed)
		if err != nil {
			// drop this match, keep the rest of the worklist going
			return crawl.ParseResult{}, err
		}
		return crawl.ParseResult{Items: []any{details}}, nil
	}

	matches, err := parseMatchesPage(ctx, res.Body, j.competitionID, res.Request.URL)
	if errors.Is(err, ErrNoResults) {
		slog.ErrorContext(ctx, "no matches found, no details to fetch",
			"competition_id", j.competitionID, "url", res.Request.URL)
		return crawl.ParseResult{}, nil
	}
	if err != nil {
		return crawl.ParseResult{}, err
	}

	ids := CompletedMatchIDs(matches)
	next := make([]crawl.Request, len(ids))
	for i, id := range ids {
		next[i] = j.site.matchDetailsRequest(id, j.embed)
	}
	return crawl.ParseResult{Next: next}, nil
}
