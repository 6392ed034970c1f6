package altius

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/arv-anshul/hockey/lib/crawl"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func matchesPage(rows string) []byte {
	return []byte(fmt.Sprintf(`<html><body>
		<div class="tab-content">
			<table>
				<tbody>%s</tbody>
			</table>
		</div>
	</body></html>`, rows))
}

func matchRow(number string, id int, title, scoreline string) string {
	return fmt.Sprintf(`<tr>
		<td>%s</td>
		<td><span data-timezone="Asia/Kolkata" data-datetimelocal__notimechange="2024-01-13T19:00:00">13 Jan</span></td>
		<td><a href="/matches/%d">%s</a></td>
		<td>%s</td>
		<td>Official</td>
		<td>Chennai Stadium</td>
	</tr>`, number, id, title, scoreline)
}

func matchesResponse(job *MatchesJob, body []byte) *crawl.Response {
	return &crawl.Response{
		Request:    job.Seeds()[0],
		StatusCode: 200,
		Body:       body,
	}
}

func TestParseMatchTitle(t *testing.T) {
	testCases := []struct {
		title     string
		home      string
		away      string
		matchType string
		ok        bool
	}{
		{title: "Team A v Team B", home: "Team A", away: "Team B", ok: true},
		{title: "Team A v Team B (Pool 1)", home: "Team A", away: "Team B", matchType: "Pool 1", ok: true},
		{title: "v Team B", away: "Team B", ok: true},
		{title: "Team A v", home: "Team A", ok: false},
		{title: "Delhi SG Pipers v Shrachi Rarh Bengal Tigers (Semi-Final)", home: "Delhi SG Pipers", away: "Shrachi Rarh Bengal Tigers", matchType: "Semi-Final", ok: true},
		{title: "nothing like a match", ok: false},
	}
	for _, tc := range testCases {
		home, away, matchType, err := ParseMatchTitle(tc.title)
		if !tc.ok {
			require.Error(t, err, tc.title)
			continue
		}
		require.NoError(t, err, tc.title)
		require.Equal(t, tc.home, home, tc.title)
		require.Equal(t, tc.away, away, tc.title)
		require.Equal(t, tc.matchType, matchType, tc.title)
	}
}

func TestMatchesParse(t *testing.T) {
	job := NewMatchesJob(NewSite(""), 180)

	body := matchesPage(
		matchRow("M1", 5001, "Team A v Team B (Pool 1)", "3 - 1") +
			matchRow("M2", 5002, "Team C v Team D", "2 - 2") +
			matchRow("M3", 5003, "Team A v Team C", "-"),
	)

	result, err := job.Parse(context.Background(), matchesResponse(job, body))
	require.NoError(t, err)
	require.Len(t, result.Items, 3)

	first := result.Items[0].(Match)
	require.Equal(t, 5001, first.ID)
	require.Equal(t, 180, first.CompetitionID)
	require.Equal(t, 1, first.MatchNumber)
	require.Equal(t, "Team A", first.HomeTeam)
	require.Equal(t, "Team B", first.AwayTeam)
	require.Equal(t, "Pool 1", first.MatchType)
	require.Equal(t, "Chennai Stadium", first.Venue)
	require.Equal(t, "Asia/Kolkata", first.Date.Timezone)
	require.Equal(t,
		time.Date(2024, 1, 13, 19, 0, 0, 0, time.UTC),
		first.Date.Isoformat)

	require.NotNil(t, first.Scoreline)
	require.Equal(t, "3 - 1", *first.Scoreline)

	// "-" means the match has not been played
	third := result.Items[2].(Match)
	require.Nil(t, third.Scoreline)

	// exactly the completed matches end up on the details worklist
	matches := make([]Match, len(result.Items))
	for i, item := range result.Items {
		matches[i] = item.(Match)
	}
	require.Equal(t, []int{5001, 5002}, CompletedMatchIDs(matches))
}

func TestMatchesParseSkipsBadRows(t *testing.T) {
	job := NewMatchesJob(NewSite(""), 180)

	body := matchesPage(
		`<tr><td>M1</td><td></td><td>Team A v Team B</td><td>-</td><td></td><td></td></tr>` +
			matchRow("M2", 5002, "not a title", "-") +
			matchRow("", 5003, "Team A v Team C", "-"),
	)

	result, err := job.Parse(context.Background(), matchesResponse(job, body))
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	got := result.Items[0].(Match)
	require.Equal(t, 5003, got.ID)
	// no digits in the number column falls back to -1
	require.Equal(t, -1, got.MatchNumber)
}

func TestMatchesParseSentinel(t *testing.T) {
	job := NewMatchesJob(NewSite(""), 180)

	for _, rows := range []string{``, `<tr><td>No results</td></tr>`} {
		result, err := job.Parse(context.Background(), matchesResponse(job, matchesPage(rows)))
		require.NoError(t, err)
		require.Empty(t, result.Items)
		require.Empty(t, result.Next)
	}
}

func TestMatchRoundTrip(t *testing.T) {
	scoreline := "3 - 1"
	match := Match{
		ID:            5001,
		CompetitionID: 180,
		MatchNumber:   1,
		URL:           "https://hockeyindia.altiusrt.com/competitions/180/matches",
		Scoreline:     &scoreline,
		MatchType:     "Pool 1",
		HomeTeam:      "Team A",
		AwayTeam:      "Team B",
		Date: MatchDate{
			Isoformat: time.Date(2024, 1, 13, 19, 0, 0, 0, time.UTC),
			Timezone:  "Asia/Kolkata",
		},
		Venue: "Chennai Stadium",
	}

	encoded, err := json.Marshal(match)
	require.NoError(t, err)

	var decoded Match
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Empty(t, cmp.Diff(match, decoded))
}
