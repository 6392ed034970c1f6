package harvest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/arv-anshul/hockey/lib/scrapers/altius"
	"github.com/arv-anshul/hockey/lib/telemetry"
	"github.com/stretchr/testify/require"
)

const competitionsPage = `
<div id="admin_list_of_competitions"><table><tbody>
<tr>
  <td>1</td>
  <td><a href="/competitions/180#info">National Championship</a></td>
  <td>10 Jan - 20 Jan 2024</td>
  <td>Chennai</td>
  <td>National</td>
  <td>12</td>
</tr>
</tbody></table></div>`

const noResultsPage = `
<div id="admin_list_of_competitions"><table><tbody>
<tr><td>No results</td></tr>
</tbody></table></div>`

const teamsPage = `
<div class="tab-content"><table><tbody>
<tr><td><a href="/teams/301">Alpha</a></td><td>ALP</td></tr>
<tr><td><a href="/teams/302">Beta</a></td><td>BET</td></tr>
</tbody></table></div>`

const matchesPage = `
<div class="tab-content"><table><tbody>
<tr>
  <td>M1</td>
  <td><span data-datetimelocal__notimechange="2024-01-13T17:00" data-timezone="Asia/Kolkata">13 Jan</span></td>
  <td><a href="/matches/5001">Alpha v Beta (Pool A)</a></td>
  <td>3 - 1</td>
  <td></td>
  <td>Stadium One</td>
</tr>
<tr>
  <td>M2</td>
  <td><span data-datetimelocal__notimechange="2024-01-14T17:00" data-timezone="Asia/Kolkata">14 Jan</span></td>
  <td><a href="/matches/5002">Beta v Alpha (Pool A)</a></td>
  <td>0 - 2</td>
  <td></td>
  <td>Stadium One</td>
</tr>
<tr>
  <td>M3</td>
  <td><span data-datetimelocal__notimechange="2024-01-15T17:00" data-timezone="Asia/Kolkata">15 Jan</span></td>
  <td><a href="/matches/5003">Alpha v Beta (Final)</a></td>
  <td>-</td>
  <td></td>
  <td>Stadium One</td>
</tr>
</tbody></table></div>`

func rosterPage(playerID int, name string) string {
	return fmt.Sprintf(`
<div id="players"><table>
<tr><th>No.</th><th>Name</th></tr>
<tr><td>7</td><td><a href="/players/%d">%s</a></td></tr>
<tr><td>10</td><td><a href="/players/%d">%s Jr</a></td></tr>
<tr><td colspan="2">bench</td></tr>
</table></div>`, playerID, name, playerID+1, name)
}

func detailsBody(matchID int) string {
	return fmt.Sprintf(`{
		"id": %d,
		"competition_id": 180,
		"status": "Official",
		"number": 1,
		"hometeam_id": 301,
		"awayteam_id": 302,
		"homescore": 3,
		"awayscore": 1,
		"U1": {"id": 11, "person_id": 21, "role": "Umpire", "displayname": "A. Umpire", "medianame": "A Umpire"},
		"U2": {"id": 12, "person_id": 22, "role": "Umpire", "displayname": "B. Umpire", "medianame": "B Umpire"},
		"period_short": "Q",
		"period_minutes": 15,
		"period_count": 4,
		"shootout_count": 0,
		"goals": [
			{"id": 1, "match_id": %d, "seconds": 721, "team_id": 301,
			 "event": "GOAL", "player_id": 9001, "minutedisp": "13'"}
		],
		"statistics": {}
	}`, matchID, matchID)
}

// requestLog remembers every path the fixture server was asked for.
type requestLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *requestLog) record(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

func (l *requestLog) countPrefix(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, p := range l.paths {
		if strings.HasPrefix(p, prefix) {
			n++
		}
	}
	return n
}

func (l *requestLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = nil
}

func fixtureServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()

	log := &requestLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.record(r.URL.RequestURI())
		switch {
		case r.URL.Path == "/competitions":
			if r.URL.Query().Get("view") == "upcoming" && r.URL.Query().Get("page") == "1" {
				fmt.Fprint(w, competitionsPage)
				return
			}
			fmt.Fprint(w, noResultsPage)
		case r.URL.Path == "/competitions/180/teams":
			fmt.Fprint(w, teamsPage)
		case r.URL.Path == "/competitions/180/matches":
			fmt.Fprint(w, matchesPage)
		case r.URL.Path == "/teams/301":
			fmt.Fprint(w, rosterPage(9001, "Arjun"))
		case r.URL.Path == "/teams/302":
			fmt.Fprint(w, rosterPage(9101, "Manpreet"))
		case r.URL.Path == "/rt/matches/5001", r.URL.Path == "/rt/matches/5002":
			id := 5001
			if strings.HasSuffix(r.URL.Path, "5002") {
				id = 5002
			}
			fmt.Fprint(w, detailsBody(id))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, log
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestRunHarvestsEveryStage(t *testing.T) {
	telemetry.SetupForTesting(t, "services/harvest")
	server, _ := fixtureServer(t)
	dataDir := t.TempDir()

	summary, err := Run(context.Background(), Config{Domain: server.URL, DataDir: dataDir}, 180)
	require.NoError(t, err)
	require.Len(t, summary.Stages, 5)
	for _, st := range summary.Stages {
		require.False(t, st.Skipped, st.Stage)
		require.Greater(t, st.Requests, 0, st.Stage)
	}

	var competitions []altius.Competition
	raw, err := os.ReadFile(filepath.Join(dataDir, "competitions.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &competitions))
	require.Len(t, competitions, 1)
	require.Equal(t, 180, competitions[0].ID)

	compDir := filepath.Join(dataDir, "competition_180")

	var teams []altius.Team
	raw, err = os.ReadFile(filepath.Join(compDir, "teams.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &teams))
	require.Len(t, teams, 2)

	var matches []altius.Match
	raw, err = os.ReadFile(filepath.Join(compDir, "matches.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &matches))
	require.Len(t, matches, 3)
	require.Equal(t, []int{5001, 5002}, altius.CompletedMatchIDs(matches))

	require.Len(t, readLines(t, filepath.Join(compDir, "players.jsonl")), 4)

	details := readLines(t, filepath.Join(compDir, "matches_details.jsonl"))
	require.Len(t, details, 2)
	var first altius.MatchDetails
	require.NoError(t, json.Unmarshal([]byte(details[0]), &first))
	require.Equal(t, 180, first.CompetitionID)

	ledger, err := OpenLedger(filepath.Join(dataDir, "harvest.db"))
	require.NoError(t, err)
	defer ledger.Close()

	done, err := ledger.Completed(context.Background(), "competitions", 0)
	require.NoError(t, err)
	require.True(t, done)
	done, err = ledger.Completed(context.Background(), "teams", 180)
	require.NoError(t, err)
	require.True(t, done)
	done, err = ledger.Completed(context.Background(), "teams", 999)
	require.NoError(t, err)
	require.False(t, done)
}

func TestRunSkipsStagesWithExistingOutput(t *testing.T) {
	server, log := fixtureServer(t)
	dataDir := t.TempDir()
	cfg := Config{Domain: server.URL, DataDir: dataDir}

	_, err := Run(context.Background(), cfg, 180)
	require.NoError(t, err)
	require.Greater(t, log.countPrefix("/competitions?"), 0)
	require.Greater(t, log.countPrefix("/teams/"), 0)

	log.reset()
	summary, err := Run(context.Background(), cfg, 180)
	require.NoError(t, err)

	var skipped, ran []string
	for _, st := range summary.Stages {
		if st.Skipped {
			skipped = append(skipped, st.Stage)
		} else {
			ran = append(ran, st.Stage)
		}
	}
	require.ElementsMatch(t, []string{"competitions", "teams", "matches", "players"}, skipped)
	require.Equal(t, []string{"match_details"}, ran)

	// the second run only refetches the matches listing and the two details
	require.Equal(t, 0, log.countPrefix("/teams/"))
	require.Equal(t, 0, log.countPrefix("/competitions?"))

	// details are rebuilt, not appended
	compDir := filepath.Join(dataDir, "competition_180")
	require.Len(t, readLines(t, filepath.Join(compDir, "matches_details.jsonl")), 2)
	require.Len(t, readLines(t, filepath.Join(compDir, "players.jsonl")), 4)
}

func TestRunRejectsUnknownView(t *testing.T) {
	server, _ := fixtureServer(t)
	_, err := Run(context.Background(), Config{
		Domain:  server.URL,
		DataDir: t.TempDir(),
		Views:   "finished",
	}, 180)
	require.ErrorContains(t, err, "finished")
}
