// Package harvest runs the full scrape pipeline for one competition:
// the global competitions listing, then the competition's teams, matches,
// player rosters and completed-match details. Each stage owns one output
// file under the data root and is skipped when that file already exists,
// except match details which change until a match is finalized and are
// always rebuilt.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/arv-anshul/hockey/lib/crawl"
	"github.com/arv-anshul/hockey/lib/scrapers/altius"
)

type Config struct {
	// Domain overrides the scraped host, empty means the production site.
	Domain string `json:"domain"`
	// DataDir is the output root, "data" when empty.
	DataDir string `json:"data_dir"`
	// Views selects the competitions listing partitions, "all" when empty.
	Views string `json:"views"`

	UserAgent         string  `json:"user_agent"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	RetryCount        int     `json:"retry_count"`
}

func (c Config) dataDir() string {
	if c.DataDir == "" {
		return "data"
	}
	return c.DataDir
}

func (c Config) views() string {
	if c.Views == "" {
		return "all"
	}
	return c.Views
}

// StageStatus is one row of the run summary.
type StageStatus struct {
	Stage    string
	Output   string
	Skipped  bool
	Requests int
	Records  int
}

type Summary struct {
	Stages []StageStatus
}

type stage struct {
	name string
	// output is the file whose existence marks the stage as done.
	output string
	// overwrite forces the stage to run even when output exists.
	overwrite bool
	// global stages are not scoped to one competition and use ledger id 0.
	global bool
	build  func() (crawl.Job, error)
}

func (s stage) ledgerID(competitionID int) int {
	if s.global {
		return 0
	}
	return competitionID
}

// Run scrapes everything for one competition. Stages whose output file
// already exists are skipped before any job is registered; the rest run
// concurrently on one engine and are recorded in the completed-stage
// ledger afterwards.
func Run(ctx context.Context, cfg Config, competitionID int) (Summary, error) {
	site := altius.NewSite(cfg.Domain)
	dataDir := cfg.dataDir()
	compDir := filepath.Join(dataDir, fmt.Sprintf("competition_%d", competitionID))

	ledger, err := OpenLedger(filepath.Join(dataDir, "harvest.db"))
	if err != nil {
		return Summary{}, fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	stages := []stage{
		{
			name:   "competitions",
			output: filepath.Join(dataDir, "competitions.json"),
			global: true,
			build: func() (crawl.Job, error) {
				job, err := altius.NewCompetitionsJob(site, cfg.views())
				if err != nil {
					return crawl.Job{}, err
				}
				return crawl.Job{
					Name:  "competitions",
					Seeds: job.Seeds(),
					Parse: job.Parse,
					Sink:  crawl.NewJSONArraySink(filepath.Join(dataDir, "competitions.json")),
				}, nil
			},
		},
		{
			name:   "teams",
			output: filepath.Join(compDir, "teams.json"),
			build: func() (crawl.Job, error) {
				job := altius.NewTeamsJob(site, competitionID)
				return crawl.Job{
					Name:  "teams",
					Seeds: job.Seeds(),
					Parse: job.Parse,
					Sink:  crawl.NewJSONArraySink(filepath.Join(compDir, "teams.json")),
				}, nil
			},
		},
		{
			name:   "matches",
			output: filepath.Join(compDir, "matches.json"),
			build: func() (crawl.Job, error) {
				job := altius.NewMatchesJob(site, competitionID)
				return crawl.Job{
					Name:  "matches",
					Seeds: job.Seeds(),
					Parse: job.Parse,
					Sink:  crawl.NewJSONArraySink(filepath.Join(compDir, "matches.json")),
				}, nil
			},
		},
		{
			name:   "players",
			output: filepath.Join(compDir, "players.jsonl"),
			build: func() (crawl.Job, error) {
				job := altius.NewPlayersJob(site, competitionID)
				sink, err := crawl.NewJSONLinesSink(filepath.Join(compDir, "players.jsonl"), false)
				if err != nil {
					return crawl.Job{}, err
				}
				return crawl.Job{
					Name:  "players",
					Seeds: job.Seeds(),
					Parse: job.Parse,
					Sink:  sink,
				}, nil
			},
		},
		{
			name:      "match_details",
			output:    filepath.Join(compDir, "matches_details.jsonl"),
			overwrite: true,
			build: func() (crawl.Job, error) {
				job := altius.NewMatchDetailsJob(site, competitionID, altius.EmbedGoals)
				sink, err := crawl.NewJSONLinesSink(filepath.Join(compDir, "matches_details.jsonl"), true)
				if err != nil {
					return crawl.Job{}, err
				}
				return crawl.Job{
					Name:  "match_details",
					Seeds: job.Seeds(),
					Parse: job.Parse,
					Sink:  sink,
				}, nil
			},
		},
	}

	engine := crawl.New(crawl.Options{
		UserAgent:         cfg.UserAgent,
		RetryCount:        cfg.RetryCount,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})

	var (
		statuses   []StageStatus
		registered []stage
	)
	for _, st := range stages {
		if !st.overwrite && fileExists(st.output) {
			slog.InfoContext(ctx, "output exists, skipping stage",
				"stage", st.name, "output", st.output)
			statuses = append(statuses, StageStatus{Stage: st.name, Output: st.output, Skipped: true})
			continue
		}

		done, err := ledger.Completed(ctx, st.name, st.ledgerID(competitionID))
		if err != nil {
			return Summary{}, fmt.Errorf("consult ledger: %w", err)
		}
		if done && !st.overwrite {
			slog.WarnContext(ctx, "ledger marks stage complete but output is missing, re-running",
				"stage", st.name, "output", st.output)
		}

		job, err := st.build()
		if err != nil {
			return Summary{}, fmt.Errorf("stage %s: %w", st.name, err)
		}
		engine.Register(job)
		registered = append(registered, st)
	}

	if err := engine.Run(ctx); err != nil {
		return Summary{}, err
	}

	stats := engine.Stats()
	for _, st := range registered {
		if err := ledger.MarkCompleted(ctx, st.name, st.ledgerID(competitionID), st.output); err != nil {
			return Summary{}, fmt.Errorf("record stage %s: %w", st.name, err)
		}
		statuses = append(statuses, StageStatus{
			Stage:    st.name,
			Output:   st.output,
			Requests: stats[st.name].Requests,
			Records:  stats[st.name].Items,
		})
	}

	return Summary{Stages: statuses}, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
