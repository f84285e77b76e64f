package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gigmatch/job"
	"gigmatch/matching"
	"gigmatch/profile"

	"github.com/spf13/cobra"
)

type pointFile struct {
	Coordinates []float64 `json:"coordinates"`
}

type workerFile struct {
	Name       string     `json:"name"`
	Age        int        `json:"age"`
	Skills     []string   `json:"skills"`
	Experience int        `json:"experience"`
	Languages  []string   `json:"languages"`
	Location   *pointFile `json:"location"`
}

type jobFile struct {
	Title              string     `json:"title"`
	RequiredSkills     []string   `json:"requiredSkills"`
	RequiredExperience int        `json:"requiredExperience"`
	PreferredLanguages []string   `json:"preferredLanguages"`
	Location           *pointFile `json:"location"`
}

type scoreOutput struct {
	Worker      string              `json:"worker"`
	ShaktiScore float64             `json:"shaktiScore"`
	Job         string              `json:"job,omitempty"`
	Match       *matching.Breakdown `json:"match,omitempty"`
}

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var workerPath, jobPath string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a worker profile, and optionally a job, from JSON files",
		Long: "score computes the Shakti score of a worker read from --worker and, with --job,\n" +
			"the match breakdown and eligibility. Weights come from the scoring.* config keys.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workerPath == "" {
				return errors.New("--worker is required")
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			engine := newEngine(cfg)

			var wf workerFile
			if err := readJSON(workerPath, &wf); err != nil {
				return err
			}
			w := profile.Worker{
				Name:       wf.Name,
				Age:        wf.Age,
				Skills:     profile.NormalizeSet(wf.Skills),
				Experience: wf.Experience,
				Languages:  profile.NormalizeSet(wf.Languages),
				Location:   toLocation(wf.Location),
			}
			out := scoreOutput{Worker: wf.Name, ShaktiScore: engine.ShaktiScore(w)}

			if jobPath != "" {
				var jf jobFile
				if err := readJSON(jobPath, &jf); err != nil {
					return err
				}
				j := job.Job{
					Title:              jf.Title,
					RequiredSkills:     profile.NormalizeSet(jf.RequiredSkills),
					RequiredExperience: jf.RequiredExperience,
					PreferredLanguages: profile.NormalizeList(jf.PreferredLanguages),
					Location:           toLocation(jf.Location),
					Status:             job.StatusOpen,
				}
				b, err := engine.Breakdown(&w, &j)
				if err != nil {
					return err
				}
				out.Job = jf.Title
				out.Match = &b
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&workerPath, "worker", "w", "", "worker profile JSON file")
	cmd.Flags().StringVarP(&jobPath, "job", "J", "", "job posting JSON file")
	return cmd
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func toLocation(p *pointFile) profile.Location {
	if p == nil || len(p.Coordinates) != 2 {
		return profile.Location{}
	}
	return profile.Location{Point: &profile.Point{Lon: p.Coordinates[0], Lat: p.Coordinates[1]}}
}
