// Package matching scores workers against jobs. The engine is pure and holds
// no mutable state, so one instance is shared by every request.
package matching

import (
	"context"
	"errors"
	"runtime"
	"sort"

	"gigmatch/job"
	"gigmatch/profile"

	"golang.org/x/sync/errgroup"
)

var (
	ErrWorkerRequired = errors.New("matching: worker is required")
	ErrJobRequired    = errors.New("matching: job is required")
)

// Weights are the relative importance of each compatibility dimension.
// Absent dimensions are dropped and the rest renormalized.
type Weights struct {
	Skills          float64
	Experience      float64
	Languages       float64
	Location        float64
	DistanceScaleKm float64
}

func DefaultWeights() Weights {
	return Weights{
		Skills:          0.5,
		Experience:      0.3,
		Languages:       0.1,
		Location:        0.1,
		DistanceScaleKm: 10,
	}
}

// Dimension names used in a Breakdown.
const (
	DimSkills     = "skills"
	DimExperience = "experience"
	DimLanguages  = "languages"
	DimLocation   = "location"
)

type Dimension struct {
	Name   string
	Value  float64
	Weight float64
}

// Breakdown explains a Score. Only dimensions that took part are listed.
type Breakdown struct {
	Dimensions []Dimension
	DistanceKm *float64
	Score      float64
	Eligible   bool
}

// Match is a transient (job, score) pair produced by Rank.
type Match struct {
	Job   job.Job
	Score float64
}

type Engine struct {
	shakti      ShaktiParams
	weights     Weights
	parallelism int
}

func NewEngine(shakti ShaktiParams, weights Weights) *Engine {
	if weights.DistanceScaleKm <= 0 {
		weights.DistanceScaleKm = DefaultWeights().DistanceScaleKm
	}
	return &Engine{
		shakti:      shakti,
		weights:     weights,
		parallelism: runtime.GOMAXPROCS(0),
	}
}

// WithParallelism bounds concurrent scoring in Rank. n <= 0 keeps GOMAXPROCS.
func (e *Engine) WithParallelism(n int) *Engine {
	if n > 0 {
		e.parallelism = n
	}
	return e
}

// Score returns the compatibility of w and j in [0,1], rounded to 4 decimals.
func (e *Engine) Score(w *profile.Worker, j *job.Job) (float64, error) {
	b, err := e.Breakdown(w, j)
	if err != nil {
		return 0, err
	}
	return b.Score, nil
}

// Breakdown scores w against j and reports each contributing dimension.
func (e *Engine) Breakdown(w *profile.Worker, j *job.Job) (Breakdown, error) {
	if w == nil {
		return Breakdown{}, ErrWorkerRequired
	}
	if j == nil {
		return Breakdown{}, ErrJobRequired
	}

	b := Breakdown{Dimensions: make([]Dimension, 0, 4), Eligible: Eligible(*w, *j)}

	required := profile.NormalizeSet(j.RequiredSkills)
	if len(required) > 0 {
		b.Dimensions = append(b.Dimensions, Dimension{
			Name:   DimSkills,
			Value:  coverage(required, profile.NormalizeSet(w.Skills)),
			Weight: e.weights.Skills,
		})
	}

	b.Dimensions = append(b.Dimensions, Dimension{
		Name:   DimExperience,
		Value:  experienceFit(w.Experience, j.RequiredExperience),
		Weight: e.weights.Experience,
	})

	preferred := profile.NormalizeSet(j.PreferredLanguages)
	if len(preferred) > 0 {
		b.Dimensions = append(b.Dimensions, Dimension{
			Name:   DimLanguages,
			Value:  coverage(preferred, profile.NormalizeSet(w.Languages)),
			Weight: e.weights.Languages,
		})
	}

	if w.Location.HasPoint() && j.Location.HasPoint() {
		km := DistanceKm(*w.Location.Point, *j.Location.Point)
		b.DistanceKm = &km
		b.Dimensions = append(b.Dimensions, Dimension{
			Name:   DimLocation,
			Value:  1 / (1 + km/e.weights.DistanceScaleKm),
			Weight: e.weights.Location,
		})
	}

	var sum, total float64
	for _, d := range b.Dimensions {
		if d.Weight <= 0 {
			continue
		}
		sum += d.Weight * d.Value
		total += d.Weight
	}
	if total > 0 {
		b.Score = round(clamp01(sum/total), 4)
	}
	return b, nil
}

// Rank scores every open job for w concurrently and orders them by score,
// then job creation time, then input position. Closed jobs are dropped.
func (e *Engine) Rank(ctx context.Context, w *profile.Worker, jobs []job.Job) ([]Match, error) {
	if w == nil {
		return nil, ErrWorkerRequired
	}

	type ranked struct {
		Match
		index int
	}
	open := make([]ranked, 0, len(jobs))
	for i, j := range jobs {
		if j.Status == job.StatusOpen {
			open = append(open, ranked{Match: Match{Job: j}, index: i})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i := range open {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score, err := e.Score(w, &open[i].Job)
			if err != nil {
				return err
			}
			open[i].Score = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(open, func(a, b int) bool {
		x, y := open[a], open[b]
		if x.Score != y.Score {
			return x.Score > y.Score
		}
		if !x.Job.CreatedAt.Equal(y.Job.CreatedAt) {
			return x.Job.CreatedAt.Before(y.Job.CreatedAt)
		}
		return x.index < y.index
	})

	out := make([]Match, len(open))
	for i, r := range open {
		out[i] = r.Match
	}
	return out, nil
}

// Eligible is the hard gate: an accepted age and enough experience.
func Eligible(w profile.Worker, j job.Job) bool {
	return w.Age >= profile.MinAge && w.Age <= profile.MaxAge && w.Experience >= j.RequiredExperience
}

// coverage is |want ∩ have| / |want| over normalized sets.
func coverage(want, have []string) float64 {
	if len(want) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	n := 0
	for _, w := range want {
		if _, ok := set[w]; ok {
			n++
		}
	}
	return float64(n) / float64(len(want))
}

func experienceFit(have, required int) float64 {
	if required <= 0 || have >= required {
		return 1
	}
	if have <= 0 {
		return 0
	}
	return float64(have) / float64(required)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
