package matching

import (
	"math"

	"gigmatch/profile"
)

// ShaktiParams shapes the job-independent worker score (0-100).
type ShaktiParams struct {
	PeakStart     int
	PeakEnd       int
	OldAgeFloor   float64
	ExperienceCap int
	SkillCap      int
	LanguageCap   int

	AgeWeight        float64
	ExperienceWeight float64
	SkillWeight      float64
	LanguageWeight   float64
}

func DefaultShaktiParams() ShaktiParams {
	return ShaktiParams{
		PeakStart:        30,
		PeakEnd:          45,
		OldAgeFloor:      0.4,
		ExperienceCap:    15,
		SkillCap:         8,
		LanguageCap:      4,
		AgeWeight:        25,
		ExperienceWeight: 35,
		SkillWeight:      25,
		LanguageWeight:   15,
	}
}

// ShaktiScore rates a worker profile on a 0-100 scale, rounded to two
// decimals. Ages outside the accepted range contribute nothing.
func (e *Engine) ShaktiScore(w profile.Worker) float64 {
	p := e.shakti
	total := p.AgeWeight + p.ExperienceWeight + p.SkillWeight + p.LanguageWeight
	if total <= 0 {
		return 0
	}

	weighted := p.AgeWeight*p.ageFactor(w.Age) +
		p.ExperienceWeight*capped(w.Experience, p.ExperienceCap) +
		p.SkillWeight*capped(len(profile.NormalizeSet(w.Skills)), p.SkillCap) +
		p.LanguageWeight*capped(len(profile.NormalizeSet(w.Languages)), p.LanguageCap)

	return round(100*weighted/total, 2)
}

func (p ShaktiParams) ageFactor(age int) float64 {
	a := float64(age)
	switch {
	case age < profile.MinAge || age > profile.MaxAge:
		return 0
	case age < p.PeakStart:
		return 0.5 + 0.5*(a-profile.MinAge)/float64(p.PeakStart-profile.MinAge)
	case age <= p.PeakEnd:
		return 1
	default:
		return 1 - (1-p.OldAgeFloor)*(a-float64(p.PeakEnd))/float64(profile.MaxAge-p.PeakEnd)
	}
}

func capped(n, limit int) float64 {
	if n <= 0 || limit <= 0 {
		return 0
	}
	if n > limit {
		n = limit
	}
	return float64(n) / float64(limit)
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
