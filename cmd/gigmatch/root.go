package main

import (
	"gigmatch/config"
	"gigmatch/matching"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const app = "gigmatch"

type rootOptions struct {
	cfgFile string
	v       *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	root := &cobra.Command{
		Use:           app,
		Short:         "gigmatch connects informal workers with employers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "a config file (default is gigmatch.yaml in current directory)")
	root.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	_ = opts.v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))
	_ = opts.v.BindPFlag("json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newScoreCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads .env, the config file and the environment.
func (o *rootOptions) load() (*config.Config, error) {
	config.LoadDotEnv()
	return config.Load(o.v, o.cfgFile)
}

func shaktiParams(c config.ShaktiConfig) matching.ShaktiParams {
	return matching.ShaktiParams{
		PeakStart:        c.PeakStart,
		PeakEnd:          c.PeakEnd,
		OldAgeFloor:      c.OldAgeFloor,
		ExperienceCap:    c.ExperienceCap,
		SkillCap:         c.SkillCap,
		LanguageCap:      c.LanguageCap,
		AgeWeight:        c.AgeWeight,
		ExperienceWeight: c.ExperienceWeight,
		SkillWeight:      c.SkillWeight,
		LanguageWeight:   c.LanguageWeight,
	}
}

func matchWeights(c config.MatchConfig) matching.Weights {
	return matching.Weights{
		Skills:          c.SkillWeight,
		Experience:      c.ExperienceWeight,
		Languages:       c.LanguageWeight,
		Location:        c.LocationWeight,
		DistanceScaleKm: c.DistanceScaleKm,
	}
}

func newEngine(cfg *config.Config) *matching.Engine {
	return matching.NewEngine(shaktiParams(cfg.Scoring.Shakti), matchWeights(cfg.Scoring.Match))
}
