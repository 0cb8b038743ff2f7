package config

import (
	"fmt"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/dispersion"
	"github.com/greenbier/propedge/internal/edge"
	"github.com/greenbier/propedge/internal/models"
	"github.com/greenbier/propedge/internal/probability"

	"github.com/spf13/viper"
)

// Profile carries the sport rules for one market. Values are copied into the artifact at train time.
type Profile struct {
	Market      models.Market         `mapstructure:"-"`
	Window      int                   `mapstructure:"window"`
	MinGames    int                   `mapstructure:"min_games"`
	Rules       edge.Rules            `mapstructure:"rules"`
	Dispersion  dispersion.Params     `mapstructure:"dispersion"`
	Regimes     dispersion.Definition `mapstructure:"regimes"`
	LineGrid    []float64             `mapstructure:"line_grid"`
	TeamAliases map[string]string     `mapstructure:"team_aliases"`
}

// DefaultProfile returns the compiled rules for a market
func DefaultProfile(m models.Market) Profile {
	p := Profile{
		Market:     m,
		Window:     10,
		MinGames:   3,
		Rules:      edge.DefaultRules(),
		Dispersion: dispersion.DefaultParams(),
	}

	switch m.Sport {
	case models.SportMLB:
		p.Regimes = dispersion.PitchLeash()
		p.LineGrid = probability.HalfLines(2.5, 9.5)
	case models.SportNHL:
		p.Regimes = dispersion.SkaterTOI()
		p.Rules.OverVolumeMin = 15
		switch m.Stat {
		case models.StatShots:
			p.Rules.MuShift = -0.15
			p.LineGrid = probability.HalfLines(0.5, 5.5)
		default:
			p.Rules.MuShift = -0.05
			p.LineGrid = probability.HalfLines(0.5, 2.5)
		}
	}
	return p
}

// LoadProfile returns the default profile for m overlaid with the "<sport>_<stat>" section of
// the YAML file at path. Top-level team_aliases apply to every market.
func LoadProfile(path string, m models.Market) (Profile, error) {
	p := DefaultProfile(m)
	if path == "" {
		return p, p.Validate()
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return p, apperr.Configuration("load profile", fmt.Errorf("failed to read %s: %w", path, err))
	}

	if aliases := v.GetStringMapString("team_aliases"); len(aliases) > 0 {
		p.TeamAliases = aliases
	}
	if sub := v.Sub(m.Key()); sub != nil {
		if err := sub.Unmarshal(&p); err != nil {
			return p, apperr.Configuration("load profile", fmt.Errorf("failed to decode %s section: %w", m.Key(), err))
		}
	}
	p.Market = m

	return p, p.Validate()
}

// Validate validates the profile
func (p Profile) Validate() error {
	if p.Window < 1 || p.MinGames < 1 || p.MinGames > p.Window {
		return apperr.Configuration("profile", fmt.Errorf("%s: invalid window %d / min games %d", p.Market, p.Window, p.MinGames))
	}
	if err := p.Rules.Validate(); err != nil {
		return apperr.Configuration("profile", fmt.Errorf("%s: %w", p.Market, err))
	}
	if err := p.Regimes.Validate(); err != nil {
		return apperr.Configuration("profile", fmt.Errorf("%s: %w", p.Market, err))
	}
	if p.Dispersion.Floor < 0 || p.Dispersion.NMin < 1 {
		return apperr.Configuration("profile", fmt.Errorf("%s: invalid dispersion params", p.Market))
	}
	if len(p.LineGrid) == 0 {
		return apperr.Configuration("profile", fmt.Errorf("%s: empty line grid", p.Market))
	}
	return nil
}
