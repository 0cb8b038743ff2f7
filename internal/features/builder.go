// Package features turns player game history into leakage-free model inputs.
package features

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/greenbier/propedge/internal/dispersion"
	"github.com/greenbier/propedge/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Drop reasons reported in the build summary
const (
	DropInsufficientHistory = "insufficient_history"
	DropZeroVolume          = "zero_volume"
	DropMissingOpponent     = "missing_opponent"
	DropUnknownTeam         = "unknown_team"
	DropAmbiguousTeam       = "ambiguous_team"
	DropNoTeam              = "no_team"
	DropFutureDated         = "future_dated"
	DropDuplicate           = "duplicate"
	DropInvalid             = "invalid"
)

// Target is one player-game to build features for
type Target struct {
	PlayerID   string
	PlayerName string
	Team       string
	Opponent   string
	GameDate   time.Time
	IsHome     bool
	Actual     *int
}

// Result is the output of a build
type Result struct {
	Rows    []models.FeatureRow
	Dropped map[string]int
}

// DroppedTotal returns the number of dropped targets and history rows
func (r Result) DroppedTotal() int {
	n := 0
	for _, c := range r.Dropped {
		n += c
	}
	return n
}

// Builder computes rolling features for one market
type Builder struct {
	market   models.Market
	window   int
	minGames int
	regimes  dispersion.Definition
	workers  int
	now      func() time.Time
}

// Option configures a Builder
type Option func(*Builder)

// WithWorkers bounds the number of players processed concurrently
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithClock sets the clock used to discard future-dated history
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder creates a builder with a window of the last `window` games and at least minGames prior games
func NewBuilder(m models.Market, window, minGames int, regimes dispersion.Definition, opts ...Option) *Builder {
	b := &Builder{
		market:   m,
		window:   window,
		minGames: minGames,
		regimes:  regimes,
		workers:  runtime.GOMAXPROCS(0),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// History is player game history cleaned and indexed for feature lookups
type History struct {
	players map[string][]models.PlayerGame
	teams   *TeamIndex
	Dropped map[string]int
}

// Index validates, de-duplicates and indexes history. Rows dated after today are discarded.
func (b *Builder) Index(history []models.PlayerGame) *History {
	h := &History{
		players: make(map[string][]models.PlayerGame),
		Dropped: make(map[string]int),
	}
	today := truncateDay(b.now())
	seen := make(map[string]bool, len(history))
	clean := make([]models.PlayerGame, 0, len(history))

	for _, pg := range history {
		if err := pg.Validate(); err != nil {
			h.Dropped[DropInvalid]++
			continue
		}
		if pg.GameDate.After(today) {
			h.Dropped[DropFutureDated]++
			continue
		}
		if seen[pg.Key()] {
			h.Dropped[DropDuplicate]++
			continue
		}
		seen[pg.Key()] = true
		clean = append(clean, pg)
		h.players[pg.PlayerID] = append(h.players[pg.PlayerID], pg)
	}
	for _, games := range h.players {
		sort.Slice(games, func(i, j int) bool { return games[i].GameDate.Before(games[j].GameDate) })
	}
	h.teams = NewTeamIndex(b.market, clean)

	if n := h.Dropped[DropFutureDated]; n > 0 {
		log.Warn().Str("market", b.market.Key()).Int("rows", n).Msg("Discarded future-dated history")
	}
	return h
}

// Teams returns the index of team defensive profiles
func (h *History) Teams() *TeamIndex {
	return h.teams
}

// KnownTeams returns every normalized team name seen as a team or opponent
func (h *History) KnownTeams() []string {
	seen := make(map[string]bool)
	for _, games := range h.players {
		for _, pg := range games {
			seen[models.NormalizeName(pg.Team)] = true
		}
	}
	for _, t := range h.teams.Teams() {
		seen[t] = true
	}
	delete(seen, "")
	teams := make([]string, 0, len(seen))
	for t := range seen {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams
}

// Players returns the indexed player ids, sorted
func (h *History) Players() []string {
	ids := make([]string, 0, len(h.players))
	for id := range h.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Games returns a player's games in chronological order
func (h *History) Games(playerID string) []models.PlayerGame {
	return h.players[playerID]
}

// Build computes a feature row per target. Every feature of a target is computed from
// games dated strictly before the target's game date.
func (b *Builder) Build(ctx context.Context, h *History, targets []Target) (Result, error) {
	byPlayer := make(map[string][]Target)
	for _, t := range targets {
		byPlayer[t.PlayerID] = append(byPlayer[t.PlayerID], t)
	}
	ids := make([]string, 0, len(byPlayer))
	for id := range byPlayer {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([][]models.FeatureRow, len(ids))
	drops := make([]map[string]int, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows[i], drops[i] = b.buildPlayer(h, byPlayer[id])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("failed to build features: %w", err)
	}

	res := Result{Dropped: make(map[string]int)}
	for k, v := range h.Dropped {
		res.Dropped[k] += v
	}
	for i := range ids {
		res.Rows = append(res.Rows, rows[i]...)
		for k, v := range drops[i] {
			res.Dropped[k] += v
		}
	}
	return res, nil
}

func (b *Builder) buildPlayer(h *History, targets []Target) ([]models.FeatureRow, map[string]int) {
	sort.Slice(targets, func(i, j int) bool { return targets[i].GameDate.Before(targets[j].GameDate) })
	games := h.players[targets[0].PlayerID]
	drops := make(map[string]int)
	var rows []models.FeatureRow

	for _, t := range targets {
		n := sort.Search(len(games), func(i int) bool { return !games[i].GameDate.Before(t.GameDate) })
		w, ok := b.summarize(games[:n])
		if !ok {
			drops[w.reason]++
			continue
		}
		if t.Opponent == "" {
			drops[DropMissingOpponent]++
			continue
		}
		td, ok := h.teams.AsOf(t.Opponent, t.GameDate)
		if !ok {
			drops[DropMissingOpponent]++
			continue
		}
		rows = append(rows, b.row(t, w, td))
	}
	return rows, drops
}

type windowStats struct {
	games  int
	rate   float64
	volume float64
	reason string
}

// summarize summarizes the last b.window games of a chronological slice
func (b *Builder) summarize(games []models.PlayerGame) (windowStats, bool) {
	if len(games) < b.minGames {
		return windowStats{reason: DropInsufficientHistory}, false
	}
	if len(games) > b.window {
		games = games[len(games)-b.window:]
	}

	var count, volume float64
	for _, pg := range games {
		count += float64(pg.StatCount(b.market.Stat))
		volume += pg.Volume(b.market)
	}
	n := float64(len(games))
	w := windowStats{games: len(games), volume: volume / n}

	if b.market.IsPitching() {
		w.rate = count / n
		return w, true
	}
	// skater rates are per 60 minutes of ice time
	if volume <= 0 {
		return windowStats{reason: DropZeroVolume}, false
	}
	w.rate = 60 * count / volume
	return w, true
}

func (b *Builder) row(t Target, w windowStats, td models.TeamDay) models.FeatureRow {
	return models.FeatureRow{
		PlayerID:    t.PlayerID,
		PlayerName:  t.PlayerName,
		Team:        t.Team,
		Opponent:    t.Opponent,
		GameDate:    t.GameDate,
		Stat:        b.market.Stat,
		RateL10:     w.rate,
		VolumeL10:   w.volume,
		OppStrength: td.AllowedPerGame,
		IsHome:      t.IsHome,
		RegimeKey:   b.regimes.Key(w.volume),
		Actual:      t.Actual,
	}
}

// HistoricalTargets turns every indexed game on or after since into a labeled target
func HistoricalTargets(m models.Market, h *History, since time.Time) []Target {
	var targets []Target
	for _, id := range h.Players() {
		for _, pg := range h.players[id] {
			if pg.GameDate.Before(since) {
				continue
			}
			actual := pg.StatCount(m.Stat)
			targets = append(targets, Target{
				PlayerID:   pg.PlayerID,
				PlayerName: pg.PlayerName,
				Team:       pg.Team,
				Opponent:   pg.Opponent,
				GameDate:   pg.GameDate,
				IsHome:     pg.IsHome,
				Actual:     &actual,
			})
		}
	}
	return targets
}

// UpcomingTargets pairs each player's most recent team with the schedule for date.
// Schedule team names are canonicalized against the teams seen in history.
func UpcomingTargets(h *History, schedule []models.ScheduledGame, date time.Time, r *Resolver) ([]Target, map[string]int) {
	day := truncateDay(date)
	var roster []models.PlayerSnapshot
	for _, id := range h.Players() {
		hist := h.players[id]
		n := sort.Search(len(hist), func(i int) bool { return !hist[i].GameDate.Before(day) })
		if n == 0 {
			continue
		}
		last := hist[n-1]
		roster = append(roster, models.PlayerSnapshot{PlayerID: id, PlayerName: last.PlayerName, Team: last.Team})
	}
	return pairSchedule(roster, schedule, day, r)
}

// Targets pairs the snapshot roster with the schedule for date
func (l Lookup) Targets(schedule []models.ScheduledGame, date time.Time, r *Resolver) ([]Target, map[string]int) {
	roster := make([]models.PlayerSnapshot, 0, len(l.Players))
	for _, ps := range l.Players {
		roster = append(roster, ps)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].PlayerID < roster[j].PlayerID })
	return pairSchedule(roster, schedule, truncateDay(date), r)
}

func pairSchedule(roster []models.PlayerSnapshot, schedule []models.ScheduledGame, day time.Time, r *Resolver) ([]Target, map[string]int) {
	drops := make(map[string]int)
	games := make(map[string]models.ScheduledGame)
	for _, sg := range schedule {
		if !truncateDay(sg.GameDate).Equal(day) {
			continue
		}
		team, err := r.Resolve(sg.Team)
		if err != nil {
			drops[resolveReason(err)]++
			continue
		}
		opp, err := r.Resolve(sg.Opponent)
		if err != nil {
			drops[resolveReason(err)]++
			continue
		}
		sg.Team, sg.Opponent = team, opp
		games[team] = sg
	}

	var targets []Target
	for _, p := range roster {
		team := models.NormalizeName(p.Team)
		if team == "" {
			drops[DropNoTeam]++
			continue
		}
		sg, ok := games[team]
		if !ok {
			continue
		}
		targets = append(targets, Target{
			PlayerID:   p.PlayerID,
			PlayerName: p.PlayerName,
			Team:       sg.Team,
			Opponent:   sg.Opponent,
			GameDate:   day,
			IsHome:     sg.IsHome,
		})
	}
	return targets, drops
}

func resolveReason(err error) string {
	if errors.Is(err, ErrAmbiguousTeam) {
		return DropAmbiguousTeam
	}
	return DropUnknownTeam
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
