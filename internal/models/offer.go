package models

import (
	"fmt"
	"strings"
	"time"
)

// Side is the over/under side of a prop
type Side string

const (
	SideOver  Side = "over"
	SideUnder Side = "under"
)

// ParseSide accepts over/under in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "over", "o":
		return SideOver, nil
	case "under", "u":
		return SideUnder, nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// LineOffer is a captured book price; never mutated after capture
type LineOffer struct {
	PlayerID     string    `db:"player_id" json:"player_id"`
	PlayerName   string    `db:"player_name" json:"player_name"`
	GameDate     time.Time `db:"game_date" json:"game_date"`
	Stat         Stat      `db:"stat" json:"stat"`
	Side         Side      `db:"side" json:"side"`
	Line         float64   `db:"line" json:"line"`
	DecimalPrice float64   `db:"decimal_price" json:"decimal_price"`
	Book         string    `db:"book" json:"book"`
	FetchedAt    time.Time `db:"fetched_at" json:"fetched_at"`
	GameStart    time.Time `db:"game_start" json:"game_start"`
}

// Validate checks the fields a LineOffer needs before it can be evaluated
func (o LineOffer) Validate() error {
	if o.PlayerID == "" && o.PlayerName == "" {
		return errInvalid("player_id or player_name is required")
	}
	if o.GameDate.IsZero() {
		return errInvalid("game_date is required")
	}
	if o.Side != SideOver && o.Side != SideUnder {
		return fmt.Errorf("invalid side %q", o.Side)
	}
	if o.Line < 0 {
		return fmt.Errorf("invalid line %v", o.Line)
	}
	if o.DecimalPrice <= 1 {
		return fmt.Errorf("decimal price must exceed 1.0, got %v", o.DecimalPrice)
	}
	if o.Book == "" {
		return errInvalid("book is required")
	}
	return nil
}

// QuoteKey groups both sides of one prop at one book
func (o LineOffer) QuoteKey() string {
	who := o.PlayerID
	if who == "" {
		who = "name:" + NormalizeName(o.PlayerName)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s", who, o.GameDate.Format(DateLayout), o.Stat, FormatLine(o.Line), o.Book)
}

// NormalizeName lowercases and strips punctuation for name joins
func NormalizeName(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '-' || r == '_' || r == '\t':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
