// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every numeric tuning input of the session engine. The
// values are deliberately not constants in the game code: the rulebook
// sources disagree on several of them, so they stay configurable and tests
// parameterize them.
type Config struct {
	// Betting bounds (inclusive).
	MinBet int
	MaxBet int

	// WinningScore ends the match once a team's cumulative score reaches it.
	WinningScore int

	// Reward and penalty ranks. A trick containing the bonus-rank card is
	// worth BonusValue extra; the penalty-rank card subtracts PenaltyValue.
	BonusRank    int
	BonusValue   int
	PenaltyRank  int
	PenaltyValue int

	// Per-phase turn timeouts.
	BettingTimeout time.Duration
	PlayingTimeout time.Duration
	ScoringTimeout time.Duration

	// TimeoutWarning fires this long before a turn timer expires.
	// TimeoutTick is the interval of progress ticks for countdown rendering.
	TimeoutWarning time.Duration
	TimeoutTick    time.Duration

	// BotDelay replaces the full turn timeout once a seat is bot-controlled.
	BotDelay time.Duration

	// TrickDisplayDelay keeps a completed trick visible before it is cleared
	// and the next turn starts. The trick-lock covers this window.
	TrickDisplayDelay time.Duration

	// GracePeriod is how long a disconnected player may reconnect before the
	// seat is permanently converted to a stand-in.
	GracePeriod time.Duration

	// TeardownDelay is how long an empty session lingers in the registry.
	TeardownDelay time.Duration

	// TokenTTL bounds session-token validity.
	TokenTTL time.Duration

	// SnapshotDebounce coalesces persistence writes so a burst of actions
	// produces a single snapshot save.
	SnapshotDebounce time.Duration
}

// Default returns the baseline configuration used when an env var is unset.
func Default() Config {
	return Config{
		MinBet:            3,
		MaxBet:            7,
		WinningScore:      21,
		BonusRank:         5,
		BonusValue:        1,
		PenaltyRank:       3,
		PenaltyValue:      2,
		BettingTimeout:    30 * time.Second,
		PlayingTimeout:    30 * time.Second,
		ScoringTimeout:    60 * time.Second,
		TimeoutWarning:    5 * time.Second,
		TimeoutTick:       5 * time.Second,
		BotDelay:          1 * time.Second,
		TrickDisplayDelay: 1500 * time.Millisecond,
		GracePeriod:       2 * time.Minute,
		TeardownDelay:     5 * time.Minute,
		TokenTTL:          24 * time.Hour,
		SnapshotDebounce:  2 * time.Second,
	}
}

// FromEnv reads overrides from the environment on top of Default.
func FromEnv() Config {
	cfg := Default()
	cfg.MinBet = getEnvInt("QUARTE_MIN_BET", cfg.MinBet)
	cfg.MaxBet = getEnvInt("QUARTE_MAX_BET", cfg.MaxBet)
	cfg.WinningScore = getEnvInt("QUARTE_WINNING_SCORE", cfg.WinningScore)
	cfg.BonusRank = getEnvInt("QUARTE_BONUS_RANK", cfg.BonusRank)
	cfg.BonusValue = getEnvInt("QUARTE_BONUS_VALUE", cfg.BonusValue)
	cfg.PenaltyRank = getEnvInt("QUARTE_PENALTY_RANK", cfg.PenaltyRank)
	cfg.PenaltyValue = getEnvInt("QUARTE_PENALTY_VALUE", cfg.PenaltyValue)
	cfg.BettingTimeout = getEnvDuration("QUARTE_BETTING_TIMEOUT", cfg.BettingTimeout)
	cfg.PlayingTimeout = getEnvDuration("QUARTE_PLAYING_TIMEOUT", cfg.PlayingTimeout)
	cfg.ScoringTimeout = getEnvDuration("QUARTE_SCORING_TIMEOUT", cfg.ScoringTimeout)
	cfg.TimeoutWarning = getEnvDuration("QUARTE_TIMEOUT_WARNING", cfg.TimeoutWarning)
	cfg.TimeoutTick = getEnvDuration("QUARTE_TIMEOUT_TICK", cfg.TimeoutTick)
	cfg.BotDelay = getEnvDuration("QUARTE_BOT_DELAY", cfg.BotDelay)
	cfg.TrickDisplayDelay = getEnvDuration("QUARTE_TRICK_DISPLAY_DELAY", cfg.TrickDisplayDelay)
	cfg.GracePeriod = getEnvDuration("QUARTE_GRACE_PERIOD", cfg.GracePeriod)
	cfg.TeardownDelay = getEnvDuration("QUARTE_TEARDOWN_DELAY", cfg.TeardownDelay)
	cfg.TokenTTL = getEnvDuration("QUARTE_TOKEN_TTL", cfg.TokenTTL)
	cfg.SnapshotDebounce = getEnvDuration("QUARTE_SNAPSHOT_DEBOUNCE", cfg.SnapshotDebounce)
	return cfg
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
