// internal/models/action.go
package models

// ActionKind enumerates the closed set of in-session actions. Every inbound
// request is normalized into one of these before it reaches the validation
// gate; unknown kinds never make it past the transport layer.
type ActionKind string

const (
	ActionSelectTeam  ActionKind = "select_team"
	ActionSwapSeat    ActionKind = "swap_seat"
	ActionStartMatch  ActionKind = "start_match"
	ActionPlaceBet    ActionKind = "place_bet"
	ActionPlayCard    ActionKind = "play_card"
	ActionSignalReady ActionKind = "signal_ready"
	ActionVoteRematch ActionKind = "vote_rematch"
	ActionLeave       ActionKind = "leave_session"
)

// Action is the tagged union of all action payloads. Only the fields
// relevant to Kind are set; the validation gate checks shape before any
// rule-level check runs.
type Action struct {
	Kind ActionKind `json:"kind"`

	Team       *int   `json:"team,omitempty"`       // select_team
	TargetName string `json:"targetName,omitempty"` // swap_seat
	Bet        *Bet   `json:"bet,omitempty"`        // place_bet
	Card       *Card  `json:"card,omitempty"`       // play_card

	// Auto marks an action produced by the timeout scheduler on behalf of an
	// absent player. Set internally, never accepted from a client.
	Auto bool `json:"-"`
}
