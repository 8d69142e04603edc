// internal/game/events.go
package game

import "github.com/mbeaudry/quarte/internal/models"

// EventType is an enum-like type for broadcasting session events.
type EventType string

const (
	// Lifecycle / membership.
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventTeamSelected EventType = "team_selected"
	EventSeatsSwapped EventType = "seats_swapped"

	// Round flow.
	EventRoundStarted     EventType = "round_started"
	EventBetPlaced        EventType = "bet_placed"
	EventBettingRestarted EventType = "betting_restarted"
	EventBettingResolved  EventType = "betting_resolved"
	EventTrumpEstablished EventType = "trump_established"
	EventCardPlayed       EventType = "card_played"
	EventTrickResolved    EventType = "trick_resolved"
	EventRoundEnded       EventType = "round_ended"
	EventGameOver         EventType = "game_over"
	EventPlayerTurn       EventType = "player_turn"
	EventPlayerReady      EventType = "player_ready"
	EventRematchVote      EventType = "rematch_vote"
	EventRematchStarted   EventType = "rematch_started"

	// Connection lifecycle.
	EventPlayerDisconnected EventType = "player_disconnected"
	EventSeatConverted      EventType = "seat_converted"
	EventPlayerReconnected  EventType = "player_reconnected"
	EventReconnectionFailed EventType = "reconnection_failed"

	// Timeout scheduler.
	EventTimeoutProgress EventType = "timeout_progress"
	EventTimeoutWarning  EventType = "timeout_warning"
	EventAutoActionTaken EventType = "auto_action_taken"

	// Private.
	EventPrivateStateSync EventType = "private_state_sync"
	EventPrivateHand      EventType = "private_hand"
	EventActionRejected   EventType = "action_rejected"
)

// Event is the uniform broadcast envelope. Public payloads identify players
// by stable name only; connection ids never leave the server.
type Event struct {
	Type EventType `json:"type"`
	Seat string    `json:"seat,omitempty"`

	Card *models.Card `json:"card,omitempty"`
	Bet  *BetView     `json:"bet,omitempty"`

	Payload map[string]interface{} `json:"payload,omitempty"`

	// State carries the per-viewer snapshot for private sync events.
	State *ViewState `json:"state,omitempty"`

	// Hand carries the viewer's own cards for private hand events.
	Hand []models.Card `json:"hand,omitempty"`
}
