// internal/game/session.go
package game

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mbeaudry/quarte/internal/config"
	"github.com/mbeaudry/quarte/internal/models"
)

// Phase is the session's lifecycle stage. Every action kind is legal in a
// fixed subset of phases, enforced by the validation gate.
type Phase string

const (
	PhaseTeamSelection Phase = "team_selection"
	PhaseBetting       Phase = "betting"
	PhasePlaying       Phase = "playing"
	PhaseScoring       Phase = "scoring"
	PhaseGameOver      Phase = "game_over"
)

// MaxPlayers is the fixed table size. TricksPerRound follows from the deck.
const (
	MaxPlayers     = 4
	TricksPerRound = 8
)

// Strategy decides actions for bot-controlled and timed-out seats. Both
// methods must return a legal action: the result is pushed through the same
// validation gate as a human action.
type Strategy interface {
	ChooseBet(hand []models.Card, lead *models.Bet, isDealer bool, cfg config.Config) models.Bet
	ChooseCard(hand []models.Card, trick []PlayedCard, trump models.Color) models.Card
}

// Persistence saves session state outside the process. Both calls happen on
// background goroutines; implementations own their timeouts.
type Persistence interface {
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	RecordFinishedMatch(ctx context.Context, snap *Snapshot) error
}

// ActionLogFn appends one applied action to an external audit stream.
type ActionLogFn func(sessionID uuid.UUID, index int, actor string, kind models.ActionKind, payload interface{})

// RoundResult records one finished round for history and snapshots.
type RoundResult struct {
	Round        int     `json:"round"`
	LeadBet      BetView `json:"leadBet"`
	OffenseTeam  int     `json:"offenseTeam"`
	OffensePts   int     `json:"offensePts"`
	DefensePts   int     `json:"defensePts"`
	OffenseDelta int     `json:"offenseDelta"`
	DefenseDelta int     `json:"defenseDelta"`
	Scores       [2]int  `json:"scores"`
}

// Session is the authoritative state of one table. All mutation goes through
// ApplyAction or the connection-lifecycle entry points; every other exported
// method only reads.
type Session struct {
	ID  uuid.UUID
	Cfg config.Config

	// Mu guards everything below. Unexported helpers assume it is held.
	Mu sync.Mutex

	Seats []*models.Seat // play order once the match starts
	Phase Phase

	Started     bool
	Round       int
	DealerIndex int
	TurnIndex   int

	// TurnID increments whenever the acting turn changes. Timer callbacks
	// capture it and bail out if the turn has moved on since they were armed.
	TurnID uint64

	Bets    []models.Bet
	LeadBet *models.Bet // own copy, never aliases Bets
	Trump   models.Color
	NoTrump bool

	CurrentTrick    []PlayedCard
	LastTrick       []PlayedCard
	CompletedTricks int

	// trickSeq versions trick resolutions so the display-delay callback can
	// detect it is stale. TrickLocked rejects plays during the display window.
	trickSeq    uint64
	TrickLocked bool

	Scores       [2]int
	RoundHistory []RoundResult

	// Per-phase bookkeeping keyed by connection id; rewritten on reconnect.
	ReadySet       map[uuid.UUID]bool
	RematchVotes   map[uuid.UUID]bool
	actedThisBet   map[uuid.UUID]bool
	actedThisTrick map[uuid.UUID]bool

	// rematchDealer carries the rotated dealer seat across a rematch reset,
	// surviving the play-order rearrangement on the next start.
	rematchDealer *models.Seat

	Concluded   bool
	WinningTeam int

	actionIndex  int
	lastActivity time.Time

	turnTimer  *time.Timer
	warnTimer  *time.Timer
	tickStop   chan struct{}
	trickTimer *time.Timer
	graceGen   uint64

	snapshotTimer *time.Timer

	Strategy Strategy
	Persist  Persistence
	LogFn    ActionLogFn

	BroadcastFn         func(ev Event)
	BroadcastToPlayerFn func(connID uuid.UUID, ev Event)

	// OnEmpty fires when the last human connection is gone; the registry uses
	// it to schedule teardown. OnSeatConverted lets the reconnect manager drop
	// the seat's session token once the grace period converts it to a bot.
	OnEmpty         func()
	OnSeatConverted func(name string)

	rng *rand.Rand
}

// NewSession creates an empty table in the team-selection phase.
func NewSession(cfg config.Config) *Session {
	return &Session{
		ID:           uuid.New(),
		Cfg:          cfg,
		Phase:        PhaseTeamSelection,
		DealerIndex:  0,
		TurnIndex:    -1,
		ReadySet:       make(map[uuid.UUID]bool),
		RematchVotes:   make(map[uuid.UUID]bool),
		actedThisBet:   make(map[uuid.UUID]bool),
		actedThisTrick: make(map[uuid.UUID]bool),
		lastActivity:   time.Now(),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// broadcast fans an event out to every connection. Safe with a nil fn so the
// engine can be driven headless in tests.
func (s *Session) broadcast(ev Event) {
	if s.BroadcastFn != nil {
		s.BroadcastFn(ev)
	}
}

func (s *Session) broadcastTo(connID uuid.UUID, ev Event) {
	if s.BroadcastToPlayerFn != nil {
		s.BroadcastToPlayerFn(connID, ev)
	}
}

// AddPlayer seats a new connection. Fails once the table is full, the match
// has started, or the name collides with a seated player.
func (s *Session) AddPlayer(connID uuid.UUID, name string) error {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.Started {
		return ErrMatchStarted
	}
	for _, seat := range s.Seats {
		if !seat.Empty && seat.Name == name {
			return ErrNameTaken
		}
	}
	// Reuse a vacated slot before growing.
	var seat *models.Seat
	for _, sl := range s.Seats {
		if sl.Empty {
			seat = sl
			break
		}
	}
	if seat == nil {
		if len(s.Seats) >= MaxPlayers {
			return ErrTableFull
		}
		seat = &models.Seat{}
		s.Seats = append(s.Seats, seat)
	}
	*seat = models.Seat{
		ConnID: connID,
		Name:   name,
		Team:   models.TeamNone,
		Status: models.SeatConnected,
	}
	s.lastActivity = time.Now()
	s.broadcast(Event{Type: EventPlayerJoined, Seat: name})
	s.broadcastTo(connID, Event{Type: EventPrivateStateSync, State: s.viewStateLocked(connID)})
	return nil
}

// ApplyAction is the single entry point for player and auto actions. It runs
// the validation gate and, on success, the phase-specific applier. A non-nil
// Rejection means nothing was mutated.
func (s *Session) ApplyAction(connID uuid.UUID, act models.Action) *Rejection {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.applyActionLocked(connID, act)
}

// applyActionLocked assumes the lock is held. It is shared by ApplyAction and
// the timeout scheduler so auto actions cross the same gate as human ones.
func (s *Session) applyActionLocked(connID uuid.UUID, act models.Action) *Rejection {
	if rej := s.validateLocked(connID, act); rej != nil {
		s.broadcastTo(connID, Event{
			Type: EventActionRejected,
			Payload: map[string]interface{}{
				"reason": rej.Reason,
				"detail": rej.Detail,
				"kind":   act.Kind,
			},
		})
		return rej
	}

	seat := s.seatByConnLocked(connID)
	s.logActionLocked(seat.Name, act)

	switch act.Kind {
	case models.ActionSelectTeam:
		s.applySelectTeamLocked(seat, *act.Team)
	case models.ActionSwapSeat:
		s.applySwapSeatLocked(seat, act.TargetName)
	case models.ActionStartMatch:
		s.applyStartMatchLocked(seat)
	case models.ActionPlaceBet:
		s.applyPlaceBetLocked(seat, *act.Bet, act.Auto)
	case models.ActionPlayCard:
		s.applyPlayCardLocked(seat, *act.Card, act.Auto)
	case models.ActionSignalReady:
		s.applySignalReadyLocked(seat, act.Auto)
	case models.ActionVoteRematch:
		s.applyVoteRematchLocked(seat)
	case models.ActionLeave:
		s.applyLeaveLocked(seat)
	}

	s.lastActivity = time.Now()
	s.markDirtyLocked()
	return nil
}

func (s *Session) logActionLocked(actor string, act models.Action) {
	if s.LogFn == nil {
		return
	}
	s.actionIndex++
	s.LogFn(s.ID, s.actionIndex, actor, act.Kind, act)
}

func (s *Session) seatByConnLocked(connID uuid.UUID) *models.Seat {
	for _, seat := range s.Seats {
		if !seat.Empty && seat.ConnID == connID {
			return seat
		}
	}
	return nil
}

func (s *Session) seatByNameLocked(name string) *models.Seat {
	for _, seat := range s.Seats {
		if !seat.Empty && seat.Name == name {
			return seat
		}
	}
	return nil
}

func (s *Session) seatIndexLocked(seat *models.Seat) int {
	for i, sl := range s.Seats {
		if sl == seat {
			return i
		}
	}
	return -1
}

func (s *Session) teamCountLocked(team int) int {
	n := 0
	for _, seat := range s.Seats {
		if !seat.Empty && seat.Team == team {
			n++
		}
	}
	return n
}

// connectedHumansLocked counts seats backed by a live websocket.
func (s *Session) connectedHumansLocked() int {
	n := 0
	for _, seat := range s.Seats {
		if seat.Connected() && !seat.IsBot {
			n++
		}
	}
	return n
}

/* ---- team selection ---- */

func (s *Session) applySelectTeamLocked(seat *models.Seat, team int) {
	seat.Team = team
	s.broadcast(Event{
		Type: EventTeamSelected,
		Seat: seat.Name,
		Payload: map[string]interface{}{
			"team": team,
		},
	})
}

func (s *Session) applySwapSeatLocked(seat *models.Seat, targetName string) {
	target := s.seatByNameLocked(targetName)
	i, j := s.seatIndexLocked(seat), s.seatIndexLocked(target)
	s.Seats[i], s.Seats[j] = s.Seats[j], s.Seats[i]
	s.broadcast(Event{
		Type: EventSeatsSwapped,
		Seat: seat.Name,
		Payload: map[string]interface{}{
			"target": targetName,
		},
	})
}

func (s *Session) applyStartMatchLocked(seat *models.Seat) {
	s.arrangePlayOrderLocked()
	s.Started = true
	// A rematch keeps the rotated dealer; a first match draws one at random.
	if s.rematchDealer != nil && s.seatIndexLocked(s.rematchDealer) >= 0 {
		s.DealerIndex = s.seatIndexLocked(s.rematchDealer)
	} else {
		s.DealerIndex = s.rng.Intn(MaxPlayers)
	}
	s.rematchDealer = nil
	s.startRoundLocked()
}

// arrangePlayOrderLocked interleaves the two teams so partners sit across
// from each other: play order alternates teams.
func (s *Session) arrangePlayOrderLocked() {
	var a, b []*models.Seat
	for _, seat := range s.Seats {
		if seat.Team == 0 {
			a = append(a, seat)
		} else {
			b = append(b, seat)
		}
	}
	s.Seats = []*models.Seat{a[0], b[0], a[1], b[1]}
}

/* ---- round lifecycle ---- */

// startRoundLocked deals a fresh round and opens betting. The seat left of
// the dealer bets first; the dealer bets last.
func (s *Session) startRoundLocked() {
	s.Round++
	s.Phase = PhaseBetting
	s.Bets = nil
	s.LeadBet = nil
	s.Trump = models.ColorNone
	s.NoTrump = false
	s.CurrentTrick = nil
	s.LastTrick = nil
	s.CompletedTricks = 0
	s.TrickLocked = false
	s.actedThisBet = make(map[uuid.UUID]bool)
	s.actedThisTrick = make(map[uuid.UUID]bool)
	s.ReadySet = make(map[uuid.UUID]bool)

	deck := models.NewDeck()
	s.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	for i, seat := range s.Seats {
		seat.Hand = append([]models.Card(nil), deck[i*TricksPerRound:(i+1)*TricksPerRound]...)
		seat.TricksWon = 0
		seat.PointsWon = 0
	}

	s.broadcast(Event{
		Type: EventRoundStarted,
		Payload: map[string]interface{}{
			"round":  s.Round,
			"dealer": s.Seats[s.DealerIndex].Name,
		},
	})
	for _, seat := range s.Seats {
		if seat.Connected() {
			s.broadcastTo(seat.ConnID, Event{Type: EventPrivateHand, Hand: append([]models.Card(nil), seat.Hand...)})
		}
	}
	s.setTurnLocked((s.DealerIndex + 1) % MaxPlayers)
}

// restartBettingLocked redeals after every seat skipped. Same dealer, fresh
// hands. Unreachable through the gate under default rules (the dealer may
// not skip an open round) but kept for configurations that loosen that.
func (s *Session) restartBettingLocked() {
	s.broadcast(Event{Type: EventBettingRestarted, Payload: map[string]interface{}{
		"round": s.Round,
	}})
	s.Round-- // startRoundLocked re-increments
	s.startRoundLocked()
}

/* ---- betting ---- */

func (s *Session) applyPlaceBetLocked(seat *models.Seat, bet models.Bet, auto bool) {
	bet.ConnID = seat.ConnID
	s.Bets = append(s.Bets, bet)
	s.actedThisBet[seat.ConnID] = true

	view := betViewLocked(seat.Name, bet)
	s.broadcast(Event{Type: EventBetPlaced, Seat: seat.Name, Bet: &view})
	if auto {
		s.broadcast(Event{Type: EventAutoActionTaken, Seat: seat.Name, Payload: map[string]interface{}{
			"kind": models.ActionPlaceBet,
		}})
	}

	if len(s.Bets) < MaxPlayers {
		s.setTurnLocked((s.TurnIndex + 1) % MaxPlayers)
		return
	}
	if AllSkipped(s.Bets) {
		s.restartBettingLocked()
		return
	}
	s.resolveBettingLocked()
}

func (s *Session) resolveBettingLocked() {
	dealerConn := s.Seats[s.DealerIndex].ConnID
	lead, _ := LeadingBet(s.Bets, dealerConn)
	cp := lead
	s.LeadBet = &cp
	s.NoTrump = lead.WithoutTrump

	leadSeat := s.seatByConnLocked(lead.ConnID)
	view := betViewLocked(leadSeat.Name, lead)
	s.broadcast(Event{Type: EventBettingResolved, Seat: leadSeat.Name, Bet: &view})

	s.Phase = PhasePlaying
	s.setTurnLocked(s.seatIndexLocked(leadSeat))
}

func betViewLocked(name string, b models.Bet) BetView {
	return BetView{Seat: name, Amount: b.Amount, WithoutTrump: b.WithoutTrump, Skipped: b.Skipped}
}

/* ---- playing ---- */

func (s *Session) applyPlayCardLocked(seat *models.Seat, card models.Card, auto bool) {
	seat.RemoveCard(card)
	s.CurrentTrick = append(s.CurrentTrick, PlayedCard{ConnID: seat.ConnID, Seat: seat.Name, Card: card})
	s.actedThisTrick[seat.ConnID] = true

	// The bet winner's opening card fixes trump for the round.
	if !s.NoTrump && s.Trump == models.ColorNone {
		s.Trump = card.Color
		s.broadcast(Event{Type: EventTrumpEstablished, Payload: map[string]interface{}{
			"trump": s.Trump,
		}})
	}

	c := card
	s.broadcast(Event{Type: EventCardPlayed, Seat: seat.Name, Card: &c})
	if auto {
		s.broadcast(Event{Type: EventAutoActionTaken, Seat: seat.Name, Payload: map[string]interface{}{
			"kind": models.ActionPlayCard,
		}})
	}

	if len(s.CurrentTrick) < MaxPlayers {
		s.setTurnLocked((s.TurnIndex + 1) % MaxPlayers)
		return
	}
	s.resolveTrickLocked()
}

// resolveTrickLocked scores the completed trick, locks plays for the display
// window, and schedules the table clear. The winner leads the next trick.
func (s *Session) resolveTrickLocked() {
	winIdx, err := DetermineWinner(s.CurrentTrick, s.Trump)
	if err != nil {
		log.Printf("session %s: resolve trick: %v", s.ID, err)
		return
	}
	winner := s.seatByConnLocked(s.CurrentTrick[winIdx].ConnID)
	pts := TrickPoints(s.CurrentTrick, s.Cfg)
	winner.TricksWon++
	winner.PointsWon += pts

	s.CompletedTricks++
	s.LastTrick = s.CurrentTrick
	s.TrickLocked = true
	s.stopTurnTimersLocked()

	s.broadcast(Event{
		Type: EventTrickResolved,
		Seat: winner.Name,
		Payload: map[string]interface{}{
			"points":    pts,
			"trick":     s.LastTrick,
			"trickSize": s.CompletedTricks,
		},
	})

	s.trickSeq++
	seq := s.trickSeq
	winnerIdx := s.seatIndexLocked(winner)
	s.trickTimer = time.AfterFunc(s.Cfg.TrickDisplayDelay, func() {
		s.Mu.Lock()
		defer s.Mu.Unlock()
		if s.trickSeq != seq || s.Concluded {
			return
		}
		s.clearTrickLocked(winnerIdx)
	})
}

// clearTrickLocked ends the display window and either opens the next trick
// or closes out the round.
func (s *Session) clearTrickLocked(winnerIdx int) {
	s.CurrentTrick = nil
	s.TrickLocked = false
	s.actedThisTrick = make(map[uuid.UUID]bool)
	if s.CompletedTricks >= TricksPerRound {
		s.enterScoringLocked()
		return
	}
	s.setTurnLocked(winnerIdx)
}

/* ---- scoring ---- */

func (s *Session) enterScoringLocked() {
	leadSeat := s.seatByConnLocked(s.LeadBet.ConnID)
	offTeam := leadSeat.Team
	var offPts, defPts int
	for _, seat := range s.Seats {
		if seat.Team == offTeam {
			offPts += seat.PointsWon
		} else {
			defPts += seat.PointsWon
		}
	}
	offDelta, defDelta := RoundDelta(*s.LeadBet, offPts, defPts)
	s.Scores[offTeam] += offDelta
	s.Scores[1-offTeam] += defDelta

	res := RoundResult{
		Round:        s.Round,
		LeadBet:      betViewLocked(leadSeat.Name, *s.LeadBet),
		OffenseTeam:  offTeam,
		OffensePts:   offPts,
		DefensePts:   defPts,
		OffenseDelta: offDelta,
		DefenseDelta: defDelta,
		Scores:       s.Scores,
	}
	s.RoundHistory = append(s.RoundHistory, res)

	s.broadcast(Event{
		Type: EventRoundEnded,
		Payload: map[string]interface{}{
			"result": res,
		},
	})

	if s.Scores[0] >= s.Cfg.WinningScore || s.Scores[1] >= s.Cfg.WinningScore {
		s.concludeLocked(offTeam)
		return
	}

	s.Phase = PhaseScoring
	s.ReadySet = make(map[uuid.UUID]bool)
	s.TurnIndex = -1
	s.armScoringTimerLocked()

	// Bot seats never send signal_ready; count them in immediately.
	for _, seat := range s.Seats {
		if seat.IsBot {
			s.ReadySet[seat.ConnID] = true
		}
	}
	s.maybeAdvanceFromScoringLocked()
}

func (s *Session) applySignalReadyLocked(seat *models.Seat, auto bool) {
	s.ReadySet[seat.ConnID] = true
	s.broadcast(Event{Type: EventPlayerReady, Seat: seat.Name})
	if auto {
		s.broadcast(Event{Type: EventAutoActionTaken, Seat: seat.Name, Payload: map[string]interface{}{
			"kind": models.ActionSignalReady,
		}})
	}
	s.maybeAdvanceFromScoringLocked()
}

func (s *Session) maybeAdvanceFromScoringLocked() {
	if s.Phase != PhaseScoring {
		return
	}
	for _, seat := range s.Seats {
		if !s.ReadySet[seat.ConnID] {
			return
		}
	}
	s.stopTurnTimersLocked()
	s.DealerIndex = (s.DealerIndex + 1) % MaxPlayers
	s.startRoundLocked()
}

// concludeLocked ends the match. When both teams cross the winning score in
// the same round the higher total wins; an exact tie goes to the betting
// team.
func (s *Session) concludeLocked(offTeam int) {
	defTeam := 1 - offTeam
	winner := offTeam
	if s.Scores[offTeam] < s.Cfg.WinningScore ||
		(s.Scores[defTeam] >= s.Cfg.WinningScore && s.Scores[defTeam] > s.Scores[offTeam]) {
		winner = defTeam
	}
	s.Phase = PhaseGameOver
	s.Concluded = true
	s.WinningTeam = winner
	s.TurnIndex = -1
	s.stopTurnTimersLocked()
	s.RematchVotes = make(map[uuid.UUID]bool)

	s.broadcast(Event{
		Type: EventGameOver,
		Payload: map[string]interface{}{
			"winningTeam": winner,
			"scores":      s.Scores,
			"rounds":      len(s.RoundHistory),
		},
	})

	if s.Persist != nil {
		snap := s.snapshotLocked()
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Persist.RecordFinishedMatch(ctx, snap); err != nil {
				log.Printf("session %s: record finished match: %v", s.ID, err)
			}
		}()
	}
}

/* ---- rematch / leave ---- */

func (s *Session) applyVoteRematchLocked(seat *models.Seat) {
	s.RematchVotes[seat.ConnID] = true
	s.broadcast(Event{Type: EventRematchVote, Seat: seat.Name})

	for _, sl := range s.Seats {
		if sl.Empty || sl.IsBot {
			continue
		}
		if !s.RematchVotes[sl.ConnID] {
			return
		}
	}
	s.resetForRematchLocked()
}

// resetForRematchLocked returns the table to team selection. Seats and team
// picks survive and may be changed before the next start; the deal rotates
// one seat past the previous dealer.
func (s *Session) resetForRematchLocked() {
	s.rematchDealer = s.Seats[(s.DealerIndex+1)%MaxPlayers]
	s.Concluded = false
	s.WinningTeam = 0
	s.Started = false
	s.Phase = PhaseTeamSelection
	s.Round = 0
	s.TurnIndex = -1
	s.Scores = [2]int{}
	s.RoundHistory = nil
	s.Bets = nil
	s.LeadBet = nil
	s.Trump = models.ColorNone
	s.NoTrump = false
	s.CurrentTrick = nil
	s.LastTrick = nil
	s.CompletedTricks = 0
	s.TrickLocked = false
	s.RematchVotes = make(map[uuid.UUID]bool)
	s.ReadySet = make(map[uuid.UUID]bool)
	s.actedThisBet = make(map[uuid.UUID]bool)
	s.actedThisTrick = make(map[uuid.UUID]bool)
	for _, seat := range s.Seats {
		seat.Hand = nil
		seat.TricksWon = 0
		seat.PointsWon = 0
	}
	s.broadcast(Event{Type: EventRematchStarted})
}

func (s *Session) applyLeaveLocked(seat *models.Seat) {
	name := seat.Name
	if !s.Started {
		// Before the match starts a leave simply vacates the slot.
		*seat = models.Seat{Empty: true}
		s.broadcast(Event{Type: EventPlayerLeft, Seat: name})
		s.checkEmptyLocked()
		return
	}
	s.broadcast(Event{Type: EventPlayerLeft, Seat: name})
	s.convertToBotLocked(seat)
	s.checkEmptyLocked()
}

func (s *Session) checkEmptyLocked() {
	if s.connectedHumansLocked() == 0 && s.OnEmpty != nil {
		s.OnEmpty()
	}
}
