// internal/game/sync_state.go
package game

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mbeaudry/quarte/internal/models"
)

// SeatView is the public projection of a seat. Hands are never included;
// only the count leaks.
type SeatView struct {
	Name      string            `json:"name"`
	Team      int               `json:"team"`
	Status    models.SeatStatus `json:"status"`
	IsBot     bool              `json:"isBot"`
	Empty     bool              `json:"empty"`
	TricksWon int               `json:"tricksWon"`
	PointsWon int               `json:"pointsWon"`
	HandCount int               `json:"handCount"`
	Ready     bool              `json:"ready"`
}

// ViewState is the redacted state pushed to one viewer. Spectators get the
// same shape with YourSeat empty and no hand. Everything in it is keyed by
// stable name.
type ViewState struct {
	SessionID uuid.UUID `json:"sessionId"`
	Phase     Phase     `json:"phase"`
	Round     int       `json:"round"`

	YourSeat string `json:"yourSeat,omitempty"`

	Seats  []SeatView `json:"seats"`
	Dealer string     `json:"dealer,omitempty"`
	Turn   string     `json:"turn,omitempty"`

	Bets    []BetView `json:"bets,omitempty"`
	LeadBet *BetView  `json:"leadBet,omitempty"`

	Trump   models.Color `json:"trump,omitempty"`
	NoTrump bool         `json:"noTrump"`

	CurrentTrick    []PlayedCard `json:"currentTrick,omitempty"`
	LastTrick       []PlayedCard `json:"lastTrick,omitempty"`
	TrickLocked     bool         `json:"trickLocked"`
	CompletedTricks int          `json:"completedTricks"`

	Scores       [2]int        `json:"scores"`
	RoundHistory []RoundResult `json:"roundHistory,omitempty"`
	WinningTeam  int           `json:"winningTeam"`
	Concluded    bool          `json:"concluded"`
}

// ViewStateFor builds the redacted state for one viewer. An unknown viewer
// id (spectator) yields the public projection.
func (s *Session) ViewStateFor(viewer uuid.UUID) *ViewState {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.viewStateLocked(viewer)
}

// viewStateLocked assumes the lock is held.
func (s *Session) viewStateLocked(viewer uuid.UUID) *ViewState {
	vs := &ViewState{
		SessionID:       s.ID,
		Phase:           s.Phase,
		Round:           s.Round,
		Trump:           s.Trump,
		NoTrump:         s.NoTrump,
		TrickLocked:     s.TrickLocked,
		CompletedTricks: s.CompletedTricks,
		Scores:          s.Scores,
		RoundHistory:    s.RoundHistory,
		WinningTeam:     s.WinningTeam,
		Concluded:       s.Concluded,
	}
	for _, seat := range s.Seats {
		vs.Seats = append(vs.Seats, SeatView{
			Name:      seat.Name,
			Team:      seat.Team,
			Status:    seat.Status,
			IsBot:     seat.IsBot,
			Empty:     seat.Empty,
			TricksWon: seat.TricksWon,
			PointsWon: seat.PointsWon,
			HandCount: len(seat.Hand),
			Ready:     s.ReadySet[seat.ConnID],
		})
		if !seat.Empty && seat.ConnID == viewer {
			vs.YourSeat = seat.Name
		}
	}
	if s.Started && s.DealerIndex >= 0 && s.DealerIndex < len(s.Seats) {
		vs.Dealer = s.Seats[s.DealerIndex].Name
	}
	if s.TurnIndex >= 0 && s.TurnIndex < len(s.Seats) {
		vs.Turn = s.Seats[s.TurnIndex].Name
	}
	for _, b := range s.Bets {
		if bs := s.seatByConnLocked(b.ConnID); bs != nil {
			vs.Bets = append(vs.Bets, betViewLocked(bs.Name, b))
		}
	}
	if s.LeadBet != nil {
		if ls := s.seatByConnLocked(s.LeadBet.ConnID); ls != nil {
			v := betViewLocked(ls.Name, *s.LeadBet)
			vs.LeadBet = &v
		}
	}
	vs.CurrentTrick = append([]PlayedCard(nil), s.CurrentTrick...)
	vs.LastTrick = append([]PlayedCard(nil), s.LastTrick...)
	return vs
}

// SeatSnapshot is one seat's full state for persistence, hand included.
type SeatSnapshot struct {
	Name      string            `json:"name"`
	Team      int               `json:"team"`
	Hand      []models.Card     `json:"hand"`
	TricksWon int               `json:"tricksWon"`
	PointsWon int               `json:"pointsWon"`
	Status    models.SeatStatus `json:"status"`
	IsBot     bool              `json:"isBot"`
	Empty     bool              `json:"empty"`
}

// Snapshot is the full-fidelity persisted state, keyed by stable names so it
// survives reconnects and process restarts.
type Snapshot struct {
	SessionID   uuid.UUID `json:"sessionId"`
	Phase       Phase     `json:"phase"`
	Round       int       `json:"round"`
	DealerIndex int       `json:"dealerIndex"`
	TurnIndex   int       `json:"turnIndex"`

	Seats []SeatSnapshot `json:"seats"`

	Bets    []BetView `json:"bets,omitempty"`
	LeadBet *BetView  `json:"leadBet,omitempty"`

	Trump   models.Color `json:"trump,omitempty"`
	NoTrump bool         `json:"noTrump"`

	CurrentTrick    []PlayedCard `json:"currentTrick,omitempty"`
	CompletedTricks int          `json:"completedTricks"`

	Scores       [2]int        `json:"scores"`
	RoundHistory []RoundResult `json:"roundHistory,omitempty"`
	WinningTeam  int           `json:"winningTeam"`
	Concluded    bool          `json:"concluded"`

	SavedAt time.Time `json:"savedAt"`
}

// SnapshotNow builds a point-in-time snapshot under the lock.
func (s *Session) SnapshotNow() *Snapshot {
	s.Mu.Lock()
	defer s.Mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		SessionID:       s.ID,
		Phase:           s.Phase,
		Round:           s.Round,
		DealerIndex:     s.DealerIndex,
		TurnIndex:       s.TurnIndex,
		Trump:           s.Trump,
		NoTrump:         s.NoTrump,
		CompletedTricks: s.CompletedTricks,
		Scores:          s.Scores,
		RoundHistory:    s.RoundHistory,
		WinningTeam:     s.WinningTeam,
		Concluded:       s.Concluded,
		SavedAt:         time.Now(),
	}
	for _, seat := range s.Seats {
		snap.Seats = append(snap.Seats, SeatSnapshot{
			Name:      seat.Name,
			Team:      seat.Team,
			Hand:      append([]models.Card(nil), seat.Hand...),
			TricksWon: seat.TricksWon,
			PointsWon: seat.PointsWon,
			Status:    seat.Status,
			IsBot:     seat.IsBot,
			Empty:     seat.Empty,
		})
	}
	for _, b := range s.Bets {
		if bs := s.seatByConnLocked(b.ConnID); bs != nil {
			snap.Bets = append(snap.Bets, betViewLocked(bs.Name, b))
		}
	}
	if s.LeadBet != nil {
		if ls := s.seatByConnLocked(s.LeadBet.ConnID); ls != nil {
			v := betViewLocked(ls.Name, *s.LeadBet)
			snap.LeadBet = &v
		}
	}
	snap.CurrentTrick = append([]PlayedCard(nil), s.CurrentTrick...)
	return snap
}

// markDirtyLocked schedules a debounced snapshot save. A burst of actions
// within the debounce window produces one write.
func (s *Session) markDirtyLocked() {
	if s.Persist == nil || s.Cfg.SnapshotDebounce <= 0 {
		return
	}
	if s.snapshotTimer != nil {
		return // save already pending
	}
	s.snapshotTimer = time.AfterFunc(s.Cfg.SnapshotDebounce, func() {
		s.Mu.Lock()
		s.snapshotTimer = nil
		snap := s.snapshotLocked()
		persist := s.Persist
		s.Mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := persist.SaveSnapshot(ctx, snap); err != nil {
			log.Printf("session %s: save snapshot: %v", snap.SessionID, err)
		}
	})
}
