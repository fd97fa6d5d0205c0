// Package model defines the data models for the casino core.
package model

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GameType identifies a game variant.
type GameType string

// Supported game variants.
const (
	GameRoulette GameType = "roulette"
	GameBaccarat GameType = "baccarat"
	GameSlots    GameType = "slots"
	GamePoker    GameType = "poker"
	GameCoinFlip GameType = "coinflip"
	GameHighLow  GameType = "highlow"
)

// Valid reports whether g is a known game type.
func (g GameType) Valid() bool {
	switch g {
	case GameRoulette, GameBaccarat, GameSlots, GamePoker, GameCoinFlip, GameHighLow:
		return true
	}
	return false
}

// RoundBased reports whether wagers on g accumulate in a shared round
// that is resolved later, as opposed to being resolved on placement.
func (g GameType) RoundBased() bool {
	return g == GameRoulette
}

// SessionStatus is the lifecycle state of a game session.
type SessionStatus string

// Session statuses.
const (
	StatusWaiting  SessionStatus = "waiting"
	StatusBetting  SessionStatus = "betting"
	StatusPlaying  SessionStatus = "playing"
	StatusFinished SessionStatus = "finished"
)

var sessionTransitions = map[SessionStatus][]SessionStatus{
	StatusWaiting: {StatusBetting},
	StatusBetting: {StatusPlaying, StatusFinished},
	StatusPlaying: {StatusFinished},
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to SessionStatus) bool {
	return slices.Contains(sessionTransitions[from], to)
}

// TxType categorizes ledger entries.
type TxType string

// Transaction types.
const (
	TxInitial      TxType = "initial"        // Starting balance on wallet creation
	TxDeposit      TxType = "deposit"        // Balance moved into the vault
	TxWithdrawal   TxType = "withdrawal"     // Vault moved back to balance, or admin debit
	TxBet          TxType = "bet"            // Wager debit or poker buy-in
	TxWin          TxType = "win"            // Wager payout or poker cash-out
	TxBonus        TxType = "bonus"          // Daily bonus, admin credit or refund
	TxInterest     TxType = "interest"       // Vault interest
	TxFriendBet    TxType = "friend_bet"     // Side-bet stake
	TxFriendBetWin TxType = "friend_bet_win" // Side-bet payout
)

// Wallet holds a user's spendable balance and vault.
type Wallet struct {
	UserID            int64           `json:"userId"`
	Balance           int64           `json:"balance"`
	Vault             int64           `json:"vault"`
	VaultInterestRate decimal.Decimal `json:"vaultInterestRate"`
	LastInterestClaim *time.Time      `json:"lastInterestClaim,omitempty"`
	LastDailyBonus    *time.Time      `json:"lastDailyBonus,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Transaction is an immutable ledger entry. Amount is the signed change
// applied to the wallet balance.
type Transaction struct {
	ID            uuid.UUID  `json:"id"`
	UserID        int64      `json:"userId"`
	Type          TxType     `json:"type"`
	Amount        int64      `json:"amount"`
	Description   string     `json:"description"`
	SessionID     *uuid.UUID `json:"sessionId,omitempty"`
	RelatedUserID *int64     `json:"relatedUserId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Profile is the public identity attached to a wallet.
type Profile struct {
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// GameTable is a configured place to play one game type.
type GameTable struct {
	ID             string     `json:"id"`
	GameType       GameType   `json:"gameType"`
	Name           string     `json:"name"`
	MaxPlayers     int        `json:"maxPlayers"`
	MinBet         int64      `json:"minBet"`
	MaxBet         int64      `json:"maxBet"`
	IsActive       bool       `json:"isActive"`
	RoundStartTime *time.Time `json:"roundStartTime,omitempty"`
	RoundEndTime   *time.Time `json:"roundEndTime,omitempty"`
}

// Bet is a wager recorded on a session.
type Bet struct {
	UserID  int64  `json:"userId"`
	Amount  int64  `json:"amount"`
	BetType string `json:"betType"`
	Value   string `json:"value,omitempty"`
}

// Key identifies the additive slot of a bet: bets with the same key are merged.
func (b Bet) Key() string {
	return fmt.Sprintf("%d:%s:%s", b.UserID, b.BetType, b.Value)
}

// GameSession is one round of play at a table.
type GameSession struct {
	ID            uuid.UUID     `json:"id"`
	TableID       string        `json:"tableId"`
	GameType      GameType      `json:"gameType"`
	Players       []int64       `json:"players"`
	Spectators    []int64       `json:"spectators"`
	Bets          []Bet         `json:"bets"`
	Result        Result        `json:"-"`
	Status        SessionStatus `json:"status"`
	RoundNumber   int           `json:"roundNumber"`
	Seed          string        `json:"seed"`
	State         State         `json:"-"`
	BettingEndsAt *time.Time    `json:"bettingEndsAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// RoundID returns the round identifier side-bets refer to.
func (s *GameSession) RoundID() string {
	return fmt.Sprintf("round_%d", s.RoundNumber)
}

// HasPlayer reports whether userID occupies a seat.
func (s *GameSession) HasPlayer(userID int64) bool {
	return slices.Contains(s.Players, userID)
}

// HasParticipant reports whether userID is seated or watching.
func (s *GameSession) HasParticipant(userID int64) bool {
	return s.HasPlayer(userID) || slices.Contains(s.Spectators, userID)
}

// BettingOpen reports whether wagers can still be accepted at now.
func (s *GameSession) BettingOpen(now time.Time) bool {
	if s.Status != StatusBetting {
		return false
	}
	return s.BettingEndsAt == nil || now.Before(*s.BettingEndsAt)
}

// AddBet merges b into the session's bets, summing amounts with the same key.
func (s *GameSession) AddBet(b Bet) {
	for i := range s.Bets {
		if s.Bets[i].Key() == b.Key() {
			s.Bets[i].Amount += b.Amount
			return
		}
	}
	s.Bets = append(s.Bets, b)
}

// Clone returns a deep copy of the session.
func (s *GameSession) Clone() *GameSession {
	c := *s
	c.Players = slices.Clone(s.Players)
	c.Spectators = slices.Clone(s.Spectators)
	c.Bets = slices.Clone(s.Bets)
	if s.BettingEndsAt != nil {
		t := *s.BettingEndsAt
		c.BettingEndsAt = &t
	}
	if ps, ok := s.State.(*PokerState); ok && ps != nil {
		c.State = ps.Clone()
	}
	return &c
}

// FriendBetType is the direction a side-bet predicts.
type FriendBetType string

// Side-bet directions.
const (
	FriendBetGains  FriendBetType = "gains"
	FriendBetLosses FriendBetType = "losses"
)

// FriendBetStatus is the lifecycle state of a side-bet.
type FriendBetStatus string

// Side-bet statuses.
const (
	FriendBetActive    FriendBetStatus = "active"
	FriendBetWon       FriendBetStatus = "won"
	FriendBetLost      FriendBetStatus = "lost"
	FriendBetCancelled FriendBetStatus = "cancelled"
)

// FriendBet is a wager on whether a friend's balance rises or falls during a round.
type FriendBet struct {
	ID                 uuid.UUID       `json:"id"`
	BettorID           int64           `json:"bettorId"`
	TargetID           int64           `json:"targetId"`
	SessionID          uuid.UUID       `json:"sessionId"`
	TableID            string          `json:"tableId"`
	RoundID            string          `json:"roundId"`
	BetType            FriendBetType   `json:"betType"`
	Stake              int64           `json:"stake"`
	Multiplier         decimal.Decimal `json:"multiplier"`
	Status             FriendBetStatus `json:"status"`
	TargetStartBalance int64           `json:"targetStartBalance"`
	TargetEndBalance   *int64          `json:"targetEndBalance,omitempty"`
	Payout             *int64          `json:"payout,omitempty"`
	ResolvedAt         *time.Time      `json:"resolvedAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// FriendBetSettings are the global side-bet parameters.
type FriendBetSettings struct {
	Enabled              bool            `json:"enabled"`
	MinStake             int64           `json:"minStake"`
	MaxStake             int64           `json:"maxStake"`
	GainsMultiplier      decimal.Decimal `json:"gainsMultiplier"`
	LossesMultiplier     decimal.Decimal `json:"lossesMultiplier"`
	CooldownMinutes      int             `json:"cooldownMinutes"`
	MaxActiveBetsPerUser int             `json:"maxActiveBetsPerUser"`
	UpdatedBy            *int64          `json:"updatedBy,omitempty"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}

// DefaultFriendBetSettings returns the settings in force when none were saved.
func DefaultFriendBetSettings() FriendBetSettings {
	return FriendBetSettings{
		Enabled:              true,
		MinStake:             10,
		MaxStake:             1000,
		GainsMultiplier:      decimal.RequireFromString("1.8"),
		LossesMultiplier:     decimal.RequireFromString("1.5"),
		CooldownMinutes:      5,
		MaxActiveBetsPerUser: 3,
	}
}

// Multiplier returns the payout multiplier for a side-bet direction.
func (s FriendBetSettings) Multiplier(t FriendBetType) decimal.Decimal {
	if t == FriendBetLosses {
		return s.LossesMultiplier
	}
	return s.GainsMultiplier
}

// FriendBetStats aggregates a user's side-bet history.
type FriendBetStats struct {
	TotalBets   int     `json:"totalBets"`
	Won         int     `json:"won"`
	Lost        int     `json:"lost"`
	Active      int     `json:"active"`
	Cancelled   int     `json:"cancelled"`
	TotalStaked int64   `json:"totalStaked"`
	TotalPayout int64   `json:"totalPayout"`
	WinRate     float64 `json:"winRate"`
	NetProfit   int64   `json:"netProfit"`
}

// FriendshipStatus is the state of a friend request.
type FriendshipStatus string

// Friendship statuses.
const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship links two users.
type Friendship struct {
	RequesterID int64            `json:"requesterId"`
	AddresseeID int64            `json:"addresseeId"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
}

// AdminLog records a privileged mutation.
type AdminLog struct {
	ID           uuid.UUID `json:"id"`
	AdminID      int64     `json:"adminId"`
	Action       string    `json:"action"`
	TargetUserID *int64    `json:"targetUserId,omitempty"`
	Details      string    `json:"details"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ScheduledRound is a pending request to open the next round at a table.
type ScheduledRound struct {
	TableID string    `json:"tableId"`
	DueAt   time.Time `json:"dueAt"`
}

// GameMulti marks a tournament scored across several games.
const GameMulti GameType = "multi"

// TournamentStatus is the stored lifecycle state of a tournament.
type TournamentStatus string

// Tournament states.
const (
	TournamentUpcoming TournamentStatus = "upcoming"
	TournamentActive   TournamentStatus = "active"
	TournamentFinished TournamentStatus = "finished"
)

// LeaderboardEntry is one participant's cumulative tournament score.
type LeaderboardEntry struct {
	UserID   int64 `json:"userId"`
	Score    int64 `json:"score"`
	Position int   `json:"position"`
}

// Tournament is a timed competition. Entry fees go into the prize pool,
// which is paid out when the tournament finishes.
type Tournament struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	GameType        GameType           `json:"gameType"`
	Games           []GameType         `json:"games,omitempty"`
	EntryFee        int64              `json:"entryFee"`
	PrizePool       int64              `json:"prizePool"`
	MaxParticipants int                `json:"maxParticipants"`
	StartTime       time.Time          `json:"startTime"`
	EndTime         time.Time          `json:"endTime"`
	Status          TournamentStatus   `json:"status"`
	Participants    []int64            `json:"participants"`
	Leaderboard     []LeaderboardEntry `json:"leaderboard"`
	CreatedBy       int64              `json:"createdBy"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// Phase returns the state at now. Only a paid-out tournament is stored as
// finished; until then the clock decides.
func (t *Tournament) Phase(now time.Time) TournamentStatus {
	switch {
	case t.Status == TournamentFinished:
		return TournamentFinished
	case now.Before(t.StartTime):
		return TournamentUpcoming
	case now.Before(t.EndTime):
		return TournamentActive
	default:
		return TournamentFinished
	}
}

// Clone returns a deep copy.
func (t *Tournament) Clone() *Tournament {
	c := *t
	c.Games = slices.Clone(t.Games)
	c.Participants = slices.Clone(t.Participants)
	c.Leaderboard = slices.Clone(t.Leaderboard)
	return &c
}

// HasParticipant reports whether userID has joined.
func (t *Tournament) HasParticipant(userID int64) bool {
	return slices.Contains(t.Participants, userID)
}

// Counts reports whether rounds of g score in this tournament. A multi-game
// tournament without a game list counts every game.
func (t *Tournament) Counts(g GameType) bool {
	if t.GameType != GameMulti {
		return t.GameType == g
	}
	return len(t.Games) == 0 || slices.Contains(t.Games, g)
}

// AddScore adds score to userID's total and renumbers the leaderboard by
// descending score. Equal scores keep their earlier order.
func (t *Tournament) AddScore(userID, score int64) {
	i := slices.IndexFunc(t.Leaderboard, func(e LeaderboardEntry) bool { return e.UserID == userID })
	if i < 0 {
		t.Leaderboard = append(t.Leaderboard, LeaderboardEntry{UserID: userID, Score: score})
	} else {
		t.Leaderboard[i].Score += score
	}
	slices.SortStableFunc(t.Leaderboard, func(a, b LeaderboardEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
	for i := range t.Leaderboard {
		t.Leaderboard[i].Position = i + 1
	}
}

// WheelSpin is a user's daily wheel spin. Day is the UTC calendar day.
type WheelSpin struct {
	UserID    int64     `json:"userId"`
	Day       time.Time `json:"day"`
	Seed      string    `json:"seed"`
	Segment   int       `json:"segment"`
	Prize     int64     `json:"prize"`
	CreatedAt time.Time `json:"createdAt"`
}

// SpinDay returns the UTC calendar day containing t.
func SpinDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Caller is the authenticated identity behind an operation.
type Caller struct {
	UserID int64
	Admin  bool
}
