package model

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Suit of a playing card.
type Suit string

// Card suits.
const (
	Hearts   Suit = "hearts"
	Diamonds Suit = "diamonds"
	Clubs    Suit = "clubs"
	Spades   Suit = "spades"
)

// Card is a playing card. Rank runs 1 (ace) to 13 (king).
type Card struct {
	Rank int  `json:"rank"`
	Suit Suit `json:"suit"`
}

func (c Card) String() string {
	names := map[int]string{1: "A", 11: "J", 12: "Q", 13: "K"}
	r, ok := names[c.Rank]
	if !ok {
		r = fmt.Sprint(c.Rank)
	}
	symbols := map[Suit]string{Hearts: "♥", Diamonds: "♦", Clubs: "♣", Spades: "♠"}
	return r + symbols[c.Suit]
}

// Result is the outcome of a finished session. The set of variants is closed.
type Result interface {
	Game() GameType
	result()
}

// RouletteResult is a wheel spin.
type RouletteResult struct {
	Number int    `json:"number"`
	Color  string `json:"color"`
}

// BaccaratResult is a dealt baccarat coup.
type BaccaratResult struct {
	PlayerCards []Card `json:"playerCards"`
	BankerCards []Card `json:"bankerCards"`
	PlayerValue int    `json:"playerValue"`
	BankerValue int    `json:"bankerValue"`
	Winner      string `json:"winner"`
}

// SlotsResult is a 3x3 reel grid in row-major order.
type SlotsResult struct {
	Grid         [9]string `json:"grid"`
	WinningLines []int     `json:"winningLines"`
	Multiplier   int64     `json:"multiplier"`
}

// QuickResult is a coin flip or high/low draw.
type QuickResult struct {
	GameType GameType `json:"gameType"`
	Outcome  string   `json:"outcome"`
	Number   int      `json:"number,omitempty"`
}

// PokerResult is the showdown of a poker hand.
type PokerResult struct {
	Winners        []int64 `json:"winners"`
	Hand           string  `json:"hand"`
	Pot            int64   `json:"pot"`
	CommunityCards []Card  `json:"communityCards"`
}

func (RouletteResult) Game() GameType { return GameRoulette }
func (BaccaratResult) Game() GameType { return GameBaccarat }
func (SlotsResult) Game() GameType    { return GameSlots }
func (r QuickResult) Game() GameType  { return r.GameType }
func (PokerResult) Game() GameType    { return GamePoker }

func (RouletteResult) result() {}
func (BaccaratResult) result() {}
func (SlotsResult) result()    {}
func (QuickResult) result()    {}
func (PokerResult) result()    {}

// State is the in-progress state of a stateful game. The set of variants is closed.
type State interface {
	Game() GameType
	state()
}

// PokerPhase is a betting street.
type PokerPhase string

// Poker streets.
const (
	PhasePreflop  PokerPhase = "preflop"
	PhaseFlop     PokerPhase = "flop"
	PhaseTurn     PokerPhase = "turn"
	PhaseRiver    PokerPhase = "river"
	PhaseShowdown PokerPhase = "showdown"
)

// PlayerStatus is a poker seat's state within the current hand.
type PlayerStatus string

// Poker seat statuses.
const (
	PlayerWaiting PlayerStatus = "waiting"
	PlayerFolded  PlayerStatus = "folded"
	PlayerCalled  PlayerStatus = "called"
	PlayerRaised  PlayerStatus = "raised"
	PlayerAllIn   PlayerStatus = "all-in"
)

// PokerPlayer is a seat at a poker table.
type PokerPlayer struct {
	UserID     int64        `json:"userId"`
	Chips      int64        `json:"chips"`
	Cards      []Card       `json:"cards"`
	CurrentBet int64        `json:"currentBet"`
	TotalBet   int64        `json:"totalBet"`
	Status     PlayerStatus `json:"status"`
	Position   int          `json:"position"`
	Acted      bool         `json:"acted"`
}

// PokerState is the table state of a hold'em hand.
type PokerState struct {
	Players        []PokerPlayer `json:"players"`
	Deck           []Card        `json:"deck"`
	CommunityCards []Card        `json:"communityCards"`
	Pot            int64         `json:"pot"`
	CurrentBet     int64         `json:"currentBet"`
	MinRaise       int64         `json:"minRaise"`
	DealerPosition int           `json:"dealerPosition"`
	CurrentPlayer  int           `json:"currentPlayer"`
	Phase          PokerPhase    `json:"phase"`
}

func (*PokerState) Game() GameType { return GamePoker }
func (*PokerState) state()         {}

// Clone returns a deep copy of the state.
func (p *PokerState) Clone() *PokerState {
	c := *p
	c.Players = make([]PokerPlayer, len(p.Players))
	for i, pl := range p.Players {
		pl.Cards = slices.Clone(pl.Cards)
		c.Players[i] = pl
	}
	c.Deck = slices.Clone(p.Deck)
	c.CommunityCards = slices.Clone(p.CommunityCards)
	return &c
}

// Player returns the seat held by userID.
func (p *PokerState) Player(userID int64) (*PokerPlayer, bool) {
	for i := range p.Players {
		if p.Players[i].UserID == userID {
			return &p.Players[i], true
		}
	}
	return nil, false
}

type envelope struct {
	Game GameType        `json:"game"`
	Data json.RawMessage `json:"data"`
}

// MarshalResult encodes r with its variant tag. A nil result encodes as null.
func MarshalResult(r Result) ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return json.Marshal(envelope{Game: r.Game(), Data: data})
}

// UnmarshalResult decodes a tagged result produced by MarshalResult.
func UnmarshalResult(b []byte) (Result, error) {
	env, ok, err := decodeEnvelope(b)
	if err != nil || !ok {
		return nil, err
	}
	switch env.Game {
	case GameRoulette:
		return decodeAs[RouletteResult](env.Data)
	case GameBaccarat:
		return decodeAs[BaccaratResult](env.Data)
	case GameSlots:
		return decodeAs[SlotsResult](env.Data)
	case GameCoinFlip, GameHighLow:
		return decodeAs[QuickResult](env.Data)
	case GamePoker:
		return decodeAs[PokerResult](env.Data)
	default:
		return nil, fmt.Errorf("unknown result variant %q", env.Game)
	}
}

// MarshalState encodes s with its variant tag. A nil state encodes as null.
func MarshalState(s State) ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return json.Marshal(envelope{Game: s.Game(), Data: data})
}

// UnmarshalState decodes a tagged state produced by MarshalState.
func UnmarshalState(b []byte) (State, error) {
	env, ok, err := decodeEnvelope(b)
	if err != nil || !ok {
		return nil, err
	}
	switch env.Game {
	case GamePoker:
		var ps PokerState
		if err := json.Unmarshal(env.Data, &ps); err != nil {
			return nil, fmt.Errorf("failed to decode poker state: %w", err)
		}
		return &ps, nil
	default:
		return nil, fmt.Errorf("unknown state variant %q", env.Game)
	}
}

func decodeEnvelope(b []byte) (envelope, bool, error) {
	var env envelope
	if len(b) == 0 || string(b) == "null" {
		return env, false, nil
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return env, false, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, true, nil
}

func decodeAs[T Result](data json.RawMessage) (Result, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return v, nil
}
