package poker

import (
	"errors"
	"fmt"
	"sort"

	"social-casino/internal/game/cards"
	"social-casino/internal/model"
)

// Action is a player decision.
type Action string

// Player actions. A raise with no bet outstanding is an opening bet.
const (
	ActionFold  Action = "fold"
	ActionCheck Action = "check"
	ActionCall  Action = "call"
	ActionRaise Action = "raise"
	ActionAllIn Action = "allin"
)

// Errors for table play.
var (
	ErrNotEnoughPlayers  = errors.New("at least two players with chips are required")
	ErrNotSeated         = errors.New("player is not seated at this table")
	ErrNotYourTurn       = errors.New("it is not your turn")
	ErrHandOver          = errors.New("hand is already over")
	ErrCannotCheck       = errors.New("cannot check facing a bet")
	ErrInsufficientChips = errors.New("insufficient chips")
	ErrRaiseTooSmall     = errors.New("raise is below the minimum")
	ErrUnknownAction     = errors.New("unknown action")
)

// NewState seats players in join order with their buy-ins.
func NewState(stacks map[int64]int64, order []int64, minRaise int64) *model.PokerState {
	st := &model.PokerState{MinRaise: minRaise, Phase: model.PhasePreflop}
	for i, id := range order {
		st.Players = append(st.Players, model.PokerPlayer{
			UserID:   id,
			Chips:    stacks[id],
			Status:   model.PlayerWaiting,
			Position: i,
		})
	}
	return st
}

// Seat adds a player with chips to a hand that has not been dealt.
func Seat(st *model.PokerState, userID, chips int64) {
	if p, ok := st.Player(userID); ok {
		p.Chips += chips
		return
	}
	st.Players = append(st.Players, model.PokerPlayer{
		UserID:   userID,
		Chips:    chips,
		Status:   model.PlayerWaiting,
		Position: len(st.Players),
	})
}

// Deal starts a hand: two hole cards each from the deck shuffled by seed,
// action to the first player after the dealer.
func Deal(st *model.PokerState, seed string) error {
	funded := 0
	for _, p := range st.Players {
		if p.Chips > 0 {
			funded++
		}
	}
	if funded < 2 {
		return ErrNotEnoughPlayers
	}

	deck := cards.Shuffled(seed)
	st.CommunityCards = nil
	st.Pot = 0
	st.CurrentBet = 0
	st.Phase = model.PhasePreflop
	for i := range st.Players {
		p := &st.Players[i]
		p.CurrentBet, p.TotalBet, p.Acted = 0, 0, false
		p.Cards = nil
		if p.Chips == 0 {
			p.Status = model.PlayerFolded
			continue
		}
		p.Status = model.PlayerWaiting
		var hole []model.Card
		var err error
		if hole, deck, err = cards.Draw(deck, 2); err != nil {
			return err
		}
		p.Cards = hole
	}
	st.Deck = deck
	st.CurrentPlayer = nextToAct(st, st.DealerPosition)
	return nil
}

// Act applies a player's action and advances the hand.
func Act(st *model.PokerState, userID int64, action Action, amount int64) error {
	if st.Phase == model.PhaseShowdown {
		return ErrHandOver
	}
	p, ok := st.Player(userID)
	if !ok {
		return ErrNotSeated
	}
	if st.Players[st.CurrentPlayer].UserID != userID {
		return ErrNotYourTurn
	}

	switch action {
	case ActionFold:
		p.Status = model.PlayerFolded
	case ActionCheck:
		if p.CurrentBet != st.CurrentBet {
			return ErrCannotCheck
		}
		p.Status = model.PlayerCalled
	case ActionCall:
		owed := st.CurrentBet - p.CurrentBet
		if p.Chips < owed {
			return fmt.Errorf("%w: call needs %d", ErrInsufficientChips, owed)
		}
		commit(st, p, owed)
		p.Status = model.PlayerCalled
	case ActionRaise:
		if amount < st.MinRaise {
			return fmt.Errorf("%w: minimum %d", ErrRaiseTooSmall, st.MinRaise)
		}
		total := st.CurrentBet + amount
		delta := total - p.CurrentBet
		if p.Chips < delta {
			return fmt.Errorf("%w: raise needs %d", ErrInsufficientChips, delta)
		}
		commit(st, p, delta)
		st.CurrentBet = total
		p.Status = model.PlayerRaised
		reopen(st, userID)
	case ActionAllIn:
		if p.Chips == 0 {
			return ErrInsufficientChips
		}
		commit(st, p, p.Chips)
		if p.CurrentBet > st.CurrentBet {
			st.CurrentBet = p.CurrentBet
			reopen(st, userID)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if p.Chips == 0 && p.Status != model.PlayerFolded {
		p.Status = model.PlayerAllIn
	}
	p.Acted = true

	advance(st)
	return nil
}

// Finished reports whether the hand has reached showdown.
func Finished(st *model.PokerState) bool {
	return st.Phase == model.PhaseShowdown
}

// Showdown awards the pot, building side pots from contribution levels.
// Tied winners split a pot; the odd chip goes to the lowest seat.
// Awards are added to the winners' stacks and the pot is emptied.
func Showdown(st *model.PokerState) model.PokerResult {
	live := livePlayers(st)
	result := model.PokerResult{Pot: st.Pot, CommunityCards: st.CommunityCards}

	hands := make(map[int64]Hand, len(live))
	for _, p := range live {
		hands[p.UserID] = Evaluate(append(append([]model.Card{}, p.Cards...), st.CommunityCards...))
	}

	awarded := make(map[int64]bool)
	var best Hand
	haveBest := false
	prev := int64(0)
	for _, level := range contributionLevels(st) {
		var slice int64
		for _, p := range st.Players {
			slice += min(p.TotalBet, level) - min(p.TotalBet, prev)
		}
		prev = level
		if slice == 0 {
			continue
		}

		eligible := make([]*model.PokerPlayer, 0, len(live))
		for _, p := range live {
			if p.TotalBet >= level {
				eligible = append(eligible, p)
			}
		}
		if len(eligible) == 0 {
			eligible = live
		}

		winners := bestOf(eligible, hands)
		share, odd := slice/int64(len(winners)), slice%int64(len(winners))
		for i, w := range winners {
			w.Chips += share
			if int64(i) < odd {
				w.Chips++
			}
			awarded[w.UserID] = true
			if h := hands[w.UserID]; !haveBest || h.Compare(best) > 0 {
				best, haveBest = h, true
			}
		}
	}

	if len(awarded) == 0 {
		// Checked down with nothing in the pot.
		for _, w := range bestOf(live, hands) {
			awarded[w.UserID] = true
			best, haveBest = hands[w.UserID], true
		}
	}

	for _, p := range st.Players {
		if awarded[p.UserID] {
			result.Winners = append(result.Winners, p.UserID)
		}
	}
	switch {
	case len(live) == 1:
		result.Hand = "uncontested"
	case haveBest:
		result.Hand = best.Category.String()
	}
	st.Pot = 0
	st.Phase = model.PhaseShowdown
	return result
}

func commit(st *model.PokerState, p *model.PokerPlayer, chips int64) {
	p.Chips -= chips
	p.CurrentBet += chips
	p.TotalBet += chips
	st.Pot += chips
}

// reopen gives every other player still able to bet another turn.
func reopen(st *model.PokerState, raiser int64) {
	for i := range st.Players {
		p := &st.Players[i]
		if p.UserID != raiser && canAct(p) {
			p.Acted = false
		}
	}
}

func canAct(p *model.PokerPlayer) bool {
	return p.Status != model.PlayerFolded && p.Status != model.PlayerAllIn
}

func livePlayers(st *model.PokerState) []*model.PokerPlayer {
	live := make([]*model.PokerPlayer, 0, len(st.Players))
	for i := range st.Players {
		if st.Players[i].Status != model.PlayerFolded {
			live = append(live, &st.Players[i])
		}
	}
	return live
}

// nextToAct returns the first seat after from that still owes a decision,
// or -1 if none does.
func nextToAct(st *model.PokerState, from int) int {
	n := len(st.Players)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		p := &st.Players[i]
		if canAct(p) && (!p.Acted || p.CurrentBet < st.CurrentBet) {
			return i
		}
	}
	return -1
}

func advance(st *model.PokerState) {
	if len(livePlayers(st)) == 1 {
		st.Phase = model.PhaseShowdown
		return
	}
	if next := nextToAct(st, st.CurrentPlayer); next >= 0 {
		st.CurrentPlayer = next
		return
	}

	// Street complete. Deal on until someone can bet, or to showdown.
	for {
		nextStreet(st)
		if st.Phase == model.PhaseShowdown {
			return
		}
		able := 0
		for i := range st.Players {
			if canAct(&st.Players[i]) {
				able++
			}
		}
		if able >= 2 {
			st.CurrentPlayer = nextToAct(st, st.DealerPosition)
			return
		}
	}
}

func nextStreet(st *model.PokerState) {
	st.CurrentBet = 0
	for i := range st.Players {
		st.Players[i].CurrentBet = 0
		st.Players[i].Acted = false
	}
	deal := func(n int) {
		drawn, rest, err := cards.Draw(st.Deck, n)
		if err != nil {
			return
		}
		st.CommunityCards = append(st.CommunityCards, drawn...)
		st.Deck = rest
	}
	switch st.Phase {
	case model.PhasePreflop:
		deal(3)
		st.Phase = model.PhaseFlop
	case model.PhaseFlop:
		deal(1)
		st.Phase = model.PhaseTurn
	case model.PhaseTurn:
		deal(1)
		st.Phase = model.PhaseRiver
	default:
		st.Phase = model.PhaseShowdown
	}
}

func contributionLevels(st *model.PokerState) []int64 {
	seen := make(map[int64]bool)
	var levels []int64
	for _, p := range st.Players {
		if p.TotalBet > 0 && !seen[p.TotalBet] {
			seen[p.TotalBet] = true
			levels = append(levels, p.TotalBet)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// bestOf returns the players holding the strongest hand, in seat order.
func bestOf(players []*model.PokerPlayer, hands map[int64]Hand) []*model.PokerPlayer {
	var winners []*model.PokerPlayer
	for _, p := range players {
		if len(winners) == 0 {
			winners = append(winners, p)
			continue
		}
		switch hands[p.UserID].Compare(hands[winners[0].UserID]) {
		case 1:
			winners = []*model.PokerPlayer{p}
		case 0:
			winners = append(winners, p)
		}
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].Position < winners[j].Position })
	return winners
}
