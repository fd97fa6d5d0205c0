package baccarat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"social-casino/internal/game/cards"
	"social-casino/internal/model"
)

func card(rank int) model.Card {
	return model.Card{Rank: rank, Suit: model.Spades}
}

func TestHandValue(t *testing.T) {
	assert.Equal(t, 0, HandValue([]model.Card{card(10), card(13)}))
	assert.Equal(t, 1, HandValue([]model.Card{card(1), card(12)}))
	assert.Equal(t, 5, HandValue([]model.Card{card(7), card(8)}))
	assert.Equal(t, 9, HandValue([]model.Card{card(9)}))
}

func TestDealPlayerFourBankerSix(t *testing.T) {
	// player 2+2=4, banker 3+3=6: player draws, banker stands on 6 even after
	deck := []model.Card{card(2), card(2), card(3), card(3), card(1), card(9), card(9)}

	res, err := Deal(deck)
	require.NoError(t, err)

	assert.Len(t, res.PlayerCards, 3)
	assert.Len(t, res.BankerCards, 2)
	assert.Equal(t, 5, res.PlayerValue)
	assert.Equal(t, 6, res.BankerValue)
	assert.Equal(t, Banker, res.Winner)
}

func TestDealNaturalStands(t *testing.T) {
	deck := []model.Card{card(4), card(5), card(3), card(3), card(1), card(1)}

	res, err := Deal(deck)
	require.NoError(t, err)
	assert.Len(t, res.PlayerCards, 2)
	assert.Len(t, res.BankerCards, 2)
	assert.Equal(t, Player, res.Winner)
}

func TestDealBankerDrawsAfterPlayerStands(t *testing.T) {
	// player 7 stands, banker 3 draws
	deck := []model.Card{card(3), card(4), card(1), card(2), card(5)}

	res, err := Deal(deck)
	require.NoError(t, err)
	assert.Len(t, res.PlayerCards, 2)
	assert.Len(t, res.BankerCards, 3)
	assert.Equal(t, 8, res.BankerValue)
}

func TestThirdCardRuleProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[0-9a-z]{4,12}`).Draw(t, "seed")
		deck := cards.Shuffled(s)
		res, err := Deal(deck)
		if err != nil {
			t.Fatal(err)
		}

		pv0 := HandValue(deck[0:2])
		bv0 := HandValue(deck[2:4])
		if got, want := len(res.PlayerCards) == 3, PlayerDraws(pv0, bv0); got != want {
			t.Fatalf("player drew=%v, rule says %v (pv=%d bv=%d)", got, want, pv0, bv0)
		}
		if got, want := len(res.BankerCards) == 3, BankerDraws(bv0, res.PlayerValue); got != want {
			t.Fatalf("banker drew=%v, rule says %v", got, want)
		}
	})
}

func TestPayout(t *testing.T) {
	assert.Equal(t, int64(200), Payout(model.Bet{Amount: 100, BetType: Player}, Player))
	assert.Equal(t, int64(195), Payout(model.Bet{Amount: 100, BetType: Banker}, Banker))
	assert.Equal(t, int64(19), Payout(model.Bet{Amount: 10, BetType: Banker}, Banker))
	assert.Equal(t, int64(1), Payout(model.Bet{Amount: 1, BetType: Banker}, Banker))
	assert.Equal(t, int64(800), Payout(model.Bet{Amount: 100, BetType: Tie}, Tie))
	assert.Equal(t, int64(0), Payout(model.Bet{Amount: 100, BetType: Player}, Tie))
}

func TestResolveDeterministic(t *testing.T) {
	bets := []model.Bet{{UserID: 1, Amount: 10, BetType: Player}}
	a, err := New().Resolve("abc123", bets)
	require.NoError(t, err)
	b, err := New().Resolve("abc123", bets)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
