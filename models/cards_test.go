package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardSets(t *testing.T) {
	t.Parallel()

	for _, set := range CardSetNames() {
		cards := set.Cards()
		require.NotEmptyf(t, cards, "card set %s", set)
		assert.True(t, set.Valid())
		// Every scheme ends with the two special cards.
		assert.Equal(t, CardQuestion, cards[len(cards)-2])
		assert.Equal(t, CardCoffee, cards[len(cards)-1])
	}

	assert.False(t, CardSet("planets").Valid())
	assert.Nil(t, CardSet("planets").Cards())
}

func TestCardSetScrumOrder(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		[]string{"0", "0.5", "1", "2", "3", "5", "8", "13", "20", "40", "100", "?", "☕"},
		CardSetScrum.Cards())
}

func TestCardsReturnsCopy(t *testing.T) {
	t.Parallel()
	cards := CardSetScrum.Cards()
	cards[0] = "mutated"
	assert.Equal(t, "0", CardSetScrum.Cards()[0])
}

func TestRevealModeToggle(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RevealTransparent, RevealAnonymous.Toggle())
	assert.Equal(t, RevealAnonymous, RevealTransparent.Toggle())
}
