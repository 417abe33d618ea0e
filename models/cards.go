package models

// CardSet names a predefined scheme of vote values.
type CardSet string

// Available card sets
const (
	CardSetScrum      CardSet = "scrum"
	CardSetFibonacci  CardSet = "fibonacci"
	CardSetSequential CardSet = "sequential"
	CardSetHourly     CardSet = "hourly"
	CardSetDays       CardSet = "days"
	CardSetTShirt     CardSet = "t-shirt"
)

// Special cards present in every set.
const (
	CardQuestion = "?"
	CardCoffee   = "☕"
)

// cardSets maps each scheme to its ordered vote values.
var cardSets = map[CardSet][]string{
	CardSetScrum:      {"0", "0.5", "1", "2", "3", "5", "8", "13", "20", "40", "100", CardQuestion, CardCoffee},
	CardSetFibonacci:  {"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", CardQuestion, CardCoffee},
	CardSetSequential: {"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", CardQuestion, CardCoffee},
	CardSetHourly:     {"0", "1", "2", "4", "8", "12", "16", "24", "32", "40", CardQuestion, CardCoffee},
	CardSetDays:       {"0", "0.5", "1", "2", "3", "5", "10", "15", "20", CardQuestion, CardCoffee},
	CardSetTShirt:     {"XS", "S", "M", "L", "XL", "XXL", CardQuestion, CardCoffee},
}

// Cards returns the ordered vote values for the set, or nil for an unknown
// set name.
func (c CardSet) Cards() []string {
	values, ok := cardSets[c]
	if !ok {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// Valid reports whether the set name is one of the predefined schemes.
func (c CardSet) Valid() bool {
	_, ok := cardSets[c]
	return ok
}

// CardSetNames lists every scheme name in a stable order.
func CardSetNames() []CardSet {
	return []CardSet{
		CardSetScrum,
		CardSetFibonacci,
		CardSetSequential,
		CardSetHourly,
		CardSetDays,
		CardSetTShirt,
	}
}
