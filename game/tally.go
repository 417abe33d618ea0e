// Package game holds the pure room state machine: derived views over a Room
// snapshot and the transition table that turns moderator and voter intents
// into store patches. Nothing in here does I/O.
package game

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/charles-mendoza/agile-poker/models"
)

// DiscrepancyThreshold is the numeric vote spread above which results are
// flagged for discussion.
const DiscrepancyThreshold = 5

// Tally is the derived view of a finished (or in-progress) round.
type Tally struct {
	VoteCounts     map[string]int
	NumericVotes   []float64
	Average        string
	HasDiscrepancy bool
}

// VoteCount is one row of the aggregated results table.
type VoteCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// DeriveTally aggregates the cast votes of a room snapshot. Votes that
// parse as numbers feed the average and the discrepancy flag; the rest
// ("?", "☕", t-shirt sizes) only show up in the counts.
func DeriveTally(room *models.Room) Tally {
	t := Tally{VoteCounts: make(map[string]int)}

	for _, p := range room.Players {
		if p.Vote == nil {
			continue
		}
		t.VoteCounts[*p.Vote]++
		if n, err := strconv.ParseFloat(*p.Vote, 64); err == nil {
			t.NumericVotes = append(t.NumericVotes, n)
		}
	}
	sort.Float64s(t.NumericVotes)

	if len(t.NumericVotes) == 0 {
		t.Average = "N/A"
		return t
	}

	sum := 0.0
	for _, n := range t.NumericVotes {
		sum += n
	}
	t.Average = fmt.Sprintf("%.1f", sum/float64(len(t.NumericVotes)))

	spread := t.NumericVotes[len(t.NumericVotes)-1] - t.NumericVotes[0]
	t.HasDiscrepancy = len(t.NumericVotes) > 1 && spread > DiscrepancyThreshold

	return t
}

// SortedCounts returns the vote-count table ordered for anonymous reveal:
// numeric values ascending, then everything else lexicographically.
func (t Tally) SortedCounts() []VoteCount {
	rows := make([]VoteCount, 0, len(t.VoteCounts))
	for value, count := range t.VoteCounts {
		rows = append(rows, VoteCount{Value: value, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		ni, iNum := parseVote(rows[i].Value)
		nj, jNum := parseVote(rows[j].Value)
		switch {
		case iNum && jNum:
			return ni < nj
		case iNum != jNum:
			return iNum
		default:
			return rows[i].Value < rows[j].Value
		}
	})
	return rows
}

// PlayersWithVotes returns the players who cast a vote, ordered by display
// name for transparent reveal.
func PlayersWithVotes(room *models.Room) []models.Player {
	out := make([]models.Player, 0, len(room.Players))
	for _, p := range room.Players {
		if p.Vote != nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func parseVote(v string) (float64, bool) {
	n, err := strconv.ParseFloat(v, 64)
	return n, err == nil
}
