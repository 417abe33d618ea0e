package models

import "time"

// GameState is the room-level phase of an estimation session.
type GameState string

// Room phases
const (
	StateSetup   GameState = "setup"
	StateVoting  GameState = "voting"
	StateResults GameState = "results"
)

// RevealMode controls how results are displayed after a reveal.
type RevealMode string

const (
	// RevealAnonymous shows aggregated vote counts only.
	RevealAnonymous RevealMode = "anonymous"
	// RevealTransparent shows each player's vote next to their name.
	RevealTransparent RevealMode = "transparent"
)

// Toggle flips between the two reveal modes.
func (m RevealMode) Toggle() RevealMode {
	if m == RevealAnonymous {
		return RevealTransparent
	}
	return RevealAnonymous
}

// Story is a unit of work being estimated. Estimate is nil until the
// moderator finalizes a value for it.
type Story struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Estimate    *string `json:"estimate"`
}

// Estimated reports whether the story already has a finalized estimate.
func (s Story) Estimated() bool {
	return s.Estimate != nil
}

// Player represents a participant in a planning poker room. Vote is nil
// until the player casts one in the current round; Voted stays true when a
// player skips so the table can show they are done.
type Player struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	IsModerator bool    `json:"isModerator"`
	Vote        *string `json:"vote"`
	Voted       bool    `json:"voted"`
}

// Room is the shared session document for one estimation game. It is
// mutated only through patches so every change is one atomic multi-field
// update regardless of which store backs it.
type Room struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	CardSet        CardSet            `json:"cardSet"`
	RevealMode     RevealMode         `json:"revealMode"`
	Stories        []Story            `json:"stories"`
	Players        map[string]*Player `json:"players"`
	CurrentStoryID *string            `json:"currentStoryId"`
	State          GameState          `json:"state"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// NewRoom creates an empty room in the setup phase.
func NewRoom(roomID string) *Room {
	return &Room{
		ID:         roomID,
		Name:       "Room " + roomID,
		CardSet:    CardSetScrum,
		RevealMode: RevealTransparent,
		Stories:    []Story{},
		Players:    make(map[string]*Player),
		State:      StateSetup,
		CreatedAt:  time.Now(),
	}
}

// CurrentStory returns the story under vote, or nil when no round is active.
func (r *Room) CurrentStory() *Story {
	if r.CurrentStoryID == nil {
		return nil
	}
	for i := range r.Stories {
		if r.Stories[i].ID == *r.CurrentStoryID {
			return &r.Stories[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the room. Stores hand clones to subscribers
// so a snapshot never aliases the live document.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Stories = make([]Story, len(r.Stories))
	for i, s := range r.Stories {
		cp.Stories[i] = s
		if s.Estimate != nil {
			e := *s.Estimate
			cp.Stories[i].Estimate = &e
		}
	}
	cp.Players = make(map[string]*Player, len(r.Players))
	for id, p := range r.Players {
		pc := *p
		if p.Vote != nil {
			v := *p.Vote
			pc.Vote = &v
		}
		cp.Players[id] = &pc
	}
	if r.CurrentStoryID != nil {
		id := *r.CurrentStoryID
		cp.CurrentStoryID = &id
	}
	return &cp
}
