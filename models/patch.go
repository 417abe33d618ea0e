package models

import "fmt"

// PatchOp is one typed field update inside a patch. Ops are validated
// before they are handed to a store, so a malformed intent never reaches
// the shared document.
type PatchOp interface {
	Validate() error
	apply(*Room)
}

// Patch is an ordered list of ops applied as a single atomic multi-field
// update. Both store implementations apply it under the room's lock, so
// sibling fields not named by any op stay untouched.
type Patch []PatchOp

// Validate checks every op in the patch.
func (p Patch) Validate() error {
	for i, op := range p {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}
	return nil
}

// Apply validates the patch and mutates the room in op order.
func (p Patch) Apply(r *Room) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for _, op := range p {
		op.apply(r)
	}
	return nil
}

// SetState moves the room to a new phase.
type SetState struct {
	State GameState
}

func (op SetState) Validate() error {
	switch op.State {
	case StateSetup, StateVoting, StateResults:
		return nil
	}
	return fmt.Errorf("%w: unknown state %q", ErrInvalidPatch, op.State)
}

func (op SetState) apply(r *Room) { r.State = op.State }

// SetCurrentStory points the room at a new story, or at none when StoryID
// is nil.
type SetCurrentStory struct {
	StoryID *string
}

func (op SetCurrentStory) Validate() error {
	if op.StoryID != nil && *op.StoryID == "" {
		return fmt.Errorf("%w: empty story id", ErrInvalidPatch)
	}
	return nil
}

func (op SetCurrentStory) apply(r *Room) { r.CurrentStoryID = op.StoryID }

// SetRevealMode switches between anonymous and transparent results.
type SetRevealMode struct {
	Mode RevealMode
}

func (op SetRevealMode) Validate() error {
	if op.Mode != RevealAnonymous && op.Mode != RevealTransparent {
		return fmt.Errorf("%w: unknown reveal mode %q", ErrInvalidPatch, op.Mode)
	}
	return nil
}

func (op SetRevealMode) apply(r *Room) { r.RevealMode = op.Mode }

// SetRoomInfo updates the setup-form fields of the room.
type SetRoomInfo struct {
	Name        string
	Description string
	CardSet     CardSet
}

func (op SetRoomInfo) Validate() error {
	if op.Name == "" {
		return fmt.Errorf("%w: empty room name", ErrInvalidPatch)
	}
	if !op.CardSet.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCardSet, op.CardSet)
	}
	return nil
}

func (op SetRoomInfo) apply(r *Room) {
	r.Name = op.Name
	r.Description = op.Description
	r.CardSet = op.CardSet
}

// SetStories replaces the whole story list. Used when the setup form is
// re-submitted.
type SetStories struct {
	Stories []Story
}

func (op SetStories) Validate() error {
	for _, s := range op.Stories {
		if s.ID == "" {
			return fmt.Errorf("%w: story without id", ErrInvalidPatch)
		}
		if s.Title == "" {
			return fmt.Errorf("%w: %v", ErrInvalidPatch, ErrEmptyTitle)
		}
	}
	return nil
}

func (op SetStories) apply(r *Room) {
	r.Stories = make([]Story, len(op.Stories))
	copy(r.Stories, op.Stories)
}

// AppendStory adds one story to the end of the list.
type AppendStory struct {
	Story Story
}

func (op AppendStory) Validate() error {
	if op.Story.ID == "" {
		return fmt.Errorf("%w: story without id", ErrInvalidPatch)
	}
	if op.Story.Title == "" {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, ErrEmptyTitle)
	}
	return nil
}

func (op AppendStory) apply(r *Room) { r.Stories = append(r.Stories, op.Story) }

// SetStoryEstimate finalizes the estimate of one story.
type SetStoryEstimate struct {
	StoryID  string
	Estimate string
}

func (op SetStoryEstimate) Validate() error {
	if op.StoryID == "" {
		return fmt.Errorf("%w: empty story id", ErrInvalidPatch)
	}
	if op.Estimate == "" {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, ErrEmptyEstimate)
	}
	return nil
}

func (op SetStoryEstimate) apply(r *Room) {
	for i := range r.Stories {
		if r.Stories[i].ID == op.StoryID {
			e := op.Estimate
			r.Stories[i].Estimate = &e
			return
		}
	}
}

// UpsertPlayer creates or replaces a player entry.
type UpsertPlayer struct {
	Player Player
}

func (op UpsertPlayer) Validate() error {
	if op.Player.ID == "" {
		return fmt.Errorf("%w: player without id", ErrInvalidPatch)
	}
	if op.Player.Name == "" {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, ErrInvalidPlayerName)
	}
	return nil
}

func (op UpsertPlayer) apply(r *Room) {
	p := op.Player
	r.Players[p.ID] = &p
}

// SetPlayerVote records a player's vote for the current round. A nil vote
// with Voted=true is a skip; nil with Voted=false is a reset.
type SetPlayerVote struct {
	PlayerID string
	Vote     *string
	Voted    bool
}

func (op SetPlayerVote) Validate() error {
	if op.PlayerID == "" {
		return fmt.Errorf("%w: empty player id", ErrInvalidPatch)
	}
	return nil
}

func (op SetPlayerVote) apply(r *Room) {
	p, ok := r.Players[op.PlayerID]
	if !ok {
		return
	}
	p.Vote = op.Vote
	p.Voted = op.Voted
}
