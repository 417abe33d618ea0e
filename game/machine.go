package game

import (
	"github.com/google/uuid"

	"github.com/charles-mendoza/agile-poker/models"
)

// StoryInput is one story row of the setup form.
type StoryInput struct {
	Title       string
	Description string
}

// Setup carries the whole setup form. Re-submitting it is the only way to
// change the card set, and starting the game clears every estimate.
type Setup struct {
	Name        string
	Description string
	CardSet     models.CardSet
	RevealMode  models.RevealMode
	Stories     []StoryInput
}

// ResetVotesPatch clears every player's vote and voted flag. It must be
// merged into the same patch as any state or current-story change that
// starts a new round, so the round boundary is one atomic write.
func ResetVotesPatch(room *models.Room) models.Patch {
	patch := make(models.Patch, 0, len(room.Players))
	for id := range room.Players {
		patch = append(patch, models.SetPlayerVote{PlayerID: id})
	}
	return patch
}

// UnestimatedStories lists the stories still waiting for an estimate,
// excluding the one currently under vote.
func UnestimatedStories(room *models.Room) []models.Story {
	out := make([]models.Story, 0, len(room.Stories))
	for _, s := range room.Stories {
		if s.Estimated() {
			continue
		}
		if room.CurrentStoryID != nil && s.ID == *room.CurrentStoryID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// NextUnestimated returns the first story in order without an estimate,
// skipping excludeID. Used to auto-advance after finalizing.
func NextUnestimated(room *models.Room, excludeID string) *models.Story {
	for _, s := range room.Stories {
		if s.Estimated() || s.ID == excludeID {
			continue
		}
		next := s
		return &next
	}
	return nil
}

// StartGame validates the setup form and produces the patch that moves the
// room from setup into its first voting round.
func (s Setup) StartGame(room *models.Room) (models.Patch, error) {
	if len(s.Stories) == 0 {
		return nil, models.ErrNoStories
	}
	if !s.CardSet.Valid() {
		return nil, models.ErrInvalidCardSet
	}
	stories := make([]models.Story, len(s.Stories))
	for i, in := range s.Stories {
		if in.Title == "" {
			return nil, models.ErrEmptyTitle
		}
		stories[i] = models.Story{
			ID:          uuid.New().String(),
			Title:       in.Title,
			Description: in.Description,
		}
	}

	name := s.Name
	if name == "" {
		name = room.Name
	}
	firstID := stories[0].ID

	patch := models.Patch{
		models.SetRoomInfo{Name: name, Description: s.Description, CardSet: s.CardSet},
		models.SetRevealMode{Mode: s.RevealMode},
		models.SetStories{Stories: stories},
		models.SetState{State: models.StateVoting},
		models.SetCurrentStory{StoryID: &firstID},
	}
	return append(patch, ResetVotesPatch(room)...), nil
}

// Reveal moves a round from voting to results.
func Reveal(room *models.Room) (models.Patch, error) {
	if room.CurrentStoryID == nil {
		return nil, models.ErrNoActiveStory
	}
	return models.Patch{models.SetState{State: models.StateResults}}, nil
}

// ResetRound starts a fresh vote on the same story ("Play Again").
func ResetRound(room *models.Room) (models.Patch, error) {
	if room.CurrentStoryID == nil {
		return nil, models.ErrNoActiveStory
	}
	patch := models.Patch{models.SetState{State: models.StateVoting}}
	return append(patch, ResetVotesPatch(room)...), nil
}

// SelectStory switches the room to voting on another unestimated story.
func SelectStory(room *models.Room, storyID string) (models.Patch, error) {
	found := false
	for _, s := range UnestimatedStories(room) {
		if s.ID == storyID {
			found = true
			break
		}
	}
	if !found {
		return nil, models.ErrStoryNotFound
	}
	id := storyID
	patch := models.Patch{
		models.SetState{State: models.StateVoting},
		models.SetCurrentStory{StoryID: &id},
	}
	return append(patch, ResetVotesPatch(room)...), nil
}

// CancelRound abandons the current round without estimating the story.
func CancelRound(room *models.Room) (models.Patch, error) {
	if room.CurrentStoryID == nil {
		return nil, models.ErrNoActiveStory
	}
	patch := models.Patch{
		models.SetState{State: models.StateVoting},
		models.SetCurrentStory{},
	}
	return append(patch, ResetVotesPatch(room)...), nil
}

// FinalizeEstimate locks in the agreed estimate for the current story and
// auto-advances to the next unestimated one, or to no story when the
// backlog is done.
func FinalizeEstimate(room *models.Room, estimate string) (models.Patch, error) {
	if estimate == "" {
		return nil, models.ErrEmptyEstimate
	}
	current := room.CurrentStory()
	if current == nil {
		return nil, models.ErrNoActiveStory
	}
	if current.Estimated() {
		return nil, models.ErrStoryEstimated
	}

	patch := models.Patch{
		models.SetStoryEstimate{StoryID: current.ID, Estimate: estimate},
		models.SetState{State: models.StateVoting},
	}
	if next := NextUnestimated(room, current.ID); next != nil {
		id := next.ID
		patch = append(patch, models.SetCurrentStory{StoryID: &id})
	} else {
		patch = append(patch, models.SetCurrentStory{})
	}
	return append(patch, ResetVotesPatch(room)...), nil
}

// AddStory appends a new story to the backlog. Allowed in any phase.
func AddStory(title, description string) (models.Story, models.Patch, error) {
	if title == "" {
		return models.Story{}, nil, models.ErrEmptyTitle
	}
	story := models.Story{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
	}
	return story, models.Patch{models.AppendStory{Story: story}}, nil
}

// ToggleRevealMode flips between anonymous and transparent results.
func ToggleRevealMode(room *models.Room) models.Patch {
	return models.Patch{models.SetRevealMode{Mode: room.RevealMode.Toggle()}}
}

// CastVote records a player's vote for the current round. Late votes after
// a reveal are not blocked; the store's last write wins.
func CastVote(room *models.Room, playerID, value string) (models.Patch, error) {
	if room.CurrentStoryID == nil {
		return nil, models.ErrNoActiveStory
	}
	if _, ok := room.Players[playerID]; !ok {
		return nil, models.ErrPlayerNotFound
	}
	v := value
	return models.Patch{models.SetPlayerVote{PlayerID: playerID, Vote: &v, Voted: true}}, nil
}

// SkipVote marks a player as done without a vote.
func SkipVote(room *models.Room, playerID string) (models.Patch, error) {
	if room.CurrentStoryID == nil {
		return nil, models.ErrNoActiveStory
	}
	if _, ok := room.Players[playerID]; !ok {
		return nil, models.ErrPlayerNotFound
	}
	return models.Patch{models.SetPlayerVote{PlayerID: playerID, Voted: true}}, nil
}
