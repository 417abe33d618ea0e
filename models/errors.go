package models

import "errors"

// Common errors
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomExists        = errors.New("room already exists")
	ErrPlayerNotFound    = errors.New("player not found in room")
	ErrNotModerator      = errors.New("only the moderator can perform this action")
	ErrNoActiveStory     = errors.New("no story is currently under vote")
	ErrNoStories         = errors.New("at least one story is required")
	ErrStoryNotFound     = errors.New("story not found in room")
	ErrStoryEstimated    = errors.New("story already has a finalized estimate")
	ErrInvalidCardSet    = errors.New("unknown card set")
	ErrEmptyTitle        = errors.New("story title must not be empty")
	ErrEmptyEstimate     = errors.New("estimate value must not be empty")
	ErrInvalidPlayerName = errors.New("invalid player name")
	ErrInvalidPatch      = errors.New("invalid patch operation")
	ErrGenerationFailed  = errors.New("explanation generation failed")
)
