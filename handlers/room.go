package handlers

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/charles-mendoza/agile-poker/db"
	"github.com/charles-mendoza/agile-poker/game"
	"github.com/charles-mendoza/agile-poker/models"
	"github.com/charles-mendoza/agile-poker/session"
)

// standardResponse sends a consistent JSON response
func standardResponse(c *gin.Context, code int, status string, data interface{}, err string) {
	response := gin.H{"status": status}

	if data != nil {
		response["data"] = data
	}

	if err != "" {
		response["error"] = err
	}

	c.JSON(code, response)
}

// errorResponse maps a domain error to its HTTP status.
func errorResponse(c *gin.Context, err error) {
	standardResponse(c, statusFor(err), "error", nil, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrRoomNotFound),
		errors.Is(err, models.ErrPlayerNotFound),
		errors.Is(err, models.ErrStoryNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrRoomExists):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotModerator):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNoStories),
		errors.Is(err, models.ErrNoActiveStory),
		errors.Is(err, models.ErrStoryEstimated),
		errors.Is(err, models.ErrInvalidCardSet),
		errors.Is(err, models.ErrEmptyTitle),
		errors.Is(err, models.ErrEmptyEstimate),
		errors.Is(err, models.ErrInvalidPlayerName),
		errors.Is(err, models.ErrInvalidPatch):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RoomHandler handles all room-related requests
type RoomHandler struct {
	store    db.RoomStore
	sessions *session.Manager
	log      zerolog.Logger

	limiterMu      sync.Mutex
	createLimiters map[string]*rate.Limiter
}

// NewRoomHandler creates a new RoomHandler
func NewRoomHandler(store db.RoomStore, sessions *session.Manager, log zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		store:          store,
		sessions:       sessions,
		log:            log,
		createLimiters: make(map[string]*rate.Limiter),
	}
}

// allowCreate rate-limits room creation per client IP.
func (h *RoomHandler) allowCreate(ip string) bool {
	h.limiterMu.Lock()
	defer h.limiterMu.Unlock()

	limiter, ok := h.createLimiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(1), 5)
		h.createLimiters[ip] = limiter
	}
	return limiter.Allow()
}

// newRoomID generates a short, URL-safe room id for when the client does
// not choose one.
func newRoomID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// CreateRoom handles room creation requests
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	if !h.allowCreate(c.ClientIP()) {
		standardResponse(c, http.StatusTooManyRequests, "error", nil, "too many rooms created, slow down")
		return
	}

	var req struct {
		RoomID string `json:"roomId"`
	}
	// Body is optional: an empty body means "pick an id for me".
	_ = c.ShouldBindJSON(&req)

	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		roomID = newRoomID()
	}

	room, err := h.store.Create(c.Request.Context(), roomID)
	if err != nil {
		errorResponse(c, err)
		return
	}

	h.log.Info().Str("room", room.ID).Msg("room created")
	standardResponse(c, http.StatusCreated, "created", gin.H{"roomId": room.ID}, "")
}

// GetRoom handles requests to get the current room snapshot
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// JoinRoom handles player session joins. A device without a cached
// identity sends just a name and receives a generated player id; a device
// with one sends it back and is restored without re-prompting.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req struct {
		PlayerID string `json:"playerId"`
		Name     string `json:"name"`
	}
	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "invalid request format")
		return
	}

	roomID := c.Param("id")
	player, err := h.sessions.Join(c.Request.Context(), roomID, req.PlayerID, strings.TrimSpace(req.Name))
	if err != nil {
		errorResponse(c, err)
		return
	}

	h.log.Info().Str("room", roomID).Str("player", player.ID).
		Bool("moderator", player.IsModerator).Msg("player joined")
	standardResponse(c, http.StatusOK, "joined", gin.H{"player": player}, "")
}

// StartGame handles the setup form submission that begins voting
func (h *RoomHandler) StartGame(c *gin.Context) {
	var req struct {
		PlayerID    string            `json:"playerId" binding:"required"`
		Name        string            `json:"name"`
		Description string            `json:"description"`
		CardSet     models.CardSet    `json:"cardSet"`
		RevealMode  models.RevealMode `json:"revealMode"`
		Stories     []game.StoryInput `json:"stories"`
	}
	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "invalid request format")
		return
	}

	roomID := c.Param("id")
	room, err := h.moderatorRoom(c, roomID, req.PlayerID)
	if err != nil {
		errorResponse(c, err)
		return
	}

	if req.CardSet == "" {
		req.CardSet = room.CardSet
	}
	if req.RevealMode == "" {
		req.RevealMode = room.RevealMode
	}
	setup := game.Setup{
		Name:        req.Name,
		Description: req.Description,
		CardSet:     req.CardSet,
		RevealMode:  req.RevealMode,
		Stories:     req.Stories,
	}
	patch, err := setup.StartGame(room)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if err := h.store.Apply(c.Request.Context(), roomID, patch); err != nil {
		errorResponse(c, err)
		return
	}

	h.log.Info().Str("room", roomID).Int("stories", len(req.Stories)).Msg("game started")
	standardResponse(c, http.StatusOK, "started", nil, "")
}

// SubmitVote handles vote and skip submissions for the current round
func (h *RoomHandler) SubmitVote(c *gin.Context) {
	var req struct {
		PlayerID string `json:"playerId" binding:"required"`
		Vote     string `json:"vote"`
		Skip     bool   `json:"skip"`
	}
	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "invalid request format")
		return
	}

	roomID := c.Param("id")
	room, err := h.store.Get(c.Request.Context(), roomID)
	if err != nil {
		errorResponse(c, err)
		return
	}

	var patch models.Patch
	if req.Skip {
		patch, err = game.SkipVote(room, req.PlayerID)
	} else {
		if req.Vote == "" {
			standardResponse(c, http.StatusBadRequest, "error", nil, "vote value is required")
			return
		}
		patch, err = game.CastVote(room, req.PlayerID, req.Vote)
	}
	if err != nil {
		errorResponse(c, err)
		return
	}

	if err := h.store.Apply(c.Request.Context(), roomID, patch); err != nil {
		errorResponse(c, err)
		return
	}
	standardResponse(c, http.StatusOK, "vote_submitted", nil, "")
}

// RevealCards moves the room from voting to results
func (h *RoomHandler) RevealCards(c *gin.Context) {
	h.moderatorTransition(c, "cards_revealed", game.Reveal)
}

// ResetVoting starts a fresh round on the same story ("Play Again")
func (h *RoomHandler) ResetVoting(c *gin.Context) {
	h.moderatorTransition(c, "voting_reset", game.ResetRound)
}

// CancelRound abandons the current round without an estimate
func (h *RoomHandler) CancelRound(c *gin.Context) {
	h.moderatorTransition(c, "round_cancelled", game.CancelRound)
}

// ToggleRevealMode flips anonymous/transparent results
func (h *RoomHandler) ToggleRevealMode(c *gin.Context) {
	h.moderatorTransition(c, "reveal_mode_toggled", func(room *models.Room) (models.Patch, error) {
		return game.ToggleRevealMode(room), nil
	})
}

// SelectStory switches voting to another unestimated story
func (h *RoomHandler) SelectStory(c *gin.Context) {
	var req struct {
		PlayerID string `json:"playerId" binding:"required"`
		StoryID  string `json:"storyId" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "invalid request format")
		return
	}

	roomID := c.Param("id")
	room, err := h.moderatorRoom(c, roomID, req.PlayerID)
	if err != nil {
		errorResponse(c, err)
		return
	}

	patch, err := game.SelectStory(room, req.StoryID)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if err := h.store.Apply(c.Request.Context(), roomID, patch); err != nil {
		errorResponse(c, err)
		return
	}

	h.log.Info().Str("room", roomID).Str("story", req.StoryID).Msg("story selected")
	standardResponse(c, http.StatusOK, "story_selected", nil, "")
}

// FinalizeEstimate locks in the agreed estimate and auto-advances
func (h *RoomHandler) FinalizeEstimate(c *gin.Context) {
	var req struct {
		PlayerID string `json:"playerId" binding:"required"`
		Estimate string `json:"estimate"`
	}
	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "invalid request format")
		return
	}

	roomID := c.Param("id")
	room, err := h.moderatorRoom(c, roomID, req.PlayerID)
	if err != nil {
		errorResponse(c, err)
		return
	}

	patch, err := game.FinalizeEstimate(room, strings.TrimSpace(req.Estimate))
	if err != nil {
		errorResponse(c, err)
		return
	}
	if err := h.store.Apply(c.Request.Context(), roomID, patch); err != nil {
		errorResponse(c, err)
		return
	}

	h.log.Info().Str("room", roomID).Str("estimate", req.Estimate).Msg("estimate finalized")
	standardResponse(c, http.StatusOK, "estimate_finalized", nil, "")
}

// AddStory appends a story to the backlog
func (h *RoomHandler) AddStory(c *gin.Context) {
	var req struct {
		PlayerID    string `json:"playerId" binding:"required"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.BindJSON(&req); err != nil {
		standardResponse(c, http.StatusBadRequest, "error", nil, "invalid request format")
		return
	}

	roomID := c.Param("id")
	if _, err := h.moderatorRoom(c, roomID, req.PlayerID); err != nil {
		errorResponse(c, err)
		return
	}

	story, patch, err := game.AddStory(strings.TrimSpace(req.Title), req.Description)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if err := h.store.Apply(c.Request.Context(), roomID, patch); err != nil {
		errorResponse(c, err)
		return
	}

	standardResponse(c, http.StatusCreated, "story_added", gin.H{"story": story}, "")
}

// Tally returns the derived results view for the current snapshot
func (h *RoomHandler) Tally(c *gin.Context) {
	room, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	tally := game.DeriveTally(room)
	data := gin.H{
		"voteCounts":     tally.SortedCounts(),
		"numericVotes":   tally.NumericVotes,
		"average":        tally.Average,
		"hasDiscrepancy": tally.HasDiscrepancy,
	}
	if room.RevealMode == models.RevealTransparent {
		data["players"] = game.PlayersWithVotes(room)
	}
	standardResponse(c, http.StatusOK, "ok", data, "")
}

// moderatorTransition runs a playerID-gated transition taken from the
// query string, the shape shared by the GET-style moderator intents.
func (h *RoomHandler) moderatorTransition(c *gin.Context, status string, fn func(*models.Room) (models.Patch, error)) {
	roomID := c.Param("id")
	playerID := c.Query("playerId")
	if playerID == "" {
		standardResponse(c, http.StatusBadRequest, "error", nil, "invalid player ID")
		return
	}

	room, err := h.moderatorRoom(c, roomID, playerID)
	if err != nil {
		errorResponse(c, err)
		return
	}

	patch, err := fn(room)
	if err != nil {
		errorResponse(c, err)
		return
	}
	if err := h.store.Apply(c.Request.Context(), roomID, patch); err != nil {
		errorResponse(c, err)
		return
	}

	h.log.Info().Str("room", roomID).Str("player", playerID).Str("action", status).Msg("transition applied")
	standardResponse(c, http.StatusOK, status, nil, "")
}

// moderatorRoom loads the room and verifies the acting player holds the
// moderator role.
func (h *RoomHandler) moderatorRoom(c *gin.Context, roomID, playerID string) (*models.Room, error) {
	room, err := h.store.Get(c.Request.Context(), roomID)
	if err != nil {
		return nil, err
	}
	player, ok := room.Players[playerID]
	if !ok {
		return nil, models.ErrPlayerNotFound
	}
	if !player.IsModerator {
		return nil, models.ErrNotModerator
	}
	return room, nil
}
