package relay

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/crittermon/arena/internal/constants"
	"github.com/crittermon/arena/internal/game"
	"github.com/crittermon/arena/internal/logging"
	"github.com/crittermon/arena/internal/storage"
	"github.com/crittermon/arena/internal/version"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The relay carries no credentials and serves first-party clients.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler bundles the hub with the HTTP surface.
type Handler struct {
	hub     *Hub
	repo    storage.Repository
	species game.SpeciesTable
}

func NewHandler(hub *Hub, repo storage.Repository, species game.SpeciesTable) *Handler {
	if species == nil {
		species = game.DefaultSpecies()
	}
	return &Handler{hub: hub, repo: repo, species: species}
}

// RegisterRoutes wires the health, websocket and API routes onto the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET(constants.RouteHealth, h.Health)
	r.GET(constants.RouteWS, h.WebSocket)

	api := r.Group(constants.RouteAPIPrefix)
	api.GET(constants.RouteSpecies, h.Species)
	api.GET(constants.RouteLeaderboard, h.Leaderboard)
	api.GET(constants.RouteQueue, h.Queue)
}

// Health returns liveness plus build metadata.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		constants.JSONKeyStatus:  "ok",
		constants.JSONKeyVersion: version.Version,
		"commit":                 version.Commit,
	})
}

// WebSocket upgrades the connection and hands it to the hub.
func (h *Handler) WebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(constants.ErrFailedUpgrade, err, nil)
		c.JSON(http.StatusBadRequest, gin.H{constants.JSONKeyError: constants.ErrFailedUpgrade})
		return
	}
	logging.Info("client connected", logging.Fields{constants.LogFieldAddr: conn.RemoteAddr().String()})
	go h.hub.Serve(conn)
}

// Species returns the species table clients build teams from.
func (h *Handler) Species(c *gin.Context) {
	c.JSON(http.StatusOK, h.species)
}

// Leaderboard returns the top players by wins.
func (h *Handler) Leaderboard(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusOK, []storage.PlayerProfile{})
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	profiles, err := h.repo.GetTopPlayers(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedFetchLeaderboard})
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// Queue exposes the current matchmaking queue for diagnostics.
func (h *Handler) Queue(c *gin.Context) {
	value, err := h.hub.Store().Get(constants.PathQueue)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{constants.JSONKeyError: constants.ErrFailedFetchQueue})
		return
	}
	if value == nil {
		value = map[string]interface{}{}
	}
	c.JSON(http.StatusOK, value)
}
