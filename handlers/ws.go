package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"github.com/qwertys/qwertys-api/middleware"
	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

const (
	wsKeyUserID = "user_id"
	wsKeyRole   = "role"
	wsKeyScope  = "scope"
)

type WSHandler struct {
	M *melody.Melody
}

func NewWSHandler() *WSHandler {
	m := melody.New()

	m.Config.MaxMessageSize = 64 * 1024

	// Keep-Alive behind cloud load balancers
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(s *melody.Session) {
		userID, _ := s.Get(wsKeyUserID)
		role, _ := s.Get(wsKeyRole)
		utils.LogWebSocket("connected", toString(userID), toString(role))
	})

	m.HandleDisconnect(func(s *melody.Session) {
		userID, _ := s.Get(wsKeyUserID)
		role, _ := s.Get(wsKeyRole)
		utils.LogWebSocket("disconnected", toString(userID), toString(role))
	})

	m.HandleError(func(s *melody.Session, err error) {
		log.Printf("❌ WebSocket Error: %v", err)
	})

	return &WSHandler{M: m}
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// HandleWS upgrades an authenticated request. The session remembers the
// caller's scope so that broadcasts only reach users allowed to see the alert.
func (h *WSHandler) HandleWS(c *gin.Context) {
	user := middleware.GetUser(c)
	keys := map[string]interface{}{
		wsKeyUserID: user.ID,
		wsKeyRole:   string(user.Role),
		wsKeyScope:  middleware.GetScope(c),
	}

	if err := h.M.HandleRequestWithKeys(c.Writer, c.Request, keys); err != nil {
		log.Printf("❌ Failed to upgrade websocket: %v", err)
	}
}

// BroadcastAlerte sends the event to every session whose scope covers the alert.
func (h *WSHandler) BroadcastAlerte(ev models.AlerteEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Printf("⚠️ Error encoding alerte event: %v", err)
		return
	}

	err = h.M.BroadcastFilter(msg, func(s *melody.Session) bool {
		v, ok := s.Get(wsKeyScope)
		if !ok {
			return false
		}
		scope, ok := v.(policy.Scope)
		return ok && scope.Allows(ev.Alerte.ProgrammeID, ev.Alerte.PartenaireID)
	})
	if err != nil {
		log.Printf("⚠️ Error broadcasting alerte %s: %v", ev.Alerte.ID, err)
	}
}

// Close disconnects every session.
func (h *WSHandler) Close() error {
	return h.M.Close()
}
