package events

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"primevault/pkg/response"
)

// Handler exposes the event journal and the websocket feed to indexers.
type Handler struct {
	hub     *Hub
	journal Journal
	logger  interface {
		Printf(string, ...interface{})
	}
}

func NewHandler(hub *Hub, journal Journal) *Handler {
	return &Handler{
		hub:     hub,
		journal: journal,
		logger:  log.New(log.Writer(), "[events] ", log.LstdFlags),
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/events", h.listEvents)
	router.GET("/ws/events", h.handleWebSocket)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin properly
		return true
	},
}

// @Summary      List vault events
// @Description  Paginated event journal with optional kind and entity filters
// @Tags         events
// @Produce      json
// @Param        kind       query  string  false  "Filter by event kind"
// @Param        entity_id  query  int     false  "Filter by entity ID"
// @Param        page       query  int     false  "Page number" default(1)
// @Param        limit      query  int     false  "Items per page" default(50)
// @Success      200  {object}  response.APIResponse "Events listed"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /events [get]
func (h *Handler) listEvents(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	var entityID int64
	if s := c.Query("entity_id"); s != "" {
		entityID, _ = strconv.ParseInt(s, 10, 64)
	}

	list, total, err := h.journal.List(c.Request.Context(), c.Query("kind"), entityID, limit, (page-1)*limit)
	if err != nil {
		response.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "events listed", gin.H{
		"items": list,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// handleWebSocket upgrades the connection and streams every subsequent event.
func (h *Handler) handleWebSocket(c *gin.Context) {
	subID := c.Query("subscriber_id")
	if subID == "" {
		subID = uuid.New().String()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade error: %v", err)
		return
	}

	sub := h.hub.AddSubscriber(subID, conn)
	h.logger.Printf("subscriber %s connected", subID)

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

func (h *Handler) writeLoop(sub *Subscriber) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Send:
			if !ok {
				return
			}
			sub.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sub.Conn.WriteJSON(ev); err != nil {
				h.logger.Printf("write error for subscriber %s: %v", sub.ID, err)
				return
			}
		case <-ticker.C:
			sub.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sub.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sub.Done:
			return
		}
	}
}

// readLoop only consumes control frames; subscribers never send events.
func (h *Handler) readLoop(sub *Subscriber) {
	defer func() {
		h.hub.RemoveSubscriber(sub.ID)
		sub.Conn.Close()
		h.logger.Printf("subscriber %s disconnected", sub.ID)
	}()

	sub.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	sub.Conn.SetPongHandler(func(string) error {
		sub.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-sub.Done:
			return
		default:
		}

		if _, _, err := sub.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Printf("websocket error for subscriber %s: %v", sub.ID, err)
			}
			return
		}
	}
}
