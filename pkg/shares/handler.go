package shares

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"primevault/pkg/access"
	"primevault/pkg/response"
)

type Handler struct {
	ledger Ledger
	auth   access.AccountService
}

func NewHandler(ledger Ledger, auth access.AccountService) *Handler {
	return &Handler{ledger: ledger, auth: auth}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/shares/classes", h.listClasses)
	router.GET("/shares/classes/:id", h.getClass)
	router.GET("/shares/classes/:id/holders/:uuid", h.getPosition)

	authed := router.Group("/", access.AuthMiddleware(h.auth))
	authed.POST("/shares/transfer", h.transfer)
	authed.POST("/shares/burn", h.burn)
}

type shareTransferRequest struct {
	To      string `json:"to" binding:"required"`
	ClassID int64  `json:"class_id" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

type shareBurnRequest struct {
	ClassID int64  `json:"class_id" binding:"required"`
	Amount  uint64 `json:"amount" binding:"required"`
}

// @Summary      List share classes
// @Tags         shares
// @Produce      json
// @Success      200  {object}  response.APIResponse "Classes listed"
// @Router       /shares/classes [get]
func (h *Handler) listClasses(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "share classes listed", h.ledger.ListClasses())
}

// @Summary      Get a share class
// @Tags         shares
// @Produce      json
// @Param        id path int true "Share class ID"
// @Success      200  {object}  response.APIResponse{data=ShareClass} "Class fetched"
// @Failure      404  {object}  response.APIResponse "Class not found"
// @Router       /shares/classes/{id} [get]
func (h *Handler) getClass(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendError(c, http.StatusBadRequest, "invalid class id")
		return
	}

	class, err := h.ledger.GetClass(id)
	if err != nil {
		response.SendError(c, http.StatusNotFound, "share class not found")
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "share class fetched", class)
}

// @Summary      Get a holder's position in a class
// @Tags         shares
// @Produce      json
// @Param        id   path int    true "Share class ID"
// @Param        uuid path string true "Holder account UUID"
// @Success      200  {object}  response.APIResponse{data=Position} "Position fetched"
// @Router       /shares/classes/{id}/holders/{uuid} [get]
func (h *Handler) getPosition(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.SendError(c, http.StatusBadRequest, "invalid class id")
		return
	}

	holder := c.Param("uuid")
	pos := Position{ClassID: id, Holder: holder, Balance: h.ledger.BalanceOf(holder, id)}
	response.SendAPIResponse(c, http.StatusOK, true, "position fetched", pos)
}

// @Summary      Transfer shares
// @Description  Moves shares of one class from the authenticated holder to another account
// @Tags         shares
// @Accept       json
// @Produce      json
// @Param        request body shareTransferRequest true "Transfer request"
// @Success      200  {object}  response.APIResponse "Transfer applied"
// @Failure      400  {object}  response.APIResponse "Invalid request or insufficient balance"
// @Failure      404  {object}  response.APIResponse "Class not found"
// @Router       /shares/transfer [post]
func (h *Handler) transfer(c *gin.Context) {
	var req shareTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	err := h.ledger.Transfer(access.CallerUUID(c), req.To, req.ClassID, req.Amount)
	if err != nil {
		h.sendLedgerError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "shares transferred", nil)
}

// @Summary      Burn shares
// @Description  Destroys shares held by the authenticated holder
// @Tags         shares
// @Accept       json
// @Produce      json
// @Param        request body shareBurnRequest true "Burn request"
// @Success      200  {object}  response.APIResponse "Burn applied"
// @Failure      400  {object}  response.APIResponse "Invalid request or insufficient balance"
// @Failure      404  {object}  response.APIResponse "Class not found"
// @Router       /shares/burn [post]
func (h *Handler) burn(c *gin.Context) {
	var req shareBurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.ledger.Burn(access.CallerUUID(c), req.ClassID, req.Amount); err != nil {
		h.sendLedgerError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "shares burned", nil)
}

func (h *Handler) sendLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrClassNotFound):
		response.SendError(c, http.StatusNotFound, "share class not found")
	case errors.Is(err, ErrInsufficientBalance), errors.Is(err, ErrZeroAmount):
		response.SendError(c, http.StatusBadRequest, err.Error())
	default:
		response.SendError(c, http.StatusInternalServerError, err.Error())
	}
}
