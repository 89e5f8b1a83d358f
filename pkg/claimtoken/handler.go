package claimtoken

import (
	"errors"
	"net/http"

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
	router.GET("/claims/stats", h.getStats)
	router.GET("/claims/holders/:uuid", h.getHolding)

	authed := router.Group("/", access.AuthMiddleware(h.auth))
	authed.POST("/claims/transfer", h.transfer)
}

type transferRequest struct {
	To     string `json:"to" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

// @Summary      Claim-token ledger stats
// @Description  Supply, collateral and derived collateralization views
// @Tags         claims
// @Produce      json
// @Success      200  {object}  response.APIResponse{data=Stats} "Stats fetched"
// @Router       /claims/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "ledger stats fetched", h.ledger.Stats())
}

// @Summary      Get a holder's claim-token position
// @Tags         claims
// @Produce      json
// @Param        uuid path string true "Holder account UUID"
// @Success      200  {object}  response.APIResponse{data=Holding} "Holding fetched"
// @Router       /claims/holders/{uuid} [get]
func (h *Handler) getHolding(c *gin.Context) {
	holder := c.Param("uuid")
	holding := Holding{
		Holder:   holder,
		Balance:  h.ledger.BalanceOf(holder),
		AssetIDs: h.ledger.HolderAssets(holder),
	}
	response.SendAPIResponse(c, http.StatusOK, true, "holding fetched", holding)
}

// @Summary      Transfer claim tokens
// @Description  Moves claim tokens from the authenticated holder to another account
// @Tags         claims
// @Accept       json
// @Produce      json
// @Param        request body transferRequest true "Transfer request"
// @Success      200  {object}  response.APIResponse "Transfer applied"
// @Failure      400  {object}  response.APIResponse "Invalid request or insufficient balance"
// @Failure      401  {object}  response.APIResponse "Missing or invalid token"
// @Router       /claims/transfer [post]
func (h *Handler) transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.ledger.Transfer(access.CallerUUID(c), req.To, req.Amount); err != nil {
		if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrZeroAmount) {
			response.SendError(c, http.StatusBadRequest, err.Error())
			return
		}
		response.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "claims transferred", nil)
}
