package oracle

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"primevault/pkg/access"
	"primevault/pkg/response"
)

type Handler struct {
	service Service
	auth    access.AccountService
}

func NewHandler(service Service, auth access.AccountService) *Handler {
	return &Handler{service: service, auth: auth}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/oracle/prices", h.listQuotes)
	router.GET("/oracle/prices/:type", h.getPrice)

	authed := router.Group("/", access.AuthMiddleware(h.auth))
	authed.POST("/oracle/prices", h.setManualPrice)
	authed.DELETE("/oracle/feeds/:type", h.removeFeed)
}

type setManualPriceRequest struct {
	AssetType string `json:"asset_type" binding:"required"`
	Price     uint64 `json:"price" binding:"required"`
}

// @Summary      Get reference price
// @Description  Returns the current price for an asset type, feed preferred over manual
// @Tags         oracle
// @Produce      json
// @Param        type path string true "Asset type key"
// @Success      200  {object}  response.APIResponse{data=Quote} "Price fetched"
// @Failure      404  {object}  response.APIResponse "No valid price"
// @Router       /oracle/prices/{type} [get]
func (h *Handler) getPrice(c *gin.Context) {
	quote, err := h.service.GetPrice(c.Request.Context(), c.Param("type"))
	if err != nil {
		if errors.Is(err, ErrNoPrice) || errors.Is(err, ErrStalePrice) || errors.Is(err, ErrBadRound) {
			response.SendError(c, http.StatusNotFound, err.Error())
			return
		}
		response.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "price fetched", quote)
}

// @Summary      List known manual prices
// @Tags         oracle
// @Produce      json
// @Success      200  {object}  response.APIResponse "Prices listed"
// @Router       /oracle/prices [get]
func (h *Handler) listQuotes(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "prices listed", h.service.ListQuotes(c.Request.Context()))
}

// @Summary      Set a manual price
// @Description  Governance-only manual price override for an asset type
// @Tags         oracle
// @Accept       json
// @Produce      json
// @Param        request body setManualPriceRequest true "Manual price request"
// @Success      200  {object}  response.APIResponse "Price set"
// @Failure      400  {object}  response.APIResponse "Invalid price"
// @Failure      403  {object}  response.APIResponse "Caller lacks governance capability"
// @Router       /oracle/prices [post]
func (h *Handler) setManualPrice(c *gin.Context) {
	var req setManualPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	err := h.service.SetManualPrice(c.Request.Context(), access.CallerUUID(c), req.AssetType, req.Price)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPrice):
			response.SendError(c, http.StatusBadRequest, "price must be positive")
		case errors.Is(err, access.ErrNotAuthorized):
			response.SendError(c, http.StatusForbidden, "caller lacks governance capability")
		default:
			response.SendError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "manual price set", nil)
}

// @Summary      Remove a price feed
// @Description  Governance-only price feed removal
// @Tags         oracle
// @Produce      json
// @Param        type path string true "Asset type key"
// @Success      200  {object}  response.APIResponse "Feed removed"
// @Failure      403  {object}  response.APIResponse "Caller lacks governance capability"
// @Failure      404  {object}  response.APIResponse "No feed registered"
// @Router       /oracle/feeds/{type} [delete]
func (h *Handler) removeFeed(c *gin.Context) {
	err := h.service.RemovePriceFeed(c.Request.Context(), access.CallerUUID(c), c.Param("type"))
	if err != nil {
		switch {
		case errors.Is(err, access.ErrNotAuthorized):
			response.SendError(c, http.StatusForbidden, "caller lacks governance capability")
		case errors.Is(err, ErrNoFeed):
			response.SendError(c, http.StatusNotFound, "no feed registered")
		default:
			response.SendError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "price feed removed", nil)
}
