package vault

import (
	"errors"
	"net/http"
	"strconv"
	"time"

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
	router.GET("/vault/assets", h.listAssets)
	router.GET("/vault/assets/:id", h.getAsset)
	router.GET("/vault/custodians", h.listCustodians)
	router.GET("/vault/custodians/:id", h.getCustodian)
	router.GET("/vault/appraisers", h.listAppraisers)
	router.GET("/vault/fees", h.getFeeRates)
	router.GET("/vault/stats", h.getStats)

	authed := router.Group("/", access.AuthMiddleware(h.auth))
	authed.POST("/vault/assets", h.depositAsset)
	authed.POST("/vault/assets/:id/verify", h.verifyAsset)
	authed.POST("/vault/assets/:id/tokenize", h.tokenizeAsset)
	authed.POST("/vault/assets/:id/fractionalize", h.fractionalizeAsset)
	authed.POST("/vault/assets/:id/redeem", h.redeemAsset)
	authed.POST("/vault/assets/:id/liquidate", h.liquidateAsset)
	authed.POST("/vault/assets/:id/reappraise", h.reappraiseAsset)
	authed.POST("/vault/custodians", h.approveCustodian)
	authed.DELETE("/vault/custodians/:id", h.revokeCustodian)
	authed.POST("/vault/appraisers", h.certifyAppraiser)
	authed.DELETE("/vault/appraisers/:id", h.revokeAppraiser)
	authed.POST("/vault/fees/withdraw", h.withdrawFees)
	authed.PUT("/vault/fees", h.updateFeeRates)
	authed.POST("/vault/pause", h.pause)
	authed.POST("/vault/unpause", h.unpause)
}

type depositAssetRequest struct {
	Category          string `json:"category" binding:"required"`
	Description       string `json:"description"`
	SerialHash        string `json:"serial_hash" binding:"required"`
	CustodianID       int64  `json:"custodian_id" binding:"required"`
	EstimatedValue    uint64 `json:"estimated_value" binding:"required"`
	InsuranceProvider string `json:"insurance_provider"`
	InsuranceValue    uint64 `json:"insurance_value"`
}

type verifyAssetRequest struct {
	AppraisedValue uint64 `json:"appraised_value" binding:"required"`
	LegalDocHash   string `json:"legal_doc_hash"`
	Jurisdiction   string `json:"jurisdiction"`
}

type tokenizeAssetRequest struct {
	CollateralRatioBps uint64 `json:"collateral_ratio_bps" binding:"required"`
}

type fractionalizeAssetRequest struct {
	NumShares uint64 `json:"num_shares" binding:"required"`
}

type liquidateAssetRequest struct {
	SalePrice uint64 `json:"sale_price" binding:"required"`
}

type approveCustodianRequest struct {
	AccountUUID       string `json:"account_uuid" binding:"required"`
	Name              string `json:"name" binding:"required"`
	CertificationHash string `json:"certification_hash"`
}

type certifyAppraiserRequest struct {
	AccountUUID string    `json:"account_uuid" binding:"required"`
	Expiry      time.Time `json:"expiry" binding:"required"`
}

// @Summary      Deposit an asset
// @Description  Registers a new asset under an approved custodian, pending verification
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        request body depositAssetRequest true "Deposit request"
// @Success      201  {object}  response.APIResponse{data=Asset} "Asset deposited"
// @Failure      400  {object}  response.APIResponse "Invalid category, value or custodian"
// @Failure      401  {object}  response.APIResponse "Missing or invalid token"
// @Router       /vault/assets [post]
func (h *Handler) depositAsset(c *gin.Context) {
	var req depositAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	asset, err := h.service.DepositAsset(c.Request.Context(), access.CallerUUID(c), DepositInput{
		Category:          req.Category,
		Description:       req.Description,
		SerialHash:        req.SerialHash,
		CustodianID:       req.CustodianID,
		EstimatedValue:    req.EstimatedValue,
		InsuranceProvider: req.InsuranceProvider,
		InsuranceValue:    req.InsuranceValue,
	})
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "asset deposited", asset)
}

// @Summary      Verify an asset
// @Description  Certified-appraiser verification with the authoritative appraised value
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        id path int true "Asset ID"
// @Param        request body verifyAssetRequest true "Verification details"
// @Success      200  {object}  response.APIResponse{data=Asset} "Asset verified"
// @Failure      403  {object}  response.APIResponse "Caller is not a certified appraiser"
// @Failure      409  {object}  response.APIResponse "Asset is not pending verification"
// @Router       /vault/assets/{id}/verify [post]
func (h *Handler) verifyAsset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req verifyAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	asset, err := h.service.VerifyAsset(c.Request.Context(), access.CallerUUID(c), id, req.AppraisedValue, req.LegalDocHash, req.Jurisdiction)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "asset verified", asset)
}

// @Summary      Tokenize an asset
// @Description  Locks the asset as collateral and mints claim tokens to the owner, net of the tokenization fee
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        id path int true "Asset ID"
// @Param        request body tokenizeAssetRequest true "Collateral ratio"
// @Success      200  {object}  response.APIResponse "Tokenized, claims minted"
// @Failure      400  {object}  response.APIResponse "Ratio below 1:1"
// @Failure      403  {object}  response.APIResponse "Caller is not the owner"
// @Failure      409  {object}  response.APIResponse "Asset is not verified or already locked"
// @Router       /vault/assets/{id}/tokenize [post]
func (h *Handler) tokenizeAsset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req tokenizeAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	minted, err := h.service.TokenizeAsset(c.Request.Context(), access.CallerUUID(c), id, req.CollateralRatioBps)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "asset tokenized", gin.H{"claims_minted": minted})
}

// @Summary      Fractionalize an asset
// @Description  Creates a share class over a tokenized asset; full redemption becomes unavailable
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        id path int true "Asset ID"
// @Param        request body fractionalizeAssetRequest true "Number of shares"
// @Success      200  {object}  response.APIResponse "Share class created"
// @Failure      400  {object}  response.APIResponse "Share count out of range"
// @Failure      409  {object}  response.APIResponse "Asset is not tokenized or already fractionalized"
// @Router       /vault/assets/{id}/fractionalize [post]
func (h *Handler) fractionalizeAsset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req fractionalizeAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	classID, err := h.service.FractionalizeAsset(c.Request.Context(), access.CallerUUID(c), id, req.NumShares)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "asset fractionalized", gin.H{"share_class_id": classID})
}

// @Summary      Redeem an asset
// @Description  Burns the caller's full issued claim amount and releases the collateral
// @Tags         vault
// @Produce      json
// @Param        id path int true "Asset ID"
// @Success      200  {object}  response.APIResponse{data=Asset} "Asset redeemed"
// @Failure      400  {object}  response.APIResponse "Caller holds less than the issued amount"
// @Failure      409  {object}  response.APIResponse "Asset is fractionalized or not tokenized"
// @Router       /vault/assets/{id}/redeem [post]
func (h *Handler) redeemAsset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	asset, err := h.service.RedeemAsset(c.Request.Context(), access.CallerUUID(c), id)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "asset redeemed", asset)
}

// @Summary      Liquidate an asset
// @Description  Governance liquidation at a sale price validated against the oracle reference
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        id path int true "Asset ID"
// @Param        request body liquidateAssetRequest true "Sale price"
// @Success      200  {object}  response.APIResponse{data=Asset} "Asset liquidating"
// @Failure      400  {object}  response.APIResponse "Sale price rejected by oracle bound"
// @Failure      403  {object}  response.APIResponse "Caller lacks governance capability"
// @Router       /vault/assets/{id}/liquidate [post]
func (h *Handler) liquidateAsset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req liquidateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	asset, err := h.service.LiquidateAsset(c.Request.Context(), access.CallerUUID(c), id, req.SalePrice)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "asset liquidating", asset)
}

// @Summary      Reappraise an asset
// @Description  Refreshes the appraised value from the oracle; a drop below 80% defaults the asset
// @Tags         vault
// @Produce      json
// @Param        id path int true "Asset ID"
// @Success      200  {object}  response.APIResponse{data=Asset} "Asset reappraised"
// @Failure      403  {object}  response.APIResponse "Caller is not a certified appraiser"
// @Failure      409  {object}  response.APIResponse "Appraisal is less than a year old"
// @Router       /vault/assets/{id}/reappraise [post]
func (h *Handler) reappraiseAsset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	asset, err := h.service.ReappraiseAsset(c.Request.Context(), access.CallerUUID(c), id)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "asset reappraised", asset)
}

// @Summary      Approve a custodian
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        request body approveCustodianRequest true "Custodian details"
// @Success      201  {object}  response.APIResponse{data=Custodian} "Custodian approved"
// @Failure      403  {object}  response.APIResponse "Caller lacks custodian-manager capability"
// @Failure      409  {object}  response.APIResponse "Custodian already approved"
// @Router       /vault/custodians [post]
func (h *Handler) approveCustodian(c *gin.Context) {
	var req approveCustodianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	custodian, err := h.service.ApproveCustodian(c.Request.Context(), access.CallerUUID(c), req.AccountUUID, req.Name, req.CertificationHash)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "custodian approved", custodian)
}

// @Summary      Revoke a custodian
// @Description  Only custodians with no assets in custody can be revoked
// @Tags         vault
// @Produce      json
// @Param        id path int true "Custodian ID"
// @Success      200  {object}  response.APIResponse "Custodian revoked"
// @Failure      409  {object}  response.APIResponse "Custodian still holds assets"
// @Router       /vault/custodians/{id} [delete]
func (h *Handler) revokeCustodian(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.RevokeCustodian(c.Request.Context(), access.CallerUUID(c), id); err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "custodian revoked", nil)
}

// @Summary      Certify an appraiser
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        request body certifyAppraiserRequest true "Appraiser details"
// @Success      201  {object}  response.APIResponse{data=Appraiser} "Appraiser certified"
// @Failure      403  {object}  response.APIResponse "Caller lacks governance capability"
// @Router       /vault/appraisers [post]
func (h *Handler) certifyAppraiser(c *gin.Context) {
	var req certifyAppraiserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	appraiser, err := h.service.CertifyAppraiser(c.Request.Context(), access.CallerUUID(c), req.AccountUUID, req.Expiry)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "appraiser certified", appraiser)
}

// @Summary      Revoke an appraiser
// @Tags         vault
// @Produce      json
// @Param        id path int true "Appraiser ID"
// @Success      200  {object}  response.APIResponse "Appraiser revoked"
// @Failure      404  {object}  response.APIResponse "Appraiser not found"
// @Router       /vault/appraisers/{id} [delete]
func (h *Handler) revokeAppraiser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.service.RevokeAppraiser(c.Request.Context(), access.CallerUUID(c), id); err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "appraiser revoked", nil)
}

// @Summary      Withdraw accumulated fees
// @Description  Governance-only; reads and zeroes the fee accumulator atomically
// @Tags         vault
// @Produce      json
// @Success      200  {object}  response.APIResponse "Fees withdrawn"
// @Failure      403  {object}  response.APIResponse "Caller lacks governance capability"
// @Router       /vault/fees/withdraw [post]
func (h *Handler) withdrawFees(c *gin.Context) {
	amount, err := h.service.WithdrawFees(c.Request.Context(), access.CallerUUID(c))
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "fees withdrawn", gin.H{"amount": amount})
}

// @Summary      Update fee rates
// @Description  Governance-only; each rate is bounded
// @Tags         vault
// @Accept       json
// @Produce      json
// @Param        request body FeeRates true "New fee rates in basis points"
// @Success      200  {object}  response.APIResponse "Fee rates updated"
// @Failure      400  {object}  response.APIResponse "A rate exceeds its bound"
// @Router       /vault/fees [put]
func (h *Handler) updateFeeRates(c *gin.Context) {
	var req FeeRates
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.service.UpdateFeeRates(c.Request.Context(), access.CallerUUID(c), req); err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "fee rates updated", nil)
}

// @Summary      Pause the vault
// @Description  Emergency-only; all mutating entry points refuse while paused
// @Tags         vault
// @Produce      json
// @Success      200  {object}  response.APIResponse "Vault paused"
// @Failure      403  {object}  response.APIResponse "Caller lacks emergency capability"
// @Router       /vault/pause [post]
func (h *Handler) pause(c *gin.Context) {
	if err := h.service.Pause(c.Request.Context(), access.CallerUUID(c)); err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "vault paused", nil)
}

// @Summary      Unpause the vault
// @Tags         vault
// @Produce      json
// @Success      200  {object}  response.APIResponse "Vault unpaused"
// @Failure      403  {object}  response.APIResponse "Caller lacks emergency capability"
// @Router       /vault/unpause [post]
func (h *Handler) unpause(c *gin.Context) {
	if err := h.service.Unpause(c.Request.Context(), access.CallerUUID(c)); err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "vault unpaused", nil)
}

// @Summary      Get an asset
// @Tags         vault
// @Produce      json
// @Param        id path int true "Asset ID"
// @Success      200  {object}  response.APIResponse{data=Asset} "Asset fetched"
// @Failure      404  {object}  response.APIResponse "Asset not found"
// @Router       /vault/assets/{id} [get]
func (h *Handler) getAsset(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	asset, err := h.service.GetAsset(id)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "asset fetched", asset)
}

// @Summary      List assets
// @Description  Paginated, filterable by owner, category and status
// @Tags         vault
// @Produce      json
// @Param        owner    query string false "Owner account UUID"
// @Param        category query string false "Asset category"
// @Param        status   query string false "Lifecycle status"
// @Param        page     query int    false "Page number"  default(1)
// @Param        limit    query int    false "Items per page" default(10)
// @Success      200  {object}  response.APIResponse{data=AssetList} "Assets listed"
// @Router       /vault/assets [get]
func (h *Handler) listAssets(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	var filters AssetFilters
	if owner := c.Query("owner"); owner != "" {
		filters.OwnerUUID = &owner
	}
	if category := c.Query("category"); category != "" {
		filters.Category = &category
	}
	if status := c.Query("status"); status != "" {
		s := AssetStatus(status)
		filters.Status = &s
	}

	items, total := h.service.ListAssets(filters, page, limit)
	response.SendAPIResponse(c, http.StatusOK, true, "assets listed", AssetList{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// @Summary      Get a custodian
// @Tags         vault
// @Produce      json
// @Param        id path int true "Custodian ID"
// @Success      200  {object}  response.APIResponse{data=Custodian} "Custodian fetched"
// @Failure      404  {object}  response.APIResponse "Custodian not found"
// @Router       /vault/custodians/{id} [get]
func (h *Handler) getCustodian(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	custodian, err := h.service.GetCustodian(id)
	if err != nil {
		h.sendVaultError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "custodian fetched", custodian)
}

// @Summary      List custodians
// @Tags         vault
// @Produce      json
// @Success      200  {object}  response.APIResponse "Custodians listed"
// @Router       /vault/custodians [get]
func (h *Handler) listCustodians(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "custodians listed", h.service.ListCustodians())
}

// @Summary      List appraisers
// @Tags         vault
// @Produce      json
// @Success      200  {object}  response.APIResponse "Appraisers listed"
// @Router       /vault/appraisers [get]
func (h *Handler) listAppraisers(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "appraisers listed", h.service.ListAppraisers())
}

// @Summary      Current fee rates
// @Tags         vault
// @Produce      json
// @Success      200  {object}  response.APIResponse{data=FeeRates} "Fee rates fetched"
// @Router       /vault/fees [get]
func (h *Handler) getFeeRates(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "fee rates fetched", h.service.CurrentFeeRates())
}

// @Summary      Vault stats
// @Description  Total value locked, claims issued, fee accumulator and pause state
// @Tags         vault
// @Produce      json
// @Success      200  {object}  response.APIResponse{data=Stats} "Stats fetched"
// @Router       /vault/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "vault stats fetched", h.service.Stats())
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		response.SendError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) sendVaultError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrNotAuthorized):
		response.SendError(c, http.StatusForbidden, "caller lacks the required capability")
	case errors.Is(err, ErrAppraiserNotCertified):
		response.SendError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotOwner):
		response.SendError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrAssetNotFound), errors.Is(err, ErrCustodianNotFound), errors.Is(err, ErrAppraiserNotFound):
		response.SendError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrAlreadyLocked), errors.Is(err, ErrNotLocked),
		errors.Is(err, ErrAlreadyFractionalized), errors.Is(err, ErrFractionalized),
		errors.Is(err, ErrCustodianExists), errors.Is(err, ErrCustodianHasAssets),
		errors.Is(err, ErrReappraisalTooSoon):
		response.SendError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPaused):
		response.SendError(c, http.StatusServiceUnavailable, err.Error())
	default:
		response.SendError(c, http.StatusBadRequest, err.Error())
	}
}
