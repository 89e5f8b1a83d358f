package treasury

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
	router.GET("/treasury/securities", h.listSecurities)
	router.GET("/treasury/securities/:id", h.getSecurity)
	router.GET("/treasury/securities/:id/schedule", h.getSchedule)
	router.GET("/treasury/securities/:id/coupons", h.listCoupons)

	authed := router.Group("/", access.AuthMiddleware(h.auth))
	authed.POST("/treasury/securities", h.registerSecurity)
	authed.POST("/treasury/securities/:id/activate", h.activateSecurity)
	authed.POST("/treasury/securities/:id/purchase", h.purchase)
	authed.POST("/treasury/securities/:id/coupons", h.recordCoupon)
	authed.POST("/treasury/securities/:id/mature", h.matureSecurity)
	authed.POST("/treasury/securities/:id/redeem", h.redeemHolding)
	authed.POST("/treasury/investors", h.whitelistInvestor)
	authed.DELETE("/treasury/investors/:uuid", h.revokeInvestor)
	authed.GET("/treasury/holdings", h.listHoldings)
	authed.POST("/treasury/pause", h.pause)
	authed.POST("/treasury/unpause", h.unpause)
}

type registerSecurityRequest struct {
	CUSIP          string    `json:"cusip" binding:"required"`
	Issuer         string    `json:"issuer" binding:"required"`
	FaceValue      uint64    `json:"face_value" binding:"required"`
	CouponRateBps  uint64    `json:"coupon_rate_bps"`
	IssueDate      time.Time `json:"issue_date" binding:"required"`
	MaturityDate   time.Time `json:"maturity_date" binding:"required"`
	CouponsPerYear int       `json:"coupons_per_year" binding:"required"`
	TotalUnits     uint64    `json:"total_units" binding:"required"`
}

type purchaseRequest struct {
	Units uint64 `json:"units" binding:"required"`
}

type recordCouponRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

type whitelistInvestorRequest struct {
	AccountUUID  string `json:"account_uuid" binding:"required"`
	KYCPassed    bool   `json:"kyc_passed"`
	Accredited   bool   `json:"accredited"`
	Jurisdiction string `json:"jurisdiction"`
}

// @Summary      Register a security
// @Description  Treasury-manager registration of a new fixed-income offering
// @Tags         treasury
// @Accept       json
// @Produce      json
// @Param        request body registerSecurityRequest true "Security details"
// @Success      201  {object}  response.APIResponse{data=Security} "Security registered"
// @Failure      400  {object}  response.APIResponse "Invalid security parameters"
// @Failure      403  {object}  response.APIResponse "Caller lacks treasury-manager capability"
// @Router       /treasury/securities [post]
func (h *Handler) registerSecurity(c *gin.Context) {
	var req registerSecurityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	security, err := h.service.RegisterSecurity(c.Request.Context(), access.CallerUUID(c), RegisterInput{
		CUSIP:          req.CUSIP,
		Issuer:         req.Issuer,
		FaceValue:      req.FaceValue,
		CouponRateBps:  req.CouponRateBps,
		IssueDate:      req.IssueDate,
		MaturityDate:   req.MaturityDate,
		CouponsPerYear: req.CouponsPerYear,
		TotalUnits:     req.TotalUnits,
	})
	if err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "security registered", security)
}

// @Summary      Activate a security
// @Tags         treasury
// @Produce      json
// @Param        id path int true "Security ID"
// @Success      200  {object}  response.APIResponse{data=Security} "Security activated"
// @Failure      409  {object}  response.APIResponse "Security is not in offered status"
// @Router       /treasury/securities/{id}/activate [post]
func (h *Handler) activateSecurity(c *gin.Context) {
	id, ok := parseSecurityID(c)
	if !ok {
		return
	}

	security, err := h.service.ActivateSecurity(c.Request.Context(), access.CallerUUID(c), id)
	if err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "security activated", security)
}

// @Summary      Purchase units
// @Description  Whitelisted accredited investors buy units of an active security
// @Tags         treasury
// @Accept       json
// @Produce      json
// @Param        id path int true "Security ID"
// @Param        request body purchaseRequest true "Units to purchase"
// @Success      200  {object}  response.APIResponse{data=Holding} "Units purchased"
// @Failure      403  {object}  response.APIResponse "Caller is not whitelisted or not accredited"
// @Failure      409  {object}  response.APIResponse "Security not active or offering exceeded"
// @Router       /treasury/securities/{id}/purchase [post]
func (h *Handler) purchase(c *gin.Context) {
	id, ok := parseSecurityID(c)
	if !ok {
		return
	}
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	holding, err := h.service.Purchase(c.Request.Context(), access.CallerUUID(c), id, req.Units)
	if err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "units purchased", holding)
}

// @Summary      Record a coupon payment
// @Description  Marks the next unpaid scheduled coupon date as paid, strictly in order
// @Tags         treasury
// @Accept       json
// @Produce      json
// @Param        id path int true "Security ID"
// @Param        request body recordCouponRequest true "Scheduled coupon date"
// @Success      200  {object}  response.APIResponse "Coupon recorded"
// @Failure      409  {object}  response.APIResponse "Date is not the next unpaid scheduled date"
// @Router       /treasury/securities/{id}/coupons [post]
func (h *Handler) recordCoupon(c *gin.Context) {
	id, ok := parseSecurityID(c)
	if !ok {
		return
	}
	var req recordCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	if err := h.service.RecordCouponPayment(c.Request.Context(), access.CallerUUID(c), id, req.ScheduledAt); err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "coupon payment recorded", nil)
}

// @Summary      Mature a security
// @Tags         treasury
// @Produce      json
// @Param        id path int true "Security ID"
// @Success      200  {object}  response.APIResponse{data=Security} "Security matured"
// @Failure      409  {object}  response.APIResponse "Maturity date not reached or wrong status"
// @Router       /treasury/securities/{id}/mature [post]
func (h *Handler) matureSecurity(c *gin.Context) {
	id, ok := parseSecurityID(c)
	if !ok {
		return
	}

	security, err := h.service.MatureSecurity(c.Request.Context(), access.CallerUUID(c), id)
	if err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "security matured", security)
}

// @Summary      Redeem a holding
// @Description  Pays out face value per unit on a matured security and zeroes the position
// @Tags         treasury
// @Produce      json
// @Param        id path int true "Security ID"
// @Success      200  {object}  response.APIResponse "Holding redeemed"
// @Failure      404  {object}  response.APIResponse "Caller holds no units"
// @Failure      409  {object}  response.APIResponse "Security has not matured"
// @Router       /treasury/securities/{id}/redeem [post]
func (h *Handler) redeemHolding(c *gin.Context) {
	id, ok := parseSecurityID(c)
	if !ok {
		return
	}

	payout, err := h.service.RedeemHolding(c.Request.Context(), access.CallerUUID(c), id)
	if err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "holding redeemed", gin.H{"payout": payout})
}

// @Summary      Whitelist an investor
// @Description  Compliance-only KYC and accreditation registration
// @Tags         treasury
// @Accept       json
// @Produce      json
// @Param        request body whitelistInvestorRequest true "Investor details"
// @Success      201  {object}  response.APIResponse{data=Investor} "Investor whitelisted"
// @Failure      403  {object}  response.APIResponse "Caller lacks compliance capability"
// @Router       /treasury/investors [post]
func (h *Handler) whitelistInvestor(c *gin.Context) {
	var req whitelistInvestorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	investor, err := h.service.WhitelistInvestor(c.Request.Context(), access.CallerUUID(c),
		req.AccountUUID, req.KYCPassed, req.Accredited, req.Jurisdiction)
	if err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "investor whitelisted", investor)
}

// @Summary      Revoke an investor
// @Tags         treasury
// @Produce      json
// @Param        uuid path string true "Investor account UUID"
// @Success      200  {object}  response.APIResponse "Investor revoked"
// @Failure      404  {object}  response.APIResponse "Investor not found"
// @Router       /treasury/investors/{uuid} [delete]
func (h *Handler) revokeInvestor(c *gin.Context) {
	if err := h.service.RevokeInvestor(c.Request.Context(), access.CallerUUID(c), c.Param("uuid")); err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "investor revoked", nil)
}

// @Summary      List the caller's holdings
// @Tags         treasury
// @Produce      json
// @Success      200  {object}  response.APIResponse "Holdings listed"
// @Router       /treasury/holdings [get]
func (h *Handler) listHoldings(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "holdings listed", h.service.ListHoldings(access.CallerUUID(c)))
}

// @Summary      Pause the treasury module
// @Tags         treasury
// @Produce      json
// @Success      200  {object}  response.APIResponse "Treasury paused"
// @Failure      403  {object}  response.APIResponse "Caller lacks emergency capability"
// @Router       /treasury/pause [post]
func (h *Handler) pause(c *gin.Context) {
	if err := h.service.Pause(c.Request.Context(), access.CallerUUID(c)); err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "treasury paused", nil)
}

// @Summary      Unpause the treasury module
// @Tags         treasury
// @Produce      json
// @Success      200  {object}  response.APIResponse "Treasury unpaused"
// @Failure      403  {object}  response.APIResponse "Caller lacks emergency capability"
// @Router       /treasury/unpause [post]
func (h *Handler) unpause(c *gin.Context) {
	if err := h.service.Unpause(c.Request.Context(), access.CallerUUID(c)); err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "treasury unpaused", nil)
}

// @Summary      Get a security
// @Tags         treasury
// @Produce      json
// @Param        id path int true "Security ID"
// @Success      200  {object}  response.APIResponse{data=Security} "Security fetched"
// @Failure      404  {object}  response.APIResponse "Security not found"
// @Router       /treasury/securities/{id} [get]
func (h *Handler) getSecurity(c *gin.Context) {
	id, ok := parseSecurityID(c)
	if !ok {
		return
	}

	security, err := h.service.GetSecurity(id)
	if err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "security fetched", security)
}

// @Summary      List securities
// @Tags         treasury
// @Produce      json
// @Success      200  {object}  response.APIResponse "Securities listed"
// @Router       /treasury/securities [get]
func (h *Handler) listSecurities(c *gin.Context) {
	response.SendAPIResponse(c, http.StatusOK, true, "securities listed", h.service.ListSecurities())
}

// @Summary      Coupon schedule
// @Description  Derived coupon dates from issue to maturity
// @Tags         treasury
// @Produce      json
// @Param        id path int true "Security ID"
// @Success      200  {object}  response.APIResponse "Schedule fetched"
// @Failure      404  {object}  response.APIResponse "Security not found"
// @Router       /treasury/securities/{id}/schedule [get]
func (h *Handler) getSchedule(c *gin.Context) {
	id, ok := parseSecurityID(c)
	if !ok {
		return
	}

	schedule, err := h.service.CouponSchedule(id)
	if err != nil {
		h.sendTreasuryError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "coupon schedule fetched", schedule)
}

// @Summary      Recorded coupon payments
// @Tags         treasury
// @Produce      json
// @Param        id path int true "Security ID"
// @Success      200  {object}  response.APIResponse "Coupon payments listed"
// @Router       /treasury/securities/{id}/coupons [get]
func (h *Handler) listCoupons(c *gin.Context) {
	id, ok := parseSecurityID(c)
	if !ok {
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "coupon payments listed", h.service.CouponPayments(id))
}

func parseSecurityID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		response.SendError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) sendTreasuryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrNotAuthorized):
		response.SendError(c, http.StatusForbidden, "caller lacks the required capability")
	case errors.Is(err, ErrNotWhitelisted), errors.Is(err, ErrNotAccredited), errors.Is(err, ErrKYCNotPassed):
		response.SendError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrSecurityNotFound), errors.Is(err, ErrInvestorNotFound), errors.Is(err, ErrNoHolding):
		response.SendError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrExceedsOffering),
		errors.Is(err, ErrCouponOutOfOrder), errors.Is(err, ErrNotYetMature):
		response.SendError(c, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPaused):
		response.SendError(c, http.StatusServiceUnavailable, err.Error())
	default:
		response.SendError(c, http.StatusBadRequest, err.Error())
	}
}
