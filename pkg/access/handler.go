package access

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"primevault/pkg/response"
)

type AccountHandler struct {
	service AccountService
}

func NewAccountHandler(service AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

func (h *AccountHandler) RegisterRoutes(router *gin.Engine) {
	router.POST("/accounts", h.register)
	router.POST("/accounts/login", h.login)

	authed := router.Group("/", AuthMiddleware(h.service))
	authed.GET("/accounts", h.listAccounts)
	authed.GET("/accounts/:uuid", h.getAccount)
	authed.POST("/accounts/:uuid/roles", h.grantRole)
	authed.DELETE("/accounts/:uuid/roles/:role", h.revokeRole)
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type grantRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// @Summary      Register an account
// @Description  Creates an account with no capabilities; roles are granted by governance
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request body registerRequest true "Account registration request"
// @Success      201  {object}  response.APIResponse{data=Account} "Account created"
// @Failure      400  {object}  response.APIResponse "Invalid request payload"
// @Failure      500  {object}  response.APIResponse "Internal server error"
// @Router       /accounts [post]
func (h *AccountHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	account, err := h.service.Register(c.Request.Context(), req.Name, req.Email, req.Password, uuid.New().String())
	if err != nil {
		response.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SendAPIResponse(c, http.StatusCreated, true, "account created", account)
}

// @Summary      Login
// @Description  Exchanges credentials for a bearer token
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        request body loginRequest true "Login request"
// @Success      200  {object}  response.APIResponse "Token issued"
// @Failure      401  {object}  response.APIResponse "Invalid credentials"
// @Router       /accounts/login [post]
func (h *AccountHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	account, token, err := h.service.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.SendError(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		response.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "login successful", gin.H{
		"account": account,
		"token":   token,
	})
}

// @Summary      Get account
// @Tags         accounts
// @Produce      json
// @Param        uuid path string true "Account UUID"
// @Success      200  {object}  response.APIResponse{data=Account} "Account fetched"
// @Failure      404  {object}  response.APIResponse "Account not found"
// @Router       /accounts/{uuid} [get]
func (h *AccountHandler) getAccount(c *gin.Context) {
	account, err := h.service.GetAccount(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			response.SendError(c, http.StatusNotFound, "account not found")
			return
		}
		response.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "account fetched", account)
}

// @Summary      List accounts
// @Tags         accounts
// @Produce      json
// @Param        page   query int false "Page number" default(1)
// @Param        limit  query int false "Items per page" default(10)
// @Success      200  {object}  response.APIResponse{data=AccountList} "Accounts listed"
// @Router       /accounts [get]
func (h *AccountHandler) listAccounts(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	items, total, err := h.service.ListAccounts(c.Request.Context(), page, limit)
	if err != nil {
		response.SendError(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "accounts listed", AccountList{Items: items, Total: total, Page: page, Limit: limit})
}

// @Summary      Grant a capability role
// @Description  Governance-only role grant
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        uuid path string true "Account UUID"
// @Param        request body grantRoleRequest true "Role grant request"
// @Success      200  {object}  response.APIResponse{data=Account} "Role granted"
// @Failure      400  {object}  response.APIResponse "Invalid role"
// @Failure      403  {object}  response.APIResponse "Caller lacks governance capability"
// @Failure      404  {object}  response.APIResponse "Account not found"
// @Router       /accounts/{uuid}/roles [post]
func (h *AccountHandler) grantRole(c *gin.Context) {
	var req grantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	account, err := h.service.GrantRole(c.Request.Context(), CallerUUID(c), c.Param("uuid"), req.Role)
	if err != nil {
		h.sendRoleError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "role granted", account)
}

// @Summary      Revoke a capability role
// @Description  Governance-only role revocation
// @Tags         accounts
// @Produce      json
// @Param        uuid path string true "Account UUID"
// @Param        role path string true "Role name"
// @Success      200  {object}  response.APIResponse{data=Account} "Role revoked"
// @Failure      400  {object}  response.APIResponse "Invalid role"
// @Failure      403  {object}  response.APIResponse "Caller lacks governance capability"
// @Failure      404  {object}  response.APIResponse "Account not found"
// @Router       /accounts/{uuid}/roles/{role} [delete]
func (h *AccountHandler) revokeRole(c *gin.Context) {
	account, err := h.service.RevokeRole(c.Request.Context(), CallerUUID(c), c.Param("uuid"), c.Param("role"))
	if err != nil {
		h.sendRoleError(c, err)
		return
	}

	response.SendAPIResponse(c, http.StatusOK, true, "role revoked", account)
}

func (h *AccountHandler) sendRoleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRole):
		response.SendError(c, http.StatusBadRequest, "invalid role")
	case errors.Is(err, ErrNotAuthorized):
		response.SendError(c, http.StatusForbidden, "caller lacks governance capability")
	case errors.Is(err, ErrAccountNotFound):
		response.SendError(c, http.StatusNotFound, "account not found")
	default:
		response.SendError(c, http.StatusInternalServerError, err.Error())
	}
}
