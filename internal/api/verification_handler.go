package api

import (
	"net/http"

	"fitai/fitness-tracker/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VerificationHandler holds the verification service dependency.
type VerificationHandler struct {
	verificationService service.VerificationService
	logger              *zap.SugaredLogger
}

// NewVerificationHandler creates a new VerificationHandler.
func NewVerificationHandler(verificationService service.VerificationService, logger *zap.SugaredLogger) *VerificationHandler {
	return &VerificationHandler{verificationService: verificationService, logger: logger}
}

// --- DTOs for API ---

// RequestCodeRequest defines the expected JSON for requesting a code.
type RequestCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// CommitCodeRequest defines the expected JSON for committing a verification.
type CommitCodeRequest struct {
	Token string `json:"token" binding:"required"`
	Phone string `json:"phone" binding:"required"`
}

// --- Handler Methods ---

// RequestCode handles POST /verification/request. The origin half of the
// cooldown key is the client address.
func (h *VerificationHandler) RequestCode(c *gin.Context) {
	var req RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	requestID, err := h.verificationService.RequestCode(c.Request.Context(), accountID, req.Phone, c.ClientIP())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": gin.H{"requestId": requestID}})
}

// CommitCode handles POST /verification/commit.
func (h *VerificationHandler) CommitCode(c *gin.Context) {
	var req CommitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	err = h.verificationService.CommitCode(c.Request.Context(), accountID, req.Token, req.Phone, c.ClientIP())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": gin.H{"verified": true}})
}
