package api

import (
	"errors"
	"net/http"

	"fitai/fitness-tracker/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps typed service errors onto the {error, retryAfter?}
// envelope. Unknown errors surface generically; upstream failures are logged
// with detail but never leaked to the client.
func respondError(c *gin.Context, logger *zap.SugaredLogger, err error) {
	var rateLimitErr *service.RateLimitError
	var banErr *service.ModerationBanError
	var contractErr *service.SchemaContractError
	var upstreamErr *service.UpstreamError

	switch {
	case errors.Is(err, service.ErrValidationFailed):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSessionAlreadyActive),
		errors.Is(err, service.ErrNoActiveSession),
		errors.Is(err, service.ErrHistoryCapReached):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrIdentityConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "identity already registered"})
	case errors.Is(err, service.ErrOffDomainRequest):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "request is out of domain"})
	case errors.As(err, &rateLimitErr):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "rate limited",
			"retryAfter": rateLimitErr.RetryAfterSeconds,
		})
	case errors.As(err, &banErr):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":      "account temporarily banned from AI requests",
			"retryAfter": banErr.RetryAfterSeconds,
		})
	case errors.As(err, &contractErr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": contractErr.Error()})
	case errors.As(err, &upstreamErr):
		logger.Errorw("upstream failure", "op", upstreamErr.Op, "err", upstreamErr.Err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "upstream service unavailable"})
	default:
		logger.Errorw("unhandled error", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
