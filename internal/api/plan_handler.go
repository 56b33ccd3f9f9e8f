package api

import (
	"encoding/json"
	"net/http"
	"time"

	"fitai/fitness-tracker/internal/domain"
	"fitai/fitness-tracker/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PlanHandler holds the thread service dependency.
type PlanHandler struct {
	threadService service.ThreadService
	logger        *zap.SugaredLogger
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(threadService service.ThreadService, logger *zap.SugaredLogger) *PlanHandler {
	return &PlanHandler{threadService: threadService, logger: logger}
}

// --- DTOs for API ---

// RegenerateProgramRequest defines the expected JSON for a program rebuild.
type RegenerateProgramRequest struct {
	Goal string `json:"goal" binding:"required"`
}

// ModifyProgramRequest defines the expected JSON for a program tweak.
type ModifyProgramRequest struct {
	Instruction string `json:"instruction" binding:"required"`
}

// DietMessageRequest defines the expected JSON for a diet-thread message.
type DietMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// MessageResponse is the DTO for one thread message.
type MessageResponse struct {
	Role    domain.MessageRole `json:"role"`
	Content string             `json:"content"`
	At      time.Time          `json:"at"`
}

// ThreadResponse is the DTO for a thread: ordered history plus the current
// plan, returned verbatim as stored.
type ThreadResponse struct {
	History []MessageResponse `json:"history"`
	Plan    json.RawMessage   `json:"plan,omitempty"`
}

func mapMessages(history []domain.Message) []MessageResponse {
	responses := make([]MessageResponse, len(history))
	for i, msg := range history {
		responses[i] = MessageResponse{Role: msg.Role, Content: msg.Content, At: msg.At}
	}
	return responses
}

func mapThread(history []domain.Message, plan string) ThreadResponse {
	resp := ThreadResponse{History: mapMessages(history)}
	if plan != "" {
		resp.Plan = json.RawMessage(plan)
	}
	return resp
}

// --- Handler Methods ---

// GetProgram handles GET /program.
func (h *PlanHandler) GetProgram(c *gin.Context) {
	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	entry, err := h.threadService.GetTrainingThread(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": mapThread(entry.History, entry.Plan)})
}

// RegenerateProgram handles POST /program/regenerate.
func (h *PlanHandler) RegenerateProgram(c *gin.Context) {
	var req RegenerateProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	plan, err := h.threadService.RegenerateProgram(c.Request.Context(), accountID, req.Goal)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": plan})
}

// ModifyProgram handles POST /program/modify.
func (h *PlanHandler) ModifyProgram(c *gin.Context) {
	var req ModifyProgramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	plan, err := h.threadService.ModifyProgram(c.Request.Context(), accountID, req.Instruction)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": plan})
}

// GetDiet handles GET /diet/:date.
func (h *PlanHandler) GetDiet(c *gin.Context) {
	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	day, err := h.threadService.GetDietDay(c.Request.Context(), accountID, c.Param("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": mapThread(day.History, day.Plan)})
}

// SendDietMessage handles POST /diet/:date/message.
func (h *PlanHandler) SendDietMessage(c *gin.Context) {
	var req DietMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	plan, err := h.threadService.SendDietMessage(c.Request.Context(), accountID, c.Param("date"), req.Text)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": plan})
}
