package api

import (
	"net/http"
	"time"

	"fitai/fitness-tracker/internal/domain"
	"fitai/fitness-tracker/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler holds the session service dependency.
type SessionHandler struct {
	sessionService service.SessionService
	logger         *zap.SugaredLogger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService service.SessionService, logger *zap.SugaredLogger) *SessionHandler {
	return &SessionHandler{sessionService: sessionService, logger: logger}
}

// --- DTOs for API ---

// SetRequest mirrors one set's numeric leaves. Pointers keep "missing"
// distinguishable from zero for validation.
type SetRequest struct {
	Weight *float64 `json:"weight"`
	Reps   *float64 `json:"reps"`
}

// ExerciseRequest is one exercise within a submitted workout day.
type ExerciseRequest struct {
	Name string       `json:"name"`
	Data []SetRequest `json:"data"`
}

// WorkoutDayRequest is the planned or final day structure.
type WorkoutDayRequest struct {
	Name      string            `json:"name"`
	Exercises []ExerciseRequest `json:"exercises"`
}

// StartSessionRequest defines the expected JSON for starting a session.
type StartSessionRequest struct {
	Day WorkoutDayRequest `json:"day" binding:"required"`
}

// EndSessionRequest defines the expected JSON for ending a session.
type EndSessionRequest struct {
	Day     WorkoutDayRequest `json:"day" binding:"required"`
	Elapsed int64             `json:"elapsed"`
}

// SessionResponse is the DTO for returning a session entry.
type SessionResponse struct {
	StartedAt time.Time         `json:"startedAt"`
	Active    bool              `json:"active"`
	Snapshot  domain.WorkoutDay `json:"snapshot"`
	Elapsed   *int64            `json:"elapsed,omitempty"`
}

func mapWorkoutDay(req WorkoutDayRequest) domain.WorkoutDay {
	day := domain.WorkoutDay{Name: req.Name, Exercises: make([]domain.Exercise, 0, len(req.Exercises))}
	for _, ex := range req.Exercises {
		exercise := domain.Exercise{Name: ex.Name, Data: make([]domain.SetEntry, 0, len(ex.Data))}
		for _, set := range ex.Data {
			exercise.Data = append(exercise.Data, domain.SetEntry{Weight: set.Weight, Reps: set.Reps})
		}
		day.Exercises = append(day.Exercises, exercise)
	}
	return day
}

func mapSessionToResponse(entry *domain.SessionEntry) SessionResponse {
	if entry == nil {
		return SessionResponse{}
	}
	return SessionResponse{
		StartedAt: entry.StartedAt,
		Active:    entry.Active,
		Snapshot:  entry.Snapshot,
		Elapsed:   entry.Elapsed,
	}
}

// --- Handler Methods ---

// StartSession handles POST /sessions/start.
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	entry, err := h.sessionService.StartSession(c.Request.Context(), accountID, mapWorkoutDay(req.Day))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"result": mapSessionToResponse(entry)})
}

// EndSession handles POST /sessions/end.
func (h *SessionHandler) EndSession(c *gin.Context) {
	var req EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	entry, err := h.sessionService.EndSession(c.Request.Context(), accountID, mapWorkoutDay(req.Day), req.Elapsed)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": mapSessionToResponse(entry)})
}

// GetActiveSession handles GET /sessions/active.
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	accountID, err := getAccountIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify account from token.")
		return
	}

	entry, err := h.sessionService.GetActiveSession(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"result": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": mapSessionToResponse(entry)})
}
