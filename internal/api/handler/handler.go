package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"collabflow/internal/api/dto"
	"collabflow/internal/domain"
	"collabflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Handler exposes the subsystem over HTTP. Identity arrives pre-verified as
// user ids in the request bodies; this layer never authenticates.
type Handler struct {
	workflows   service.WorkflowService
	contexts    service.ContextService
	checkpoints service.CheckpointService
	queue       service.QueueService
	conflicts   service.ConflictService
	decisions   service.DecisionService
	sessions    service.SessionService
}

func New(workflows service.WorkflowService, contexts service.ContextService, checkpoints service.CheckpointService, queue service.QueueService, conflicts service.ConflictService, decisions service.DecisionService, sessions service.SessionService) *Handler {
	return &Handler{
		workflows:   workflows,
		contexts:    contexts,
		checkpoints: checkpoints,
		queue:       queue,
		conflicts:   conflicts,
		decisions:   decisions,
		sessions:    sessions,
	}
}

// Register wires the routes onto the router group.
func (h *Handler) Register(api *gin.RouterGroup) {
	api.POST("/workflows", h.CreateWorkflow)
	api.GET("/workflows/:id", h.GetWorkflow)
	api.POST("/workflows/:id/transition", h.TransitionWorkflow)
	api.DELETE("/workflows/:id", h.DeleteWorkflow)

	api.GET("/workflows/:id/context", h.GetContext)
	api.PUT("/workflows/:id/context", h.UpdateContext)
	api.POST("/workflows/:id/context/steps", h.AddStepOutput)
	api.POST("/workflows/:id/context/decisions", h.AddDecisionRecord)
	api.POST("/workflows/:id/context/artifacts", h.AddArtifact)

	api.POST("/workflows/:id/checkpoints", h.CreateCheckpoint)
	api.GET("/workflows/:id/checkpoints", h.ListCheckpoints)
	api.POST("/workflows/:id/checkpoints/:checkpointId/restore", h.RestoreCheckpoint)

	api.POST("/workflows/:id/inputs", h.EnqueueInput)
	api.POST("/workflows/:id/inputs/process", h.ProcessQueued)

	api.GET("/workflows/:id/conflicts", h.ListConflicts)
	api.POST("/conflicts/:id/resolve", h.ResolveConflict)

	api.POST("/decisions", h.CreateDecision)
	api.GET("/decisions/:id", h.GetDecision)
	api.PUT("/decisions/:id", h.UpdateDecision)
	api.POST("/decisions/:id/lock", h.LockDecision)
	api.POST("/decisions/:id/unlock", h.UnlockDecision)
	api.GET("/decisions/:id/diff", h.DiffDecision)
	api.POST("/decisions/:id/reviews", h.StartReview)
	api.POST("/reviews/:id/responses", h.SubmitReview)

	api.POST("/sessions", h.ConnectSession)
	api.POST("/sessions/:id/heartbeat", h.Heartbeat)
	api.POST("/sessions/:id/disconnect", h.DisconnectSession)
}

// writeError maps the error taxonomy onto HTTP statuses. Stale writes come
// back 409 with an explicit retry hint, never as silent data loss.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "retry": true})
	case errors.Is(err, domain.ErrConflictAlreadyResolved),
		errors.Is(err, domain.ErrDecisionLocked),
		errors.Is(err, domain.ErrAlreadyResponded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrWorkflowNotFound),
		errors.Is(err, domain.ErrContextNotFound),
		errors.Is(err, domain.ErrCheckpointNotFound),
		errors.Is(err, domain.ErrConflictNotFound),
		errors.Is(err, domain.ErrDecisionNotFound),
		errors.Is(err, domain.ErrVersionNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrReviewNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInputValidationFailed),
		errors.Is(err, domain.ErrReviewReasonRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) CreateWorkflow(c *gin.Context) {
	var req dto.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf, err := h.workflows.Create(c.Request.Context(), req.DefinitionRef, req.Name, req.UserID.String(), req.Preferences)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, wf)
}

func (h *Handler) GetWorkflow(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	wf, err := h.workflows.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h *Handler) TransitionWorkflow(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf, err := h.workflows.Transition(c.Request.Context(), id, domain.WorkflowStatus(req.To))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, wf)
}

func (h *Handler) DeleteWorkflow(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.workflows.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetContext(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	sc, err := h.contexts.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

// UpdateContext is the raw optimistic write. The caller presents the whole
// context at version stored+1; a stale version comes back 409 and the caller
// must re-read.
func (h *Handler) UpdateContext(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sc, err := h.contexts.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	if req.Preferences == nil {
		req.Preferences = map[string]any{}
	}
	sc.Version = req.Version
	sc.StepOutputs = req.StepOutputs
	sc.Decisions = req.Decisions
	sc.Artifacts = req.Artifacts
	sc.Preferences = datatypes.JSONMap(req.Preferences)
	sc.Summary = req.Summary
	sc.LastModifiedAt = time.Now()
	sc.LastModifiedBy = req.UserID.String()

	if err := h.contexts.Update(c.Request.Context(), sc); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *Handler) AddStepOutput(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AddStepOutputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sc, err := h.contexts.AddStepOutput(c.Request.Context(), id, domain.StepOutput{
		StepID:      req.StepID,
		Output:      req.Output,
		CompletedBy: req.UserID.String(),
		CompletedAt: time.Now(),
	}, req.UserID.String())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *Handler) AddDecisionRecord(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AddDecisionRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sc, err := h.contexts.AddDecision(c.Request.Context(), id, domain.DecisionRecord{
		DecisionID: req.DecisionID,
		StepID:     req.StepID,
		Question:   req.Question,
		Value:      req.Value,
		DecidedBy:  req.UserID.String(),
		DecidedAt:  time.Now(),
	}, req.UserID.String())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *Handler) AddArtifact(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.AddArtifactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sc, err := h.contexts.AddArtifact(c.Request.Context(), id, domain.ArtifactReference{
		ID:      uuid.New(),
		Name:    req.Name,
		Kind:    req.Kind,
		URI:     req.URI,
		AddedBy: req.UserID.String(),
		AddedAt: time.Now(),
	}, req.UserID.String())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sc)
}

func (h *Handler) CreateCheckpoint(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateCheckpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cp, err := h.checkpoints.Create(c.Request.Context(), id, req.StepID, domain.CheckpointType(req.Type), req.TriggeredBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cp)
}

func (h *Handler) ListCheckpoints(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	cps, err := h.checkpoints.List(c.Request.Context(), id, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cps)
}

func (h *Handler) RestoreCheckpoint(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	checkpointID, ok := pathUUID(c, "checkpointId")
	if !ok {
		return
	}

	cp, err := h.checkpoints.Restore(c.Request.Context(), id, checkpointID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cp)
}

func (h *Handler) EnqueueInput(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.EnqueueInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	content, err := json.Marshal(req.Content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input, err := h.queue.Enqueue(c.Request.Context(), id, req.UserID, domain.InputType(req.InputType), req.FieldName, datatypes.JSON(content))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, input)
}

func (h *Handler) ProcessQueued(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.queue.ProcessQueued(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListConflicts(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	conflicts, err := h.conflicts.ListByWorkflow(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conflicts)
}

func (h *Handler) ResolveConflict(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conflict, err := h.conflicts.Resolve(c.Request.Context(), id, req.ResolvedBy, domain.ResolutionType(req.Type), req.FinalValue, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conflict)
}

func (h *Handler) CreateDecision(c *gin.Context) {
	var req dto.CreateDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	value, err := json.Marshal(req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	options, _ := json.Marshal(req.Options)

	decision, err := h.decisions.Create(c.Request.Context(), &domain.Decision{
		WorkflowID:   req.WorkflowID,
		StepID:       req.StepID,
		DecisionType: req.DecisionType,
		Question:     req.Question,
		Options:      options,
		Reasoning:    req.Reasoning,
		DecidedBy:    req.DecidedBy,
	}, value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, decision)
}

func (h *Handler) GetDecision(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	decision, err := h.decisions.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	current, err := h.decisions.CurrentValue(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decision": decision, "current": current})
}

func (h *Handler) UpdateDecision(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	value, err := json.Marshal(req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := h.decisions.Update(c.Request.Context(), id, value, req.ModifiedBy, req.ChangeReason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, version)
}

func (h *Handler) LockDecision(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.LockDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.decisions.Lock(c.Request.Context(), id, req.By, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UnlockDecision(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.UnlockDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.decisions.Unlock(c.Request.Context(), id, req.By, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DiffDecision(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	v1, err1 := strconv.Atoi(c.Query("v1"))
	v2, err2 := strconv.Atoi(c.Query("v2"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "v1 and v2 query params are required integers"})
		return
	}

	changes, err := h.decisions.Diff(c.Request.Context(), id, v1, v2)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, changes)
}

func (h *Handler) StartReview(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.StartReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := h.decisions.StartReview(c.Request.Context(), id, req.Reviewers, req.Deadline)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (h *Handler) SubmitReview(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, err := h.decisions.SubmitReview(c.Request.Context(), id, req.ReviewerID, domain.ReviewVerdict(req.Verdict), req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *Handler) ConnectSession(c *gin.Context) {
	var req dto.ConnectSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessions.Connect(c.Request.Context(), req.UserID, req.ConnectionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": result.Session.ID,
		"restored":   result.Restored,
		"state":      result.Session.State,
	})
}

func (h *Handler) Heartbeat(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.sessions.Touch(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) DisconnectSession(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.sessions.Disconnect(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
