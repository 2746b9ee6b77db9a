package controllers

import (
	"net/http"

	"access-approval-api/services"
	"access-approval-api/utils"

	"github.com/gin-gonic/gin"
)

// AccessRequestController serves submission, transitions and approver queues.
type AccessRequestController struct {
	requests    *services.AccessRequestService
	transitions *services.TransitionService
	resolver    *services.VisibilityResolver
}

func NewAccessRequestController(requests *services.AccessRequestService, transitions *services.TransitionService, resolver *services.VisibilityResolver) *AccessRequestController {
	return &AccessRequestController{requests: requests, transitions: transitions, resolver: resolver}
}

type createAccessRequestPayload struct {
	StaffName    string `json:"staff_name"`
	PFNumber     string `json:"pf_number"`
	DepartmentID int    `json:"department_id"`
	Purpose      string `json:"purpose"`
}

// Create handles POST /access-requests.
func (ctl *AccessRequestController) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req createAccessRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, services.ValidationError("Invalid request body"))
		return
	}

	created, err := ctl.requests.Submit(c.Request.Context(), actor, services.SubmitInput{
		StaffName:    req.StaffName,
		PFNumber:     req.PFNumber,
		DepartmentID: req.DepartmentID,
		Purpose:      req.Purpose,
		Meta:         auditMeta(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"request": created,
	})
}

// Get handles GET /access-requests/:id.
func (ctl *AccessRequestController) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	req, err := ctl.requests.Get(c.Request.Context(), actor, int(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"request":             req,
		"allowed_transitions": services.AllowedTransitions(actor, req),
	})
}

// History handles GET /access-requests/:id/history.
func (ctl *AccessRequestController) History(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	rows, err := ctl.requests.History(c.Request.Context(), actor, int(id))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"history": rows,
		"total":   len(rows),
	})
}

type changeStatusPayload struct {
	TargetStatus string `json:"target_status" binding:"required"`
	Comment      string `json:"comment"`
}

// ChangeStatus handles POST /access-requests/:id/status.
func (ctl *AccessRequestController) ChangeStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req changeStatusPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, services.ValidationError("target_status is required"))
		return
	}

	result, err := ctl.transitions.Apply(c.Request.Context(), actor, services.TransitionInput{
		RequestID:    int(id),
		TargetStatus: utils.CanonicalStatusKey(req.TargetStatus),
		Comment:      utils.SanitizeInput(req.Comment),
		Meta:         auditMeta(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Status updated",
		"old_status": result.OldStatus,
		"new_status": result.NewStatus,
		"request":    result.Request,
	})
}

// HODQueue handles GET /access-requests/hod-queue.
func (ctl *AccessRequestController) HODQueue(c *gin.Context) {
	ctl.respondQueue(c, services.StageHOD)
}

// StageQueue handles GET /access-requests/queues/:stage?view=pending|processed.
func (ctl *AccessRequestController) StageQueue(c *gin.Context) {
	stage, ok := services.ParseStage(c.Param("stage"))
	if !ok {
		respondError(c, services.ValidationError("stage must be one of hod, divisional, ict"))
		return
	}
	ctl.respondQueue(c, stage)
}

func (ctl *AccessRequestController) respondQueue(c *gin.Context, stage services.Stage) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	view, ok := services.ParseQueueView(c.Query("view"))
	if !ok {
		respondError(c, services.ValidationError("view must be pending or processed"))
		return
	}

	breakdown, err := ctl.resolver.Queue(c.Request.Context(), actor, stage, view, services.QueueOptions{SampleSize: 5})
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"success":       true,
		"stage":         breakdown.Stage,
		"view":          breakdown.View,
		"stage_counts":  breakdown.StageCounts,
		"stage_samples": breakdown.StageSamples,
		"final_count":   breakdown.FinalCount,
		"requests":      breakdown.FinalSet,
	}
	if breakdown.NoDepartment {
		body["diagnostic"] = "no department assigned"
		body["message"] = "You are not assigned to any department for this stage"
	}
	c.JSON(http.StatusOK, body)
}

// Visibility handles GET /access-requests/:id/visibility?stage=&view=.
func (ctl *AccessRequestController) Visibility(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	stage, ok := services.ParseStage(c.Query("stage"))
	if !ok {
		respondError(c, services.ValidationError("stage must be one of hod, divisional, ict"))
		return
	}
	view, ok := services.ParseQueueView(c.Query("view"))
	if !ok {
		respondError(c, services.ValidationError("view must be pending or processed"))
		return
	}

	explanation, err := ctl.resolver.Explain(c.Request.Context(), actor, int(id), stage, view)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"explanation": explanation,
	})
}
