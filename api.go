package main

import (
	"context"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"bitbucket.org/mmdatafocus/pharma_procure/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func registerRoutes(r *gin.Engine, orchestrator *workflow.Orchestrator) {
	v1 := r.Group("/api/v1")

	v1.POST("/tasks", createTaskHandler(orchestrator))
	v1.GET("/tasks", listTasksHandler)
	v1.GET("/tasks/:id", getTaskHandler)
	v1.POST("/tasks/:id/advance", advanceTaskHandler(orchestrator))

	v1.POST("/tasks/:id/quotes", submitQuoteHandler(orchestrator))
	v1.GET("/tasks/:id/quotes", quoteComparisonHandler)
	v1.GET("/tasks/:id/quotes/summary", quoteSummaryHandler)
	v1.GET("/tasks/:id/price-spike", priceSpikeHandler)

	v1.POST("/tasks/:id/negotiations", startNegotiationsHandler(orchestrator))
	v1.GET("/tasks/:id/negotiations", listNegotiationsHandler)

	v1.POST("/tasks/:id/decision", runDecisionHandler(orchestrator))
	v1.GET("/tasks/:id/decision", getDecisionHandler)
	v1.GET("/tasks/:id/scores", getScoresHandler)
	v1.GET("/tasks/:id/order", getTaskOrderHandler)

	v1.GET("/approvals", listApprovalsHandler)
	v1.GET("/approvals/threshold", approvalThresholdHandler)
	v1.POST("/approvals/:id/approve", approveHandler)
	v1.POST("/approvals/:id/reject", rejectHandler)
	v1.POST("/approvals/:id/override", overrideHandler)

	v1.GET("/suppliers", listSuppliersHandler)
	v1.POST("/suppliers", createSupplierHandler)
	v1.GET("/medicines", listMedicinesHandler)
	v1.POST("/medicines", createMedicineHandler)
	v1.GET("/orders/:poNumber", getOrderByNumberHandler)
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch err {
	case utils.ErrorRecordNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case utils.ErrorTaskAlreadyOpen, utils.ErrorInvalidTransition, utils.ErrorDuplicateQuote:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case utils.ErrorDecisionFailed, utils.ErrorNoCandidates:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		if _, ok := err.(validator.ValidationErrors); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func paramId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func loadTask(c *gin.Context) (*models.ProcurementTask, bool) {
	id, ok := paramId(c)
	if !ok {
		return nil, false
	}
	task, err := models.GetProcurementTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return task, true
}

func createTaskHandler(orchestrator *workflow.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewProcurementTask
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		task, err := models.CreateProcurementTask(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		// Kick off the pipeline immediately; the sweep would pick it up anyway.
		// Detached context: the pipeline must outlive this request.
		go func() {
			if err := orchestrator.Advance(context.Background(), task.ID); err != nil {
				config.LogError(config.GetLogger(), "api.go", "createTaskHandler", "advance", nil, err)
			}
		}()
		c.JSON(http.StatusCreated, task)
	}
}

func listTasksHandler(c *gin.Context) {
	statuses := []models.TaskStatus{}
	if s := c.Query("status"); s != "" {
		statuses = append(statuses, models.TaskStatus(s))
	} else {
		statuses = append(statuses,
			models.TaskStatusQueued, models.TaskStatusInProgress, models.TaskStatusNegotiating,
			models.TaskStatusPendingApproval, models.TaskStatusApproved, models.TaskStatusCompleted,
			models.TaskStatusFailed, models.TaskStatusRejected)
	}
	tasks, err := models.ListTasksByStatus(c.Request.Context(), statuses...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func getTaskHandler(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, task)
}

func advanceTaskHandler(orchestrator *workflow.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, ok := loadTask(c)
		if !ok {
			return
		}
		if err := orchestrator.Advance(c.Request.Context(), task.ID); err != nil {
			respondError(c, err)
			return
		}
		refreshed, err := models.GetProcurementTask(c.Request.Context(), task.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, refreshed)
	}
}

func submitQuoteHandler(orchestrator *workflow.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, ok := loadTask(c)
		if !ok {
			return
		}
		var input models.NewQuote
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		quote, err := workflow.RecordTaskQuote(c.Request.Context(), task, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		// A fresh quote may complete the collection window.
		go func() {
			if err := orchestrator.Advance(context.Background(), task.ID); err != nil {
				config.LogError(config.GetLogger(), "api.go", "submitQuoteHandler", "advance", nil, err)
			}
		}()
		c.JSON(http.StatusCreated, quote)
	}
}

func quoteComparisonHandler(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}
	rows, err := workflow.ComparisonTable(c.Request.Context(), task)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func quoteSummaryHandler(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}
	summary, err := workflow.SummarizeTask(c.Request.Context(), task)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func priceSpikeHandler(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}
	result, err := workflow.CheckPriceSpike(c.Request.Context(), task)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func startNegotiationsHandler(orchestrator *workflow.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, ok := loadTask(c)
		if !ok {
			return
		}
		if task.Status != models.TaskStatusInProgress && task.Status != models.TaskStatusNegotiating {
			respondError(c, utils.ErrorInvalidTransition)
			return
		}
		if err := orchestrator.Advance(c.Request.Context(), task.ID); err != nil {
			respondError(c, err)
			return
		}
		negotiations, err := models.NegotiationsForTask(c.Request.Context(), task.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, negotiations)
	}
}

func listNegotiationsHandler(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}
	negotiations, err := models.NegotiationsForTask(c.Request.Context(), task.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, negotiations)
}

// decidableState reports whether a decision run may be forced for a task.
// Only the mid-flight stages can transition onward from a fresh decision.
func decidableState(status models.TaskStatus) bool {
	return status == models.TaskStatusInProgress || status == models.TaskStatusNegotiating
}

func runDecisionHandler(orchestrator *workflow.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		task, ok := loadTask(c)
		if !ok {
			return
		}
		var body struct {
			Urgency    string `json:"urgency"`
			BudgetMode bool   `json:"budget_mode"`
		}
		_ = c.ShouldBindJSON(&body)

		// A decision only makes sense while the pipeline is mid-flight;
		// checking first keeps a rejected run from persisting scores.
		if !decidableState(task.Status) {
			respondError(c, utils.ErrorInvalidTransition)
			return
		}
		if body.Urgency != "" {
			urgency, err := models.ParseUrgencyLevel(body.Urgency)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			task.Urgency = urgency
		}

		decision, err := orchestrator.Decision.Decide(c.Request.Context(), task, body.BudgetMode)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := workflow.GateDecision(c.Request.Context(), task, decision); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, decision)
	}
}

func getDecisionHandler(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}
	decision, err := models.LatestDecisionForTask(c.Request.Context(), task.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func getScoresHandler(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}
	scores, err := models.LatestScoresForTask(c.Request.Context(), task.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scores)
}

func getTaskOrderHandler(c *gin.Context) {
	task, ok := loadTask(c)
	if !ok {
		return
	}
	po, err := models.GetPurchaseOrderForTask(c.Request.Context(), task.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func listApprovalsHandler(c *gin.Context) {
	entries, err := workflow.PendingApprovals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func approvalThresholdHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"auto_approve_threshold": config.AutoApproveThreshold()})
}

func approveHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var body struct {
		Approver string `json:"approver" binding:"required"`
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	po, err := workflow.ApproveTask(c.Request.Context(), id, body.Approver, body.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func rejectHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var body struct {
		Rejecter string `json:"rejecter" binding:"required"`
		Reason   string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := workflow.RejectTask(c.Request.Context(), id, body.Rejecter, body.Reason); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func overrideHandler(c *gin.Context) {
	id, ok := paramId(c)
	if !ok {
		return
	}
	var body struct {
		QuoteId    int    `json:"quote_id"`
		SupplierId int    `json:"supplier_id"`
		Overrider  string `json:"overrider" binding:"required"`
		Reason     string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	supplierId := body.SupplierId
	if supplierId == 0 && body.QuoteId > 0 {
		quote, err := models.GetQuote(c.Request.Context(), body.QuoteId)
		if err != nil {
			respondError(c, err)
			return
		}
		supplierId = quote.SupplierId
	}
	if supplierId == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quote_id or supplier_id is required"})
		return
	}
	po, err := workflow.OverrideTask(c.Request.Context(), id, supplierId, body.Overrider, body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}

func listSuppliersHandler(c *gin.Context) {
	suppliers, err := models.ListSuppliers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

func createSupplierHandler(c *gin.Context) {
	var input models.NewSupplier
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	supplier, err := models.CreateSupplier(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

func listMedicinesHandler(c *gin.Context) {
	medicines, err := models.ListMedicines(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, medicines)
}

func createMedicineHandler(c *gin.Context) {
	var input models.NewMedicine
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	medicine, err := models.CreateMedicine(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, medicine)
}

func getOrderByNumberHandler(c *gin.Context) {
	po, err := models.GetPurchaseOrderByNumber(c.Request.Context(), c.Param("poNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, po)
}
