package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"github.com/gin-gonic/gin"
)

func TestDecidableState(t *testing.T) {
	allowed := map[models.TaskStatus]bool{
		models.TaskStatusInProgress:  true,
		models.TaskStatusNegotiating: true,
	}
	all := []models.TaskStatus{
		models.TaskStatusQueued, models.TaskStatusInProgress, models.TaskStatusNegotiating,
		models.TaskStatusPendingApproval, models.TaskStatusApproved, models.TaskStatusCompleted,
		models.TaskStatusFailed, models.TaskStatusRejected,
	}
	for _, status := range all {
		if got := decidableState(status); got != allowed[status] {
			t.Errorf("decidableState(%s) = %v, want %v", status, got, allowed[status])
		}
	}
}

func TestReadinessGate_BlocksAppRoutesUntilReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var ready atomic.Bool
	r := gin.New()
	r.Use(readinessGate(func() bool { return ready.Load() }))
	r.POST("/api/v1/tasks", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: status = %d, want 503", w.Code)
	}

	ready.Store(true)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil))
	if w.Code != http.StatusCreated {
		t.Errorf("after ready: status = %d, want 201", w.Code)
	}
}

func TestReadinessGate_HealthzAlwaysAnswered(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(readinessGate(func() bool { return false }))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusNoContent {
		t.Errorf("healthz while not ready: status = %d, want 204", w.Code)
	}
}
