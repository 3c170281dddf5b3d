package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const autoApprover = "AUTO_SYSTEM"

// RequiresHumanApproval is the gate predicate: anything at or above the
// threshold waits for a pharmacist.
func RequiresHumanApproval(decision *models.Decision) bool {
	return decision.TotalAmount.GreaterThanOrEqual(config.AutoApproveThreshold())
}

// GateDecision routes a fresh decision. Below the threshold it approves,
// emits the purchase order and completes the task in one transaction; at or
// above it parks the task for a human.
func GateDecision(ctx context.Context, task *models.ProcurementTask, decision *models.Decision) error {
	db := config.GetDB()

	if !RequiresHumanApproval(decision) {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := models.MarkDecisionApproval(tx, decision.ID, true, autoApprover,
				fmt.Sprintf("auto-approved: total $%s under threshold", decision.TotalAmount.StringFixed(2))); err != nil {
				return err
			}
			po := purchaseOrderFromDecision(task, decision, true, "")
			if err := models.CreatePurchaseOrder(tx, po); err != nil {
				return err
			}
			if err := models.TransitionTaskStatus(tx, task, models.TaskStatusApproved, "APPROVAL", ""); err != nil {
				return err
			}
			if err := models.TransitionTaskStatus(tx, task, models.TaskStatusCompleted, "DONE", ""); err != nil {
				return err
			}
			config.LogActivity(config.GetLogger(), "APPROVAL", task.ID,
				fmt.Sprintf("auto-approved, purchase order %s issued", po.PoNumber), nil)
			return nil
		})
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requires := true
		if err := tx.Model(&models.Decision{}).
			Where("id = ?", decision.ID).
			Update("requires_approval", true).Error; err != nil {
			return err
		}
		decision.RequiresApproval = &requires
		if err := models.TransitionTaskStatus(tx, task, models.TaskStatusPendingApproval, "APPROVAL", ""); err != nil {
			return err
		}
		config.LogActivity(config.GetLogger(), "APPROVAL", task.ID,
			fmt.Sprintf("total $%s requires human approval", decision.TotalAmount.StringFixed(2)), nil)
		return nil
	})
}

// ensureAwaitingApproval guards the human verbs: only a task parked at the
// gate can be approved, rejected or overridden.
func ensureAwaitingApproval(status models.TaskStatus) error {
	if status != models.TaskStatusPendingApproval {
		return utils.ErrorInvalidTransition
	}
	return nil
}

// ApproveTask records a human approval and closes out the task.
func ApproveTask(ctx context.Context, taskId int, approvedBy string, notes string) (*models.PurchaseOrder, error) {
	task, err := models.GetProcurementTask(ctx, taskId)
	if err != nil {
		return nil, err
	}
	if err := ensureAwaitingApproval(task.Status); err != nil {
		return nil, err
	}
	decision, err := models.LatestDecisionForTask(ctx, taskId)
	if err != nil {
		return nil, err
	}

	var po *models.PurchaseOrder
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.MarkDecisionApproval(tx, decision.ID, true, approvedBy, notes); err != nil {
			return err
		}
		po = purchaseOrderFromDecision(task, decision, true, "")
		po.ApprovedBy = approvedBy
		po.ApprovalNotes = notes
		if err := models.CreatePurchaseOrder(tx, po); err != nil {
			return err
		}
		if err := models.TransitionTaskStatus(tx, task, models.TaskStatusApproved, "APPROVAL", ""); err != nil {
			return err
		}
		return models.TransitionTaskStatus(tx, task, models.TaskStatusCompleted, "DONE", "")
	})
	if err != nil {
		return nil, err
	}
	config.LogActivity(config.GetLogger(), "APPROVAL", task.ID,
		fmt.Sprintf("approved by %s, purchase order %s issued", approvedBy, po.PoNumber), nil)
	return po, nil
}

// RejectTask records a human rejection; no order is emitted.
func RejectTask(ctx context.Context, taskId int, rejectedBy string, notes string) error {
	task, err := models.GetProcurementTask(ctx, taskId)
	if err != nil {
		return err
	}
	if err := ensureAwaitingApproval(task.Status); err != nil {
		return err
	}
	decision, err := models.LatestDecisionForTask(ctx, taskId)
	if err != nil {
		return err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.MarkDecisionApproval(tx, decision.ID, false, rejectedBy, notes); err != nil {
			return err
		}
		return models.TransitionTaskStatus(tx, task, models.TaskStatusRejected, "REJECTED", notes)
	})
	if err != nil {
		return err
	}
	config.LogActivity(config.GetLogger(), "APPROVAL", task.ID,
		fmt.Sprintf("rejected by %s", rejectedBy), nil)
	return nil
}

// OverrideTask lets a human pick a different supplier than the agent's
// selection. The chosen supplier's best standing offer becomes the order.
func OverrideTask(ctx context.Context, taskId int, supplierId int, overriddenBy string, reason string) (*models.PurchaseOrder, error) {
	task, err := models.GetProcurementTask(ctx, taskId)
	if err != nil {
		return nil, err
	}
	if err := ensureAwaitingApproval(task.Status); err != nil {
		return nil, err
	}
	decision, err := models.LatestDecisionForTask(ctx, taskId)
	if err != nil {
		return nil, err
	}

	quote, err := bestOfferForSupplier(ctx, task, supplierId)
	if err != nil {
		return nil, err
	}

	var po *models.PurchaseOrder
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := models.MarkDecisionApproval(tx, decision.ID, true, overriddenBy,
			fmt.Sprintf("override to supplier %d: %s", supplierId, reason)); err != nil {
			return err
		}
		selected := false
		po = purchaseOrderFromDecision(task, decision, false, reason)
		po.SupplierId = supplierId
		po.UnitPrice = quote.UnitPrice
		po.TotalAmount = quote.UnitPrice.Mul(decimal.NewFromInt(int64(task.RequiredQuantity)))
		po.ExpectedDeliveryDays = quote.DeliveryDays
		po.SelectedByAgent = &selected
		po.ApprovedBy = overriddenBy
		if err := models.CreatePurchaseOrder(tx, po); err != nil {
			return err
		}
		if err := models.TransitionTaskStatus(tx, task, models.TaskStatusApproved, "APPROVAL", ""); err != nil {
			return err
		}
		return models.TransitionTaskStatus(tx, task, models.TaskStatusCompleted, "DONE", "")
	})
	if err != nil {
		return nil, err
	}
	config.LogActivity(config.GetLogger(), "APPROVAL", task.ID,
		fmt.Sprintf("%s overrode selection to supplier %d, purchase order %s issued", overriddenBy, supplierId, po.PoNumber), nil)
	return po, nil
}

// bestOfferForSupplier returns the supplier's quote with any successful
// negotiation folded in.
func bestOfferForSupplier(ctx context.Context, task *models.ProcurementTask, supplierId int) (*models.Quote, error) {
	quotes, err := models.QuotesForTask(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	var quote *models.Quote
	for i := range quotes {
		if quotes[i].SupplierId == supplierId {
			quote = &quotes[i]
			break
		}
	}
	if quote == nil {
		return nil, utils.ErrorRecordNotFound
	}
	negotiation, err := models.GetNegotiationForSupplier(ctx, task.ID, supplierId)
	if err == nil && negotiation.Status == models.NegotiationSuccessful {
		if negotiation.FinalUnitPrice.IsPositive() && negotiation.FinalUnitPrice.LessThan(quote.UnitPrice) {
			quote.UnitPrice = negotiation.FinalUnitPrice
		}
		if negotiation.FinalDeliveryDays > 0 && negotiation.FinalDeliveryDays < quote.DeliveryDays {
			quote.DeliveryDays = negotiation.FinalDeliveryDays
		}
	} else if err != nil && err != utils.ErrorRecordNotFound {
		return nil, err
	}
	return quote, nil
}

// PendingApproval is one queue entry for the review screen.
type PendingApproval struct {
	Task     models.ProcurementTask `json:"task"`
	Decision *models.Decision       `json:"decision"`
}

func PendingApprovals(ctx context.Context) ([]PendingApproval, error) {
	tasks, err := models.ListTasksByStatus(ctx, models.TaskStatusPendingApproval)
	if err != nil {
		return nil, err
	}
	entries := make([]PendingApproval, 0, len(tasks))
	for _, task := range tasks {
		decision, err := models.LatestDecisionForTask(ctx, task.ID)
		if err != nil && err != utils.ErrorRecordNotFound {
			return nil, err
		}
		entries = append(entries, PendingApproval{Task: task, Decision: decision})
	}
	return entries, nil
}

func purchaseOrderFromDecision(task *models.ProcurementTask, decision *models.Decision, selectedByAgent bool, overrideReason string) *models.PurchaseOrder {
	selected := selectedByAgent
	notes := ""
	if task.Urgency == models.UrgencyCritical || task.Urgency == models.UrgencyHigh {
		notes = fmt.Sprintf("%s urgency: expedite receiving and stock intake", task.Urgency)
	}
	return &models.PurchaseOrder{
		ProcurementTaskId:    task.ID,
		SupplierId:           decision.SelectedSupplierId,
		MedicineId:           task.MedicineId,
		Quantity:             task.RequiredQuantity,
		UnitPrice:            decision.UnitPrice,
		TotalAmount:          decision.TotalAmount,
		ExpectedDeliveryDays: decision.DeliveryDays,
		Status:               models.OrderStatusApproved,
		DecisionScore:        decision.WinningScore,
		DecisionReasoning:    decision.ReasoningText,
		SelectedByAgent:      &selected,
		OverrideReason:       overrideReason,
		Notes:                notes,
	}
}
