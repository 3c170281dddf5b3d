package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/pharma_procure/config"
	"bitbucket.org/mmdatafocus/pharma_procure/models"
	"bitbucket.org/mmdatafocus/pharma_procure/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("pharma-procure/workflow")

// errNoSupplierResponse fails a task whose collection window closed with
// nothing to work with. Its text lands in the task's error_message.
var errNoSupplierResponse = fmt.Errorf("no suppliers responded within the collection window: %w", utils.ErrorCollectionTimeout)

// Orchestrator drives tasks through the pipeline. It is re-entrant and
// idempotent per status: a task is moved forward by compare-and-set
// transitions, so a duplicate trigger for an already-advanced task is a
// harmless no-op. Triggers come from the event dispatcher and from the
// periodic sweep that catches timer-driven work (collection windows).
type Orchestrator struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	Quotes      QuoteSource
	Negotiation *NegotiationEngine
	Decision    *DecisionEngine

	SweepInterval time.Duration
}

func NewOrchestrator(db *gorm.DB, logger *logrus.Logger) *Orchestrator {
	text := NewGeminiTextGenerator()
	return &Orchestrator{
		DB:            db,
		Logger:        logger,
		Quotes:        ActiveQuoteSource(),
		Negotiation:   NewNegotiationEngine(text, NewSimulatedResponder(time.Now().UnixNano())),
		Decision:      NewDecisionEngine(text),
		SweepInterval: 30 * time.Second,
	}
}

// Run sweeps all non-terminal, non-waiting tasks until the context ends.
func (o *Orchestrator) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		o.sweepOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.SweepInterval):
		}
	}
}

func (o *Orchestrator) sweepOnce(ctx context.Context) {
	tasks, err := models.ListTasksByStatus(ctx,
		models.TaskStatusQueued, models.TaskStatusInProgress, models.TaskStatusNegotiating)
	if err != nil {
		config.LogError(o.Logger, "workflow", "Orchestrator.sweepOnce", "list tasks", nil, err)
		return
	}
	for _, task := range tasks {
		if err := o.Advance(ctx, task.ID); err != nil {
			config.LogError(o.Logger, "workflow", "Orchestrator.sweepOnce",
				fmt.Sprintf("task %d", task.ID), logrus.Fields{"status": task.Status}, err)
		}
	}
}

// Advance moves one task as far forward as its current state allows.
func (o *Orchestrator) Advance(ctx context.Context, taskId int) error {
	ctx, span := tracer.Start(ctx, "orchestrator.advance",
		trace.WithAttributes(attribute.Int("task.id", taskId)))
	defer span.End()

	// Best-effort distributed lock keeps instances from duplicating work;
	// the advisory lock plus CAS transitions guarantee correctness.
	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, fmt.Sprintf("orchestrator:task:%d", taskId), time.Minute, nil)
		if err == nil {
			defer func() { _ = lock.Release(ctx) }()
		} else if err != redislock.ErrNotObtained {
			config.LogError(o.Logger, "workflow", "Orchestrator.Advance", "redis lock", logrus.Fields{"taskId": taskId}, err)
		}
	}

	if err := AcquireTaskPipelineLock(o.DB, taskId); err != nil {
		return err
	}
	defer ReleaseTaskPipelineLock(o.DB, taskId)

	task, err := models.GetProcurementTask(ctx, taskId)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() || task.Status == models.TaskStatusPendingApproval ||
		task.Status == models.TaskStatusApproved {
		return nil
	}

	if err := o.advanceLocked(ctx, task); err != nil {
		if failErr := models.FailTask(ctx, task.ID, err.Error()); failErr != nil {
			config.LogError(o.Logger, "workflow", "Orchestrator.Advance", "fail task", logrus.Fields{"taskId": task.ID}, failErr)
		}
		return err
	}
	return nil
}

func (o *Orchestrator) advanceLocked(ctx context.Context, task *models.ProcurementTask) error {
	switch task.Status {
	case models.TaskStatusQueued:
		if err := o.startCollection(ctx, task); err != nil {
			return err
		}
		return o.progressCollection(ctx, task)
	case models.TaskStatusInProgress:
		return o.progressCollection(ctx, task)
	case models.TaskStatusNegotiating:
		return o.progressNegotiation(ctx, task)
	}
	return nil
}

func (o *Orchestrator) startCollection(ctx context.Context, task *models.ProcurementTask) error {
	err := o.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return models.TransitionTaskStatus(tx, task, models.TaskStatusInProgress, "QUOTE_COLLECTION", "")
	})
	if err != nil {
		return err
	}
	medicine, err := models.GetMedicine(ctx, task.MedicineId)
	if err != nil {
		return err
	}
	config.LogActivity(o.Logger, "QUOTE_COLLECTION", task.ID,
		fmt.Sprintf("collecting quotes for %s x%d (%s)", medicine.Name, task.RequiredQuantity, task.Urgency), nil)
	return o.Quotes.CollectQuotes(ctx, task, medicine)
}

func (o *Orchestrator) progressCollection(ctx context.Context, task *models.ProcurementTask) error {
	summary, err := SummarizeTask(ctx, task)
	if err != nil {
		return err
	}
	ready, escalate := ReadyForNextStage(summary.TotalQuotes, summary.TimeoutReached)
	if escalate {
		return errNoSupplierResponse
	}
	if !ready {
		return nil
	}

	spike, err := CheckPriceSpike(ctx, task)
	if err != nil {
		return err
	}

	quotes, err := models.QuotesForTask(ctx, task.ID)
	if err != nil {
		return err
	}
	targets := ClassifyQuoteActions(quotes, task.RequiredQuantity,
		config.NegotiationPricePremiumPercent(), config.NegotiationDeliveryLagDays())
	worthNegotiating := 0
	for _, t := range targets {
		if t.Action != models.ActionSkip {
			worthNegotiating++
		}
	}
	if worthNegotiating == 0 {
		return o.decideAndGate(ctx, task, spike.SpikeDetected)
	}

	err = o.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return models.TransitionTaskStatus(tx, task, models.TaskStatusNegotiating, "NEGOTIATION", "")
	})
	if err != nil {
		return err
	}
	return o.progressNegotiation(ctx, task)
}

func (o *Orchestrator) progressNegotiation(ctx context.Context, task *models.ProcurementTask) error {
	medicine, err := models.GetMedicine(ctx, task.MedicineId)
	if err != nil {
		return err
	}
	// Run is re-entrant: settled negotiations are skipped, interrupted ones
	// resume from their recorded round.
	if _, err := o.Negotiation.Run(ctx, task, medicine); err != nil {
		return err
	}
	open, err := models.CountOpenNegotiations(ctx, task.ID)
	if err != nil {
		return err
	}
	if open > 0 {
		return nil
	}
	spike, err := CheckPriceSpike(ctx, task)
	if err != nil {
		return err
	}
	return o.decideAndGate(ctx, task, spike.SpikeDetected)
}

// decideAndGate scores, decides and routes through the approval gate. A
// detected price spike switches scoring into budget mode.
func (o *Orchestrator) decideAndGate(ctx context.Context, task *models.ProcurementTask, budgetMode bool) error {
	decision, err := o.Decision.Decide(ctx, task, budgetMode)
	if err != nil {
		return err
	}
	return GateDecision(ctx, task, decision)
}
