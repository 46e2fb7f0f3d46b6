package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/models"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// ManualClosingInput is one cashier-entered pack closing. MANUAL entries carry
// a supervisor authorization; SCAN entries do not.
type ManualClosingInput struct {
	PackId        int                       `json:"pack_id" validate:"required,gt=0"`
	ClosingSerial string                    `json:"closing_serial" validate:"required"`
	EntryMethod   models.ClosingEntryMethod `json:"entry_method" validate:"required,oneof=SCAN MANUAL"`
	AuthorizedBy  string                    `json:"authorized_by" validate:"required_if=EntryMethod MANUAL"`
	AuthorizedAt  *time.Time                `json:"authorized_at" validate:"required_if=EntryMethod MANUAL"`
}

type SettlementResult struct {
	PacksClosed      int                     `json:"packs_closed"`
	PacksDepleted    int                     `json:"packs_depleted"`
	TotalTicketsSold int                     `json:"total_tickets_sold"`
	Variances        []*models.ShiftVariance `json:"variances"`
}

type packDepletion struct {
	PackId int
	Reason string
}

// settlementSources is everything the plan builder needs, batch-loaded up
// front so the computation itself is pure.
type settlementSources struct {
	Shift            *models.Shift
	AutoPacks        []*models.Pack
	ManualPacks      map[int]*models.Pack
	Openings         map[int]string
	TrackedCounts    map[int]int
	ExistingClosings map[int]bool
}

type settlementPlan struct {
	Closings         []*models.ShiftClosing
	Variances        []*models.ShiftVariance
	Depletions       []packDepletion
	AutoDepletedIds  []int
	TotalTicketsSold int
}

// ProcessShiftSettlementWorkflow performs one atomic end-of-shift settlement:
// it validates inputs, batch-loads packs/openings/tracked counts, computes
// expected vs actual sales, and persists closings, variances, pack depletions
// and (best-effort) audit entries in a single transaction. Retries are safe:
// the duplicate-closing dedup plus skip-on-conflict inserts make the call
// idempotent per (shift, pack).
func ProcessShiftSettlementWorkflow(ctx context.Context, logger *logrus.Logger, shiftId int, closings []ManualClosingInput, closedBy string) (*SettlementResult, error) {

	if err := validateSettlementInput(shiftId, closings, closedBy); err != nil {
		return nil, err
	}

	tracer := otel.Tracer("workflow/settlement")
	ctx, span := tracer.Start(ctx, "ProcessShiftSettlementWorkflow")
	defer span.End()
	span.SetAttributes(
		attribute.Int("shift.id", shiftId),
		attribute.Int("settlement.manual_closings", len(closings)),
	)

	ctx, cancel := context.WithTimeout(ctx, config.SettlementTimeout())
	defer cancel()

	shift, err := models.GetShift(ctx, shiftId)
	if err != nil {
		config.LogError(logger, "settlementWorkflow.go", "ProcessShiftSettlementWorkflow", "GetShift", shiftId, err)
		return nil, err
	}

	// Audit rows read actor/store from the context.
	if _, ok := utils.GetActorIdFromContext(ctx); !ok {
		ctx = utils.SetActorIdInContext(ctx, closedBy)
	}
	if _, ok := utils.GetStoreIdFromContext(ctx); !ok {
		ctx = utils.SetStoreIdInContext(ctx, shift.StoreId)
	}

	redisLock := obtainSettlementRedisLock(ctx, logger, shiftId)
	defer releaseSettlementRedisLock(ctx, logger, shiftId, redisLock)

	src, err := loadSettlementSources(ctx, logger, shift, closings)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	plan, err := buildSettlementPlan(src, closings, closedBy, now)
	if err != nil {
		config.LogError(logger, "settlementWorkflow.go", "ProcessShiftSettlementWorkflow", "buildSettlementPlan", shiftId, err)
		return nil, err
	}

	result := &SettlementResult{
		TotalTicketsSold: plan.TotalTicketsSold,
		PacksDepleted:    len(plan.AutoDepletedIds),
		Variances:        plan.Variances,
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireShiftSettlementLock(tx, shiftId); err != nil {
			return err
		}
		defer ReleaseShiftSettlementLock(tx, shiftId)

		inserted, err := models.BulkInsertShiftClosings(tx, plan.Closings)
		if err != nil {
			config.LogError(logger, "settlementWorkflow.go", "ProcessShiftSettlementWorkflow", "BulkInsertShiftClosings", shiftId, err)
			return err
		}
		result.PacksClosed = inserted

		for _, d := range plan.Depletions {
			applied, err := models.MarkPackDepleted(tx, d.PackId, shiftId, d.Reason, now)
			if err != nil {
				config.LogError(logger, "settlementWorkflow.go", "ProcessShiftSettlementWorkflow", "MarkPackDepleted", d.PackId, err)
				return err
			}
			if applied {
				result.PacksDepleted++
			}
		}

		if _, err := models.BulkInsertShiftVariances(tx, plan.Variances); err != nil {
			config.LogError(logger, "settlementWorkflow.go", "ProcessShiftSettlementWorkflow", "BulkInsertShiftVariances", shiftId, err)
			return err
		}

		// Audit entries are best-effort: failures are logged, never propagated,
		// and never roll back the settlement.
		for _, closing := range plan.Closings {
			description := fmt.Sprintf("Pack %d settled for shift %d (%s, closing serial %s)",
				closing.PackId, shiftId, closing.EntryMethod, closing.ClosingSerial)
			if auditErr := models.SaveSettlementHistory(tx, closing.ID, nil, closing, description); auditErr != nil {
				config.LogError(logger, "settlementWorkflow.go", "ProcessShiftSettlementWorkflow", "SaveSettlementHistory", closing.PackId, auditErr)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func validateSettlementInput(shiftId int, closings []ManualClosingInput, closedBy string) error {
	if shiftId <= 0 {
		return utils.NewValidationError("shiftId", fmt.Sprint(shiftId), "shift id is required")
	}
	if closedBy == "" {
		return utils.NewValidationError("closedBy", "", "closing actor id is required")
	}
	seen := make(map[int]bool, len(closings))
	for i := range closings {
		if err := utils.ValidateStruct(&closings[i]); err != nil {
			return fmt.Errorf("closings[%d]: %w", i, err)
		}
		if _, err := ParseSerial("closingSerial", closings[i].ClosingSerial); err != nil {
			return fmt.Errorf("closings[%d]: %w", i, err)
		}
		if seen[closings[i].PackId] {
			return utils.NewValidationError("packId", fmt.Sprint(closings[i].PackId), "duplicate manual closing for pack")
		}
		seen[closings[i].PackId] = true
	}
	return nil
}

// loadSettlementSources performs the two batched read phases. The reads of
// each phase are independent and issued together purely to cut latency; all
// round trips stay O(1) in the pack count.
func loadSettlementSources(ctx context.Context, logger *logrus.Logger, shift *models.Shift, closings []ManualClosingInput) (*settlementSources, error) {

	var (
		autoPacks   []*models.Pack
		existing    []*models.ShiftClosing
		autoErr     error
		existingErr error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		autoPacks, autoErr = models.GetAutoDepletedPacks(ctx, shift.StoreId, shift.ID)
	}()
	go func() {
		defer wg.Done()
		existing, existingErr = models.GetShiftClosings(ctx, shift.ID)
	}()
	wg.Wait()
	if autoErr != nil {
		config.LogError(logger, "settlementWorkflow.go", "loadSettlementSources", "GetAutoDepletedPacks", shift.ID, autoErr)
		return nil, autoErr
	}
	if existingErr != nil {
		config.LogError(logger, "settlementWorkflow.go", "loadSettlementSources", "GetShiftClosings", shift.ID, existingErr)
		return nil, existingErr
	}

	existingSet := make(map[int]bool, len(existing))
	for _, c := range existing {
		existingSet[c.PackId] = true
	}

	manualIds := make([]int, 0, len(closings))
	for _, c := range closings {
		manualIds = append(manualIds, c.PackId)
	}
	autoIds := make([]int, 0, len(autoPacks))
	for _, p := range autoPacks {
		autoIds = append(autoIds, p.ID)
	}
	allIds := utils.MergeIntSlices(manualIds, autoIds)

	var (
		manualPacks []*models.Pack
		openings    []*models.ShiftOpening
		counts      map[int]int
		packsErr    error
		openingsErr error
		countsErr   error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		manualPacks, packsErr = models.GetPacksByIds(ctx, shift.StoreId, manualIds)
	}()
	go func() {
		defer wg.Done()
		openings, openingsErr = models.GetShiftOpenings(ctx, shift.ID, allIds)
	}()
	go func() {
		defer wg.Done()
		counts, countsErr = models.CountTicketsSoldByPack(ctx, shift.ID, allIds)
	}()
	wg.Wait()
	if packsErr != nil {
		config.LogError(logger, "settlementWorkflow.go", "loadSettlementSources", "GetPacksByIds", manualIds, packsErr)
		return nil, packsErr
	}
	if openingsErr != nil {
		config.LogError(logger, "settlementWorkflow.go", "loadSettlementSources", "GetShiftOpenings", allIds, openingsErr)
		return nil, openingsErr
	}
	if countsErr != nil {
		config.LogError(logger, "settlementWorkflow.go", "loadSettlementSources", "CountTicketsSoldByPack", allIds, countsErr)
		return nil, countsErr
	}

	manualPackMap := make(map[int]*models.Pack, len(manualPacks))
	for _, p := range manualPacks {
		manualPackMap[p.ID] = p
	}
	openingMap := make(map[int]string, len(openings))
	for _, o := range openings {
		openingMap[o.PackId] = o.OpeningSerial
	}

	return &settlementSources{
		Shift:            shift,
		AutoPacks:        autoPacks,
		ManualPacks:      manualPackMap,
		Openings:         openingMap,
		TrackedCounts:    counts,
		ExistingClosings: existingSet,
	}, nil
}

// buildSettlementPlan is the pure settlement computation: classify packs,
// apply the serial-arithmetic formulas, detect variances, and accumulate the
// records to persist. A missing pack or opening aborts the whole plan.
func buildSettlementPlan(src *settlementSources, manual []ManualClosingInput, closedBy string, now time.Time) (*settlementPlan, error) {

	plan := &settlementPlan{}
	shift := src.Shift
	manualSet := make(map[int]bool, len(manual))
	for _, c := range manual {
		manualSet[c.PackId] = true
	}

	// Auto-close candidates: packs sold out during this shift with no closing
	// yet and no manual entry overriding them.
	for _, pack := range src.AutoPacks {
		if src.ExistingClosings[pack.ID] || manualSet[pack.ID] {
			continue
		}
		opening, ok := src.Openings[pack.ID]
		if !ok {
			return nil, utils.NewNotFoundError("shift opening", pack.ID)
		}
		expected, err := TicketsSoldDepletion(opening, pack.SerialEnd)
		if err != nil {
			return nil, err
		}
		actual := actualOrExpected(src.TrackedCounts[pack.ID], expected)

		plan.Closings = append(plan.Closings, &models.ShiftClosing{
			ShiftId:       shift.ID,
			PackId:        pack.ID,
			CashierId:     shift.CashierId,
			ClosingSerial: pack.SerialEnd,
			EntryMethod:   models.ClosingEntryMethodScan,
			ClosedBy:      closedBy,
		})
		if v := DetectVariance(shift.ID, pack.ID, expected, actual); v != nil {
			plan.Variances = append(plan.Variances, v)
		}
		plan.AutoDepletedIds = append(plan.AutoDepletedIds, pack.ID)
		plan.TotalTicketsSold += actual
	}

	// Manual closings. Entries whose closing already exists are retries and
	// contribute nothing.
	for _, c := range manual {
		if src.ExistingClosings[c.PackId] {
			continue
		}
		pack, ok := src.ManualPacks[c.PackId]
		if !ok {
			return nil, utils.NewNotFoundError("pack", c.PackId)
		}
		opening, ok := src.Openings[c.PackId]
		if !ok {
			return nil, utils.NewNotFoundError("shift opening", c.PackId)
		}
		closingVal, err := ParseSerial("closingSerial", c.ClosingSerial)
		if err != nil {
			return nil, err
		}
		endVal, err := ParseSerial("serialEnd", pack.SerialEnd)
		if err != nil {
			return nil, err
		}

		// A closing at (or past) serial_end means the pack sold through its
		// last ticket, so the last ticket counts as sold.
		depleting := closingVal >= endVal
		var expected int
		if depleting {
			expected, err = TicketsSoldDepletion(opening, pack.SerialEnd)
		} else {
			expected, err = TicketsSoldContinuing(opening, c.ClosingSerial)
		}
		if err != nil {
			return nil, err
		}
		actual := actualOrExpected(src.TrackedCounts[c.PackId], expected)

		closing := &models.ShiftClosing{
			ShiftId:       shift.ID,
			PackId:        c.PackId,
			CashierId:     shift.CashierId,
			ClosingSerial: c.ClosingSerial,
			EntryMethod:   c.EntryMethod,
			ClosedBy:      closedBy,
		}
		if c.EntryMethod == models.ClosingEntryMethodManual {
			authorizedBy := c.AuthorizedBy
			closing.AuthorizedBy = &authorizedBy
			closing.AuthorizedAt = c.AuthorizedAt
		}
		plan.Closings = append(plan.Closings, closing)

		if v := DetectVariance(shift.ID, c.PackId, expected, actual); v != nil {
			plan.Variances = append(plan.Variances, v)
		}
		plan.TotalTicketsSold += actual

		if depleting && pack.CurrentStatus == models.PackStatusActive {
			plan.Depletions = append(plan.Depletions, packDepletion{PackId: c.PackId, Reason: models.DepletionReasonManualClose})
		}
	}

	return plan, nil
}

// actualOrExpected falls back to the expected count when per-ticket tracking
// recorded nothing for the pack. Deliberate business default: incomplete
// tracking must not manufacture a variance.
func actualOrExpected(tracked int, expected int) int {
	if tracked > 0 {
		return tracked
	}
	return expected
}
