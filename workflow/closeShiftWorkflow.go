package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/models"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ShiftCloseResult combines the pack settlement with the cash reconciliation
// outcome of the shift.
type ShiftCloseResult struct {
	Settlement   *SettlementResult  `json:"settlement"`
	CashExpected decimal.Decimal    `json:"cash_expected"`
	CashCounted  decimal.Decimal    `json:"cash_counted"`
	CashVariance decimal.Decimal    `json:"cash_variance"`
	FinalStatus  models.ShiftStatus `json:"final_status"`
}

// ProcessShiftCloseWorkflow closes out a shift: settles all packs, records the
// counted cash against the expected drawer amount, and fires CASH_RECONCILED —
// routing the shift to CLOSED, or to VARIANCE_REVIEW when the cash variance
// exceeds both review thresholds.
func ProcessShiftCloseWorkflow(ctx context.Context, logger *logrus.Logger, shiftId int, closings []ManualClosingInput, closedBy string, cashCounted decimal.Decimal) (*ShiftCloseResult, error) {

	settlement, err := ProcessShiftSettlementWorkflow(ctx, logger, shiftId, closings, closedBy)
	if err != nil {
		return nil, err
	}

	shift, err := models.GetShift(ctx, shiftId)
	if err != nil {
		config.LogError(logger, "closeShiftWorkflow.go", "ProcessShiftCloseWorkflow", "GetShift", shiftId, err)
		return nil, err
	}

	// Audit trail needs the actor and store; callers coming in by shift id
	// alone (the CLI) carry neither.
	if _, ok := utils.GetActorIdFromContext(ctx); !ok {
		ctx = utils.SetActorIdInContext(ctx, closedBy)
	}
	if _, ok := utils.GetStoreIdFromContext(ctx); !ok {
		ctx = utils.SetStoreIdInContext(ctx, shift.StoreId)
	}

	// Expected drawer = opening float + value of every ticket sold this shift.
	expected := shift.OpeningFloat.Add(trackedSalesValue(ctx, logger, shiftId))

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return models.UpdateShiftCash(tx, shiftId, expected, cashCounted)
	})
	if err != nil {
		config.LogError(logger, "closeShiftWorkflow.go", "ProcessShiftCloseWorkflow", "UpdateShiftCash", shiftId, err)
		return nil, err
	}

	exceeded := CashVarianceExceedsThreshold(expected, cashCounted)
	closed, err := applyShiftTransition(ctx, logger, shiftId, models.ShiftTriggerCashReconciled, TriggerOptions{VarianceExceeded: exceeded})
	if err != nil {
		return nil, err
	}

	return &ShiftCloseResult{
		Settlement:   settlement,
		CashExpected: expected,
		CashCounted:  cashCounted,
		CashVariance: cashCounted.Sub(expected),
		FinalStatus:  closed.CurrentStatus,
	}, nil
}

// trackedSalesValue sums the recorded sale prices for the shift. Errors reduce
// to zero: cash reconciliation degrades rather than blocking the close.
func trackedSalesValue(ctx context.Context, logger *logrus.Logger, shiftId int) decimal.Decimal {
	db := config.GetDB()
	var total decimal.NullDecimal
	err := db.WithContext(ctx).Model(&models.TicketSale{}).
		Select("SUM(sale_price)").
		Where("shift_id = ?", shiftId).
		Scan(&total).Error
	if err != nil {
		config.LogError(logger, "closeShiftWorkflow.go", "trackedSalesValue", "SumSalePrice", shiftId, err)
		return decimal.Zero
	}
	if !total.Valid {
		return decimal.Zero
	}
	return total.Decimal
}
