package workflow

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/models"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Thin lifecycle operations. Each one funnels its status change through the
// state machine before persisting; models.UpdateShiftStatus is never called
// with an unvalidated transition.

func applyShiftTransition(ctx context.Context, logger *logrus.Logger, shiftId int, trigger models.ShiftTrigger, opts TriggerOptions) (*models.Shift, error) {
	db := config.GetDB()

	var shift *models.Shift
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		shift, err = models.GetShiftById2(tx, shiftId)
		if err != nil {
			return err
		}
		next := DetermineNextStatus(shift.CurrentStatus, trigger, opts)
		if next == shift.CurrentStatus {
			return nil
		}
		if err := ValidateTransition(shift.CurrentStatus, next); err != nil {
			return err
		}
		if err := models.UpdateShiftStatus(tx, shiftId, next); err != nil {
			return err
		}
		description := fmt.Sprintf("Shift %d: %s -> %s (%s)", shiftId, shift.CurrentStatus, next, trigger)
		if auditErr := models.SaveHistoryUpdate(tx, shiftId, "shifts", shift.CurrentStatus, next, description); auditErr != nil {
			config.LogError(logger, "shiftLifecycle.go", "applyShiftTransition", "SaveHistoryUpdate", shiftId, auditErr)
		}
		shift.CurrentStatus = next
		return nil
	})
	if err != nil {
		config.LogError(logger, "shiftLifecycle.go", "applyShiftTransition", string(trigger), shiftId, err)
		return nil, err
	}
	return shift, nil
}

// OpenShift moves a freshly created shift from NOT_STARTED to OPEN.
func OpenShift(ctx context.Context, logger *logrus.Logger, shiftId int) (*models.Shift, error) {
	return applyShiftTransition(ctx, logger, shiftId, models.ShiftTriggerOpened, TriggerOptions{})
}

// RecordShiftActivity marks the first sale/scan of the shift. Safe to fire on
// every activity; it is a no-op once the shift is ACTIVE.
func RecordShiftActivity(ctx context.Context, logger *logrus.Logger, shiftId int) (*models.Shift, error) {
	return applyShiftTransition(ctx, logger, shiftId, models.ShiftTriggerFirstActivity, TriggerOptions{})
}

// InitiateShiftClosing moves a working shift into CLOSING.
func InitiateShiftClosing(ctx context.Context, logger *logrus.Logger, shiftId int) (*models.Shift, error) {
	return applyShiftTransition(ctx, logger, shiftId, models.ShiftTriggerClosingInitiated, TriggerOptions{})
}

// ApproveShiftVariance is the explicit approval that releases a shift from
// VARIANCE_REVIEW to CLOSED.
func ApproveShiftVariance(ctx context.Context, logger *logrus.Logger, shiftId int) (*models.Shift, error) {
	return applyShiftTransition(ctx, logger, shiftId, models.ShiftTriggerVarianceApproved, TriggerOptions{})
}

// ActivatePack places a pack in play for a shift: stamps the activating shift
// and bin and records the opening serial (create-if-absent). Only permitted
// while the shift can still activate packs.
func ActivatePack(ctx context.Context, logger *logrus.Logger, shiftId int, packId int, binId *int, openingSerial string) (*models.ShiftOpening, error) {
	if _, err := ParseSerial("openingSerial", openingSerial); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var opening *models.ShiftOpening
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shift, err := models.GetShiftById2(tx, shiftId)
		if err != nil {
			return err
		}
		if !CanActivatePack(shift.CurrentStatus) {
			return &StateMachineViolation{
				Code:    CodeInvalidTransition,
				From:    shift.CurrentStatus,
				To:      shift.CurrentStatus,
				Allowed: AllowedTransitions(shift.CurrentStatus),
			}
		}
		pack, err := models.GetPack(ctx, packId)
		if err != nil {
			return err
		}
		if pack.StoreId != shift.StoreId {
			return utils.NewNotFoundError("pack", packId)
		}
		if err := models.SetPackActivated(tx, packId, shiftId, binId); err != nil {
			return err
		}
		opening, err = models.CreateShiftOpening(tx, shiftId, packId, openingSerial)
		if err != nil {
			return err
		}
		description := fmt.Sprintf("Pack %d activated for shift %d at serial %s", packId, shiftId, openingSerial)
		if auditErr := models.SaveHistoryCreate(tx, opening.ID, opening, description); auditErr != nil {
			config.LogError(logger, "shiftLifecycle.go", "ActivatePack", "SaveHistoryCreate", packId, auditErr)
		}
		return nil
	})
	if err != nil {
		config.LogError(logger, "shiftLifecycle.go", "ActivatePack", "activate", packId, err)
		return nil, err
	}
	return opening, nil
}
