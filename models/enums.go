package models

import (
	"database/sql/driver"
	"fmt"
)

// ShiftStatus is the single source of truth for a shift's lifecycle position.
// All mutations of it go through the workflow state machine.
type ShiftStatus string

const (
	ShiftStatusNotStarted ShiftStatus = "NOT_STARTED"
	ShiftStatusOpen       ShiftStatus = "OPEN"
	ShiftStatusActive     ShiftStatus = "ACTIVE"
	ShiftStatusClosing    ShiftStatus = "CLOSING"
	// ShiftStatusReconciling is legacy; accepted on read, never written anymore.
	ShiftStatusReconciling    ShiftStatus = "RECONCILING"
	ShiftStatusVarianceReview ShiftStatus = "VARIANCE_REVIEW"
	ShiftStatusClosed         ShiftStatus = "CLOSED"
)

func (s ShiftStatus) Value() (driver.Value, error) {
	return string(s), nil
}

func (s *ShiftStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		*s = ShiftStatus(v)
	case string:
		*s = ShiftStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into ShiftStatus", value)
	}
	return nil
}

type PackStatus string

const (
	PackStatusActive   PackStatus = "ACTIVE"
	PackStatusDepleted PackStatus = "DEPLETED"
)

type ClosingEntryMethod string

const (
	ClosingEntryMethodScan   ClosingEntryMethod = "SCAN"
	ClosingEntryMethodManual ClosingEntryMethod = "MANUAL"
)

func (m ClosingEntryMethod) Valid() bool {
	return m == ClosingEntryMethodScan || m == ClosingEntryMethodManual
}

// ShiftTrigger is a semantic event fired at the shift lifecycle. Triggers that
// do not apply to the current status are no-ops, so callers may fire them
// unconditionally.
type ShiftTrigger string

const (
	ShiftTriggerOpened           ShiftTrigger = "SHIFT_OPENED"
	ShiftTriggerFirstActivity    ShiftTrigger = "FIRST_ACTIVITY"
	ShiftTriggerClosingInitiated ShiftTrigger = "CLOSING_INITIATED"
	ShiftTriggerCashReconciled   ShiftTrigger = "CASH_RECONCILED"
	ShiftTriggerVarianceDetected ShiftTrigger = "VARIANCE_DETECTED"
	ShiftTriggerVarianceApproved ShiftTrigger = "VARIANCE_APPROVED"
	ShiftTriggerDirectClose      ShiftTrigger = "DIRECT_CLOSE"
)

const (
	DepletionReasonSoldOut     = "SOLD_OUT"
	DepletionReasonManualClose = "MANUAL_CLOSE"
)
