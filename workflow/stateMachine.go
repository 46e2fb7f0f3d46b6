package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/lottery_backend/models"
	"github.com/shopspring/decimal"
)

// The shift state machine is stateless: pure functions over an explicit status
// parameter. The transition table is the single source of truth for every
// status mutation in the system.

const (
	CodeShiftLocked       = "SHIFT_LOCKED"
	CodeInvalidTransition = "INVALID_TRANSITION"
)

// StateMachineViolation is returned for transitions the table forbids. It is
// not retryable with the same arguments.
type StateMachineViolation struct {
	Code    string
	From    models.ShiftStatus
	To      models.ShiftStatus
	Allowed []models.ShiftStatus
}

func (e *StateMachineViolation) Error() string {
	if e.Code == CodeShiftLocked {
		return fmt.Sprintf("%s: shift is CLOSED; no further transitions (attempted %s -> %s)", e.Code, e.From, e.To)
	}
	return fmt.Sprintf("%s: %s -> %s not permitted (allowed from %s: %v)", e.Code, e.From, e.To, e.From, e.Allowed)
}

var shiftTransitions = map[models.ShiftStatus][]models.ShiftStatus{
	models.ShiftStatusNotStarted: {models.ShiftStatusOpen},
	models.ShiftStatusOpen:       {models.ShiftStatusActive, models.ShiftStatusClosing, models.ShiftStatusClosed},
	models.ShiftStatusActive:     {models.ShiftStatusClosing, models.ShiftStatusClosed},
	models.ShiftStatusClosing:    {models.ShiftStatusClosed, models.ShiftStatusVarianceReview},
	// RECONCILING is legacy; such shifts may only auto-close.
	models.ShiftStatusReconciling:    {models.ShiftStatusClosed},
	models.ShiftStatusVarianceReview: {models.ShiftStatusClosed},
	models.ShiftStatusClosed:         {},
}

// AllowedTransitions returns the statuses reachable from the given one.
func AllowedTransitions(from models.ShiftStatus) []models.ShiftStatus {
	allowed := shiftTransitions[from]
	out := make([]models.ShiftStatus, len(allowed))
	copy(out, allowed)
	return out
}

// ValidateTransition fails with SHIFT_LOCKED when from is the terminal CLOSED
// status, and with INVALID_TRANSITION when the table does not permit from -> to.
func ValidateTransition(from models.ShiftStatus, to models.ShiftStatus) error {
	if from == models.ShiftStatusClosed {
		return &StateMachineViolation{Code: CodeShiftLocked, From: from, To: to}
	}
	for _, allowed := range shiftTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &StateMachineViolation{Code: CodeInvalidTransition, From: from, To: to, Allowed: AllowedTransitions(from)}
}

// TriggerOptions carries the context a trigger may need.
type TriggerOptions struct {
	VarianceExceeded bool
}

// DetermineNextStatus maps a semantic trigger to the resulting status. Triggers
// inapplicable to the current status return it unchanged, so callers may fire
// triggers unconditionally.
func DetermineNextStatus(current models.ShiftStatus, trigger models.ShiftTrigger, opts TriggerOptions) models.ShiftStatus {
	switch trigger {
	case models.ShiftTriggerOpened:
		if current == models.ShiftStatusNotStarted {
			return models.ShiftStatusOpen
		}
	case models.ShiftTriggerFirstActivity:
		if current == models.ShiftStatusOpen {
			return models.ShiftStatusActive
		}
	case models.ShiftTriggerClosingInitiated:
		if current == models.ShiftStatusOpen || current == models.ShiftStatusActive {
			return models.ShiftStatusClosing
		}
	case models.ShiftTriggerCashReconciled:
		if current == models.ShiftStatusClosing {
			if opts.VarianceExceeded {
				return models.ShiftStatusVarianceReview
			}
			return models.ShiftStatusClosed
		}
		if current == models.ShiftStatusReconciling {
			// legacy auto-close
			return models.ShiftStatusClosed
		}
	case models.ShiftTriggerVarianceDetected:
		if current == models.ShiftStatusClosing {
			return models.ShiftStatusVarianceReview
		}
	case models.ShiftTriggerVarianceApproved:
		if current == models.ShiftStatusVarianceReview {
			return models.ShiftStatusClosed
		}
	case models.ShiftTriggerDirectClose:
		if current == models.ShiftStatusOpen || current == models.ShiftStatusActive {
			return models.ShiftStatusClosed
		}
	}
	return current
}

// IsWorkingStatus reports whether the shift is actively staffed.
func IsWorkingStatus(status models.ShiftStatus) bool {
	return status == models.ShiftStatusOpen || status == models.ShiftStatusActive
}

// IsUnclosedStatus reports whether the shift has not reached the terminal state.
func IsUnclosedStatus(status models.ShiftStatus) bool {
	switch status {
	case models.ShiftStatusOpen, models.ShiftStatusActive, models.ShiftStatusClosing,
		models.ShiftStatusReconciling, models.ShiftStatusVarianceReview:
		return true
	}
	return false
}

func CanActivatePack(status models.ShiftStatus) bool {
	return status == models.ShiftStatusOpen || status == models.ShiftStatusActive
}

func CanClosePack(status models.ShiftStatus) bool {
	return status == models.ShiftStatusOpen || status == models.ShiftStatusActive || status == models.ShiftStatusClosing
}

// Cash-variance review routing: a CLOSING shift goes to VARIANCE_REVIEW only
// when the cash variance exceeds BOTH the absolute-dollar and the percentage
// threshold simultaneously.
var (
	cashVarianceAbsoluteThreshold = decimal.NewFromInt(10)     // $10.00
	cashVariancePercentThreshold  = decimal.NewFromFloat(0.02) // 2%
)

// CashVarianceExceedsThreshold applies both legs to |counted − expected|. Both
// legs are strict: a variance sitting exactly on a threshold does not exceed
// it. With a zero expected amount the percentage leg is satisfied by any
// variance that clears the absolute leg.
func CashVarianceExceedsThreshold(expected decimal.Decimal, counted decimal.Decimal) bool {
	diff := counted.Sub(expected).Abs()
	if !diff.GreaterThan(cashVarianceAbsoluteThreshold) {
		return false
	}
	if expected.IsZero() {
		return true
	}
	return diff.GreaterThan(expected.Abs().Mul(cashVariancePercentThreshold))
}
