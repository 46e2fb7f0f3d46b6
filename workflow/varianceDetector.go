package workflow

import (
	"bitbucket.org/mmdatafocus/lottery_backend/models"
)

// DetectVariance compares expected against actual tickets sold and returns a
// variance record iff they differ; nil otherwise. The difference is signed
// actual − expected: positive = surplus, negative = shortage. Persistence
// belongs to the settlement workflow.
func DetectVariance(shiftId int, packId int, expected int, actual int) *models.ShiftVariance {
	if expected == actual {
		return nil
	}
	return &models.ShiftVariance{
		ShiftId:    shiftId,
		PackId:     packId,
		Expected:   expected,
		Actual:     actual,
		Difference: actual - expected,
	}
}
