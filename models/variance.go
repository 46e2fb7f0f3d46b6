package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShiftVariance is created only when expected != actual. Append-only.
// Sign convention: positive difference = surplus, negative = shortage.
type ShiftVariance struct {
	ID         int       `gorm:"primary_key" json:"id"`
	ShiftId    int       `gorm:"uniqueIndex:idx_variance_shift_pack;not null" json:"shift_id"`
	PackId     int       `gorm:"uniqueIndex:idx_variance_shift_pack;not null" json:"pack_id"`
	Expected   int       `gorm:"not null" json:"expected"`
	Actual     int       `gorm:"not null" json:"actual"`
	Difference int       `gorm:"not null" json:"difference"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BulkInsertShiftVariances inserts variance rows in one statement. The unique
// (shift, pack) index plus skip-on-conflict keeps settlement retries from
// duplicating variances.
func BulkInsertShiftVariances(tx *gorm.DB, variances []*ShiftVariance) (int, error) {
	if len(variances) == 0 {
		return 0, nil
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&variances)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

func GetShiftVariances(ctx context.Context, shiftId int) ([]*ShiftVariance, error) {
	db := config.GetDB()
	var results []*ShiftVariance
	err := db.WithContext(ctx).Where("shift_id = ?", shiftId).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
