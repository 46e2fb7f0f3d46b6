package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShiftClosing records the first-available serial position of a pack at shift
// end. Exactly one per (shift, pack); create-if-absent, never overwritten.
type ShiftClosing struct {
	ID            int                `gorm:"primary_key" json:"id"`
	ShiftId       int                `gorm:"uniqueIndex:idx_closing_shift_pack;not null" json:"shift_id"`
	PackId        int                `gorm:"uniqueIndex:idx_closing_shift_pack;not null" json:"pack_id"`
	CashierId     int                `gorm:"index;not null" json:"cashier_id"`
	ClosingSerial string             `gorm:"size:3;not null" json:"closing_serial"`
	EntryMethod   ClosingEntryMethod `gorm:"type:enum('SCAN','MANUAL');not null" json:"entry_method"`
	ClosedBy      string             `gorm:"size:64;not null" json:"closed_by"`
	AuthorizedBy  *string            `gorm:"size:64" json:"authorized_by"`
	AuthorizedAt  *time.Time         `json:"authorized_at"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

// BulkInsertShiftClosings inserts all closing rows in one statement with
// skip-on-conflict semantics: rows racing an existing (shift, pack) closing are
// silently dropped. Returns the number of rows actually inserted.
func BulkInsertShiftClosings(tx *gorm.DB, closings []*ShiftClosing) (int, error) {
	if len(closings) == 0 {
		return 0, nil
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&closings)
	if result.Error != nil {
		return 0, result.Error
	}
	return int(result.RowsAffected), nil
}

// GetShiftClosings loads every closing already recorded for a shift (the
// settlement dedup set).
func GetShiftClosings(ctx context.Context, shiftId int) ([]*ShiftClosing, error) {
	db := config.GetDB()
	var results []*ShiftClosing
	err := db.WithContext(ctx).Where("shift_id = ?", shiftId).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
