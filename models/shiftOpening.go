package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// ShiftOpening records the first-available serial position of a pack at shift
// start. One per (shift, pack); immutable once created.
type ShiftOpening struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ShiftId       int       `gorm:"uniqueIndex:idx_opening_shift_pack;not null" json:"shift_id"`
	PackId        int       `gorm:"uniqueIndex:idx_opening_shift_pack;not null" json:"pack_id"`
	OpeningSerial string    `gorm:"size:3;not null" json:"opening_serial"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// CreateShiftOpening is create-if-absent: a duplicate (shift, pack) insert is
// resolved by returning the existing row, never overwriting it.
func CreateShiftOpening(tx *gorm.DB, shiftId int, packId int, openingSerial string) (*ShiftOpening, error) {
	opening := ShiftOpening{
		ShiftId:       shiftId,
		PackId:        packId,
		OpeningSerial: openingSerial,
	}
	err := tx.Create(&opening).Error
	if err == nil {
		return &opening, nil
	}
	if !IsDuplicateKeyErr(err) {
		return nil, err
	}

	var existing ShiftOpening
	if err := tx.Where("shift_id = ? AND pack_id = ?", shiftId, packId).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// GetShiftOpenings batch-loads opening records for the given packs of one shift.
func GetShiftOpenings(ctx context.Context, shiftId int, packIds []int) ([]*ShiftOpening, error) {
	if len(packIds) == 0 {
		return nil, nil
	}
	db := config.GetDB()
	var results []*ShiftOpening
	err := db.WithContext(ctx).
		Where("shift_id = ? AND pack_id IN ?", shiftId, packIds).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
