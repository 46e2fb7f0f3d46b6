package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Shift struct {
	ID            int             `gorm:"primary_key" json:"id"`
	StoreId       string          `gorm:"type:char(36);index;not null" json:"store_id"`
	CashierId     int             `gorm:"index;not null" json:"cashier_id"`
	OpenedAt      time.Time       `gorm:"not null" json:"opened_at"`
	ClosedAt      *time.Time      `json:"closed_at"`
	CurrentStatus ShiftStatus     `gorm:"type:enum('NOT_STARTED','OPEN','ACTIVE','CLOSING','RECONCILING','VARIANCE_REVIEW','CLOSED');not null;default:'NOT_STARTED'" json:"current_status"`
	OpeningFloat  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_float"`
	CashExpected  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cash_expected"`
	CashCounted   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cash_counted"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewShift struct {
	StoreId      string          `json:"store_id" validate:"required"`
	CashierId    int             `json:"cashier_id" validate:"required,gt=0"`
	OpeningFloat decimal.Decimal `json:"opening_float"`
}

func CreateShift(ctx context.Context, input *NewShift) (*Shift, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if _, err := GetStore(ctx, input.StoreId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	shift := Shift{
		StoreId:       input.StoreId,
		CashierId:     input.CashierId,
		OpenedAt:      time.Now().UTC(),
		CurrentStatus: ShiftStatusNotStarted,
		OpeningFloat:  input.OpeningFloat,
	}
	if err := db.WithContext(ctx).Create(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func GetShift(ctx context.Context, id int) (*Shift, error) {
	db := config.GetDB()
	var result Shift
	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, utils.NewNotFoundError("shift", id)
	}
	return &result, nil
}

func GetShiftById2(tx *gorm.DB, id int) (*Shift, error) {
	var result Shift
	err := tx.First(&result, id).Error
	if err != nil {
		return nil, utils.NewNotFoundError("shift", id)
	}
	return &result, nil
}

// UpdateShiftStatus persists a status the state machine already validated.
// Callers must not write CurrentStatus any other way.
func UpdateShiftStatus(tx *gorm.DB, shiftId int, to ShiftStatus) error {
	updates := map[string]interface{}{"current_status": to}
	if to == ShiftStatusClosed {
		now := time.Now().UTC()
		updates["closed_at"] = &now
	}
	return tx.Model(&Shift{}).Where("id = ?", shiftId).Updates(updates).Error
}

// UpdateShiftCash records the counted and expected cash captured at closing.
func UpdateShiftCash(tx *gorm.DB, shiftId int, expected decimal.Decimal, counted decimal.Decimal) error {
	return tx.Model(&Shift{}).Where("id = ?", shiftId).
		Updates(map[string]interface{}{"cash_expected": expected, "cash_counted": counted}).Error
}
