package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Pack is a bundle of lottery tickets sold sequentially within the inclusive
// serial range [SerialStart, SerialEnd]. A pack transitions ACTIVE -> DEPLETED
// at most once per activation; the depletion fields are set together.
type Pack struct {
	ID               int             `gorm:"primary_key" json:"id"`
	StoreId          string          `gorm:"type:char(36);index;not null" json:"store_id"`
	GameId           int             `gorm:"index;not null" json:"game_id"`
	PackNumber       string          `gorm:"size:64;not null" json:"pack_number"`
	SerialStart      string          `gorm:"size:3;not null" json:"serial_start"`
	SerialEnd        string          `gorm:"size:3;not null" json:"serial_end"`
	TicketPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"ticket_price"`
	CurrentBinId     *int            `gorm:"index" json:"current_bin_id"`
	CurrentStatus    PackStatus      `gorm:"type:enum('ACTIVE','DEPLETED');not null;default:'ACTIVE'" json:"current_status"`
	ActivatedShiftId *int            `gorm:"index" json:"activated_shift_id"`
	DepletedShiftId  *int            `gorm:"index" json:"depleted_shift_id"`
	DepletedAt       *time.Time      `json:"depleted_at"`
	DepletionReason  string          `gorm:"size:64" json:"depletion_reason"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetPack(ctx context.Context, id int) (*Pack, error) {
	db := config.GetDB()
	var result Pack
	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, utils.NewNotFoundError("pack", id)
	}
	return &result, nil
}

// GetPacksByIds batch-loads packs for a store with a single IN query.
func GetPacksByIds(ctx context.Context, storeId string, ids []int) ([]*Pack, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db := config.GetDB()
	var results []*Pack
	err := db.WithContext(ctx).
		Where("store_id = ? AND id IN ?", storeId, utils.UniqueSlice(ids)).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetAutoDepletedPacks loads the auto-close candidates for a settlement:
// packs both activated and depleted during the given shift.
func GetAutoDepletedPacks(ctx context.Context, storeId string, shiftId int) ([]*Pack, error) {
	db := config.GetDB()
	var results []*Pack
	err := db.WithContext(ctx).
		Where("store_id = ? AND activated_shift_id = ? AND depleted_shift_id = ?", storeId, shiftId, shiftId).
		Where("current_status = ?", PackStatusDepleted).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SetPackActivated stamps the activating shift and bin on an ACTIVE pack.
func SetPackActivated(tx *gorm.DB, packId int, shiftId int, binId *int) error {
	return tx.Model(&Pack{}).
		Where("id = ? AND current_status = ?", packId, PackStatusActive).
		Updates(map[string]interface{}{"activated_shift_id": shiftId, "current_bin_id": binId}).Error
}

// MarkPackDepleted applies the ACTIVE -> DEPLETED transition. The status guard
// in the WHERE clause makes the transition single-shot: a second call (or a
// concurrent settlement) affects zero rows. All depletion fields are set together.
func MarkPackDepleted(tx *gorm.DB, packId int, shiftId int, reason string, depletedAt time.Time) (bool, error) {
	result := tx.Model(&Pack{}).
		Where("id = ? AND current_status = ?", packId, PackStatusActive).
		Updates(map[string]interface{}{
			"current_status":    PackStatusDepleted,
			"depleted_shift_id": shiftId,
			"depleted_at":       depletedAt,
			"depletion_reason":  reason,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
