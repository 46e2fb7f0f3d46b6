package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"github.com/shopspring/decimal"
)

// TicketSale is one tracked per-ticket sale event. Tracking may be incomplete
// (offline scanners, legacy stores); settlement treats a zero count as
// "untracked" and falls back to the expected count.
type TicketSale struct {
	ID           int             `gorm:"primary_key" json:"id"`
	StoreId      string          `gorm:"type:char(36);index;not null" json:"store_id"`
	ShiftId      int             `gorm:"index;not null" json:"shift_id"`
	PackId       int             `gorm:"index;not null" json:"pack_id"`
	SerialNumber string          `gorm:"size:3;not null" json:"serial_number"`
	SalePrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price"`
	SoldAt       time.Time       `gorm:"not null" json:"sold_at"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type packSoldCount struct {
	PackId int `json:"pack_id"`
	Sold   int `json:"sold"`
}

// CountTicketsSoldByPack returns the tracked sold-ticket count per pack for one
// shift as a single grouped query (never N point counts).
func CountTicketsSoldByPack(ctx context.Context, shiftId int, packIds []int) (map[int]int, error) {
	counts := make(map[int]int, len(packIds))
	if len(packIds) == 0 {
		return counts, nil
	}
	db := config.GetDB()
	var rows []packSoldCount
	err := db.WithContext(ctx).Model(&TicketSale{}).
		Select("pack_id, COUNT(*) AS sold").
		Where("shift_id = ? AND pack_id IN ?", shiftId, packIds).
		Group("pack_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.PackId] = row.Sold
	}
	return counts, nil
}
