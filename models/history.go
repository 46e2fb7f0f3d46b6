package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"gorm.io/gorm"
)

// History is the write-once audit trail. Writes are best-effort: a failed audit
// insert is logged by the caller and never rolls back the primary transaction.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	StoreId       string    `gorm:"type:char(36);index;not null" json:"store_id"`
	ActionType    string    `gorm:"size:32;not null" json:"action_type"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	ActorId       string    `gorm:"size:64;index;not null" json:"actor_id"`
	ActorName     string    `gorm:"size:100" json:"actor_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) (err error) {

	var history History

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	ctx := tx.Statement.Context
	// get storeId and actor from context
	storeId, ok := utils.GetStoreIdFromContext(ctx)
	if !ok || storeId == "" {
		return errors.New("store id is required")
	}
	actorId, ok := utils.GetActorIdFromContext(ctx)
	if !ok || actorId == "" {
		return errors.New("actor id is required")
	}
	actorName, _ := utils.GetActorNameFromContext(ctx)

	history.StoreId = storeId
	history.ActionType = actionType
	history.Before = string(b)
	history.After = string(a)
	history.Description = description
	history.ReferenceID = referenceId
	history.ReferenceType = referenceType
	history.ActorId = actorId
	history.ActorName = actorName

	err = tx.Create(&history).Error
	return err
}

func SaveHistoryCreate(tx *gorm.DB, id int, obj interface{}, description string) error {
	return createHistory(tx, "CREATE", id, tx.Statement.Table, nil, obj, description)
}

func SaveHistoryUpdate(tx *gorm.DB, id int, referenceType string, before interface{}, after interface{}, description string) error {
	return createHistory(tx, "UPDATE", id, referenceType, before, after, description)
}

// SaveSettlementHistory records one settlement outcome for a pack.
// Referenced by shift_closings id once inserted; reason carried in description.
func SaveSettlementHistory(tx *gorm.DB, referenceId int, before interface{}, after interface{}, description string) error {
	return createHistory(tx, "SETTLE", referenceId, "shift_closings", before, after, description)
}

func GetHistories(ctx context.Context, referenceId *int, referenceType *string, actorId *string) ([]*History, error) {
	db := config.GetDB()
	var results []*History

	storeId, ok := utils.GetStoreIdFromContext(ctx)
	if !ok || storeId == "" {
		return nil, errors.New("store id is required")
	}

	dbCtx := db.WithContext(ctx).Where("store_id = ?", storeId)
	if referenceId != nil && *referenceId > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", referenceId)
	}
	if referenceType != nil && len(*referenceType) > 0 {
		dbCtx = dbCtx.Where("reference_type = ?", referenceType)
	}
	if actorId != nil && len(*actorId) > 0 {
		dbCtx = dbCtx.Where("actor_id = ?", actorId)
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
