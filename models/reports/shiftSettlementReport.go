package reports

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/models"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"github.com/shopspring/decimal"
)

// ShiftSettlementResponse is one settled shift with its pack and cash totals.
type ShiftSettlementResponse struct {
	ShiftId         int             `json:"shiftId"`
	CashierId       int             `json:"cashierId"`
	CurrentStatus   string          `json:"currentStatus"`
	OpenedAt        time.Time       `json:"openedAt"`
	ClosedAt        *time.Time      `json:"closedAt,omitempty"`
	PacksClosed     int             `json:"packsClosed"`
	PacksDepleted   int             `json:"packsDepleted"`
	ManualClosings  int             `json:"manualClosings"`
	VarianceCount   int             `json:"varianceCount"`
	TicketShortfall int             `json:"ticketShortfall"`
	CashExpected    decimal.Decimal `json:"cashExpected"`
	CashCounted     decimal.Decimal `json:"cashCounted"`
	CashVariance    decimal.Decimal `json:"cashVariance"`
}

func GetShiftSettlementReport(ctx context.Context, storeId string, fromDate time.Time, toDate time.Time, cashierId *int) ([]*ShiftSettlementResponse, error) {
	if err := utils.ValidateResourceId[models.Store](ctx, "", storeId); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewNotFoundError("store", storeId)
		}
		return nil, err
	}

	sqlT := `
WITH ClosingAgg AS (
    SELECT
        shift_id,
        COUNT(*) AS packs_closed,
        SUM(CASE WHEN entry_method = 'MANUAL' THEN 1 ELSE 0 END) AS manual_closings
    FROM shift_closings
    GROUP BY shift_id
),
VarianceAgg AS (
    SELECT
        shift_id,
        COUNT(*) AS variance_count,
        SUM(difference) AS ticket_shortfall
    FROM shift_variances
    GROUP BY shift_id
),
DepletionAgg AS (
    SELECT
        depleted_shift_id AS shift_id,
        COUNT(*) AS packs_depleted
    FROM packs
    WHERE depleted_shift_id IS NOT NULL
    GROUP BY depleted_shift_id
)
SELECT
    sh.id AS shift_id,
    sh.cashier_id,
    sh.current_status,
    sh.opened_at,
    sh.closed_at,
    COALESCE(ca.packs_closed, 0) AS packs_closed,
    COALESCE(da.packs_depleted, 0) AS packs_depleted,
    COALESCE(ca.manual_closings, 0) AS manual_closings,
    COALESCE(va.variance_count, 0) AS variance_count,
    COALESCE(va.ticket_shortfall, 0) AS ticket_shortfall,
    sh.cash_expected,
    sh.cash_counted,
    sh.cash_counted - sh.cash_expected AS cash_variance
FROM
    shifts AS sh
        LEFT JOIN
    ClosingAgg AS ca ON ca.shift_id = sh.id
        LEFT JOIN
    VarianceAgg AS va ON va.shift_id = sh.id
        LEFT JOIN
    DepletionAgg AS da ON da.shift_id = sh.id
WHERE
    sh.store_id = @storeId
        AND sh.opened_at BETWEEN @fromDate AND @toDate
        {{- if .cashierId }} AND sh.cashier_id = @cashierId {{- end }}
ORDER BY sh.opened_at;
`
	started := time.Now()
	defer logSlowReport(ctx, "shift_settlement", started, map[string]any{"store_id": storeId})

	cacheKey := fmt.Sprintf("report:shift_settlement:%s:%d:%d:%d",
		storeId, fromDate.Unix(), toDate.Unix(), utils.DereferencePtr(cashierId, 0))
	if reportCacheEnabled() {
		var cached []*ShiftSettlementResponse
		if ok, err := cacheGet(cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"cashierId": utils.DereferencePtr(cashierId, 0),
	})
	if err != nil {
		return nil, err
	}

	var results []*ShiftSettlementResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"storeId":   storeId,
		"fromDate":  fromDate,
		"toDate":    toDate,
		"cashierId": cashierId,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, results, reportCacheTTL())
	}
	return results, nil
}
