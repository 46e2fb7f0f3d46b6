package reports

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/models"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"github.com/shopspring/decimal"
)

// ShiftVarianceDetailResponse is one ticket-count variance with its pack and
// closing context, for supervisor review.
type ShiftVarianceDetailResponse struct {
	ShiftId       int             `json:"shiftId"`
	CashierId     int             `json:"cashierId"`
	PackId        int             `json:"packId"`
	PackNumber    string          `json:"packNumber"`
	GameId        int             `json:"gameId"`
	TicketPrice   decimal.Decimal `json:"ticketPrice"`
	OpeningSerial string          `json:"openingSerial"`
	ClosingSerial string          `json:"closingSerial"`
	EntryMethod   string          `json:"entryMethod"`
	Expected      int             `json:"expected"`
	Actual        int             `json:"actual"`
	Difference    int             `json:"difference"`
	ValueAtRisk   decimal.Decimal `json:"valueAtRisk"`
	RecordedAt    time.Time       `json:"recordedAt"`
}

func GetShiftVarianceReport(ctx context.Context, storeId string, fromDate time.Time, toDate time.Time, cashierId *int) ([]*ShiftVarianceDetailResponse, error) {
	if err := utils.ValidateResourceId[models.Store](ctx, "", storeId); err != nil {
		if err == utils.ErrorRecordNotFound {
			return nil, utils.NewNotFoundError("store", storeId)
		}
		return nil, err
	}

	sqlT := `
SELECT
    sv.shift_id,
    sh.cashier_id,
    sv.pack_id,
    p.pack_number,
    p.game_id,
    p.ticket_price,
    so.opening_serial,
    sc.closing_serial,
    sc.entry_method,
    sv.expected,
    sv.actual,
    sv.difference,
    ABS(sv.difference) * p.ticket_price AS value_at_risk,
    sv.created_at AS recorded_at
FROM
    shift_variances AS sv
        JOIN
    shifts AS sh ON sh.id = sv.shift_id
        JOIN
    packs AS p ON p.id = sv.pack_id
        LEFT JOIN
    shift_openings AS so ON so.shift_id = sv.shift_id AND so.pack_id = sv.pack_id
        LEFT JOIN
    shift_closings AS sc ON sc.shift_id = sv.shift_id AND sc.pack_id = sv.pack_id
WHERE
    sh.store_id = @storeId
        AND sh.opened_at BETWEEN @fromDate AND @toDate
        {{- if .cashierId }} AND sh.cashier_id = @cashierId {{- end }}
ORDER BY sv.shift_id , sv.pack_id;
`
	started := time.Now()
	defer logSlowReport(ctx, "shift_variance_detail", started, map[string]any{"store_id": storeId})

	sql, err := utils.ExecTemplate(sqlT, map[string]interface{}{
		"cashierId": utils.DereferencePtr(cashierId, 0),
	})
	if err != nil {
		return nil, err
	}

	var results []*ShiftVarianceDetailResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"storeId":   storeId,
		"fromDate":  fromDate,
		"toDate":    toDate,
		"cashierId": cashierId,
	}).Scan(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}
