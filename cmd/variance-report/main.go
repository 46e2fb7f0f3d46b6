package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/models/reports"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	storeID := flag.String("store-id", "", "Required: store id (uuid)")
	fromStr := flag.String("from", "", "Required: start date (YYYY-MM-DD)")
	toStr := flag.String("to", "", "Required: end date (YYYY-MM-DD), inclusive")
	cashierID := flag.Int("cashier-id", 0, "Optional: restrict to one cashier")
	outPath := flag.String("out", "", "Optional: write the report to this xlsx file instead of stdout")
	summary := flag.Bool("summary", false, "Emit the per-shift settlement summary instead of variance detail")
	flag.Parse()

	if strings.TrimSpace(*storeID) == "" {
		fmt.Fprintln(os.Stderr, "--store-id is required")
		os.Exit(1)
	}
	fromDate, err := time.Parse("2006-01-02", strings.TrimSpace(*fromStr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid from date: %v\n", err)
		os.Exit(1)
	}
	toDate, err := time.Parse("2006-01-02", strings.TrimSpace(*toStr))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid to date: %v\n", err)
		os.Exit(1)
	}
	toDate = toDate.Add(24*time.Hour - time.Second)

	var cashier *int
	if *cashierID > 0 {
		cashier = cashierID
	}

	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	ctx := context.Background()
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	ctx = utils.SetStoreIdInContext(ctx, *storeID)

	if *summary {
		rows, err := reports.GetShiftSettlementReport(ctx, *storeID, fromDate, toDate, cashier)
		if err != nil {
			fmt.Fprintf(os.Stderr, "settlement report: %v\n", err)
			os.Exit(1)
		}
		if strings.TrimSpace(*outPath) != "" {
			if err := reports.ExportShiftSettlementExcel(rows, *outPath); err != nil {
				fmt.Fprintf(os.Stderr, "export xlsx: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("wrote %d shifts to %s\n", len(rows), *outPath)
			return
		}
		for _, r := range rows {
			fmt.Printf("shift=%d cashier=%d status=%s packs_closed=%d packs_depleted=%d variances=%d shortfall=%d cash_variance=%s\n",
				r.ShiftId, r.CashierId, r.CurrentStatus, r.PacksClosed, r.PacksDepleted,
				r.VarianceCount, r.TicketShortfall, r.CashVariance.StringFixed(2))
		}
		return
	}

	rows, err := reports.GetShiftVarianceReport(ctx, *storeID, fromDate, toDate, cashier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "variance report: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(*outPath) != "" {
		if err := reports.ExportShiftVarianceExcel(rows, *outPath); err != nil {
			fmt.Fprintf(os.Stderr, "export xlsx: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %d variances to %s\n", len(rows), *outPath)
		return
	}
	for _, r := range rows {
		fmt.Printf("shift=%d pack=%d (%s) opening=%s closing=%s expected=%d actual=%d difference=%d value_at_risk=%s\n",
			r.ShiftId, r.PackId, r.PackNumber, r.OpeningSerial, r.ClosingSerial,
			r.Expected, r.Actual, r.Difference, r.ValueAtRisk.StringFixed(2))
	}
}
