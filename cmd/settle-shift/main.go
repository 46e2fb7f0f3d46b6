package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/models"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"bitbucket.org/mmdatafocus/lottery_backend/workflow"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	shiftID := flag.Int("shift-id", 0, "Required: shift id to settle")
	actor := flag.String("actor", "", "Required: actor id recorded as closed_by")
	closingsPath := flag.String("closings", "", "Optional: path to a JSON array of manual closings")
	cashCountedStr := flag.String("cash-counted", "", "Optional: counted drawer cash; runs the full shift close when set")
	flag.Parse()

	if *shiftID <= 0 {
		fmt.Fprintln(os.Stderr, "--shift-id is required")
		os.Exit(1)
	}
	if strings.TrimSpace(*actor) == "" {
		fmt.Fprintln(os.Stderr, "--actor is required")
		os.Exit(1)
	}

	var closings []workflow.ManualClosingInput
	if strings.TrimSpace(*closingsPath) != "" {
		raw, err := os.ReadFile(*closingsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read closings file: %v\n", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(raw, &closings); err != nil {
			fmt.Fprintf(os.Stderr, "parse closings file: %v\n", err)
			os.Exit(1)
		}
	}

	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	}

	// Operators address shifts by primary id across stores, so store scoping
	// is switched off; the workflows still stamp the audit trail with the
	// shift's own store.
	ctx := context.Background()
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	ctx = utils.SetActorIdInContext(ctx, *actor)
	ctx = utils.SetSkipStoreScopeInContext(ctx, true)

	if strings.TrimSpace(*cashCountedStr) != "" {
		cashCounted, err := decimal.NewFromString(strings.TrimSpace(*cashCountedStr))
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid cash-counted: %v\n", err)
			os.Exit(1)
		}
		result, err := workflow.ProcessShiftCloseWorkflow(ctx, logger, *shiftID, closings, *actor, cashCounted)
		if err != nil {
			if utils.IsValidationError(err) {
				fmt.Fprintf(os.Stderr, "invalid input: %v\n", err)
				os.Exit(2)
			}
			fmt.Fprintf(os.Stderr, "shift close failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("shift %d closed: status=%s packs_closed=%d packs_depleted=%d tickets_sold=%d variances=%d cash_variance=%s\n",
			*shiftID, result.FinalStatus, result.Settlement.PacksClosed, result.Settlement.PacksDepleted,
			result.Settlement.TotalTicketsSold, len(result.Settlement.Variances), result.CashVariance.StringFixed(2))
		return
	}

	result, err := workflow.ProcessShiftSettlementWorkflow(ctx, logger, *shiftID, closings, *actor)
	if err != nil {
		if utils.IsValidationError(err) {
			fmt.Fprintf(os.Stderr, "invalid input: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "settlement failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("shift %d settled: packs_closed=%d packs_depleted=%d tickets_sold=%d variances=%d\n",
		*shiftID, result.PacksClosed, result.PacksDepleted, result.TotalTicketsSold, len(result.Variances))
	for _, v := range result.Variances {
		fmt.Printf("  variance pack=%d expected=%d actual=%d difference=%d\n", v.PackId, v.Expected, v.Actual, v.Difference)
	}
}
