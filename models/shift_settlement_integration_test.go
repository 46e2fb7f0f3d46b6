package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/config"
	"bitbucket.org/mmdatafocus/lottery_backend/models"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
	"bitbucket.org/mmdatafocus/lottery_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// End-to-end settlement: auto-depleted pack plus a manual closing, then a
// retry of the same call, which must persist nothing new.
func TestShiftSettlement_EndToEnd_AndRetry(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()
	logger := logrus.New()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "lottery_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	store, err := models.CreateStore(ctx, &models.NewStore{Name: "Test Store", Timezone: "UTC"})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	storeID := store.ID.String()
	ctx = utils.SetStoreIdInContext(ctx, storeID)
	ctx = utils.SetActorIdInContext(ctx, "mgr-1")
	ctx = utils.SetActorNameInContext(ctx, "Test Manager")

	shift, err := models.CreateShift(ctx, &models.NewShift{
		StoreId:      storeID,
		CashierId:    3,
		OpeningFloat: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("CreateShift: %v", err)
	}
	if _, err := workflow.OpenShift(ctx, logger, shift.ID); err != nil {
		t.Fatalf("OpenShift: %v", err)
	}

	db := config.GetDB()
	soldOut := models.Pack{
		StoreId: storeID, GameId: 1, PackNumber: "G1-0001",
		SerialStart: "000", SerialEnd: "004",
		TicketPrice:   decimal.NewFromInt(5),
		CurrentStatus: models.PackStatusActive,
	}
	partial := models.Pack{
		StoreId: storeID, GameId: 1, PackNumber: "G1-0002",
		SerialStart: "000", SerialEnd: "009",
		TicketPrice:   decimal.NewFromInt(2),
		CurrentStatus: models.PackStatusActive,
	}
	if err := db.WithContext(ctx).Create(&soldOut).Error; err != nil {
		t.Fatalf("create pack: %v", err)
	}
	if err := db.WithContext(ctx).Create(&partial).Error; err != nil {
		t.Fatalf("create pack: %v", err)
	}

	if _, err := workflow.ActivatePack(ctx, logger, shift.ID, soldOut.ID, nil, "000"); err != nil {
		t.Fatalf("ActivatePack: %v", err)
	}
	if _, err := workflow.ActivatePack(ctx, logger, shift.ID, partial.ID, nil, "000"); err != nil {
		t.Fatalf("ActivatePack: %v", err)
	}
	if _, err := workflow.RecordShiftActivity(ctx, logger, shift.ID); err != nil {
		t.Fatalf("RecordShiftActivity: %v", err)
	}

	// The first pack sells out mid-shift; only 4 of its 5 tickets were tracked.
	for i := 0; i < 4; i++ {
		sale := models.TicketSale{
			StoreId: storeID, ShiftId: shift.ID, PackId: soldOut.ID,
			SerialNumber: fmt.Sprintf("%03d", i),
			SalePrice:    decimal.NewFromInt(5),
			SoldAt:       time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&sale).Error; err != nil {
			t.Fatalf("create ticket sale: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		sale := models.TicketSale{
			StoreId: storeID, ShiftId: shift.ID, PackId: partial.ID,
			SerialNumber: fmt.Sprintf("%03d", i),
			SalePrice:    decimal.NewFromInt(2),
			SoldAt:       time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&sale).Error; err != nil {
			t.Fatalf("create ticket sale: %v", err)
		}
	}
	if err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := models.MarkPackDepleted(tx, soldOut.ID, shift.ID, models.DepletionReasonSoldOut, time.Now().UTC())
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("pack %d not depleted", soldOut.ID)
		}
		return nil
	}); err != nil {
		t.Fatalf("deplete pack: %v", err)
	}

	if _, err := workflow.InitiateShiftClosing(ctx, logger, shift.ID); err != nil {
		t.Fatalf("InitiateShiftClosing: %v", err)
	}

	manual := []workflow.ManualClosingInput{{
		PackId:        partial.ID,
		ClosingSerial: "003",
		EntryMethod:   models.ClosingEntryMethodScan,
	}}
	result, err := workflow.ProcessShiftSettlementWorkflow(ctx, logger, shift.ID, manual, "mgr-1")
	if err != nil {
		t.Fatalf("settlement: %v", err)
	}

	if result.PacksClosed != 2 {
		t.Fatalf("PacksClosed = %d, want 2", result.PacksClosed)
	}
	if result.PacksDepleted != 1 {
		t.Fatalf("PacksDepleted = %d, want 1", result.PacksDepleted)
	}
	if result.TotalTicketsSold != 7 {
		t.Fatalf("TotalTicketsSold = %d, want 7", result.TotalTicketsSold)
	}
	if len(result.Variances) != 1 {
		t.Fatalf("variances = %d, want 1", len(result.Variances))
	}
	v := result.Variances[0]
	if v.PackId != soldOut.ID || v.Expected != 5 || v.Actual != 4 || v.Difference != -1 {
		t.Fatalf("variance = %+v", v)
	}

	closings, err := models.GetShiftClosings(ctx, shift.ID)
	if err != nil {
		t.Fatalf("GetShiftClosings: %v", err)
	}
	if len(closings) != 2 {
		t.Fatalf("persisted closings = %d, want 2", len(closings))
	}
	refType := "shift_closings"
	histories, err := models.GetHistories(ctx, nil, &refType, nil)
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	if len(histories) != 2 {
		t.Fatalf("audit rows = %d, want 2", len(histories))
	}

	// Retry with identical input: nothing new may be persisted.
	retry, err := workflow.ProcessShiftSettlementWorkflow(ctx, logger, shift.ID, manual, "mgr-1")
	if err != nil {
		t.Fatalf("settlement retry: %v", err)
	}
	if retry.PacksClosed != 0 || retry.PacksDepleted != 0 || len(retry.Variances) != 0 {
		t.Fatalf("retry persisted work: %+v", retry)
	}
	variances, err := models.GetShiftVariances(ctx, shift.ID)
	if err != nil {
		t.Fatalf("GetShiftVariances: %v", err)
	}
	if len(variances) != 1 {
		t.Fatalf("persisted variances after retry = %d, want 1", len(variances))
	}

	// Full close: counted cash matches expected, so the shift goes straight to
	// CLOSED. A bare context stands in for a caller that only knows the shift
	// id; the workflow must resolve actor and store on its own so the status
	// transition is still audited.
	expectedCash := decimal.NewFromInt(200 + 4*5 + 3*2)
	closeResult, err := workflow.ProcessShiftCloseWorkflow(context.Background(), logger, shift.ID, manual, "mgr-1", expectedCash)
	if err != nil {
		t.Fatalf("shift close: %v", err)
	}
	if closeResult.FinalStatus != models.ShiftStatusClosed {
		t.Fatalf("final status = %s, want CLOSED", closeResult.FinalStatus)
	}
	if !closeResult.CashVariance.IsZero() {
		t.Fatalf("cash variance = %s, want 0", closeResult.CashVariance)
	}

	refType = "shifts"
	shiftHistories, err := models.GetHistories(ctx, nil, &refType, nil)
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	var closedAudited bool
	for _, h := range shiftHistories {
		if h.ReferenceID == shift.ID && strings.Contains(h.After, string(models.ShiftStatusClosed)) {
			closedAudited = true
		}
	}
	if !closedAudited {
		t.Fatalf("no audit row for the CLOSING->CLOSED transition of shift %d", shift.ID)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lottery-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lottery-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=lottery_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
