package workflow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/lottery_backend/models"
	"bitbucket.org/mmdatafocus/lottery_backend/utils"
)

// NOTE: these exercise the pure planning stage; the persistence path is
// covered by the integration tests in models (INTEGRATION_TESTS=1).

func testShift() *models.Shift {
	return &models.Shift{
		ID:            7,
		StoreId:       "11111111-1111-1111-1111-111111111111",
		CashierId:     3,
		CurrentStatus: models.ShiftStatusClosing,
	}
}

func testSources(shift *models.Shift) *settlementSources {
	return &settlementSources{
		Shift:            shift,
		ManualPacks:      map[int]*models.Pack{},
		Openings:         map[int]string{},
		TrackedCounts:    map[int]int{},
		ExistingClosings: map[int]bool{},
	}
}

func TestBuildSettlementPlan_AutoDepletedPackWithTrackingShortfall(t *testing.T) {
	shift := testShift()
	src := testSources(shift)
	src.AutoPacks = []*models.Pack{{
		ID:            21,
		StoreId:       shift.StoreId,
		SerialStart:   "000",
		SerialEnd:     "049",
		CurrentStatus: models.PackStatusDepleted,
	}}
	src.Openings[21] = "000"
	src.TrackedCounts[21] = 48

	plan, err := buildSettlementPlan(src, nil, "mgr-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("buildSettlementPlan: %v", err)
	}

	if len(plan.Closings) != 1 {
		t.Fatalf("expected 1 closing, got %d", len(plan.Closings))
	}
	closing := plan.Closings[0]
	if closing.ClosingSerial != "049" || closing.EntryMethod != models.ClosingEntryMethodScan {
		t.Fatalf("auto closing must carry serial_end and SCAN, got %q %s", closing.ClosingSerial, closing.EntryMethod)
	}
	if closing.CashierId != shift.CashierId || closing.ClosedBy != "mgr-1" {
		t.Fatalf("closing attribution wrong: %+v", closing)
	}

	if len(plan.Variances) != 1 {
		t.Fatalf("expected 1 variance, got %d", len(plan.Variances))
	}
	v := plan.Variances[0]
	if v.Expected != 50 || v.Actual != 48 || v.Difference != -2 {
		t.Fatalf("variance = {%d %d %d}, want {50 48 -2}", v.Expected, v.Actual, v.Difference)
	}

	if len(plan.AutoDepletedIds) != 1 || plan.AutoDepletedIds[0] != 21 {
		t.Fatalf("AutoDepletedIds = %v", plan.AutoDepletedIds)
	}
	if plan.TotalTicketsSold != 48 {
		t.Fatalf("TotalTicketsSold = %d, want 48", plan.TotalTicketsSold)
	}
	if len(plan.Depletions) != 0 {
		t.Fatalf("auto-depleted packs are already depleted; got %v", plan.Depletions)
	}
}

func TestBuildSettlementPlan_UntrackedCountFallsBackToExpected(t *testing.T) {
	shift := testShift()
	src := testSources(shift)
	src.ManualPacks[31] = &models.Pack{
		ID: 31, StoreId: shift.StoreId, SerialStart: "000", SerialEnd: "099",
		CurrentStatus: models.PackStatusActive,
	}
	src.Openings[31] = "000"
	// no entry in TrackedCounts: tracking recorded nothing for this pack

	manual := []ManualClosingInput{{PackId: 31, ClosingSerial: "015", EntryMethod: models.ClosingEntryMethodScan}}
	plan, err := buildSettlementPlan(src, manual, "mgr-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("buildSettlementPlan: %v", err)
	}

	if len(plan.Variances) != 0 {
		t.Fatalf("untracked pack must not manufacture a variance: %+v", plan.Variances[0])
	}
	if plan.TotalTicketsSold != 15 {
		t.Fatalf("TotalTicketsSold = %d, want 15", plan.TotalTicketsSold)
	}
}

func TestBuildSettlementPlan_ManualClosingAtSerialEndDepletesPack(t *testing.T) {
	shift := testShift()
	src := testSources(shift)
	src.ManualPacks[42] = &models.Pack{
		ID: 42, StoreId: shift.StoreId, SerialStart: "000", SerialEnd: "014",
		CurrentStatus: models.PackStatusActive,
	}
	src.Openings[42] = "005"
	src.TrackedCounts[42] = 10

	authorizedAt := time.Now().UTC()
	manual := []ManualClosingInput{{
		PackId:        42,
		ClosingSerial: "014",
		EntryMethod:   models.ClosingEntryMethodManual,
		AuthorizedBy:  "sup-9",
		AuthorizedAt:  &authorizedAt,
	}}
	plan, err := buildSettlementPlan(src, manual, "mgr-1", authorizedAt)
	if err != nil {
		t.Fatalf("buildSettlementPlan: %v", err)
	}

	if len(plan.Closings) != 1 {
		t.Fatalf("expected 1 closing, got %d", len(plan.Closings))
	}
	closing := plan.Closings[0]
	if closing.AuthorizedBy == nil || *closing.AuthorizedBy != "sup-9" || closing.AuthorizedAt == nil {
		t.Fatalf("MANUAL closing must carry authorization: %+v", closing)
	}

	if len(plan.Depletions) != 1 {
		t.Fatalf("closing at serial_end must queue a depletion, got %v", plan.Depletions)
	}
	if plan.Depletions[0].PackId != 42 || plan.Depletions[0].Reason != models.DepletionReasonManualClose {
		t.Fatalf("depletion = %+v", plan.Depletions[0])
	}
	if plan.TotalTicketsSold != 10 {
		t.Fatalf("a pack sold through its last ticket counts all 10, got %d", plan.TotalTicketsSold)
	}
	if len(plan.Variances) != 0 {
		t.Fatalf("expected ticket count matches tracking, got variance %+v", plan.Variances[0])
	}
}

func TestBuildSettlementPlan_DepletingClosingCountsLastTicket(t *testing.T) {
	shift := testShift()
	src := testSources(shift)
	src.ManualPacks[42] = &models.Pack{
		ID: 42, StoreId: shift.StoreId, SerialStart: "000", SerialEnd: "014",
		CurrentStatus: models.PackStatusActive,
	}
	src.Openings[42] = "005"
	src.TrackedCounts[42] = 9

	manual := []ManualClosingInput{{PackId: 42, ClosingSerial: "014", EntryMethod: models.ClosingEntryMethodScan}}
	plan, err := buildSettlementPlan(src, manual, "mgr-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("buildSettlementPlan: %v", err)
	}

	// Serials 005..014 inclusive: the closing reaches serial_end, so the
	// expected count is 10, not the 9 a mid-pack closing at 014 would give.
	if len(plan.Variances) != 1 {
		t.Fatalf("expected 1 variance, got %d", len(plan.Variances))
	}
	v := plan.Variances[0]
	if v.Expected != 10 || v.Actual != 9 || v.Difference != -1 {
		t.Fatalf("variance = %+v, want {10 9 -1}", v)
	}
	if plan.TotalTicketsSold != 9 {
		t.Fatalf("TotalTicketsSold = %d, want 9", plan.TotalTicketsSold)
	}
}

func TestBuildSettlementPlan_MidPackClosingLeavesPackActive(t *testing.T) {
	shift := testShift()
	src := testSources(shift)
	src.ManualPacks[42] = &models.Pack{
		ID: 42, StoreId: shift.StoreId, SerialStart: "000", SerialEnd: "099",
		CurrentStatus: models.PackStatusActive,
	}
	src.Openings[42] = "010"

	manual := []ManualClosingInput{{PackId: 42, ClosingSerial: "035", EntryMethod: models.ClosingEntryMethodScan}}
	plan, err := buildSettlementPlan(src, manual, "mgr-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("buildSettlementPlan: %v", err)
	}
	if len(plan.Depletions) != 0 {
		t.Fatalf("mid-pack closing must not deplete, got %v", plan.Depletions)
	}
}

func TestBuildSettlementPlan_RetryContributesNothing(t *testing.T) {
	shift := testShift()
	src := testSources(shift)
	src.AutoPacks = []*models.Pack{{
		ID: 21, StoreId: shift.StoreId, SerialStart: "000", SerialEnd: "049",
		CurrentStatus: models.PackStatusDepleted,
	}}
	src.ManualPacks[31] = &models.Pack{
		ID: 31, StoreId: shift.StoreId, SerialStart: "000", SerialEnd: "099",
		CurrentStatus: models.PackStatusActive,
	}
	src.Openings[21] = "000"
	src.Openings[31] = "000"
	src.TrackedCounts[21] = 48
	// first settlement already persisted both closings
	src.ExistingClosings[21] = true
	src.ExistingClosings[31] = true

	manual := []ManualClosingInput{{PackId: 31, ClosingSerial: "020", EntryMethod: models.ClosingEntryMethodScan}}
	plan, err := buildSettlementPlan(src, manual, "mgr-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("buildSettlementPlan: %v", err)
	}
	if len(plan.Closings) != 0 || len(plan.Variances) != 0 || len(plan.Depletions) != 0 {
		t.Fatalf("retry must plan zero writes: %+v", plan)
	}
	if plan.TotalTicketsSold != 0 {
		t.Fatalf("retry TotalTicketsSold = %d, want 0", plan.TotalTicketsSold)
	}
}

func TestBuildSettlementPlan_ManualEntryOverridesAutoCandidate(t *testing.T) {
	shift := testShift()
	pack := &models.Pack{
		ID: 21, StoreId: shift.StoreId, SerialStart: "000", SerialEnd: "049",
		CurrentStatus: models.PackStatusDepleted,
	}
	src := testSources(shift)
	src.AutoPacks = []*models.Pack{pack}
	src.ManualPacks[21] = pack
	src.Openings[21] = "000"

	manual := []ManualClosingInput{{PackId: 21, ClosingSerial: "047", EntryMethod: models.ClosingEntryMethodScan}}
	plan, err := buildSettlementPlan(src, manual, "mgr-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("buildSettlementPlan: %v", err)
	}
	if len(plan.Closings) != 1 {
		t.Fatalf("manual entry must supersede the auto candidate, got %d closings", len(plan.Closings))
	}
	if plan.Closings[0].ClosingSerial != "047" {
		t.Fatalf("manual serial must win, got %q", plan.Closings[0].ClosingSerial)
	}
	if len(plan.AutoDepletedIds) != 0 {
		t.Fatalf("AutoDepletedIds = %v", plan.AutoDepletedIds)
	}
}

func TestBuildSettlementPlan_MissingPackAborts(t *testing.T) {
	shift := testShift()
	src := testSources(shift)

	manual := []ManualClosingInput{{PackId: 99, ClosingSerial: "010", EntryMethod: models.ClosingEntryMethodScan}}
	_, err := buildSettlementPlan(src, manual, "mgr-1", time.Now().UTC())
	if err == nil {
		t.Fatal("expected error for unknown pack")
	}
	if !utils.IsNotFoundError(err) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestBuildSettlementPlan_MissingOpeningAborts(t *testing.T) {
	shift := testShift()
	src := testSources(shift)
	src.ManualPacks[31] = &models.Pack{
		ID: 31, StoreId: shift.StoreId, SerialStart: "000", SerialEnd: "099",
		CurrentStatus: models.PackStatusActive,
	}

	manual := []ManualClosingInput{{PackId: 31, ClosingSerial: "010", EntryMethod: models.ClosingEntryMethodScan}}
	_, err := buildSettlementPlan(src, manual, "mgr-1", time.Now().UTC())
	if !utils.IsNotFoundError(err) {
		t.Fatalf("expected NotFoundError for missing opening, got %v", err)
	}
}

func TestValidateSettlementInput(t *testing.T) {
	authorizedAt := time.Now().UTC()
	valid := ManualClosingInput{PackId: 1, ClosingSerial: "010", EntryMethod: models.ClosingEntryMethodScan}

	cases := []struct {
		name     string
		shiftId  int
		closings []ManualClosingInput
		closedBy string
		wantErr  bool
	}{
		{"ok without closings", 1, nil, "mgr-1", false},
		{"ok with closings", 1, []ManualClosingInput{valid}, "mgr-1", false},
		{"zero shift id", 0, nil, "mgr-1", true},
		{"missing actor", 1, nil, "", true},
		{"bad entry method", 1, []ManualClosingInput{{PackId: 1, ClosingSerial: "010", EntryMethod: "PHONE"}}, "mgr-1", true},
		{"manual without authorization", 1, []ManualClosingInput{{PackId: 1, ClosingSerial: "010", EntryMethod: models.ClosingEntryMethodManual}}, "mgr-1", true},
		{"manual with authorization", 1, []ManualClosingInput{{PackId: 1, ClosingSerial: "010", EntryMethod: models.ClosingEntryMethodManual, AuthorizedBy: "sup-9", AuthorizedAt: &authorizedAt}}, "mgr-1", false},
		{"non-numeric serial", 1, []ManualClosingInput{{PackId: 1, ClosingSerial: "01a", EntryMethod: models.ClosingEntryMethodScan}}, "mgr-1", true},
		{"serial out of range", 1, []ManualClosingInput{{PackId: 1, ClosingSerial: "1000", EntryMethod: models.ClosingEntryMethodScan}}, "mgr-1", true},
		{"duplicate pack", 1, []ManualClosingInput{valid, valid}, "mgr-1", true},
	}
	for _, c := range cases {
		err := validateSettlementInput(c.shiftId, c.closings, c.closedBy)
		if (err != nil) != c.wantErr {
			t.Fatalf("%s: err = %v, wantErr %v", c.name, err, c.wantErr)
		}
	}
}

func TestValidateSettlementInput_ErrorNamesTheEntry(t *testing.T) {
	bad := []ManualClosingInput{
		{PackId: 1, ClosingSerial: "010", EntryMethod: models.ClosingEntryMethodScan},
		{PackId: 2, ClosingSerial: "", EntryMethod: models.ClosingEntryMethodScan},
	}
	err := validateSettlementInput(5, bad, "mgr-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var ve *utils.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected wrapped ValidationError, got %T", err)
	}
	if !utils.IsValidationError(err) {
		t.Fatal("IsValidationError must see through the entry-index wrapping")
	}
	if !strings.Contains(err.Error(), "closings[1]") {
		t.Fatalf("error must name the bad entry: %v", err)
	}
}
