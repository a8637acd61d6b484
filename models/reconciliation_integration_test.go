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

	"bitbucket.org/iglesiacentral/comunidad_backend/config"
	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"bitbucket.org/iglesiacentral/comunidad_backend/workflow"
	"github.com/shopspring/decimal"
)

// End-to-end reconciliation flow against real MySQL + Redis. Requires
// docker; skipped unless INTEGRATION_TESTS is set.
func TestReconciliationFlow(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "comunidad_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	admin, err := models.CreateUser(ctx, &models.NewUser{
		Username:    "tesoreria",
		DisplayName: "Tesorería",
		Password:    "testpw",
		Role:        models.UserRoleAdmin,
	})
	if err != nil {
		t.Fatalf("CreateUser admin: %v", err)
	}
	member, err := models.CreateUser(ctx, &models.NewUser{
		Username:    "maria",
		DisplayName: "María Pérez",
		Password:    "testpw",
	})
	if err != nil {
		t.Fatalf("CreateUser member: %v", err)
	}

	memberCtx := utils.SetUserIdInContext(ctx, member.ID)
	memberCtx = utils.SetUsernameInContext(memberCtx, member.Username)
	adminCtx := utils.SetUserIdInContext(ctx, admin.ID)
	adminCtx = utils.SetUsernameInContext(adminCtx, admin.Username)
	adminCtx = utils.SetDisplayNameInContext(adminCtx, admin.DisplayName)

	// member declares a transfer
	prayer := "por mi familia"
	intent, err := models.SubmitDonationIntent(memberCtx, &models.NewDonationIntent{
		DonorName:      "María Pérez",
		DeclaredAmount: decimal.NewFromInt(500),
		PrayerRequest:  &prayer,
		IntentType:     models.IntentTypeTithe,
	})
	if err != nil {
		t.Fatalf("SubmitDonationIntent: %v", err)
	}

	// admin accepts it
	entry, err := workflow.AcceptDonationIntent(adminCtx, intent.ID, &workflow.AcceptIntentInput{})
	if err != nil {
		t.Fatalf("AcceptDonationIntent: %v", err)
	}
	if !entry.SignedAmount.Equal(decimal.NewFromInt(500)) || entry.EntryType != models.EntryTypeIncome {
		t.Fatalf("accepted entry wrong: %+v", entry)
	}
	if entry.DonorKey == nil || *entry.DonorKey != "maria perez" {
		t.Fatalf("donor key = %v", entry.DonorKey)
	}

	// second accept must observe the race-loser error, not create a duplicate
	if _, err := workflow.AcceptDonationIntent(adminCtx, intent.ID, &workflow.AcceptIntentInput{}); err != utils.ErrorAlreadyProcessed {
		t.Fatalf("second accept: got %v, want ErrorAlreadyProcessed", err)
	}

	// with an event scheduled on the submission date, a manual accept is
	// rejected and the intent survives for a corrected retry
	event := models.Event{Title: "Culto dominical", StartsAt: time.Now().UTC()}
	if err := config.GetDB().WithContext(ctx).Create(&event).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	intent2, err := models.SubmitDonationIntent(memberCtx, &models.NewDonationIntent{
		DonorName:      "Juan Gómez",
		DeclaredAmount: decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("SubmitDonationIntent second: %v", err)
	}
	if _, err := workflow.AcceptDonationIntent(adminCtx, intent2.ID, &workflow.AcceptIntentInput{}); err != utils.ErrorEventSelectionRequired {
		t.Fatalf("manual accept with scheduled event: got %v, want ErrorEventSelectionRequired", err)
	}
	entry2, err := workflow.AcceptDonationIntent(adminCtx, intent2.ID, &workflow.AcceptIntentInput{EventId: utils.Ptr(event.ID)})
	if err != nil {
		t.Fatalf("accept with event id after rollback: %v", err)
	}
	if entry2.EventId == nil || *entry2.EventId != event.ID {
		t.Fatalf("entry2 event id = %v", entry2.EventId)
	}

	// maintained aggregate follows the write
	summary, err := models.GetDonorSummary(ctx, "maria perez")
	if err != nil {
		t.Fatalf("GetDonorSummary: %v", err)
	}
	if summary.ContributionCount != 1 || !summary.TotalContributed.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("summary = %+v", summary)
	}
	if !summary.TransferTotal.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("accepted intents are transfers; summary = %+v", summary)
	}

	// audited, versioned edit
	newAmount := decimal.NewFromInt(450)
	updated, err := models.EditLedgerEntry(adminCtx, entry.ID, &models.UpdateLedgerEntry{
		SignedAmount: &newAmount,
		AuditNote:    "donor sent 450, typo in intent",
		Version:      entry.Version,
	})
	if err != nil {
		t.Fatalf("EditLedgerEntry: %v", err)
	}
	if updated.Version != entry.Version+1 {
		t.Fatalf("version = %d, want %d", updated.Version, entry.Version+1)
	}

	// stale version loses
	if _, err := models.EditLedgerEntry(adminCtx, entry.ID, &models.UpdateLedgerEntry{
		SignedAmount: &newAmount,
		AuditNote:    "stale",
		Version:      entry.Version,
	}); err != utils.ErrorVersionConflict {
		t.Fatalf("stale edit: got %v, want ErrorVersionConflict", err)
	}

	// edit without a note is refused
	if _, err := models.EditLedgerEntry(adminCtx, entry.ID, &models.UpdateLedgerEntry{
		SignedAmount: &newAmount,
		Version:      updated.Version,
	}); err != utils.ErrorAuditNoteRequired {
		t.Fatalf("noteless edit: got %v, want ErrorAuditNoteRequired", err)
	}

	events, err := models.GetEntryEvents(ctx, entry.ID)
	if err != nil {
		t.Fatalf("GetEntryEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected C + U events, got %d", len(events))
	}
	if events[0].Action != models.EntryEventActionCreate || events[1].Action != models.EntryEventActionUpdate {
		t.Fatalf("event actions = %s, %s", events[0].Action, events[1].Action)
	}

	// summary tracked the edit
	summary, err = models.GetDonorSummary(ctx, "maria perez")
	if err != nil {
		t.Fatalf("GetDonorSummary after edit: %v", err)
	}
	if !summary.TotalContributed.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("summary after edit = %s", summary.TotalContributed)
	}

	// bundle posting is all-or-nothing and conserves the counted total
	bundle := &workflow.NewOfferingBundle{
		LooseCash:     decimal.NewFromInt(1000),
		LooseTransfer: decimal.NewFromInt(500),
		Concept:       "Ofrenda dominical",
		Date:          time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Envelopes: []workflow.NewEnvelope{
			{Name: "Ana", Amount: decimal.NewFromInt(300)},
			{Name: "", Amount: decimal.Zero},
		},
	}
	bundleEntries, err := workflow.PostOfferingBundle(adminCtx, bundle)
	if err != nil {
		t.Fatalf("PostOfferingBundle: %v", err)
	}
	if len(bundleEntries) != 3 {
		t.Fatalf("bundle entries = %d", len(bundleEntries))
	}
	balance, err := models.GetLedgerBalance(ctx, nil)
	if err != nil {
		t.Fatalf("GetLedgerBalance: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(450 + 200 + 1800)) {
		t.Fatalf("balance = %s, want 2450", balance)
	}

	// privacy cascade removes the family atomically
	removed, err := workflow.DeleteDonorFamily(adminCtx, "María Pérez", "privacy request")
	if err != nil {
		t.Fatalf("DeleteDonorFamily: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}
	if _, err := models.GetDonorSummary(ctx, "maria perez"); err == nil {
		t.Fatal("summary row must be gone after family delete")
	}
	balance, err = models.GetLedgerBalance(ctx, nil)
	if err != nil {
		t.Fatalf("GetLedgerBalance after delete: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(200 + 1800)) {
		t.Fatalf("balance after delete = %s, want 2000", balance)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("comunidad-test-redis-%d", time.Now().UnixNano())
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
	name := fmt.Sprintf("comunidad-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=comunidad_test",
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
