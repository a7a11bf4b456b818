package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"rentcheck/internal/bank"
	"rentcheck/internal/database"
	"rentcheck/internal/models"
	"rentcheck/internal/rent"
)

func testStore(t *testing.T) (*Store, *models.User, *models.Property) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	user := &models.User{Email: "landlord@example.com", PasswordHash: "x", BankTokenEnc: "sealed"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	prop := &models.Property{
		UserID:     user.ID,
		Name:       "12 Ponsonby Rd",
		RentAmount: decimal.NewFromInt(450),
		Frequency:  string(rent.Weekly),
		DueDay:     5,
		Keyword:    "FLAT 2B",
		Balance:    decimal.Zero,
	}
	if err := db.Create(prop).Error; err != nil {
		t.Fatalf("create property: %v", err)
	}
	return New(db), user, prop
}

func TestSaveTransactions_DedupesByExternalID(t *testing.T) {
	s, user, _ := testStore(t)
	ctx := context.Background()

	batch := []bank.Transaction{
		{ID: "t1", Date: time.Now(), Amount: decimal.NewFromInt(450), Description: "FLAT 2B rent"},
		{ID: "t2", Date: time.Now(), Amount: decimal.NewFromInt(450), Description: "FLAT 2B rent"},
	}

	stored, err := s.SaveTransactions(ctx, user.ID, batch)
	if err != nil {
		t.Fatalf("SaveTransactions error = %v", err)
	}
	if stored != 2 {
		t.Errorf("first save stored %d, want 2", stored)
	}

	// re-fetching the same window must not create new rows
	stored, err = s.SaveTransactions(ctx, user.ID, batch)
	if err != nil {
		t.Fatalf("SaveTransactions (repeat) error = %v", err)
	}
	if stored != 0 {
		t.Errorf("repeat save stored %d, want 0", stored)
	}
}

func TestMatchRecords_NeverReassigned(t *testing.T) {
	s, user, prop := testStore(t)
	ctx := context.Background()

	rec := models.MatchRecord{
		UserID:     user.ID,
		ExternalID: "t1",
		PropertyID: &prop.ID,
		Basis:      string(rent.BasisKeyword),
		Amount:     decimal.NewFromInt(450),
		Date:       time.Now(),
	}
	if err := s.CreateMatchRecords(ctx, []models.MatchRecord{rec}); err != nil {
		t.Fatalf("CreateMatchRecords error = %v", err)
	}

	// same external id again, even pointing elsewhere, is a no-op
	other := rec
	other.ID = ""
	other.PropertyID = nil
	if err := s.CreateMatchRecords(ctx, []models.MatchRecord{other}); err != nil {
		t.Fatalf("CreateMatchRecords (repeat) error = %v", err)
	}

	seen, err := s.MatchedExternalIDs(ctx, user.ID, []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("MatchedExternalIDs error = %v", err)
	}
	if !seen["t1"] || seen["t2"] {
		t.Errorf("seen = %v, want only t1", seen)
	}

	pending, err := s.UnappliedForProperty(ctx, prop.ID)
	if err != nil {
		t.Fatalf("UnappliedForProperty error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("got %d unapplied records, want 1", len(pending))
	}
}

func TestApplyToBalance_Idempotent(t *testing.T) {
	s, user, prop := testStore(t)
	ctx := context.Background()

	rec := models.MatchRecord{
		UserID:     user.ID,
		ExternalID: "t1",
		PropertyID: &prop.ID,
		Basis:      string(rent.BasisKeyword),
		Amount:     decimal.NewFromInt(1200),
		Date:       time.Now(),
	}
	if err := s.CreateMatchRecords(ctx, []models.MatchRecord{rec}); err != nil {
		t.Fatal(err)
	}

	pending, err := s.UnappliedForProperty(ctx, prop.ID)
	if err != nil {
		t.Fatal(err)
	}
	balance, ids := rent.ApplyEntries(prop.Balance, matchEntries(pending))
	delta := balance.Sub(prop.Balance)
	if err := s.ApplyToBalance(ctx, prop.ID, ids, nil, delta, time.Now()); err != nil {
		t.Fatalf("ApplyToBalance error = %v", err)
	}

	got, err := s.PropertyByID(ctx, prop.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("balance = %s, want 1200", got.Balance)
	}

	// run the whole flow again: nothing pending, balance unchanged
	pending, err = s.UnappliedForProperty(ctx, prop.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("got %d pending after apply, want 0", len(pending))
	}

	// a stale writer re-applying the same ids must fail, not double-count
	if err := s.ApplyToBalance(ctx, prop.ID, ids, nil, delta, time.Now()); err == nil {
		t.Error("stale re-apply succeeded, want ErrAlreadyApplied")
	}
	got, _ = s.PropertyByID(ctx, prop.ID)
	if !got.Balance.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("balance after stale re-apply = %s, want 1200", got.Balance)
	}
}

func TestApplyToBalance_InterleavedAppliers(t *testing.T) {
	s, user, prop := testStore(t)
	ctx := context.Background()

	recs := []models.MatchRecord{
		{UserID: user.ID, ExternalID: "t1", PropertyID: &prop.ID, Basis: string(rent.BasisKeyword), Amount: decimal.NewFromInt(450), Date: time.Now()},
		{UserID: user.ID, ExternalID: "t2", PropertyID: &prop.ID, Basis: string(rent.BasisKeyword), Amount: decimal.NewFromInt(100), Date: time.Now()},
	}
	if err := s.CreateMatchRecords(ctx, recs); err != nil {
		t.Fatal(err)
	}
	pending, err := s.UnappliedForProperty(ctx, prop.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}

	// two appliers read the same starting balance, then apply disjoint entry
	// sets one after the other; the second write must not clobber the first
	if err := s.ApplyToBalance(ctx, prop.ID, []string{pending[0].ID}, nil, pending[0].Amount, time.Now()); err != nil {
		t.Fatalf("first apply error = %v", err)
	}
	if err := s.ApplyToBalance(ctx, prop.ID, []string{pending[1].ID}, nil, pending[1].Amount, time.Now()); err != nil {
		t.Fatalf("second apply error = %v", err)
	}

	got, err := s.PropertyByID(ctx, prop.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(550)) {
		t.Errorf("balance = %s, want 550 (both entry sets counted)", got.Balance)
	}
}

func TestAccrueCharges_OncePerCycle(t *testing.T) {
	s, _, prop := testStore(t)
	ctx := context.Background()

	window := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
	charge := models.RentCharge{
		PropertyID:  prop.ID,
		WindowStart: window,
		WindowEnd:   window.AddDate(0, 0, 7),
		Amount:      decimal.NewFromInt(450),
	}

	// re-accruing the same cycle on a later tick must not add a second debit
	if err := s.AccrueCharges(ctx, []models.RentCharge{charge}); err != nil {
		t.Fatal(err)
	}
	if err := s.AccrueCharges(ctx, []models.RentCharge{charge}); err != nil {
		t.Fatal(err)
	}

	pending, err := s.UnappliedCharges(ctx, prop.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("got %d charges, want 1", len(pending))
	}

	balance, ids := rent.ApplyEntries(prop.Balance, []rent.Entry{{
		ID:     pending[0].ID,
		Date:   pending[0].WindowEnd,
		Amount: pending[0].Amount.Neg(),
	}})
	if err := s.ApplyToBalance(ctx, prop.ID, nil, ids, balance.Sub(prop.Balance), time.Now()); err != nil {
		t.Fatalf("ApplyToBalance error = %v", err)
	}

	got, err := s.PropertyByID(ctx, prop.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(-450)) {
		t.Errorf("balance = %s, want -450", got.Balance)
	}
}

func matchEntries(records []models.MatchRecord) []rent.Entry {
	entries := make([]rent.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, rent.Entry{
			ID:      r.ID,
			Date:    r.Date,
			Amount:  r.Amount,
			Applied: r.Applied,
		})
	}
	return entries
}

func TestRecordAttempt_OnePerCycle(t *testing.T) {
	s, _, prop := testStore(t)
	ctx := context.Background()
	window := time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)

	attempt, err := s.AttemptForCycle(ctx, prop.ID, window)
	if err != nil {
		t.Fatal(err)
	}
	if attempt != nil {
		t.Fatal("attempt exists before any poll")
	}

	if err := s.RecordAttempt(ctx, &models.SyncAttempt{
		PropertyID:  prop.ID,
		WindowStart: window,
		Status:      string(rent.AttemptPending),
	}); err != nil {
		t.Fatalf("RecordAttempt error = %v", err)
	}
	// second record for the same cycle upserts onto the same row
	if err := s.RecordAttempt(ctx, &models.SyncAttempt{
		PropertyID:  prop.ID,
		WindowStart: window,
		Status:      string(rent.AttemptPending),
	}); err != nil {
		t.Fatalf("RecordAttempt (repeat) error = %v", err)
	}

	if err := s.MarkAttemptFailed(ctx, prop.ID, window, "boom"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkAttemptFailed(ctx, prop.ID, window, "boom again"); err != nil {
		t.Fatal(err)
	}

	attempt, err = s.AttemptForCycle(ctx, prop.ID, window)
	if err != nil {
		t.Fatal(err)
	}
	if attempt == nil {
		t.Fatal("attempt not found after record")
	}
	if attempt.ErrorCount != 2 {
		t.Errorf("ErrorCount = %d, want 2", attempt.ErrorCount)
	}
	state := rent.AttemptState{
		Status:      rent.AttemptStatus(attempt.Status),
		StoredCount: attempt.StoredCount,
		ErrorCount:  attempt.ErrorCount,
	}
	if !state.Terminal() {
		t.Error("attempt with two failures is not terminal")
	}
}

func TestSetAttemptStored_MakesPendingTerminal(t *testing.T) {
	s, _, prop := testStore(t)
	ctx := context.Background()
	window := time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)

	if err := s.RecordAttempt(ctx, &models.SyncAttempt{
		PropertyID:  prop.ID,
		WindowStart: window,
		Status:      string(rent.AttemptPending),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetAttemptStored(ctx, prop.ID, window, 3); err != nil {
		t.Fatalf("SetAttemptStored error = %v", err)
	}

	// a crash between persisting transactions and completing the attempt
	// leaves a pending row with a stored count; that spends the poll budget
	attempt, err := s.AttemptForCycle(ctx, prop.ID, window)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.Status != string(rent.AttemptPending) || attempt.StoredCount != 3 {
		t.Fatalf("attempt = %s/%d, want pending/3", attempt.Status, attempt.StoredCount)
	}
	state := rent.AttemptState{
		Status:      rent.AttemptStatus(attempt.Status),
		StoredCount: attempt.StoredCount,
	}
	if !state.Terminal() {
		t.Error("pending attempt with stored data is not terminal")
	}
}

func TestRecordNotification_OncePerCycle(t *testing.T) {
	s, _, prop := testStore(t)
	ctx := context.Background()
	window := time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)

	created, err := s.RecordNotification(ctx, &models.NotificationRecord{
		PropertyID:  prop.ID,
		WindowStart: window,
		Kind:        string(rent.KindMissedPayment),
		SentAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("RecordNotification error = %v", err)
	}
	if !created {
		t.Fatal("first notification not created")
	}

	created, err = s.RecordNotification(ctx, &models.NotificationRecord{
		PropertyID:  prop.ID,
		WindowStart: window,
		Kind:        string(rent.KindMissedPayment),
		SentAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("RecordNotification (repeat) error = %v", err)
	}
	if created {
		t.Error("duplicate notification for the same cycle was created")
	}
}

func TestAssignMatch_ManualReview(t *testing.T) {
	s, user, prop := testStore(t)
	ctx := context.Background()

	rec := models.MatchRecord{
		UserID:     user.ID,
		ExternalID: "t9",
		Basis:      string(rent.BasisNone),
		Amount:     decimal.NewFromInt(450),
		Date:       time.Now(),
	}
	if err := s.CreateMatchRecords(ctx, []models.MatchRecord{rec}); err != nil {
		t.Fatal(err)
	}

	unmatched, err := s.UnmatchedForUser(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(unmatched) != 1 {
		t.Fatalf("got %d unmatched, want 1", len(unmatched))
	}

	assigned, err := s.AssignMatch(ctx, user.ID, unmatched[0].ID, prop.ID)
	if err != nil {
		t.Fatalf("AssignMatch error = %v", err)
	}
	if assigned.PropertyID == nil || *assigned.PropertyID != prop.ID {
		t.Errorf("assigned property = %v, want %d", assigned.PropertyID, prop.ID)
	}

	// already-assigned records cannot be reassigned
	if _, err := s.AssignMatch(ctx, user.ID, unmatched[0].ID, prop.ID); err == nil {
		t.Error("reassigning an assigned match succeeded, want error")
	}
}
