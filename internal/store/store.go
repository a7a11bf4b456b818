// Package store is the persistence layer for the reconciliation engine. All
// writes to SyncAttempt, MatchRecord and NotificationRecord are idempotent
// upserts keyed by their natural identity, so a tick can always be re-run
// safely after a crash.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentcheck/internal/bank"
	"rentcheck/internal/models"
	"rentcheck/internal/rent"
)

// ErrAlreadyApplied is returned when a balance update lost a race with
// another writer that applied some of the same match records.
var ErrAlreadyApplied = errors.New("match records already applied")

// Store wraps the database handle.
type Store struct {
	db *gorm.DB
}

// New builds a Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ---------- users ----------

func (s *Store) UserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("load user %d: %w", id, err)
	}
	return &user, nil
}

func (s *Store) SaveUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// ---------- properties ----------

func (s *Store) CreateProperty(ctx context.Context, p *models.Property) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create property: %w", err)
	}
	return nil
}

func (s *Store) SaveProperty(ctx context.Context, p *models.Property) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("save property: %w", err)
	}
	return nil
}

func (s *Store) PropertyByID(ctx context.Context, id uint) (*models.Property, error) {
	var p models.Property
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("load property %d: %w", id, err)
	}
	return &p, nil
}

// PropertyWithUser loads a property with its owner preloaded, for sync runs
// triggered outside the tick loop.
func (s *Store) PropertyWithUser(ctx context.Context, id uint) (*models.Property, error) {
	var p models.Property
	if err := s.db.WithContext(ctx).Preload("User").First(&p, id).Error; err != nil {
		return nil, fmt.Errorf("load property %d: %w", id, err)
	}
	return &p, nil
}

// SetLastAlert stamps the property after a notification went out.
func (s *Store) SetLastAlert(ctx context.Context, propertyID uint, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", propertyID).
		Update("last_alert_at", at).Error
	if err != nil {
		return fmt.Errorf("set last alert: %w", err)
	}
	return nil
}

func (s *Store) PropertiesByUser(ctx context.Context, userID uint) ([]models.Property, error) {
	var props []models.Property
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name").
		Find(&props).Error; err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return props, nil
}

// SyncCandidates lists properties whose owner has a bank connection,
// with the owning user preloaded.
func (s *Store) SyncCandidates(ctx context.Context) ([]models.Property, error) {
	var props []models.Property
	if err := s.db.WithContext(ctx).
		Joins("JOIN users ON users.id = properties.user_id").
		Where("users.bank_token_enc <> ''").
		Preload("User").
		Find(&props).Error; err != nil {
		return nil, fmt.Errorf("list sync candidates: %w", err)
	}
	return props, nil
}

// DeleteProperty removes a property and everything scoped to it. The match
// records and transactions are keyed to the user, so the property-scoped rows
// are removed explicitly alongside the cascades.
func (s *Store) DeleteProperty(ctx context.Context, p *models.Property) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("property_id = ?", p.ID).Delete(&models.SyncAttempt{}).Error; err != nil {
			return fmt.Errorf("delete sync attempts: %w", err)
		}
		if err := tx.Where("property_id = ?", p.ID).Delete(&models.NotificationRecord{}).Error; err != nil {
			return fmt.Errorf("delete notifications: %w", err)
		}
		if err := tx.Where("property_id = ?", p.ID).Delete(&models.MatchRecord{}).Error; err != nil {
			return fmt.Errorf("delete match records: %w", err)
		}
		if err := tx.Where("property_id = ?", p.ID).Delete(&models.RentCharge{}).Error; err != nil {
			return fmt.Errorf("delete rent charges: %w", err)
		}
		if err := tx.Where("property_id = ?", p.ID).Delete(&models.BankTransaction{}).Error; err != nil {
			return fmt.Errorf("delete transactions: %w", err)
		}
		if err := tx.Delete(&models.Property{}, p.ID).Error; err != nil {
			return fmt.Errorf("delete property: %w", err)
		}
		return nil
	})
}

// ---------- sync attempts ----------

// AttemptForCycle loads the attempt for (property, cycle window start), or
// nil if no poll was recorded yet.
func (s *Store) AttemptForCycle(ctx context.Context, propertyID uint, windowStart time.Time) (*models.SyncAttempt, error) {
	var attempt models.SyncAttempt
	err := s.db.WithContext(ctx).
		Where("property_id = ? AND window_start = ?", propertyID, windowStart).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load sync attempt: %w", err)
	}
	return &attempt, nil
}

// RecordAttempt upserts the attempt row for its natural key. Racing writers
// collapse onto the single existing row instead of erroring.
func (s *Store) RecordAttempt(ctx context.Context, attempt *models.SyncAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "property_id"}, {Name: "window_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(attempt).Error
	if err != nil {
		return fmt.Errorf("record sync attempt: %w", err)
	}
	return nil
}

// MarkAttemptFailed flags the attempt and counts the failure against the
// single-retry budget.
func (s *Store) MarkAttemptFailed(ctx context.Context, propertyID uint, windowStart time.Time, cause string) error {
	if len(cause) > 250 {
		cause = cause[:250]
	}
	err := s.db.WithContext(ctx).Model(&models.SyncAttempt{}).
		Where("property_id = ? AND window_start = ?", propertyID, windowStart).
		Updates(map[string]interface{}{
			"status":      string(rent.AttemptFailed),
			"error_count": gorm.Expr("error_count + 1"),
			"last_error":  cause,
		}).Error
	if err != nil {
		return fmt.Errorf("mark attempt failed: %w", err)
	}
	return nil
}

// SetAttemptStored stamps how many transactions the attempt has persisted so
// far. Stored data makes the attempt terminal for its cycle even when the
// process dies before the attempt is marked completed.
func (s *Store) SetAttemptStored(ctx context.Context, propertyID uint, windowStart time.Time, storedCount int) error {
	err := s.db.WithContext(ctx).Model(&models.SyncAttempt{}).
		Where("property_id = ? AND window_start = ?", propertyID, windowStart).
		Update("stored_count", storedCount).Error
	if err != nil {
		return fmt.Errorf("set attempt stored count: %w", err)
	}
	return nil
}

// MarkAttemptCompleted closes the attempt; the cycle's poll budget is spent.
func (s *Store) MarkAttemptCompleted(ctx context.Context, propertyID uint, windowStart time.Time, storedCount int) error {
	err := s.db.WithContext(ctx).Model(&models.SyncAttempt{}).
		Where("property_id = ? AND window_start = ?", propertyID, windowStart).
		Updates(map[string]interface{}{
			"status":       string(rent.AttemptCompleted),
			"stored_count": storedCount,
		}).Error
	if err != nil {
		return fmt.Errorf("mark attempt completed: %w", err)
	}
	return nil
}

// ---------- bank transactions ----------

// SaveTransactions appends fetched transactions, ignoring external ids
// already stored for the user. Returns how many rows were actually new.
func (s *Store) SaveTransactions(ctx context.Context, userID uint, txns []bank.Transaction) (int, error) {
	stored := 0
	for _, t := range txns {
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).Create(&models.BankTransaction{
			UserID:      userID,
			ExternalID:  t.ID,
			Date:        t.Date,
			Amount:      t.Amount,
			Description: t.Description,
		})
		if res.Error != nil {
			return stored, fmt.Errorf("save transaction %s: %w", t.ID, res.Error)
		}
		stored += int(res.RowsAffected)
	}
	return stored, nil
}

func (s *Store) TransactionsByProperty(ctx context.Context, propertyID uint, limit int) ([]models.BankTransaction, error) {
	q := s.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var txns []models.BankTransaction
	if err := q.Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// ---------- match records ----------

// MatchedExternalIDs reports which of the given external ids already have a
// match record for the user. The matcher uses this to skip seen transactions.
func (s *Store) MatchedExternalIDs(ctx context.Context, userID uint, externalIDs []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return seen, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.MatchRecord{}).
		Where("user_id = ? AND external_id IN ?", userID, externalIDs).
		Pluck("external_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load matched ids: %w", err)
	}
	for _, id := range ids {
		seen[id] = true
	}
	return seen, nil
}

// CreateMatchRecords inserts match results, one row per external id ever. A
// conflicting insert is a concurrent or repeated sync and is ignored, which
// is what makes re-syncs unable to re-match a transaction.
func (s *Store) CreateMatchRecords(ctx context.Context, records []models.MatchRecord) error {
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).Create(&records[i]).Error
		if err != nil {
			return fmt.Errorf("create match record: %w", err)
		}
		// bind the stored bank transaction to its property for history views
		if records[i].PropertyID != nil {
			err = s.db.WithContext(ctx).Model(&models.BankTransaction{}).
				Where("user_id = ? AND external_id = ? AND property_id IS NULL", records[i].UserID, records[i].ExternalID).
				Update("property_id", *records[i].PropertyID).Error
			if err != nil {
				return fmt.Errorf("bind transaction: %w", err)
			}
		}
	}
	return nil
}

// ---------- rent charges ----------

// AccrueCharges inserts the rent-due rows for closed cycles, at most one per
// (property, cycle). Re-accruing the same cycles is a no-op.
func (s *Store) AccrueCharges(ctx context.Context, charges []models.RentCharge) error {
	for i := range charges {
		if charges[i].ID == "" {
			charges[i].ID = uuid.NewString()
		}
		err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "property_id"}, {Name: "window_start"}},
			DoNothing: true,
		}).Create(&charges[i]).Error
		if err != nil {
			return fmt.Errorf("accrue charge: %w", err)
		}
	}
	return nil
}

// UnappliedCharges lists accrued charges not yet debited from the balance.
func (s *Store) UnappliedCharges(ctx context.Context, propertyID uint) ([]models.RentCharge, error) {
	var charges []models.RentCharge
	err := s.db.WithContext(ctx).
		Where("property_id = ? AND applied = ?", propertyID, false).
		Order("window_end").
		Find(&charges).Error
	if err != nil {
		return nil, fmt.Errorf("list unapplied charges: %w", err)
	}
	return charges, nil
}

// UnappliedForProperty lists matched records not yet folded into the balance.
func (s *Store) UnappliedForProperty(ctx context.Context, propertyID uint) ([]models.MatchRecord, error) {
	var records []models.MatchRecord
	err := s.db.WithContext(ctx).
		Where("property_id = ? AND applied = ?", propertyID, false).
		Order("date").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list unapplied matches: %w", err)
	}
	return records, nil
}

// ApplyToBalance marks ledger lines (match records and rent charges) applied
// and folds their net delta into the balance in one transaction. Nothing else
// may update Property.Balance. The balance is incremented in SQL rather than
// written absolutely, so two appliers with disjoint entry sets can interleave
// without one overwriting the other's amounts.
func (s *Store) ApplyToBalance(ctx context.Context, propertyID uint, matchIDs, chargeIDs []string, delta decimal.Decimal, syncedAt time.Time) error {
	if len(matchIDs) == 0 && len(chargeIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(matchIDs) > 0 {
			res := tx.Model(&models.MatchRecord{}).
				Where("id IN ? AND applied = ?", matchIDs, false).
				Update("applied", true)
			if res.Error != nil {
				return fmt.Errorf("mark matches applied: %w", res.Error)
			}
			if res.RowsAffected != int64(len(matchIDs)) {
				// a concurrent run already applied some of these; roll back and
				// let the next tick recompute rather than double-count
				return ErrAlreadyApplied
			}
		}
		if len(chargeIDs) > 0 {
			res := tx.Model(&models.RentCharge{}).
				Where("id IN ? AND applied = ?", chargeIDs, false).
				Update("applied", true)
			if res.Error != nil {
				return fmt.Errorf("mark charges applied: %w", res.Error)
			}
			if res.RowsAffected != int64(len(chargeIDs)) {
				return ErrAlreadyApplied
			}
		}
		// re-read inside the transaction: the applied-flag updates above hold
		// the write lock, so this balance cannot be stale
		var current models.Property
		if err := tx.Select("balance").First(&current, propertyID).Error; err != nil {
			return fmt.Errorf("load balance: %w", err)
		}
		err := tx.Model(&models.Property{}).
			Where("id = ?", propertyID).
			Updates(map[string]interface{}{
				"balance":        current.Balance.Add(delta),
				"last_synced_at": syncedAt,
			}).Error
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		return nil
	})
}

// UnmatchedForUser lists transactions retained for manual review.
func (s *Store) UnmatchedForUser(ctx context.Context, userID uint) ([]models.MatchRecord, error) {
	var records []models.MatchRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND property_id IS NULL", userID).
		Order("date DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list unmatched: %w", err)
	}
	return records, nil
}

// AssignMatch binds an unmatched record to a property from the manual review
// queue. Matched records are never reassigned.
func (s *Store) AssignMatch(ctx context.Context, userID uint, matchID string, propertyID uint) (*models.MatchRecord, error) {
	var record models.MatchRecord
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", matchID, userID).
		First(&record).Error
	if err != nil {
		return nil, fmt.Errorf("load match record: %w", err)
	}
	if record.PropertyID != nil {
		return nil, fmt.Errorf("match record %s already assigned", matchID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.MatchRecord{}).
			Where("id = ? AND property_id IS NULL", matchID).
			Updates(map[string]interface{}{
				"property_id": propertyID,
				"basis":       string(rent.BasisManual),
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.BankTransaction{}).
			Where("user_id = ? AND external_id = ?", userID, record.ExternalID).
			Update("property_id", propertyID).Error
	})
	if err != nil {
		return nil, fmt.Errorf("assign match: %w", err)
	}

	record.PropertyID = &propertyID
	record.Basis = string(rent.BasisManual)
	return &record, nil
}

// ---------- notifications ----------

// RecordNotification inserts the de-duplication row for an alert. Returns
// false when a notification for (property, cycle, kind) already exists, in
// which case the caller must not send anything.
func (s *Store) RecordNotification(ctx context.Context, n *models.NotificationRecord) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "property_id"}, {Name: "window_start"}, {Name: "kind"}},
		DoNothing: true,
	}).Create(n)
	if res.Error != nil {
		return false, fmt.Errorf("record notification: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) NotificationsByUser(ctx context.Context, userID uint, limit int) ([]models.NotificationRecord, error) {
	q := s.db.WithContext(ctx).
		Joins("JOIN properties ON properties.id = notification_records.property_id").
		Where("properties.user_id = ?", userID).
		Order("notification_records.sent_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []models.NotificationRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return records, nil
}
