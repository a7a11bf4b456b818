// Package syncer drives the reconciliation loop: a periodic tick enumerates
// properties with a bank connection and walks each through
// Idle -> Polling -> Matching -> Ledger-Update -> Alert-Check.
//
// Work runs concurrently across properties but is serialized within one
// property, so SyncAttempt and MatchRecord writes never race for the same
// cycle. Balance updates are delta-folded inside a store transaction, so a
// batch crediting a sibling property can interleave with that sibling's own
// tick without losing amounts. One property's failure never blocks the others.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"rentcheck/internal/bank"
	"rentcheck/internal/models"
	"rentcheck/internal/notify"
	"rentcheck/internal/rent"
	"rentcheck/internal/store"
	"rentcheck/internal/util"
)

// Config carries the reconciliation knobs, resolved from app config.
type Config struct {
	PollLead time.Duration // polling window opens this long before cycle end
	Grace    time.Duration // alert delay past cycle end
	FetchPad time.Duration // fetch starts this long before cycle start
	Timeout  time.Duration // per external bank call
}

// Orchestrator ties the engine to its collaborators.
type Orchestrator struct {
	store  *store.Store
	bank   bank.Client
	sender notify.Sender
	cfg    Config
	encKey string // opens sealed bank tokens
	log    zerolog.Logger

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// New builds an Orchestrator.
func New(st *store.Store, bankClient bank.Client, sender notify.Sender, cfg Config, encKey string, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:  st,
		bank:   bankClient,
		sender: sender,
		cfg:    cfg,
		encKey: encKey,
		log:    log.With().Str("component", "syncer").Logger(),
		locks:  make(map[uint]*sync.Mutex),
	}
}

// TickSummary reports what one tick did, mostly for logs and the dashboard.
type TickSummary struct {
	Properties    int
	Polled        int
	Stored        int
	Notifications int
	Failed        int
}

// Run ticks until the context is cancelled. One tick fires immediately so a
// restart never waits a full interval to catch up.
func (o *Orchestrator) Run(ctx context.Context, tick time.Duration) {
	o.Tick(ctx, time.Now())

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			o.Tick(ctx, now)
		}
	}
}

// Tick evaluates every sync candidate once, concurrently across properties.
func (o *Orchestrator) Tick(ctx context.Context, now time.Time) TickSummary {
	props, err := o.store.SyncCandidates(ctx)
	if err != nil {
		o.log.Error().Err(err).Msg("list sync candidates")
		return TickSummary{}
	}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sum = TickSummary{Properties: len(props)}
	)
	for i := range props {
		prop := props[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.syncProperty(ctx, &prop, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed++
				return
			}
			if res.polled {
				sum.Polled++
			}
			sum.Stored += res.stored
			if res.notified {
				sum.Notifications++
			}
		}()
	}
	wg.Wait()

	o.log.Info().
		Int("properties", sum.Properties).
		Int("polled", sum.Polled).
		Int("stored", sum.Stored).
		Int("notifications", sum.Notifications).
		Int("failed", sum.Failed).
		Msg("tick complete")
	return sum
}

// SyncProperty runs one property through the state machine immediately,
// outside the tick loop (the force-sync endpoint).
func (o *Orchestrator) SyncProperty(ctx context.Context, propertyID uint, now time.Time) error {
	prop, err := o.store.PropertyWithUser(ctx, propertyID)
	if err != nil {
		return err
	}
	if !prop.User.BankConnected() {
		return fmt.Errorf("%w: no bank connection", bank.ErrAuthFailed)
	}
	_, err = o.syncProperty(ctx, prop, now)
	return err
}

// ApplyLedger runs only the ledger-update phase for one property, used after
// a manual match assignment so the balance reflects it immediately.
func (o *Orchestrator) ApplyLedger(ctx context.Context, propertyID uint, now time.Time) error {
	lock := o.lockFor(propertyID)
	lock.Lock()
	defer lock.Unlock()
	return o.applyBalance(ctx, propertyID, now)
}

type propertyResult struct {
	polled   bool
	stored   int
	notified bool
}

func (o *Orchestrator) syncProperty(ctx context.Context, prop *models.Property, now time.Time) (propertyResult, error) {
	lock := o.lockFor(prop.ID)
	lock.Lock()
	defer lock.Unlock()

	log := o.log.With().Uint("property", prop.ID).Logger()
	var res propertyResult

	cycle, err := rent.CurrentCycle(prop.Schedule(), now)
	if err != nil {
		// validated at creation; reaching this means stored config was edited
		// out from under us
		log.Error().Err(err).Msg("invalid schedule")
		return res, err
	}

	if err := o.pollIfDue(ctx, prop, cycle, now, log, &res); err != nil {
		return res, err
	}

	// ledger update runs every tick, not just after a poll, so charges for
	// newly closed cycles accrue and records left unapplied by an earlier
	// failure are retried idempotently
	if err := o.applyBalance(ctx, prop.ID, now); err != nil {
		log.Error().Err(err).Msg("apply balance")
		return res, err
	}

	notified, err := o.checkAlert(ctx, prop, cycle, now, log)
	if err != nil {
		log.Error().Err(err).Msg("alert check")
		return res, err
	}
	res.notified = notified
	return res, nil
}

// pollIfDue performs the Polling and Matching phases when the scheduler
// allows an external call for this cycle.
func (o *Orchestrator) pollIfDue(ctx context.Context, prop *models.Property, cycle rent.Cycle, now time.Time, log zerolog.Logger, res *propertyResult) error {
	attemptRow, err := o.store.AttemptForCycle(ctx, prop.ID, cycle.Start)
	if err != nil {
		return err
	}
	var state *rent.AttemptState
	if attemptRow != nil {
		state = &rent.AttemptState{
			Status:      rent.AttemptStatus(attemptRow.Status),
			StoredCount: attemptRow.StoredCount,
			ErrorCount:  attemptRow.ErrorCount,
		}
	}
	if !rent.ShouldPoll(state, cycle, now, o.cfg.PollLead) {
		return nil
	}

	token, err := util.OpenToken(o.encKey, prop.User.BankTokenEnc)
	if err != nil {
		return fmt.Errorf("open bank token: %w", err)
	}

	// a fetch failure here leaves no SyncAttempt behind: the state machine
	// drops back to Idle and the next tick inside the window may retry
	txns, err := o.fetchTransactions(ctx, token, cycle.Start.Add(-o.cfg.FetchPad), now)
	if err != nil {
		if errors.Is(err, bank.ErrAuthFailed) {
			log.Warn().Err(err).Msg("bank connection needs re-authorization")
		} else {
			log.Warn().Err(err).Msg("bank fetch failed, deferred to next tick")
		}
		return err
	}
	res.polled = true

	// the attempt is recorded before results are processed; the cycle's call
	// budget is spent even if processing below fails
	if err := o.store.RecordAttempt(ctx, &models.SyncAttempt{
		PropertyID:  prop.ID,
		WindowStart: cycle.Start,
		Status:      string(rent.AttemptPending),
	}); err != nil {
		return err
	}

	stored, err := o.processBatch(ctx, prop, cycle, txns, now)
	if err != nil {
		if markErr := o.store.MarkAttemptFailed(ctx, prop.ID, cycle.Start, err.Error()); markErr != nil {
			log.Error().Err(markErr).Msg("mark attempt failed")
		}
		return err
	}
	res.stored = stored

	if err := o.store.MarkAttemptCompleted(ctx, prop.ID, cycle.Start, stored); err != nil {
		return err
	}
	log.Info().Int("fetched", len(txns)).Int("stored", stored).Msg("polled bank feed")
	return nil
}

// processBatch persists a fetched batch and runs the matcher over it. The
// batch belongs to the whole bank connection, so it is matched against every
// property of the owning user, not just the one that triggered the poll.
func (o *Orchestrator) processBatch(ctx context.Context, prop *models.Property, cycle rent.Cycle, txns []bank.Transaction, now time.Time) (int, error) {
	userID := prop.UserID
	stored, err := o.store.SaveTransactions(ctx, userID, txns)
	if err != nil {
		return stored, err
	}
	// stamp the count immediately: once data is persisted the attempt is
	// terminal for this cycle, even if matching below dies mid-way
	if err := o.store.SetAttemptStored(ctx, prop.ID, cycle.Start, stored); err != nil {
		return stored, err
	}

	siblings, err := o.store.PropertiesByUser(ctx, userID)
	if err != nil {
		return stored, err
	}
	targets := make([]rent.Target, 0, len(siblings))
	for _, p := range siblings {
		targets = append(targets, p.MatchTarget())
	}

	batch := make([]rent.Transaction, 0, len(txns))
	ids := make([]string, 0, len(txns))
	for _, t := range txns {
		batch = append(batch, rent.Transaction{
			ExternalID:  t.ID,
			Date:        t.Date,
			Amount:      t.Amount,
			Description: t.Description,
		})
		ids = append(ids, t.ID)
	}
	seen, err := o.store.MatchedExternalIDs(ctx, userID, ids)
	if err != nil {
		return stored, err
	}

	results := rent.Match(batch, targets, func(id string) bool { return seen[id] })

	records := make([]models.MatchRecord, 0, len(results))
	touched := map[uint]bool{prop.ID: true}
	for _, r := range results {
		rec := models.MatchRecord{
			UserID:      userID,
			ExternalID:  r.Transaction.ExternalID,
			Basis:       string(r.Basis),
			Partial:     r.Partial,
			Amount:      r.Transaction.Amount,
			Date:        r.Transaction.Date,
			Description: r.Transaction.Description,
		}
		if r.Matched() {
			id := r.PropertyID
			rec.PropertyID = &id
			touched[id] = true
		} else if r.Basis == rent.BasisAmbiguous {
			o.log.Warn().Err(rent.ErrAmbiguousMatch).
				Str("transaction", r.Transaction.ExternalID).
				Msg("left for manual review")
		}
		records = append(records, rec)
	}
	if err := o.store.CreateMatchRecords(ctx, records); err != nil {
		return stored, err
	}

	siblingByID := make(map[uint]models.Property, len(siblings))
	for _, p := range siblings {
		siblingByID[p.ID] = p
	}
	for _, r := range results {
		if !r.Matched() || r.Partial {
			continue
		}
		if target, ok := siblingByID[r.PropertyID]; ok {
			o.notePayment(ctx, target, prop.User.Email, r, now)
		}
	}

	// fold new matches into each affected sibling as well
	for id := range touched {
		if err := o.applyBalance(ctx, id, now); err != nil {
			return stored, err
		}
	}
	return stored, nil
}

// notePayment records a payment-received confirmation keyed to the cycle the
// payment landed in, at most once per cycle. Partial payments never confirm.
func (o *Orchestrator) notePayment(ctx context.Context, target models.Property, email string, r rent.Result, now time.Time) {
	cycle, err := rent.CurrentCycle(target.Schedule(), r.Transaction.Date)
	if err != nil {
		return
	}
	created, err := o.store.RecordNotification(ctx, &models.NotificationRecord{
		PropertyID:  target.ID,
		WindowStart: cycle.Start,
		Kind:        string(rent.KindPaymentReceived),
		Message:     fmt.Sprintf("payment of $%s received", r.Transaction.Amount.StringFixed(2)),
		SentAt:      now,
	})
	if err != nil || !created {
		return
	}
	msg := notify.PaymentReceived(email, target.Name, r.Transaction.Amount, r.Transaction.Date)
	if err := o.sender.Send(ctx, msg); err != nil {
		o.log.Error().Err(err).Uint("property", target.ID).Msg("send notification")
	}
}

// applyBalance runs the ledger update for one property: rent charges accrue
// for every cycle that has closed since the property was created, then
// unapplied charges and match records fold into the balance in date order.
func (o *Orchestrator) applyBalance(ctx context.Context, propertyID uint, now time.Time) error {
	prop, err := o.store.PropertyByID(ctx, propertyID)
	if err != nil {
		return err
	}

	closed, err := rent.ElapsedCycles(prop.Schedule(), prop.CreatedAt, now)
	if err != nil {
		return err
	}
	if len(closed) > 0 {
		charges := make([]models.RentCharge, 0, len(closed))
		for _, c := range closed {
			charges = append(charges, models.RentCharge{
				PropertyID:  propertyID,
				WindowStart: c.Start,
				WindowEnd:   c.End,
				Amount:      prop.RentAmount,
			})
		}
		if err := o.store.AccrueCharges(ctx, charges); err != nil {
			return err
		}
	}

	matches, err := o.store.UnappliedForProperty(ctx, propertyID)
	if err != nil {
		return err
	}
	charges, err := o.store.UnappliedCharges(ctx, propertyID)
	if err != nil {
		return err
	}
	if len(matches) == 0 && len(charges) == 0 {
		return nil
	}

	entries := make([]rent.Entry, 0, len(matches)+len(charges))
	chargeSet := make(map[string]bool, len(charges))
	for _, r := range matches {
		entries = append(entries, rent.Entry{ID: r.ID, Date: r.Date, Amount: r.Amount, Applied: r.Applied})
	}
	for _, c := range charges {
		entries = append(entries, rent.Entry{ID: c.ID, Date: c.WindowEnd, Amount: c.Amount.Neg(), Applied: c.Applied})
		chargeSet[c.ID] = true
	}

	balance, applied := rent.ApplyEntries(prop.Balance, entries)
	var matchIDs, chargeIDs []string
	for _, id := range applied {
		if chargeSet[id] {
			chargeIDs = append(chargeIDs, id)
		} else {
			matchIDs = append(matchIDs, id)
		}
	}

	// the store folds the delta into whatever the balance is at commit time,
	// so this read of prop.Balance going stale cannot drop amounts
	delta := balance.Sub(prop.Balance)
	err = o.store.ApplyToBalance(ctx, propertyID, matchIDs, chargeIDs, delta, time.Now())
	if errors.Is(err, store.ErrAlreadyApplied) {
		// lost a race with another worker; the winner's balance stands
		o.log.Warn().Uint("property", propertyID).Msg("balance already applied elsewhere")
		return nil
	}
	return err
}

// checkAlert fires missed-payment notifications for elapsed cycles. The
// arrears deficit tells how many trailing cycles went unpaid; each of them is
// evaluated, so cycles that closed while no tick ran (downtime, crash loop)
// still get their notification once the process is back. Deduplication is the
// (property, cycle, kind) notification key.
func (o *Orchestrator) checkAlert(ctx context.Context, prop *models.Property, current rent.Cycle, now time.Time, log zerolog.Logger) (bool, error) {
	// re-read: the ledger update above may have just changed the balance
	fresh, err := o.store.PropertyByID(ctx, prop.ID)
	if err != nil {
		return false, err
	}
	standing := rent.StandingOf(fresh.Balance)
	if standing.Current {
		return false, nil
	}

	missed := int(standing.Arrears.Div(prop.RentAmount).Ceil().IntPart())
	first, err := rent.CurrentCycle(prop.Schedule(), prop.CreatedAt)
	if err != nil {
		return false, err
	}

	notified := false
	c := rent.PrevCycle(prop.Schedule(), current)
	for i := 0; i < missed && !c.Start.Before(first.Start); i++ {
		fired, err := o.alertForCycle(ctx, prop, c, fresh.Balance, now, log)
		if err != nil {
			return notified, err
		}
		notified = notified || fired
		c = rent.PrevCycle(prop.Schedule(), c)
	}

	if notified {
		if err := o.store.SetLastAlert(ctx, prop.ID, now); err != nil {
			log.Error().Err(err).Msg("stamp last alert")
		}
	}
	return notified, nil
}

// alertForCycle records and sends at most one missed-payment notification for
// one elapsed cycle.
func (o *Orchestrator) alertForCycle(ctx context.Context, prop *models.Property, c rent.Cycle, balance decimal.Decimal, now time.Time, log zerolog.Logger) (bool, error) {
	if !rent.EvaluateAlert(c, balance, now, o.cfg.Grace, false) {
		return false, nil
	}

	standing := rent.StandingOf(balance)
	created, err := o.store.RecordNotification(ctx, &models.NotificationRecord{
		PropertyID:  prop.ID,
		WindowStart: c.Start,
		Kind:        string(rent.KindMissedPayment),
		Message:     fmt.Sprintf("rent overdue, $%s owing", standing.Arrears.StringFixed(2)),
		SentAt:      now,
	})
	if err != nil {
		return false, err
	}
	if !created {
		// already alerted for this cycle on an earlier tick
		return false, nil
	}

	// delivery is fire-and-forget; the record above is the source of truth
	msg := notify.MissedPayment(prop.User.Email, prop.Name, standing.Arrears, c.Start)
	if err := o.sender.Send(ctx, msg); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
	log.Info().Str("kind", string(rent.KindMissedPayment)).Time("cycle", c.Start).Msg("notification recorded")
	return true, nil
}

// fetchTransactions calls the bank with a bounded timeout and a single
// bounded retry on transient failure. A timeout is a normal failure.
func (o *Orchestrator) fetchTransactions(ctx context.Context, token string, since, until time.Time) ([]bank.Transaction, error) {
	txns, err := o.fetchOnce(ctx, token, since, until)
	if err == nil || !errors.Is(err, bank.ErrTransient) {
		return txns, err
	}
	return o.fetchOnce(ctx, token, since, until)
}

func (o *Orchestrator) fetchOnce(ctx context.Context, token string, since, until time.Time) ([]bank.Transaction, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()
	return o.bank.Transactions(cctx, token, since, until)
}

func (o *Orchestrator) lockFor(propertyID uint) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.locks[propertyID]; !ok {
		o.locks[propertyID] = &sync.Mutex{}
	}
	return o.locks[propertyID]
}
