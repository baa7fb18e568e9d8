// Package rollover moves yesterday's nutrition log entries into the dated
// archive at day boundaries. The migration is a single atomic transaction:
// archive insert, log delete, and checkpoint update commit together or not
// at all, so a crash can never duplicate or lose an entry.
package rollover

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dkazarov/fitplan/internal/errors"
	"github.com/dkazarov/fitplan/internal/journal"
)

// dateLayout is the checkpoint date format.
const dateLayout = "2006-01-02"

// Result describes the outcome of a rollover check.
type Result struct {
	// Performed is true when a rollover transaction committed, even one
	// that archived zero rows.
	Performed bool `json:"performed"`
	// Archived is the number of log rows moved into the archive.
	Archived int64 `json:"archived"`
	// Coalesced is true when the check was dropped because another rollover
	// for the same user was already running.
	Coalesced bool `json:"coalesced"`
	// CheckpointDate is the checkpoint value after the check.
	CheckpointDate string `json:"checkpoint_date"`
}

// Notification is delivered to subscribers after a committed rollover so
// log-view consumers know to reload.
type Notification struct {
	UserID   int64
	Archived int64
}

// Transactioner owns the rollover checkpoint and the nutrition_archive
// table. It is the archive's only writer and the log's only bulk deleter.
type Transactioner struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time

	mu    sync.Mutex
	users map[int64]*sync.Mutex

	subMu       sync.Mutex
	subscribers []func(Notification)

	// test seam: injected between archive-insert and log-delete
	failBeforeDelete func() error
}

// New creates a transactioner over an initialized database.
func New(database *sql.DB, log *zap.Logger) *Transactioner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Transactioner{
		db:    database,
		log:   log,
		now:   time.Now,
		users: make(map[int64]*sync.Mutex),
	}
}

// Subscribe registers a callback invoked after every committed rollover.
// Callbacks run synchronously on the triggering goroutine.
func (t *Transactioner) Subscribe(fn func(Notification)) {
	t.subMu.Lock()
	defer t.subMu.Unlock()
	t.subscribers = append(t.subscribers, fn)
}

// Check compares the user's checkpoint to today's local calendar date and,
// on mismatch, atomically archives every log row older than start of today.
// A trigger arriving while another rollover for the same user is in flight
// is dropped and reported as coalesced. Same-day repeat checks are no-ops.
func (t *Transactioner) Check(ctx context.Context, userID int64) (*Result, error) {
	mu := t.userMutex(userID)
	if !mu.TryLock() {
		return &Result{Coalesced: true}, nil
	}
	defer mu.Unlock()

	now := t.now()
	today := now.Format(dateLayout)

	last, err := t.checkpoint(ctx, userID)
	if err != nil {
		return nil, err
	}
	if last == today {
		return &Result{CheckpointDate: today}, nil
	}

	archived, err := t.runRollover(ctx, userID, now, today)
	if err != nil {
		return nil, err
	}

	t.log.Info("rollover committed",
		zap.Int64("user_id", userID),
		zap.Int64("archived", archived),
		zap.String("checkpoint", today))
	t.notify(Notification{UserID: userID, Archived: archived})

	return &Result{Performed: true, Archived: archived, CheckpointDate: today}, nil
}

// runRollover executes the archive-insert, log-delete, and checkpoint update
// in one transaction. The delete predicate is re-evaluated inside the
// transaction rather than replayed from a fetched id list, so a row logged
// between selection and deletion is never swept.
func (t *Transactioner) runRollover(ctx context.Context, userID int64, now time.Time, today string) (int64, error) {
	startOfToday := journal.StartOfDay(now).UnixMilli()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewRolloverFailed(err)
	}
	defer tx.Rollback()

	// Denormalize the product name so the archive stays readable even if
	// the product is later renamed or deleted. Original logged_at is kept;
	// archived_at is fresh. Meal types are preserved verbatim.
	result, err := tx.ExecContext(ctx,
		`INSERT INTO nutrition_archive
		   (id, user_id, product_id, product_name, meal_type, quantity,
		    calories, protein, fat, carbs, logged_at, archived_at)
		 SELECT l.id, l.user_id, l.product_id, COALESCE(p.name, ''), l.meal_type, l.quantity,
		        l.calories, l.protein, l.fat, l.carbs, l.logged_at, ?
		 FROM nutrition_log l
		 LEFT JOIN products p ON p.id = l.product_id
		 WHERE l.user_id = ? AND l.logged_at < ?`,
		now.UnixMilli(), userID, startOfToday)
	if err != nil {
		return 0, errors.NewRolloverFailed(err)
	}
	archived, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewRolloverFailed(err)
	}

	if t.failBeforeDelete != nil {
		if err := t.failBeforeDelete(); err != nil {
			return 0, errors.NewRolloverFailed(err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM nutrition_log WHERE user_id = ? AND logged_at < ?`,
		userID, startOfToday); err != nil {
		return 0, errors.NewRolloverFailed(err)
	}

	// Checkpoint rides the same transaction: a failed commit leaves it
	// untouched and the next trigger retries the full rollover.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rollover_checkpoints (user_id, last_checked_date) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET last_checked_date = excluded.last_checked_date`,
		userID, today); err != nil {
		return 0, errors.NewRolloverFailed(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewRolloverFailed(err)
	}
	return archived, nil
}

// checkpoint reads the user's last-checked date; empty string when the user
// has never rolled over.
func (t *Transactioner) checkpoint(ctx context.Context, userID int64) (string, error) {
	var date string
	err := t.db.QueryRowContext(ctx,
		`SELECT last_checked_date FROM rollover_checkpoints WHERE user_id = ?`, userID).Scan(&date)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return date, nil
}

func (t *Transactioner) userMutex(userID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	mu, ok := t.users[userID]
	if !ok {
		mu = &sync.Mutex{}
		t.users[userID] = mu
	}
	return mu
}

func (t *Transactioner) notify(n Notification) {
	t.subMu.Lock()
	subs := make([]func(Notification), len(t.subscribers))
	copy(subs, t.subscribers)
	t.subMu.Unlock()
	for _, fn := range subs {
		fn(n)
	}
}

// ArchivedEntry is one archived log row. LoggedAt is the original log time;
// ArchivedAt is when the rollover moved it.
type ArchivedEntry struct {
	ID            string           `json:"id"`
	UserID        int64            `json:"user_id"`
	ProductID     string           `json:"product_id"`
	ProductName   string           `json:"product_name"`
	MealType      journal.MealType `json:"meal_type"`
	QuantityGrams int              `json:"quantity_grams"`
	Calories      float64          `json:"calories"`
	Protein       float64          `json:"protein"`
	Fat           float64          `json:"fat"`
	Carbs         float64          `json:"carbs"`
	LoggedAt      time.Time        `json:"logged_at"`
	ArchivedAt    time.Time        `json:"archived_at"`
}

// ListArchive returns a user's archived entries with logged_at in [from, to),
// newest first. Zero time bounds mean unbounded on that side.
func (t *Transactioner) ListArchive(ctx context.Context, userID int64, from, to time.Time) ([]ArchivedEntry, error) {
	query := `SELECT id, user_id, product_id, product_name, meal_type, quantity,
	                 calories, protein, fat, carbs, logged_at, archived_at
	          FROM nutrition_archive WHERE user_id = ?`
	args := []any{userID}
	if !from.IsZero() {
		query += ` AND logged_at >= ?`
		args = append(args, from.UnixMilli())
	}
	if !to.IsZero() {
		query += ` AND logged_at < ?`
		args = append(args, to.UnixMilli())
	}
	query += ` ORDER BY logged_at DESC`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var entries []ArchivedEntry
	for rows.Next() {
		var e ArchivedEntry
		var loggedAt, archivedAt int64
		err := rows.Scan(&e.ID, &e.UserID, &e.ProductID, &e.ProductName, &e.MealType,
			&e.QuantityGrams, &e.Calories, &e.Protein, &e.Fat, &e.Carbs, &loggedAt, &archivedAt)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		e.LoggedAt = time.UnixMilli(loggedAt)
		e.ArchivedAt = time.UnixMilli(archivedAt)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}
