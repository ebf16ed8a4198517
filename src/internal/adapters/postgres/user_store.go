package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/timepledge/timepledge/src/internal/domain"
)

// PostgresUserStore is the authoritative store: one row per user, the
// mergeable document fields as jsonb/bigint columns so a merge write
// updates only the named columns and leaves the rest alone.
type PostgresUserStore struct {
	db *sql.DB
}

func NewConnection(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func NewUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) InitSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS user_documents (
			id TEXT PRIMARY KEY,
			email TEXT,
			unallowed_urls JSONB NOT NULL DEFAULT '[]',
			time_tracking JSONB NOT NULL DEFAULT '{}',
			wallet_balance BIGINT NOT NULL DEFAULT 0,
			total_donated BIGINT NOT NULL DEFAULT 0,
			selected_charity TEXT NOT NULL DEFAULT 'none',
			edit_history JSONB NOT NULL DEFAULT '[]',
			daily_result JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

func (s *PostgresUserStore) Get(ctx context.Context, userID string) (*domain.UserDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT email, unallowed_urls, time_tracking, wallet_balance,
		       total_donated, selected_charity, edit_history, daily_result, created_at
		FROM user_documents
		WHERE id = $1
	`, userID)
	return scanDocument(row)
}

func (s *PostgresUserStore) MergeWrite(ctx context.Context, userID string, fields domain.PartialFields) error {
	return mergeWrite(ctx, s.db, userID, fields)
}

// Overwrite writes the full document. Used only at account creation; a
// re-run for an existing user replaces the row.
func (s *PostgresUserStore) Overwrite(ctx context.Context, userID string, doc *domain.UserDocument) error {
	sites, err := json.Marshal(doc.Sites)
	if err != nil {
		return err
	}
	tracking, err := json.Marshal(doc.Tracking)
	if err != nil {
		return err
	}
	history, err := json.Marshal(doc.EditHistory)
	if err != nil {
		return err
	}
	var result []byte
	if doc.DailyResult != nil {
		if result, err = json.Marshal(doc.DailyResult); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_documents
			(id, email, unallowed_urls, time_tracking, wallet_balance,
			 total_donated, selected_charity, edit_history, daily_result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			unallowed_urls = EXCLUDED.unallowed_urls,
			time_tracking = EXCLUDED.time_tracking,
			wallet_balance = EXCLUDED.wallet_balance,
			total_donated = EXCLUDED.total_donated,
			selected_charity = EXCLUDED.selected_charity,
			edit_history = EXCLUDED.edit_history,
			daily_result = EXCLUDED.daily_result;
	`, userID, doc.Email, sites, tracking, doc.WalletBalanceCents,
		doc.TotalDonatedCents, doc.SelectedCharity, history, nullableJSON(result), doc.CreatedAt)
	return err
}

// TransactionalUpdate wraps read-modify-write in SELECT FOR UPDATE so the
// financial writers (reconciliation, payment confirmation) serialize on
// the row.
func (s *PostgresUserStore) TransactionalUpdate(ctx context.Context, userID string, fn func(doc *domain.UserDocument) (domain.PartialFields, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT email, unallowed_urls, time_tracking, wallet_balance,
		       total_donated, selected_charity, edit_history, daily_result, created_at
		FROM user_documents
		WHERE id = $1
		FOR UPDATE
	`, userID)
	doc, err := scanDocument(row)
	if err != nil {
		return err
	}

	fields, err := fn(doc)
	if err != nil {
		return err
	}
	if fields.IsEmpty() {
		return tx.Commit()
	}

	if err := mergeWrite(ctx, tx, userID, fields); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PostgresUserStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM user_documents`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// mergeWrite updates only the columns named by the set fields. Works on
// both *sql.DB and *sql.Tx so TransactionalUpdate reuses it.
func mergeWrite(ctx context.Context, db execer, userID string, fields domain.PartialFields) error {
	set := []string{}
	args := []any{userID}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.Sites != nil {
		b, err := json.Marshal(*fields.Sites)
		if err != nil {
			return err
		}
		add("unallowed_urls", b)
	}
	if fields.Tracking != nil {
		b, err := json.Marshal(*fields.Tracking)
		if err != nil {
			return err
		}
		add("time_tracking", b)
	}
	if fields.WalletBalanceCents != nil {
		add("wallet_balance", *fields.WalletBalanceCents)
	}
	if fields.TotalDonatedCents != nil {
		add("total_donated", *fields.TotalDonatedCents)
	}
	if fields.SelectedCharity != nil {
		add("selected_charity", *fields.SelectedCharity)
	}
	if fields.EditHistory != nil {
		b, err := json.Marshal(*fields.EditHistory)
		if err != nil {
			return err
		}
		add("edit_history", b)
	}
	if fields.DailyResult != nil {
		b, err := json.Marshal(fields.DailyResult)
		if err != nil {
			return err
		}
		add("daily_result", b)
	}

	if len(set) == 0 {
		return nil
	}

	query := "UPDATE user_documents SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE id = $1"

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.UserDocument, error) {
	var (
		doc       domain.UserDocument
		email     sql.NullString
		sites     []byte
		tracking  []byte
		history   []byte
		result    []byte
		createdAt sql.NullTime
	)

	err := row.Scan(&email, &sites, &tracking, &doc.WalletBalanceCents,
		&doc.TotalDonatedCents, &doc.SelectedCharity, &history, &result, &createdAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.Email = email.String
	if createdAt.Valid {
		doc.CreatedAt = createdAt.Time
	}
	if err := json.Unmarshal(sites, &doc.Sites); err != nil {
		return nil, fmt.Errorf("corrupt unallowed_urls field: %w", err)
	}
	if err := json.Unmarshal(tracking, &doc.Tracking); err != nil {
		return nil, fmt.Errorf("corrupt time_tracking field: %w", err)
	}
	if err := json.Unmarshal(history, &doc.EditHistory); err != nil {
		return nil, fmt.Errorf("corrupt edit_history field: %w", err)
	}
	if len(result) > 0 {
		doc.DailyResult = &domain.DailyResult{}
		if err := json.Unmarshal(result, doc.DailyResult); err != nil {
			return nil, fmt.Errorf("corrupt daily_result field: %w", err)
		}
	}
	return &doc, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
