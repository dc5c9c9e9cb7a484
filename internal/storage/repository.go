// Package storage is the SQLite collaborator backend. It serves every source
// port from a single database file migrated on open.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fluxo/internal/core"
	"fluxo/internal/log"
	"fluxo/internal/sources"
)

const dateLayout = time.DateOnly

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Debug("SQLite schema ready", log.FieldOperation, log.OpMigrate, "schema_version", version, "db_path", dbPath)
	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, balance_cents, active FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Balance.Cents, &a.Active); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.CardInvoice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.brand, c.credit_limit_cents, c.due_day, c.closing_day, c.color, c.active,
		       COALESCE(s.current_amount_cents, 0), COALESCE(s.total_month_amount_cents, 0),
		       s.days_to_due_date, s.due_date, COALESCE(s.percent_limit_used, 0)
		FROM cards c
		LEFT JOIN invoice_snapshots s ON s.card_id = c.id
		ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.CardInvoice
	for rows.Next() {
		var (
			ci      core.CardInvoice
			days    sql.NullInt64
			dueDate sql.NullString
		)
		c, s := &ci.Card, &ci.Snapshot
		if err := rows.Scan(&c.ID, &c.Name, &c.Brand, &c.CreditLimit.Cents, &c.DueDay, &c.ClosingDay, &c.Color, &c.Active,
			&s.CurrentAmount.Cents, &s.TotalMonthAmount.Cents, &days, &dueDate, &s.PercentLimitUsed); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if days.Valid {
			v := int(days.Int64)
			s.DaysToDueDate = &v
		}
		if dueDate.Valid {
			d, err := sources.ParseDate(dueDate.String)
			if err != nil {
				return nil, fmt.Errorf("card %s due date: %w", c.ID, err)
			}
			s.DueDate = &d
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListRecurringRules(ctx context.Context) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, amount_cents, kind, frequency, category, start_date, end_date, origin_type, origin_id
		FROM recurring_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		var (
			rule  core.RecurringRule
			start string
			end   sql.NullString
		)
		if err := rows.Scan(&rule.ID, &rule.Description, &rule.Amount.Cents, &rule.Kind, &rule.Frequency, &rule.Category,
			&start, &end, &rule.Origin.Type, &rule.Origin.ID); err != nil {
			return nil, fmt.Errorf("scan recurring rule: %w", err)
		}
		startDate, err := sources.ParseDate(start)
		if err != nil {
			return nil, fmt.Errorf("rule %s start: %w", rule.ID, err)
		}
		var endDate *core.Date
		if end.Valid {
			d, err := sources.ParseDate(end.String)
			if err != nil {
				return nil, fmt.Errorf("rule %s end: %w", rule.ID, err)
			}
			endDate = &d
		}
		schedule, err := sources.NewFrequencySchedule(startDate, endDate, rule.Frequency, rule.Amount)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}
		rule.Schedule = schedule
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListInstallments(ctx context.Context) ([]core.InstallmentPurchase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, category, total_amount_cents, installment_amount_cents,
		       total_installments, paid_installments, card_id
		FROM installment_purchases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}

	var (
		out   []core.InstallmentPurchase
		index = map[string]int{}
	)
	for rows.Next() {
		var p core.InstallmentPurchase
		if err := rows.Scan(&p.ID, &p.Description, &p.Category, &p.TotalAmount.Cents, &p.InstallmentAmount.Cents,
			&p.TotalInstallments, &p.PaidInstallments, &p.CardID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	dues, err := r.db.QueryContext(ctx, `SELECT purchase_id, number, due_date, amount_cents FROM installment_dues ORDER BY purchase_id, number`)
	if err != nil {
		return nil, fmt.Errorf("list installment dues: %w", err)
	}
	defer dues.Close()
	for dues.Next() {
		var (
			id, date string
			due      core.InstallmentDue
		)
		if err := dues.Scan(&id, &due.Number, &date, &due.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan installment due: %w", err)
		}
		if due.DueDate, err = sources.ParseDate(date); err != nil {
			return nil, fmt.Errorf("installment %s due %d: %w", id, due.Number, err)
		}
		if i, ok := index[id]; ok {
			out[i].Dues = append(out[i].Dues, due)
		}
	}
	return out, dues.Err()
}

func (r *SQLiteRepository) ListFinancings(ctx context.Context) ([]core.FinancingContract, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, description, institution, system FROM financing_contracts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list financings: %w", err)
	}

	var (
		out   []core.FinancingContract
		index = map[string]int{}
	)
	for rows.Next() {
		var c core.FinancingContract
		if err := rows.Scan(&c.ID, &c.Description, &c.Institution, &c.System); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan financing: %w", err)
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	payments, err := r.db.QueryContext(ctx, `SELECT contract_id, number, date, amount_cents FROM financing_payments ORDER BY contract_id, number`)
	if err != nil {
		return nil, fmt.Errorf("list financing payments: %w", err)
	}
	defer payments.Close()
	for payments.Next() {
		var (
			id, date string
			p        core.ScheduledPayment
		)
		if err := payments.Scan(&id, &p.Number, &date, &p.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan financing payment: %w", err)
		}
		if p.Date, err = sources.ParseDate(date); err != nil {
			return nil, fmt.Errorf("financing %s payment %d: %w", id, p.Number, err)
		}
		if i, ok := index[id]; ok {
			out[i].Payments = append(out[i].Payments, p)
		}
	}
	return out, payments.Err()
}

// ListTransactions returns realized transactions dated in [from, to).
func (r *SQLiteRepository) ListTransactions(ctx context.Context, from, to time.Time) ([]core.TransactionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, description, date, amount_cents, kind, category, origin_type, origin_id
		FROM transactions
		WHERE date >= ? AND date < ?
		ORDER BY date, id`, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.TransactionRecord
	for rows.Next() {
		var (
			tx   core.TransactionRecord
			date string
		)
		if err := rows.Scan(&tx.ID, &tx.Description, &date, &tx.Amount.Cents, &tx.Kind, &tx.Category,
			&tx.Origin.Type, &tx.Origin.ID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.Date, err = sources.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s date: %w", tx.ID, err)
		}
		tx.Source = core.SourceRealized
		out = append(out, tx)
	}
	return out, rows.Err()
}

// AddTransaction records a realized transaction.
func (r *SQLiteRepository) AddTransaction(ctx context.Context, tx core.TransactionRecord) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	return r.inTx(ctx, func(q *sql.Tx) error {
		return insertTransaction(ctx, q, tx)
	})
}

// IsEmpty reports whether no accounts, cards or transactions are stored.
func (r *SQLiteRepository) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM accounts) + (SELECT COUNT(*) FROM cards) + (SELECT COUNT(*) FROM transactions)`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count rows: %w", err)
	}
	return n == 0, nil
}

// Import writes a whole dataset in one transaction, replacing rows with the
// same ids.
func (r *SQLiteRepository) Import(ctx context.Context, ds sources.Dataset) error {
	err := r.inTx(ctx, func(q *sql.Tx) error {
		for _, a := range ds.Accounts {
			if _, err := q.ExecContext(ctx,
				`INSERT OR REPLACE INTO accounts (id, name, balance_cents, active) VALUES (?, ?, ?, ?)`,
				a.ID, a.Name, a.Balance.Cents, a.Active); err != nil {
				return fmt.Errorf("insert account %s: %w", a.ID, err)
			}
		}
		for _, ci := range ds.Cards {
			if err := insertCard(ctx, q, ci); err != nil {
				return err
			}
		}
		for _, rule := range ds.Recurring {
			if err := insertRule(ctx, q, rule); err != nil {
				return err
			}
		}
		for _, p := range ds.Installments {
			if err := insertInstallment(ctx, q, p); err != nil {
				return err
			}
		}
		for _, c := range ds.Financings {
			if err := insertFinancing(ctx, q, c); err != nil {
				return err
			}
		}
		for _, tx := range ds.Transactions {
			if err := insertTransaction(ctx, q, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "Dataset imported",
		"accounts", len(ds.Accounts),
		"cards", len(ds.Cards),
		"recurring", len(ds.Recurring),
		"installments", len(ds.Installments),
		"financings", len(ds.Financings),
		"transactions", len(ds.Transactions))
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertCard(ctx context.Context, q *sql.Tx, ci core.CardInvoice) error {
	c, s := ci.Card, ci.Snapshot
	if _, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO cards (id, name, brand, credit_limit_cents, due_day, closing_day, color, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Brand, c.CreditLimit.Cents, c.DueDay, c.ClosingDay, c.Color, c.Active); err != nil {
		return fmt.Errorf("insert card %s: %w", c.ID, err)
	}

	var days, dueDate any
	if s.DaysToDueDate != nil {
		days = *s.DaysToDueDate
	}
	if s.DueDate != nil {
		dueDate = s.DueDate.Format(dateLayout)
	}
	if _, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO invoice_snapshots
		    (card_id, current_amount_cents, total_month_amount_cents, days_to_due_date, due_date, percent_limit_used)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, s.CurrentAmount.Cents, s.TotalMonthAmount.Cents, days, dueDate, s.PercentLimitUsed); err != nil {
		return fmt.Errorf("insert invoice snapshot %s: %w", c.ID, err)
	}
	return nil
}

func insertRule(ctx context.Context, q *sql.Tx, rule core.RecurringRule) error {
	fs, ok := rule.Schedule.(sources.FrequencySchedule)
	if !ok {
		return fmt.Errorf("recurring rule %s: schedule %T cannot be stored", rule.ID, rule.Schedule)
	}
	var end any
	if fs.End != nil {
		end = fs.End.Format(dateLayout)
	}
	if _, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO recurring_rules
		    (id, description, amount_cents, kind, frequency, category, start_date, end_date, origin_type, origin_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Description, rule.Amount.Cents, string(rule.Kind), string(fs.Frequency), rule.Category,
		fs.Start.Format(dateLayout), end, originType(rule.Origin), rule.Origin.ID); err != nil {
		return fmt.Errorf("insert recurring rule %s: %w", rule.ID, err)
	}
	return nil
}

func insertInstallment(ctx context.Context, q *sql.Tx, p core.InstallmentPurchase) error {
	if _, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO installment_purchases
		    (id, description, category, total_amount_cents, installment_amount_cents, total_installments, paid_installments, card_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Description, p.Category, p.TotalAmount.Cents, p.InstallmentAmount.Cents,
		p.TotalInstallments, p.PaidInstallments, p.CardID); err != nil {
		return fmt.Errorf("insert installment %s: %w", p.ID, err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM installment_dues WHERE purchase_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clear installment dues %s: %w", p.ID, err)
	}
	for _, d := range p.Dues {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO installment_dues (purchase_id, number, due_date, amount_cents) VALUES (?, ?, ?, ?)`,
			p.ID, d.Number, d.DueDate.Format(dateLayout), d.Amount.Cents); err != nil {
			return fmt.Errorf("insert installment due %s/%d: %w", p.ID, d.Number, err)
		}
	}
	return nil
}

func insertFinancing(ctx context.Context, q *sql.Tx, c core.FinancingContract) error {
	if _, err := q.ExecContext(ctx,
		`INSERT OR REPLACE INTO financing_contracts (id, description, institution, system) VALUES (?, ?, ?, ?)`,
		c.ID, c.Description, c.Institution, string(c.System)); err != nil {
		return fmt.Errorf("insert financing %s: %w", c.ID, err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM financing_payments WHERE contract_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear financing payments %s: %w", c.ID, err)
	}
	for _, p := range c.Payments {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO financing_payments (contract_id, number, date, amount_cents) VALUES (?, ?, ?, ?)`,
			c.ID, p.Number, p.Date.Format(dateLayout), p.Amount.Cents); err != nil {
			return fmt.Errorf("insert financing payment %s/%d: %w", c.ID, p.Number, err)
		}
	}
	return nil
}

func insertTransaction(ctx context.Context, q *sql.Tx, tx core.TransactionRecord) error {
	if _, err := q.ExecContext(ctx, `
		INSERT OR REPLACE INTO transactions (id, description, date, amount_cents, kind, category, origin_type, origin_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Description, tx.Date.Format(dateLayout), tx.Amount.Cents, string(tx.Kind), tx.Category,
		originType(tx.Origin), tx.Origin.ID); err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

func originType(o core.OriginRef) string {
	if o.Type == core.OriginCard {
		return string(core.OriginCard)
	}
	return string(core.OriginAccount)
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

var _ sources.Collaborators = (*SQLiteRepository)(nil)
