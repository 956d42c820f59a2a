package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"splitsmart/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent transactions
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		string(u.ID), u.Email, u.Name, u.PasswordHash, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return wrapWrite("create user", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id core.UserID) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash FROM users WHERE id = ?`, string(id))
	return scanUser(row)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	var id string
	if err := row.Scan(&id, &u.Email, &u.Name, &u.PasswordHash); err != nil {
		return core.User{}, wrapRead("get user", err)
	}
	u.ID = core.UserID(id)
	return u, nil
}

func (r *SQLiteRepository) CreateGroup(ctx context.Context, g core.Group) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expense_groups (id, name, admin_id, created_at) VALUES (?, ?, ?, ?)`,
			g.ID, g.Name, string(g.AdminID), time.Now().UTC().Format(timeLayout)); err != nil {
			return wrapWrite("create group", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO group_members (group_id, user_id, role, tags) VALUES (?, ?, ?, '[]')`,
			g.ID, string(g.AdminID), string(core.RoleAdmin)); err != nil {
			return wrapWrite("add group admin", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (core.Group, error) {
	var g core.Group
	var admin string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, admin_id FROM expense_groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &admin)
	if err != nil {
		return core.Group{}, wrapRead("get group", err)
	}
	g.AdminID = core.UserID(admin)
	return g, nil
}

func (r *SQLiteRepository) ListGroupsForUser(ctx context.Context, userID core.UserID) ([]core.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.admin_id
		FROM expense_groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = ?
		ORDER BY g.created_at, g.id`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []core.Group
	for rows.Next() {
		var g core.Group
		var admin string
		if err := rows.Scan(&g.ID, &g.Name, &admin); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.AdminID = core.UserID(admin)
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *SQLiteRepository) ListGroupIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM expense_groups ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list group ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) AddMember(ctx context.Context, m core.Member) error {
	tags, err := encodeTags(m.Tags)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role, tags) VALUES (?, ?, ?, ?)`,
		m.GroupID, string(m.UserID), string(m.Role), tags); err != nil {
		return wrapWrite("add member", err)
	}
	return nil
}

const memberColumns = `m.group_id, m.user_id, u.name, m.role, m.tags
		FROM group_members m
		JOIN users u ON u.id = m.user_id`

func (r *SQLiteRepository) GetMember(ctx context.Context, groupID string, userID core.UserID) (core.Member, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` WHERE m.group_id = ? AND m.user_id = ?`, groupID, string(userID))
	m, err := scanMember(row)
	if err != nil {
		return core.Member{}, wrapRead("get member", err)
	}
	return m, nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context, groupID string) ([]core.Member, error) {
	return listMembers(ctx, r.db, groupID)
}

func (r *SQLiteRepository) SetMemberTags(ctx context.Context, groupID string, userID core.UserID, tags []string) error {
	encoded, err := encodeTags(tags)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE group_members SET tags = ? WHERE group_id = ? AND user_id = ?`,
		encoded, groupID, string(userID))
	if err != nil {
		return fmt.Errorf("set member tags: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("set member tags: %w", ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, rec core.ExpenseRecord) error {
	prefs, err := encodeTags(rec.PreferenceTags)
	if err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO expenses (id, group_id, payer_id, description, total, split_type, preference_tags, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.GroupID, string(rec.PayerID), rec.Description, rec.Total.Exact(),
			string(rec.Policy), prefs, rec.CreatedAt.UTC().Format(timeLayout)); err != nil {
			return wrapWrite("create expense", err)
		}
		for i, s := range rec.Shares {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO expense_shares (expense_id, position, user_id, amount) VALUES (?, ?, ?, ?)`,
				rec.ID, i, string(s.UserID), s.Amount.Exact()); err != nil {
				return wrapWrite("create expense share", err)
			}
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE expense_groups SET ledger_version = ledger_version + 1 WHERE id = ?`, rec.GroupID)
		if err != nil {
			return fmt.Errorf("bump ledger version: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("bump ledger version: %w", ErrNotFound)
		}
		return nil
	})
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, groupID, expenseID string) (core.ExpenseRecord, error) {
	records, err := listExpenses(ctx, r.db, `WHERE group_id = ? AND id = ?`, groupID, expenseID)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	if len(records) == 0 {
		return core.ExpenseRecord{}, fmt.Errorf("get expense %s: %w", expenseID, ErrNotFound)
	}
	return records[0], nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, groupID string) ([]core.ExpenseRecord, error) {
	return listExpenses(ctx, r.db, `WHERE group_id = ?`, groupID)
}

func (r *SQLiteRepository) GroupLedger(ctx context.Context, groupID string) (Ledger, error) {
	var ledger Ledger
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var admin string
		err := tx.QueryRowContext(ctx,
			`SELECT id, name, admin_id, ledger_version FROM expense_groups WHERE id = ?`, groupID).
			Scan(&ledger.Group.ID, &ledger.Group.Name, &admin, &ledger.Version)
		if err != nil {
			return wrapRead("get group", err)
		}
		ledger.Group.AdminID = core.UserID(admin)

		if ledger.Members, err = listMembers(ctx, tx, groupID); err != nil {
			return err
		}
		ledger.Records, err = listExpenses(ctx, tx, `WHERE group_id = ?`, groupID)
		return err
	})
	if err != nil {
		return Ledger{}, err
	}
	return ledger, nil
}

func (r *SQLiteRepository) LedgerVersion(ctx context.Context, groupID string) (int64, error) {
	var v int64
	err := r.db.QueryRowContext(ctx,
		`SELECT ledger_version FROM expense_groups WHERE id = ?`, groupID).Scan(&v)
	if err != nil {
		return 0, wrapRead("get ledger version", err)
	}
	return v, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func listMembers(ctx context.Context, q queryer, groupID string) ([]core.Member, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+memberColumns+` WHERE m.group_id = ? ORDER BY m.seq`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanMember(row rowScanner) (core.Member, error) {
	var m core.Member
	var userID, role, tags string
	if err := row.Scan(&m.GroupID, &userID, &m.Name, &role, &tags); err != nil {
		return core.Member{}, err
	}
	m.UserID = core.UserID(userID)
	m.Role = core.Role(role)
	decoded, err := decodeTags(tags)
	if err != nil {
		return core.Member{}, err
	}
	m.Tags = decoded
	return m, nil
}

func listExpenses(ctx context.Context, q queryer, where string, args ...any) ([]core.ExpenseRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, group_id, payer_id, description, total, split_type, preference_tags, created_at
		FROM expenses `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	var records []core.ExpenseRecord
	index := make(map[string]int)
	for rows.Next() {
		var (
			rec                             core.ExpenseRecord
			payer, total, policy, prefs, at string
		)
		if err := rows.Scan(&rec.ID, &rec.GroupID, &payer, &rec.Description, &total, &policy, &prefs, &at); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		rec.PayerID = core.UserID(payer)
		rec.Policy = core.PolicyKind(policy)
		if rec.Total, err = core.ParseMoney(total); err != nil {
			rows.Close()
			return nil, fmt.Errorf("expense %s total: %w", rec.ID, err)
		}
		if rec.PreferenceTags, err = decodeTags(prefs); err != nil {
			rows.Close()
			return nil, err
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, at); err != nil {
			rows.Close()
			return nil, fmt.Errorf("expense %s created_at: %w", rec.ID, err)
		}
		index[rec.ID] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(records) == 0 {
		return records, nil
	}

	// Shares are loaded in one pass; the connection is free again by now.
	shareRows, err := q.QueryContext(ctx, `
		SELECT s.expense_id, s.user_id, s.amount
		FROM expense_shares s
		JOIN expenses e ON e.id = s.expense_id
		`+prefixColumns(where)+`
		ORDER BY e.seq, s.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("list expense shares: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var expenseID, userID, amount string
		if err := shareRows.Scan(&expenseID, &userID, &amount); err != nil {
			return nil, fmt.Errorf("scan expense share: %w", err)
		}
		i, ok := index[expenseID]
		if !ok {
			continue
		}
		m, err := core.ParseMoney(amount)
		if err != nil {
			return nil, fmt.Errorf("expense %s share: %w", expenseID, err)
		}
		records[i].Shares = append(records[i].Shares, core.ExpenseShare{
			ExpenseID: expenseID,
			UserID:    core.UserID(userID),
			Amount:    m,
		})
	}
	return records, shareRows.Err()
}

// prefixColumns qualifies the expense filter for the shares join.
func prefixColumns(where string) string {
	switch where {
	case `WHERE group_id = ?`:
		return `WHERE e.group_id = ?`
	case `WHERE group_id = ? AND id = ?`:
		return `WHERE e.group_id = ? AND e.id = ?`
	default:
		return where
	}
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(s string) ([]string, error) {
	var tags []string
	if s == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return tags, nil
}

func wrapRead(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func wrapWrite(op string, err error) error {
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConstraint(err error, codes ...int) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	for _, c := range codes {
		if se.Code() == c {
			return true
		}
	}
	return false
}
