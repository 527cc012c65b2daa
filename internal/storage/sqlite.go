package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "soatbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) UpsertTenant(ctx context.Context, t Tenant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants(id, name) VALUES(?,?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name`,
		t.ID, t.Name,
	)
	return err
}

func (s *sqliteStore) UpsertCustomer(ctx context.Context, c Customer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO customers(id, tenant_id, name, phone) VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, phone=excluded.phone`,
		c.ID, c.TenantID, c.Name, nullStr(c.Phone),
	)
	return err
}

func (s *sqliteStore) UpsertVehicle(ctx context.Context, v Vehicle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles(id, tenant_id, customer_id, plate, expires_on, active)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   customer_id=excluded.customer_id,
		   plate=excluded.plate,
		   expires_on=excluded.expires_on,
		   active=excluded.active`,
		v.ID, v.TenantID, nullStr(v.CustomerID), v.Plate, nullDate(v.ExpiresOn), boolInt(v.Active),
	)
	return err
}

func (s *sqliteStore) GetVehicle(ctx context.Context, id string) (Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, customer_id, plate, expires_on, active
		 FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Vehicle{}, ErrNotFound
	}
	return v, err
}

func (s *sqliteStore) ListActiveVehicles(ctx context.Context) ([]Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, customer_id, plate, expires_on, active
		 FROM vehicles WHERE active = 1 ORDER BY tenant_id, plate`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteVehicle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) CreateReminderIfAbsent(ctx context.Context, r Reminder) (bool, error) {
	// The UNIQUE(vehicle_id, kind) index makes this atomic; no read-then-write
	// window even with a concurrent reconciliation pass.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(id, tenant_id, vehicle_id, kind, scheduled_on, sent)
		 VALUES(?,?,?,?,?,0)
		 ON CONFLICT(vehicle_id, kind) DO NOTHING`,
		r.ID, r.TenantID, r.VehicleID, r.Kind, r.ScheduledOn.Format(DateLayout),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) DeleteUnsentReminders(ctx context.Context, vehicleID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE vehicle_id = ? AND sent = 0`, vehicleID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) RemindersForVehicle(ctx context.Context, vehicleID string) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, vehicle_id, kind, scheduled_on, sent, sent_at, message, last_error
		 FROM reminders WHERE vehicle_id = ? ORDER BY scheduled_on, id`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DueReminders(ctx context.Context, today time.Time) ([]DueReminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.tenant_id, r.vehicle_id, r.kind, r.scheduled_on, r.sent, r.sent_at, r.message, r.last_error,
		        v.id, v.tenant_id, v.customer_id, v.plate, v.expires_on, v.active,
		        c.id, c.tenant_id, c.name, c.phone,
		        t.id, t.name
		 FROM reminders r
		 JOIN vehicles v ON v.id = r.vehicle_id
		 LEFT JOIN customers c ON c.id = v.customer_id
		 JOIN tenants t ON t.id = r.tenant_id
		 WHERE r.sent = 0 AND r.scheduled_on <= ?
		 ORDER BY r.scheduled_on, r.id`,
		today.Format(DateLayout),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DueReminder
	for rows.Next() {
		var (
			d DueReminder

			rSentAt, rMessage, rLastError sql.NullString
			vCustomerID, vExpiresOn       sql.NullString
			cID, cTenantID, cName, cPhone sql.NullString
			vActive, rSent                int
		)
		err := rows.Scan(
			&d.Reminder.ID, &d.Reminder.TenantID, &d.Reminder.VehicleID, &d.Reminder.Kind,
			&scanDate{&d.Reminder.ScheduledOn}, &rSent, &rSentAt, &rMessage, &rLastError,
			&d.Vehicle.ID, &d.Vehicle.TenantID, &vCustomerID, &d.Vehicle.Plate, &vExpiresOn, &vActive,
			&cID, &cTenantID, &cName, &cPhone,
			&d.Tenant.ID, &d.Tenant.Name,
		)
		if err != nil {
			return nil, err
		}
		d.Reminder.Sent = rSent != 0
		d.Reminder.SentAt = parseTimestamp(rSentAt.String)
		d.Reminder.Message = rMessage.String
		d.Reminder.LastError = rLastError.String
		d.Vehicle.CustomerID = vCustomerID.String
		d.Vehicle.ExpiresOn = parseDate(vExpiresOn.String)
		d.Vehicle.Active = vActive != 0
		if cID.Valid {
			d.Customer = &Customer{
				ID:       cID.String,
				TenantID: cTenantID.String,
				Name:     cName.String,
				Phone:    cPhone.String,
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *sqliteStore) RecordOutcome(ctx context.Context, reminderID string, o Outcome) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET sent = ?, sent_at = ?, message = ?, last_error = ?
		 WHERE id = ?`,
		boolInt(o.Sent), o.SentAt.Format(time.RFC3339Nano), nullStr(o.Message), nullStr(o.LastError),
		reminderID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reminders WHERE sent = 0`).Scan(&n)
	return n, err
}

func (s *sqliteStore) UpsertTemplate(ctx context.Context, t Template) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO templates(id, tenant_id, kind, body, active) VALUES(?,?,?,?,?)
		 ON CONFLICT(tenant_id, kind) DO UPDATE SET body=excluded.body, active=excluded.active`,
		t.ID, t.TenantID, t.Kind, t.Body, boolInt(t.Active),
	)
	return err
}

func (s *sqliteStore) TemplateFor(ctx context.Context, tenantID, kind string) (Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, kind, body, active
		 FROM templates WHERE tenant_id = ? AND kind = ? AND active = 1`,
		tenantID, kind)
	var (
		t      Template
		active int
	)
	err := row.Scan(&t.ID, &t.TenantID, &t.Kind, &t.Body, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return Template{}, ErrNotFound
	}
	if err != nil {
		return Template{}, err
	}
	t.Active = active != 0
	return t, nil
}

// ---- scan helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(row rowScanner) (Vehicle, error) {
	var (
		v                     Vehicle
		customerID, expiresOn sql.NullString
		active                int
	)
	err := row.Scan(&v.ID, &v.TenantID, &customerID, &v.Plate, &expiresOn, &active)
	if err != nil {
		return Vehicle{}, err
	}
	v.CustomerID = customerID.String
	v.ExpiresOn = parseDate(expiresOn.String)
	v.Active = active != 0
	return v, nil
}

func scanReminder(row rowScanner) (Reminder, error) {
	var (
		r                        Reminder
		sentAt, message, lastErr sql.NullString
		sent                     int
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.VehicleID, &r.Kind,
		&scanDate{&r.ScheduledOn}, &sent, &sentAt, &message, &lastErr)
	if err != nil {
		return Reminder{}, err
	}
	r.Sent = sent != 0
	r.SentAt = parseTimestamp(sentAt.String)
	r.Message = message.String
	r.LastError = lastErr.String
	return r, nil
}

// scanDate scans a TEXT date-only column into a time.Time.
type scanDate struct{ t *time.Time }

func (d *scanDate) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		*d.t = time.Time{}
		return nil
	case string:
		*d.t = parseDate(x)
		return nil
	case []byte:
		*d.t = parseDate(string(x))
		return nil
	default:
		return fmt.Errorf("unsupported date type %T", src)
	}
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(DateLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
