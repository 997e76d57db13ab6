package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smsbot/gosms/internal/domain"
)

// SaveUser upserts the user row and seeds the monitoring cursor. The API
// credential is not stored here (secretstore owns it).
func (s *Store) SaveUser(ctx context.Context, u *domain.User) error {
	now := fmtTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (user_id,username,first_name,balance,is_active,created_at,updated_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(user_id) DO UPDATE SET
  username=excluded.username,
  first_name=excluded.first_name,
  balance=excluded.balance,
  is_active=excluded.is_active,
  updated_at=excluded.updated_at
`, u.UserID, u.Username, u.FirstName, u.Balance.String(), boolInt(u.IsActive), now, now)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO monitoring_status (user_id, is_monitoring, notification_sent) VALUES (?,1,0)`, u.UserID)
	if err != nil {
		return fmt.Errorf("seed monitoring cursor: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT u.user_id, u.username, u.first_name, u.balance, u.is_active,
       COALESCE(m.is_monitoring, 1), u.created_at, u.updated_at
FROM users u
LEFT JOIN monitoring_status m ON m.user_id = u.user_id
WHERE u.user_id=? AND u.is_active=1
`, userID)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// ListMonitoredUsers returns every active user participating in availability
// monitoring, together with the monitoring flag.
func (s *Store) ListMonitoredUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT u.user_id, u.username, u.first_name, u.balance, u.is_active,
       COALESCE(m.is_monitoring, 1), u.created_at, u.updated_at
FROM users u
LEFT JOIN monitoring_status m ON m.user_id = u.user_id
WHERE u.is_active=1 AND COALESCE(m.is_monitoring, 1)=1
ORDER BY u.user_id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateBalance(ctx context.Context, userID int64, balance decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE users SET balance=?, updated_at=? WHERE user_id=?
`, balance.String(), fmtTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	return nil
}

// SetMonitoring toggles a user's participation in the availability sweep.
func (s *Store) SetMonitoring(ctx context.Context, userID int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE monitoring_status SET is_monitoring=? WHERE user_id=?
`, boolInt(enabled), userID)
	if err != nil {
		return fmt.Errorf("set monitoring: %w", err)
	}
	return nil
}

// UpdateMonitoringCursor records the sweep cursor for a user. The
// notification_sent flag is scoped to the current availability window: the
// availability sweep writes false the moment stock drops back to zero.
func (s *Store) UpdateMonitoringCursor(ctx context.Context, userID int64, lastCheck time.Time, notificationSent bool) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE monitoring_status SET last_check=?, notification_sent=? WHERE user_id=?
`, fmtTime(lastCheck), boolInt(notificationSent), userID)
	if err != nil {
		return fmt.Errorf("update monitoring cursor: %w", err)
	}
	return nil
}

func (s *Store) GetMonitoringCursor(ctx context.Context, userID int64) (*domain.MonitoringCursor, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT user_id, last_check, notification_sent FROM monitoring_status WHERE user_id=?
`, userID)
	var c domain.MonitoringCursor
	var lastCheck sql.NullString
	var sent int
	if err := row.Scan(&c.UserID, &lastCheck, &sent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastCheck.Valid && lastCheck.String != "" {
		c.LastCheck = parseTime(lastCheck.String)
	}
	c.NotificationSent = sent != 0
	return &c, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	var balance, createdAt, updatedAt string
	var username, firstName sql.NullString
	var isActive, isMonitoring int
	if err := row.Scan(&u.UserID, &username, &firstName, &balance, &isActive, &isMonitoring, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.Username = username.String
	u.FirstName = firstName.String
	u.Balance, _ = decimal.NewFromString(balance)
	u.IsActive = isActive != 0
	u.IsMonitoring = isMonitoring != 0
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
