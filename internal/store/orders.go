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

func (s *Store) InsertOrder(ctx context.Context, o *domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO orders (order_id,user_id,phone_number,country_code,service_id,service_name,status,price,received_content,created_at,expires_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
`, o.OrderID, o.UserID, o.PhoneNumber, o.CountryCode, o.ServiceID, o.ServiceName, string(o.Status), o.Price.String(), nullStr(o.ReceivedContent), fmtTime(o.CreatedAt), fmtTime(o.ExpiresAt))
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, orderSelect+` WHERE order_id=?`, orderID)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// ListActiveOrders returns every order still in active status, oldest first.
// No expiry filter here: the lifecycle sweep partitions by expires_at itself
// so that already-expired orders are never silently dropped from the scan.
func (s *Store) ListActiveOrders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, orderSelect+` WHERE status=? ORDER BY created_at ASC`, string(domain.OrderStatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ListOrders returns the most recent orders across all users and statuses.
func (s *Store) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, orderSelect+` ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *Store) ListOrdersForUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, orderSelect+` WHERE user_id=? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *Store) ListActiveOrdersForUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, orderSelect+` WHERE user_id=? AND status=? ORDER BY created_at DESC`, userID, string(domain.OrderStatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// UpdateStatus moves an order from active into the given status and stamps
// completed_at. The WHERE clause is the compare-and-set that keeps terminal
// statuses immutable: once an order left active, no sweep can touch it again.
func (s *Store) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("update status: unknown status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE orders SET status=?, completed_at=?
WHERE order_id=? AND status=?
`, string(status), fmtTime(time.Now()), orderID, string(domain.OrderStatusActive))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n == 0 {
		return ErrNoTransition
	}
	return nil
}

// UpdateReceivedContent records the received code and completes the order in
// one statement, guarded the same way as UpdateStatus.
func (s *Store) UpdateReceivedContent(ctx context.Context, orderID string, content string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE orders SET received_content=?, status=?, completed_at=?
WHERE order_id=? AND status=?
`, content, string(domain.OrderStatusCompleted), fmtTime(time.Now()), orderID, string(domain.OrderStatusActive))
	if err != nil {
		return fmt.Errorf("update received content: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update received content: %w", err)
	}
	if n == 0 {
		return ErrNoTransition
	}
	return nil
}

const orderSelect = `
SELECT order_id,user_id,phone_number,country_code,service_id,service_name,status,price,received_content,created_at,expires_at,completed_at
FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status, price, createdAt, expiresAt string
	var received, completedAt sql.NullString
	if err := row.Scan(&o.OrderID, &o.UserID, &o.PhoneNumber, &o.CountryCode, &o.ServiceID, &o.ServiceName, &status, &price, &received, &createdAt, &expiresAt, &completedAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.Price, _ = decimal.NewFromString(price)
	if received.Valid {
		o.ReceivedContent = received.String
	}
	o.CreatedAt = parseTime(createdAt)
	o.ExpiresAt = parseTime(expiresAt)
	if completedAt.Valid && completedAt.String != "" {
		t := parseTime(completedAt.String)
		o.CompletedAt = &t
	}
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]*domain.Order, error) {
	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
