package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopcore/orderpay/internal/types/order"
	"github.com/shopcore/orderpay/internal/types/payment"
	"github.com/shopcore/orderpay/internal/types/user"
	"github.com/shopspring/decimal"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &PostgresStorage{db: db}

	if err := s.db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            login TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            is_admin BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS orders (
            id SERIAL PRIMARY KEY,
            user_id INT NOT NULL REFERENCES users(id),
            status TEXT NOT NULL,
            payment_status TEXT NOT NULL,
            items_total NUMERIC(12,2) NOT NULL,
            tax NUMERIC(12,2) NOT NULL,
            shipping_fee NUMERIC(12,2) NOT NULL,
            grand_total NUMERIC(12,2) NOT NULL,
            hidden_for_user BOOLEAN NOT NULL DEFAULT FALSE,
            hidden_for_admin BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL,
            paid_at TIMESTAMPTZ
        )`,
		`CREATE TABLE IF NOT EXISTS order_items (
            id SERIAL PRIMARY KEY,
            order_id INT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
            product_id BIGINT NOT NULL,
            title TEXT NOT NULL,
            image_url TEXT NOT NULL DEFAULT '',
            unit_price NUMERIC(12,2) NOT NULL,
            quantity INT NOT NULL CHECK (quantity > 0)
        )`,
		`CREATE TABLE IF NOT EXISTS shipping_snapshots (
            order_id INT PRIMARY KEY REFERENCES orders(id) ON DELETE CASCADE,
            full_name TEXT NOT NULL,
            address_line1 TEXT NOT NULL,
            address_line2 TEXT NOT NULL DEFAULT '',
            city TEXT NOT NULL,
            state TEXT NOT NULL,
            country TEXT NOT NULL,
            postal_code TEXT NOT NULL,
            phone TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS payment_records (
            id SERIAL PRIMARY KEY,
            order_id INT UNIQUE NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
            method TEXT NOT NULL,
            status TEXT NOT NULL,
            intent_id TEXT NOT NULL DEFAULT '',
            client_secret TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        )`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) CreateUser(ctx context.Context, u *user.User) error {
	q := `INSERT INTO users (login,password_hash,is_admin,created_at) VALUES($1,$2,$3,$4) RETURNING id`
	return s.db.QueryRowContext(ctx, q, u.Login, u.PasswordHash, u.IsAdmin, u.CreatedAt).Scan(&u.ID)
}

func (s *PostgresStorage) FindByLogin(ctx context.Context, login string) (*user.User, error) {
	u := &user.User{}
	q := `SELECT id,login,password_hash,is_admin,created_at FROM users WHERE login=$1`
	if err := s.db.QueryRowContext(ctx, q, login).
		Scan(&u.ID, &u.Login, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateOrder writes the order, its items, the shipping snapshot and the
// initial Pending payment record as one transaction. Readers never see a
// partially populated order.
func (s *PostgresStorage) CreateOrder(ctx context.Context, o *order.Order, items []order.Item, ship *order.ShippingSnapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const qOrder = `
        INSERT INTO orders (user_id,status,payment_status,items_total,tax,shipping_fee,grand_total,created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`
	if err := tx.QueryRowContext(ctx, qOrder,
		o.UserID, o.Status, o.PaymentStatus,
		o.ItemsTotal, o.Tax, o.ShippingFee, o.GrandTotal, o.CreatedAt,
	).Scan(&o.ID); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	const qItem = `
        INSERT INTO order_items (order_id,product_id,title,image_url,unit_price,quantity)
        VALUES ($1,$2,$3,$4,$5,$6)`
	for i := range items {
		items[i].OrderID = o.ID
		if _, err := tx.ExecContext(ctx, qItem,
			o.ID, items[i].ProductID, items[i].Title, items[i].ImageURL,
			items[i].UnitPrice, items[i].Quantity,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	const qShip = `
        INSERT INTO shipping_snapshots (order_id,full_name,address_line1,address_line2,city,state,country,postal_code,phone)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	ship.OrderID = o.ID
	if _, err := tx.ExecContext(ctx, qShip,
		o.ID, ship.FullName, ship.AddressLine1, ship.AddressLine2,
		ship.City, ship.State, ship.Country, ship.PostalCode, ship.Phone,
	); err != nil {
		return fmt.Errorf("insert shipping snapshot: %w", err)
	}

	const qPayment = `
        INSERT INTO payment_records (order_id,method,status,created_at,updated_at)
        VALUES ($1,$2,$3,$4,$4)`
	if _, err := tx.ExecContext(ctx, qPayment,
		o.ID, "card", payment.StatusPending, o.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert payment record: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStorage) FindOrderByID(ctx context.Context, orderID int64) (*order.Order, error) {
	const q = `
        SELECT id, user_id, status, payment_status, items_total, tax, shipping_fee, grand_total,
               hidden_for_user, hidden_for_admin, created_at, paid_at
        FROM orders WHERE id = $1`
	var o order.Order
	var paidAt sql.NullTime
	err := s.db.QueryRowContext(ctx, q, orderID).Scan(
		&o.ID, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.ItemsTotal, &o.Tax, &o.ShippingFee, &o.GrandTotal,
		&o.HiddenForUser, &o.HiddenForAdmin, &o.CreatedAt, &paidAt,
	)
	if err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	return &o, nil
}

func (s *PostgresStorage) ListOrderItems(ctx context.Context, orderID int64) ([]order.Item, error) {
	const q = `
        SELECT id, order_id, product_id, title, image_url, unit_price, quantity
        FROM order_items WHERE order_id = $1 ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Item
	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Title, &it.ImageURL, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) GetShippingSnapshot(ctx context.Context, orderID int64) (*order.ShippingSnapshot, error) {
	const q = `
        SELECT order_id, full_name, address_line1, address_line2, city, state, country, postal_code, phone
        FROM shipping_snapshots WHERE order_id = $1`
	var sh order.ShippingSnapshot
	err := s.db.QueryRowContext(ctx, q, orderID).Scan(
		&sh.OrderID, &sh.FullName, &sh.AddressLine1, &sh.AddressLine2,
		&sh.City, &sh.State, &sh.Country, &sh.PostalCode, &sh.Phone,
	)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *PostgresStorage) scanOrders(rows *sql.Rows) ([]order.Order, error) {
	var out []order.Order
	for rows.Next() {
		var o order.Order
		var paidAt sql.NullTime
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.Status, &o.PaymentStatus,
			&o.ItemsTotal, &o.Tax, &o.ShippingFee, &o.GrandTotal,
			&o.HiddenForUser, &o.HiddenForAdmin, &o.CreatedAt, &paidAt,
		); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			t := paidAt.Time
			o.PaidAt = &t
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) ListOrdersByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	const q = `
        SELECT id, user_id, status, payment_status, items_total, tax, shipping_fee, grand_total,
               hidden_for_user, hidden_for_admin, created_at, paid_at
        FROM orders
        WHERE user_id = $1 AND NOT hidden_for_user
        ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanOrders(rows)
}

func (s *PostgresStorage) ListAllOrders(ctx context.Context) ([]order.Order, error) {
	const q = `
        SELECT id, user_id, status, payment_status, items_total, tax, shipping_fee, grand_total,
               hidden_for_user, hidden_for_admin, created_at, paid_at
        FROM orders
        WHERE NOT hidden_for_admin
        ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanOrders(rows)
}

// OrderStats aggregates in SQL, never by loading all rows.
func (s *PostgresStorage) OrderStats(ctx context.Context) (*order.Stats, error) {
	stats := &order.Stats{
		CountByStatus: make(map[order.OrderStatus]int64),
		PaidRevenue:   decimal.Zero,
	}

	const qCounts = `
        SELECT status, COUNT(*) FROM orders
        WHERE NOT hidden_for_admin GROUP BY status`
	rows, err := s.db.QueryContext(ctx, qCounts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st order.OrderStatus
		var n int64
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		stats.CountByStatus[st] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const qRevenue = `
        SELECT COALESCE(SUM(grand_total),0) FROM orders
        WHERE paid_at IS NOT NULL AND NOT hidden_for_admin`
	if err := s.db.QueryRowContext(ctx, qRevenue).Scan(&stats.PaidRevenue); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *PostgresStorage) SetOrderStatus(ctx context.Context, orderID int64, status order.OrderStatus) error {
	const q = `UPDATE orders SET status=$1 WHERE id=$2`
	res, err := s.db.ExecContext(ctx, q, status, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStorage) UpdateOrderStatusIf(ctx context.Context, orderID int64, from, to order.OrderStatus) (bool, error) {
	const q = `UPDATE orders SET status=$1 WHERE id=$2 AND status=$3`
	res, err := s.db.ExecContext(ctx, q, to, orderID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresStorage) HideOrderForUser(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE orders SET hidden_for_user=TRUE WHERE id=$1`, orderID)
	return err
}

func (s *PostgresStorage) HideOrderForAdmin(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE orders SET hidden_for_admin=TRUE WHERE id=$1`, orderID)
	return err
}

func (s *PostgresStorage) DeleteOrder(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id=$1`, orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkOrderPaid flips the payment record and the order together. paid_at is
// set only once; a second call leaves the original timestamp.
func (s *PostgresStorage) MarkOrderPaid(ctx context.Context, orderID int64, paidAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const qPayment = `
        UPDATE payment_records SET status=$1, updated_at=$2 WHERE order_id=$3`
	if _, err := tx.ExecContext(ctx, qPayment, payment.StatusPaid, paidAt, orderID); err != nil {
		return fmt.Errorf("update payment record: %w", err)
	}

	const qOrder = `
        UPDATE orders SET payment_status=$1, paid_at=COALESCE(paid_at,$2) WHERE id=$3`
	if _, err := tx.ExecContext(ctx, qOrder, payment.StatusPaid, paidAt, orderID); err != nil {
		return fmt.Errorf("update order payment status: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStorage) CreatePaymentRecord(ctx context.Context, p *payment.Record) error {
	const q = `
        INSERT INTO payment_records (order_id,method,status,intent_id,client_secret,created_at,updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`
	return s.db.QueryRowContext(ctx, q,
		p.OrderID, p.Method, p.Status, p.IntentID, p.ClientSecret, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
}

func (s *PostgresStorage) FindPaymentByOrder(ctx context.Context, orderID int64) (*payment.Record, error) {
	const q = `
        SELECT id, order_id, method, status, intent_id, client_secret, created_at, updated_at
        FROM payment_records WHERE order_id = $1`
	var p payment.Record
	err := s.db.QueryRowContext(ctx, q, orderID).Scan(
		&p.ID, &p.OrderID, &p.Method, &p.Status, &p.IntentID, &p.ClientSecret, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStorage) AttachIntent(ctx context.Context, orderID int64, intentID, clientSecret string) error {
	const q = `
        UPDATE payment_records
        SET intent_id=$1, client_secret=$2, status=$3, updated_at=$4
        WHERE order_id=$5`
	res, err := s.db.ExecContext(ctx, q, intentID, clientSecret, payment.StatusPending, time.Now().UTC(), orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStorage) UpdatePaymentStatus(ctx context.Context, orderID int64, status string) error {
	const q = `UPDATE payment_records SET status=$1, updated_at=$2 WHERE order_id=$3`
	res, err := s.db.ExecContext(ctx, q, status, time.Now().UTC(), orderID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStorage) DeletePaymentRecord(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM payment_records WHERE order_id=$1`, orderID)
	return err
}
