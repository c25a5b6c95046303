package repository

import (
	"context"
	"errors"
	"fmt"

	"love-sync-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderRepository handles database operations for payment orders
type OrderRepository struct {
	db *pgxpool.Pool
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, purpose, target_id, amount, currency, status, payment_id, created_at`

func scanOrder(row pgx.Row) (*models.PaymentOrder, error) {
	var o models.PaymentOrder
	err := row.Scan(&o.ID, &o.Purpose, &o.TargetID, &o.Amount, &o.Currency, &o.Status, &o.PaymentID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create stores a new order
func (r *OrderRepository) Create(ctx context.Context, order *models.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		order.ID, order.Purpose, order.TargetID, order.Amount, order.Currency,
		order.Status, order.PaymentID, order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its gateway id
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.PaymentOrder, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// MarkPaid marks the order paid unless it already is
func (r *OrderRepository) MarkPaid(ctx context.Context, id, paymentID string) (*models.PaymentOrder, bool, error) {
	query := `
		UPDATE payment_orders SET status = $2, payment_id = $3
		WHERE id = $1 AND status = $4
		RETURNING ` + orderColumns
	o, err := scanOrder(r.db.QueryRow(ctx, query, id, models.OrderPaid, paymentID, models.OrderCreated))
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}
