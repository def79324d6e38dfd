package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_shop/internal/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT id, name, description, price, stock, is_active, created_at
	          FROM products WHERE id = $1`

	p := &domain.Product{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.IsActive,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}

	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT id, name, description, price, stock, is_active, created_at
	          FROM products ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Stock,
			&p.IsActive,
			&p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (name, description, price, stock, is_active, created_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())
	          RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		p.IsActive,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetStock(ctx context.Context, id int64, stock int) error {
	result, err := s.db.ExecContext(ctx, `UPDATE products SET stock = $2 WHERE id = $1`, id, stock)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set stock rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *PostgresStore) AdjustStock(ctx context.Context, id int64, delta int) error {
	// The WHERE clause makes the non-negative check and the write a single
	// statement, so a racing adjustment can never drive stock below zero.
	query := `UPDATE products SET stock = stock + $2 WHERE id = $1 AND stock + $2 >= 0`

	result, err := s.db.ExecContext(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust stock rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetProduct(ctx, id); errors.Is(getErr, ErrProductNotFound) {
			return ErrProductNotFound
		}
		return ErrStockConflict
	}
	return nil
}
