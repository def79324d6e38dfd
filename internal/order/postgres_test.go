package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fjod/go_shop/internal/catalog"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/inventory"
	"github.com/fjod/go_shop/internal/postgres"
)

func setupTestDB(t *testing.T) (*PostgresRepository, *catalog.PostgresStore, func()) {
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("testuser"),
		pgcontainer.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := postgres.Connect(&postgres.Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	})
	require.NoError(t, err)

	require.NoError(t, postgres.RunMigrations(db, "../../migrations"))

	cleanup := func() {
		db.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return NewPostgresRepository(db, inventory.NewLedger()), catalog.NewPostgresStore(db), cleanup
}

func seedPgProduct(t *testing.T, store *catalog.PostgresStore, name, price string, stock int) int64 {
	t.Helper()
	p := &domain.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, store.CreateProduct(context.Background(), p))
	return p.ID
}

func newPgOrder(productID int64, quantity int) *domain.Order {
	price := decimal.RequireFromString("10.00")
	qty := decimal.NewFromInt(int64(quantity))
	subtotal := price.Mul(qty)
	return &domain.Order{
		ID:              uuid.New(),
		UserID:          "user-123",
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		Subtotal:        subtotal,
		Tax:             subtotal.Mul(decimal.RequireFromString("0.10")).Round(2),
		Shipping:        decimal.RequireFromString("10.00"),
		Total:           subtotal.Add(subtotal.Mul(decimal.RequireFromString("0.10")).Round(2)).Add(decimal.RequireFromString("10.00")),
		ShippingAddress: "1 Main St",
		Items: []domain.OrderItem{
			{
				ProductID:   productID,
				ProductName: "Widget",
				Quantity:    quantity,
				UnitPrice:   price,
				Subtotal:    subtotal,
			},
		},
	}
}

func pgStock(t *testing.T, store *catalog.PostgresStore, id int64) int {
	t.Helper()
	p, err := store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestPostgresCreateOrder_RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	productID := seedPgProduct(t, store, "Widget", "10.00", 10)
	o := newPgOrder(productID, 3)

	require.NoError(t, repo.CreateOrder(ctx, o))
	assert.Equal(t, 7, pgStock(t, store, productID))

	fetched, err := repo.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, fetched.ID)
	assert.Equal(t, o.UserID, fetched.UserID)
	assert.Equal(t, domain.OrderStatusPending, fetched.Status)
	assert.True(t, o.Total.Equal(fetched.Total), "want total %s, got %s", o.Total, fetched.Total)
	require.Len(t, fetched.Items, 1)
	assert.Equal(t, productID, fetched.Items[0].ProductID)
	assert.Equal(t, 3, fetched.Items[0].Quantity)
	assert.True(t, fetched.Items[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
}

func TestPostgresCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	plentyID := seedPgProduct(t, store, "Plenty", "1.00", 100)
	scarceID := seedPgProduct(t, store, "Scarce", "1.00", 2)

	o := newPgOrder(plentyID, 5)
	o.Items = append(o.Items, domain.OrderItem{
		ProductID:   scarceID,
		ProductName: "Scarce",
		Quantity:    3,
		UnitPrice:   decimal.RequireFromString("1.00"),
		Subtotal:    decimal.RequireFromString("3.00"),
	})

	err := repo.CreateOrder(ctx, o)
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, scarceID, stockErr.ProductID)

	// The whole transaction rolled back: no order row, no stock movement
	_, err = repo.GetOrder(ctx, o.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 100, pgStock(t, store, plentyID))
	assert.Equal(t, 2, pgStock(t, store, scarceID))
}

func TestPostgresConcurrentCreate_NeverOversells(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	productID := seedPgProduct(t, store, "Widget", "10.00", 1)

	const buyers = 10
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.CreateOrder(ctx, newPgOrder(productID, 1))
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		if err == nil {
			wins++
		} else {
			var stockErr *inventory.InsufficientStockError
			require.ErrorAs(t, err, &stockErr)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 0, pgStock(t, store, productID))
}

func TestPostgresCancelOrder_ReleasesStockOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	productID := seedPgProduct(t, store, "Widget", "10.00", 10)
	o := newPgOrder(productID, 4)
	require.NoError(t, repo.CreateOrder(ctx, o))
	require.Equal(t, 6, pgStock(t, store, productID))

	cancelled, err := repo.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, pgStock(t, store, productID))

	// Idempotent: a repeated cancel does not release again
	_, err = repo.CancelOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, pgStock(t, store, productID))
}

func TestPostgresUpdateStatus_ValidatesAgainstStoredRow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	productID := seedPgProduct(t, store, "Widget", "10.00", 10)
	o := newPgOrder(productID, 1)
	require.NoError(t, repo.CreateOrder(ctx, o))

	_, err := repo.UpdateStatus(ctx, o.ID, domain.OrderStatusDelivered)
	var transitionErr *InvalidTransitionError
	require.ErrorAs(t, err, &transitionErr)

	updated, err := repo.UpdateStatus(ctx, o.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, updated.Status)
}

func TestPostgresDeleteOrder_RemovesItemsAndReleases(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	productID := seedPgProduct(t, store, "Widget", "10.00", 10)
	o := newPgOrder(productID, 2)
	require.NoError(t, repo.CreateOrder(ctx, o))

	require.NoError(t, repo.DeleteOrder(ctx, o.ID))
	assert.Equal(t, 10, pgStock(t, store, productID))

	_, err := repo.GetOrder(ctx, o.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPostgresOutbox_EventsPerMutation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	repo, store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	productID := seedPgProduct(t, store, "Widget", "10.00", 10)
	o := newPgOrder(productID, 1)
	require.NoError(t, repo.CreateOrder(ctx, o))
	_, err := repo.CancelOrder(ctx, o.ID)
	require.NoError(t, err)

	events, err := repo.UnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventOrderCreated, events[0].EventType)
	assert.Equal(t, EventOrderCancelled, events[1].EventType)

	require.NoError(t, repo.MarkEventProcessed(ctx, events[0].ID))
	remaining, err := repo.UnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}
