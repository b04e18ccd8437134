package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/marketplace-fulfillment/internal/domain"
)

type memoryStore struct {
	carts map[string]*Cart
}

func newMemoryStore() *memoryStore {
	return &memoryStore{carts: map[string]*Cart{}}
}

func (m *memoryStore) Get(ctx context.Context, owner string) (*Cart, error) {
	c, ok := m.carts[owner]
	if !ok {
		return &Cart{Owner: owner}, nil
	}
	cp := *c
	cp.Rows = append([]domain.CartRow(nil), c.Rows...)
	return &cp, nil
}

func (m *memoryStore) Update(ctx context.Context, owner string, fn func(c *Cart) error) (*Cart, error) {
	c, _ := m.Get(ctx, owner)
	if err := fn(c); err != nil {
		return nil, err
	}
	m.carts[owner] = c
	return c, nil
}

func (m *memoryStore) Clear(ctx context.Context, owner string) error {
	delete(m.carts, owner)
	return nil
}

type fakeProducts map[string]*domain.Product

func (f fakeProducts) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	return f[productID], nil
}

func newTestService() (*Service, *memoryStore) {
	store := newMemoryStore()
	products := fakeProducts{
		"mug":  {ID: "mug", SellerID: "s1", Name: "Mug", Stock: 3, Price: decimal.RequireFromString("4.50")},
		"tea":  {ID: "tea", SellerID: "s2", Name: "Tea", Stock: 10, Price: decimal.RequireFromString("2")},
		"none": {ID: "none", SellerID: "s2", Name: "Sold out", Stock: 0, Price: decimal.RequireFromString("1")},
	}
	return NewService(store, products), store
}

func TestOwner(t *testing.T) {
	owner, err := Owner("u1", "sess")
	require.NoError(t, err)
	assert.Equal(t, "user:u1", owner)

	owner, err = Owner("", "sess")
	require.NoError(t, err)
	assert.Equal(t, "session:sess", owner)

	_, err = Owner("", "")
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestService_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("adds and merges rows", func(t *testing.T) {
		svc, _ := newTestService()

		_, err := svc.Add(ctx, "user:b1", "b1", "mug", 1)
		require.NoError(t, err)
		_, err = svc.Add(ctx, "user:b1", "b1", "tea", 2)
		require.NoError(t, err)
		c, err := svc.Add(ctx, "user:b1", "b1", "mug", 2)
		require.NoError(t, err)

		require.Len(t, c.Rows, 2)
		assert.Equal(t, 3, c.Rows[0].Quantity)
		assert.Equal(t, "s1", c.Rows[0].SellerID)
		assert.Equal(t, "17.5", c.Subtotal().String())
		assert.Equal(t, 5, c.Count())
	})

	t.Run("cannot exceed stock", func(t *testing.T) {
		svc, _ := newTestService()

		_, err := svc.Add(ctx, "user:b1", "b1", "mug", 3)
		require.NoError(t, err)
		_, err = svc.Add(ctx, "user:b1", "b1", "mug", 1)

		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	})

	t.Run("sold out", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Add(ctx, "session:x", "", "none", 1)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	})

	t.Run("own product", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Add(ctx, "user:s1", "s1", "mug", 1)
		assert.ErrorIs(t, err, domain.ErrOwnProduct)
	})

	t.Run("unknown product", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.Add(ctx, "user:b1", "b1", "ghost", 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("guest cart is separate", func(t *testing.T) {
		svc, store := newTestService()

		_, err := svc.Add(ctx, "session:abc", "", "tea", 1)
		require.NoError(t, err)

		assert.Contains(t, store.carts, "session:abc")
		assert.NotContains(t, store.carts, "user:b1")
	})
}

func TestService_SetQuantityAndRemove(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.Add(ctx, "user:b1", "b1", "tea", 1)
	require.NoError(t, err)

	c, err := svc.SetQuantity(ctx, "user:b1", "tea", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Rows[0].Quantity)

	_, err = svc.SetQuantity(ctx, "user:b1", "tea", 11)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = svc.SetQuantity(ctx, "user:b1", "mug", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	c, err = svc.SetQuantity(ctx, "user:b1", "tea", 0)
	require.NoError(t, err)
	assert.Empty(t, c.Rows)

	_, err = svc.Remove(ctx, "user:b1", "tea")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Clear(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	_, err := svc.Add(ctx, "user:b1", "b1", "tea", 1)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "user:b1"))

	assert.Empty(t, store.carts)
	c, err := svc.Get(ctx, "user:b1")
	require.NoError(t, err)
	assert.Empty(t, c.Rows)
}
