package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phone = "5511999998888"

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	items, err := s.ListItems(ctx, phone)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, s.AddItem(ctx, phone, Item{Product: "TOMATE", Quantity: 0.45, Units: 3, Price: 4}))
	require.NoError(t, s.AddItem(ctx, phone, Item{Product: "ARROZ", Quantity: 2, Price: 25.9}))
	require.NoError(t, s.AddItem(ctx, phone, Item{Product: "FEIJAO", Quantity: 1, Price: 8.5, Note: "carioca"}))

	items, err = s.ListItems(ctx, phone)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "TOMATE", items[0].Product)
	assert.Equal(t, 3, items[0].Units)

	require.NoError(t, s.RemoveItem(ctx, phone, 2))
	items, err = s.ListItems(ctx, phone)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "FEIJAO", items[1].Product)
	assert.Equal(t, "carioca", items[1].Note)

	for _, idx := range []int{0, 3, -1} {
		err := s.RemoveItem(ctx, phone, idx)
		assert.ErrorIs(t, err, domain.ErrInvalidItemIndex, "index %d", idx)
	}

	// Other customers are unaffected.
	other, err := s.ListItems(ctx, "5511000000000")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, s.Clear(ctx, phone))
	require.NoError(t, s.Clear(ctx, phone))
	items, err = s.ListItems(ctx, phone)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func exerciseConcurrentAdds(t *testing.T, s Store) {
	ctx := context.Background()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AddItem(ctx, "concurrent", Item{Product: fmt.Sprintf("P%d", i), Quantity: 1, Price: 1}))
		}(i)
	}
	wg.Wait()

	items, err := s.ListItems(ctx, "concurrent")
	require.NoError(t, err)
	assert.Len(t, items, n)
}

func exerciseMarker(t *testing.T, m OrderMarker) {
	ctx := context.Background()
	sent, err := m.OrderSent(ctx, phone)
	require.NoError(t, err)
	assert.False(t, sent)

	require.NoError(t, m.MarkOrderSent(ctx, phone))
	require.NoError(t, m.MarkOrderSent(ctx, phone))

	sent, err = m.OrderSent(ctx, phone)
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
	exerciseConcurrentAdds(t, NewMemoryStore())
	exerciseMarker(t, NewMemoryStore())
}

func TestItem_Subtotal(t *testing.T) {
	it := Item{Quantity: 0.45, Units: 3, Price: 4}
	assert.True(t, it.WeightTracked())
	assert.Equal(t, "1.8", it.Subtotal().String())

	total := Total([]Item{it, {Quantity: 2, Price: 3.5}})
	assert.Equal(t, "8.80", total.StringFixed(2))
}

func TestKeyedMutex(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(ctx, "a")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, km.size())
}

func TestKeyedMutex_IndependentKeysAndCancel(t *testing.T) {
	km := NewKeyedMutex()

	unlockA, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)

	unlockB, err := km.Lock(context.Background(), "b")
	require.NoError(t, err)
	unlockB()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlockA()
	unlockA()
	assert.Zero(t, km.size())
}

func TestRedisStore(t *testing.T) {
	testutil.SkipIfShort(t)
	addr := testutil.StartRedis(t)

	rdb, err := cache.Dial(context.Background(), cache.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer rdb.Close()

	store := NewRedisStore(rdb, nil, RedisConfig{Prefix: "test:", TTL: time.Hour})
	exerciseStore(t, store)
	exerciseConcurrentAdds(t, store)
	exerciseMarker(t, store)

	ttl, err := rdb.TTL(context.Background(), "test:cart:concurrent").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	locker := NewRedisLocker(rdb, "test:", time.Second)
	unlock, err := locker.Lock(context.Background(), phone)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, phone)
	assert.Error(t, err)

	unlock()
	unlock2, err := locker.Lock(context.Background(), phone)
	require.NoError(t, err)
	unlock2()

	long := NewRedisLocker(rdb, "test:", 50*time.Second)
	unlock3, err := long.Lock(context.Background(), phone)
	require.NoError(t, err)
	ttl, err = rdb.PTTL(context.Background(), "test:lock:"+phone).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 30*time.Second)
	unlock3()
}
