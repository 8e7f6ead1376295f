package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
)

const (
	removedMarker = "__removed__"
	maxTxRetries  = 5
)

// RedisConfig configures the Redis cart store.
type RedisConfig struct {
	Prefix string
	// TTL expires an untouched cart and is refreshed on every add. Zero
	// disables expiry.
	TTL          time.Duration
	OrderSentTTL time.Duration
}

// RedisStore keeps each cart as a Redis list of JSON items at
// <prefix>cart:<phone>.
type RedisStore struct {
	client *redis.Client
	logger *observability.Logger
	config RedisConfig
}

// NewRedisStore creates a store over an open connection.
func NewRedisStore(client *redis.Client, logger *observability.Logger, config RedisConfig) *RedisStore {
	if config.Prefix == "" {
		config.Prefix = "ra:"
	}
	if config.OrderSentTTL <= 0 {
		config.OrderSentTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &RedisStore{client: client, logger: logger, config: config}
}

func (s *RedisStore) cartKey(phone string) string {
	return s.config.Prefix + "cart:" + phone
}

func (s *RedisStore) sentKey(phone string) string {
	return s.config.Prefix + "order_sent:" + phone
}

// AddItem appends item with RPUSH and refreshes the cart TTL.
func (s *RedisStore) AddItem(ctx context.Context, phone string, item Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return domain.DataError("encode cart item", err)
	}

	key := s.cartKey(phone)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		if s.config.TTL > 0 {
			pipe.Expire(ctx, key, s.config.TTL)
		}
		return nil
	})
	if err != nil {
		return domain.StorageError("add cart item", err)
	}
	return nil
}

// ListItems returns the cart in insertion order. Undecodable entries are
// logged and skipped.
func (s *RedisStore) ListItems(ctx context.Context, phone string) ([]Item, error) {
	raw, err := s.client.LRange(ctx, s.cartKey(phone), 0, -1).Result()
	if err != nil {
		return nil, domain.StorageError("list cart items", err)
	}

	items := make([]Item, 0, len(raw))
	for i, r := range raw {
		var it Item
		if err := json.Unmarshal([]byte(r), &it); err != nil {
			s.logger.Warn().Err(err).Int("position", i+1).Str("phone", observability.MaskPhone(phone)).Msg("Skipping undecodable cart item")
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

// RemoveItem deletes the item at one-based index. The position is replaced
// by a unique marker and the marker removed, inside a WATCH transaction so
// a concurrent change to the list aborts and retries.
func (s *RedisStore) RemoveItem(ctx context.Context, phone string, index int) error {
	if index < 1 {
		return domain.InputError(fmt.Sprintf("remove item %d", index), domain.ErrInvalidItemIndex)
	}

	key := s.cartKey(phone)
	marker := removedMarker + uuid.NewString()

	txf := func(tx *redis.Tx) error {
		n, err := tx.LLen(ctx, key).Result()
		if err != nil {
			return err
		}
		if int64(index) > n {
			return domain.InputError(fmt.Sprintf("remove item %d", index), domain.ErrInvalidItemIndex)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LSet(ctx, key, int64(index-1), marker)
			pipe.LRem(ctx, key, 1, marker)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if domain.IsKind(err, domain.KindInput) {
			return err
		}
		return domain.StorageError("remove cart item", err)
	}
	return domain.StorageError("remove cart item", errors.New("too much contention"))
}

// Clear deletes the cart.
func (s *RedisStore) Clear(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, s.cartKey(phone)).Err(); err != nil {
		return domain.StorageError("clear cart", err)
	}
	return nil
}

// MarkOrderSent sets the order-sent flag with OrderSentTTL.
func (s *RedisStore) MarkOrderSent(ctx context.Context, phone string) error {
	if err := s.client.Set(ctx, s.sentKey(phone), time.Now().UTC().Format(time.RFC3339), s.config.OrderSentTTL).Err(); err != nil {
		return domain.StorageError("mark order sent", err)
	}
	return nil
}

// OrderSent reports whether the order-sent flag is present.
func (s *RedisStore) OrderSent(ctx context.Context, phone string) (bool, error) {
	n, err := s.client.Exists(ctx, s.sentKey(phone)).Result()
	if err != nil {
		return false, domain.StorageError("check order sent", err)
	}
	return n > 0, nil
}

var (
	_ Store       = (*RedisStore)(nil)
	_ OrderMarker = (*RedisStore)(nil)
)
