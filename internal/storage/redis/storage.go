package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/mysphere/internal/model"
	"github.com/mcoot/mysphere/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxWatchRetries <= 0 {
		cfg.MaxWatchRetries = DefaultConfig().MaxWatchRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping reports whether the server is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ storage.Storage = (*Storage)(nil)

// Ledger operations

func (s *Storage) GetPlayer(ctx context.Context, addr model.Address) (*model.Player, error) {
	var player model.Player
	if err := s.getJSON(ctx, s.client, playerKey(addr), &player); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return &player, nil
}

func (s *Storage) GetElement(ctx context.Context, id model.ElementID) (*model.Element, error) {
	var el model.Element
	if err := s.getJSON(ctx, s.client, elementKey(id), &el); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrElementNotFound
		}
		return nil, err
	}
	return &el, nil
}

func (s *Storage) ListElements(ctx context.Context, owner model.Address) ([]*model.Element, error) {
	ids, err := s.client.SMembers(ctx, elementsByOwnerIndexKey(owner)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = elementKey(model.ElementID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*model.Element, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// Index entry outlived its element
			continue
		}
		var el model.Element
		if err := json.Unmarshal([]byte(str), &el); err != nil {
			return nil, err
		}
		out = append(out, &el)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MintedAt.Equal(out[j].MintedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].MintedAt.Before(out[j].MintedAt)
	})
	return out, nil
}

// ApplyBatch watches every burned element so a concurrent writer aborts the
// transaction instead of interleaving with it.
func (s *Storage) ApplyBatch(ctx context.Context, batch storage.LedgerBatch) error {
	watched := make([]string, 0, len(batch.Burn))
	for _, id := range batch.Burn {
		watched = append(watched, elementKey(id))
	}

	apply := func(tx *redis.Tx) error {
		for _, id := range batch.Burn {
			var el model.Element
			if err := s.getJSON(ctx, tx, elementKey(id), &el); err != nil {
				if errors.Is(err, redis.Nil) {
					return model.ErrElementNotFound
				}
				return err
			}
			if el.Owner != batch.Owner {
				return model.ErrElementNotOwned
			}
		}

		mints := make([][]byte, len(batch.Mint))
		for i, el := range batch.Mint {
			data, err := json.Marshal(el)
			if err != nil {
				return err
			}
			mints[i] = data
		}
		var player []byte
		if batch.Player != nil {
			data, err := json.Marshal(batch.Player)
			if err != nil {
				return err
			}
			player = data
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, id := range batch.Burn {
				pipe.Del(ctx, elementKey(id))
				pipe.SRem(ctx, elementsByOwnerIndexKey(batch.Owner), string(id))
			}
			for i, el := range batch.Mint {
				pipe.Set(ctx, elementKey(el.ID), mints[i], 0)
				pipe.SAdd(ctx, elementsByOwnerIndexKey(el.Owner), string(el.ID))
			}
			if player != nil {
				pipe.Set(ctx, playerKey(batch.Player.Address), player, 0)
			}
			return nil
		})
		return err
	}

	return s.watch(ctx, apply, watched...)
}

// Transaction operations

func (s *Storage) SaveTx(ctx context.Context, update model.TxUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	score := float64(update.Timestamp.UnixMilli())

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, txKey(update.Hash), data, s.cfg.TxTTL)
	pipe.ZAdd(ctx, txsByAddressIndexKey(update.Address), redis.Z{Score: score, Member: string(update.Hash)})
	pipe.ZAdd(ctx, txsIndexKey(), redis.Z{Score: score, Member: string(update.Hash)})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetTx(ctx context.Context, hash model.TxHash) (*model.TxUpdate, error) {
	var update model.TxUpdate
	if err := s.getJSON(ctx, s.client, txKey(hash), &update); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrTxNotFound
		}
		return nil, err
	}
	return &update, nil
}

func (s *Storage) ListTxs(ctx context.Context, addr model.Address, limit int) ([]model.TxUpdate, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	hashes, err := s.client.ZRevRange(ctx, txsByAddressIndexKey(addr), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return nil, nil
	}

	keys := make([]string, len(hashes))
	for i, h := range hashes {
		keys[i] = txKey(model.TxHash(h))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]model.TxUpdate, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// Expired through TxTTL
			continue
		}
		var u model.TxUpdate
		if err := json.Unmarshal([]byte(str), &u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Storage) PruneTxs(ctx context.Context, before time.Time) (int, error) {
	hashes, err := s.client.ZRangeByScore(ctx, txsIndexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(hashes) == 0 {
		return 0, nil
	}

	keys := make([]string, len(hashes))
	members := make([]interface{}, len(hashes))
	for i, h := range hashes {
		keys[i] = txKey(model.TxHash(h))
		members[i] = h
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}

	pipe := s.client.TxPipeline()
	for i, v := range values {
		if str, ok := v.(string); ok {
			var u model.TxUpdate
			if err := json.Unmarshal([]byte(str), &u); err == nil {
				pipe.ZRem(ctx, txsByAddressIndexKey(u.Address), hashes[i])
			}
		}
	}
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, txsIndexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(hashes), nil
}

// Quote operations

func (s *Storage) SaveQuote(ctx context.Context, quote *model.Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, quoteKey(quote.ID), data, 0)
	pipe.ZAdd(ctx, quotesIndexKey(), redis.Z{Score: float64(quote.Timestamp.UnixMilli()), Member: string(quote.ID)})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetQuote(ctx context.Context, id model.QuoteID) (*model.Quote, error) {
	var quote model.Quote
	if err := s.getJSON(ctx, s.client, quoteKey(id), &quote); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrQuoteNotFound
		}
		return nil, err
	}
	return &quote, nil
}

func (s *Storage) ListQuotes(ctx context.Context, filter model.QuoteFilter) ([]*model.Quote, error) {
	all, err := s.allQuotes(ctx)
	if err != nil {
		return nil, err
	}

	var out []*model.Quote
	for _, q := range all {
		if !filter.Matches(q) {
			continue
		}
		out = append(out, q)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Storage) DeleteQuote(ctx context.Context, id model.QuoteID) error {
	return s.DeleteQuotes(ctx, []model.QuoteID{id})
}

// DeleteQuotes removes every id or none of them.
func (s *Storage) DeleteQuotes(ctx context.Context, ids []model.QuoteID) error {
	seen := make(map[model.QuoteID]struct{}, len(ids))
	keys := make([]string, 0, len(ids))
	members := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, quoteKey(id))
		members = append(members, string(id))
	}
	if len(keys) == 0 {
		return nil
	}

	remove := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, keys...).Result()
		if err != nil {
			return err
		}
		if int(n) != len(keys) {
			return model.ErrQuoteNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			pipe.ZRem(ctx, quotesIndexKey(), members...)
			return nil
		})
		return err
	}

	return s.watch(ctx, remove, keys...)
}

func (s *Storage) CountQuotes(ctx context.Context) (model.QuoteStats, error) {
	var stats model.QuoteStats
	all, err := s.allQuotes(ctx)
	if err != nil {
		return stats, err
	}
	for _, q := range all {
		switch q.Status {
		case model.QuoteStatusPending:
			stats.Pending++
		case model.QuoteStatusApproved:
			stats.Approved++
		case model.QuoteStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

// allQuotes loads every quote newest first
func (s *Storage) allQuotes(ctx context.Context) ([]*model.Quote, error) {
	ids, err := s.client.ZRevRange(ctx, quotesIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = quoteKey(model.QuoteID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*model.Quote, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var q model.Quote
		if err := json.Unmarshal([]byte(str), &q); err != nil {
			return nil, err
		}
		out = append(out, &q)
	}
	return out, nil
}

// Helpers

func (s *Storage) getJSON(ctx context.Context, c redis.Cmdable, key string, v any) error {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// watch runs fn in an optimistic transaction, retrying when a watched key
// changes before EXEC.
func (s *Storage) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < s.cfg.MaxWatchRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("redis: gave up after %d contended attempts", s.cfg.MaxWatchRetries)
}
