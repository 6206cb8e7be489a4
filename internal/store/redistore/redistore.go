// Package redistore is the Redis-backed Store. Version checks, the status
// index and the asset guard are all maintained inside single Lua scripts,
// so each create or compare-and-swap is one atomic server-side step and
// the contract holds across any number of service instances.
package redistore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ordmarket/sale-service/internal/core"
)

// createScript installs a new record.
//
//	KEYS[1]: item JSON key
//	KEYS[2]: item version key
//	KEYS[3]: pending status set
//	KEYS[4]: asset guard key
//	ARGV[1]: record JSON
//	ARGV[2]: item id
//	ARGV[3]: initial version
//
// Returns 1 on success, 0 when the asset already has an open listing,
// -1 when the id is taken.
var createScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return -1
	end
	if redis.call('EXISTS', KEYS[4]) == 1 then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[1])
	redis.call('SET', KEYS[2], ARGV[3])
	redis.call('SADD', KEYS[3], ARGV[2])
	redis.call('SET', KEYS[4], ARGV[2])
	return 1
`)

// casScript is the versioned compare-and-swap.
//
//	KEYS[1]: item JSON key
//	KEYS[2]: item version key
//	KEYS[3..6]: pending/active/ended/cancelled status sets
//	KEYS[7]: status set the record moves into
//	KEYS[8]: asset guard key
//	ARGV[1]: expected version
//	ARGV[2]: record JSON (already carrying expected version + 1)
//	ARGV[3]: item id
//	ARGV[4]: "1" when the new status is terminal
//
// Returns 1 on success, 0 on version mismatch, -1 when the item is gone.
var casScript = redis.NewScript(`
	local v = redis.call('GET', KEYS[2])
	if not v then
		return -1
	end
	if tonumber(v) ~= tonumber(ARGV[1]) then
		return 0
	end
	redis.call('SET', KEYS[1], ARGV[2])
	redis.call('INCR', KEYS[2])
	for i = 3, 6 do
		redis.call('SREM', KEYS[i], ARGV[3])
	end
	redis.call('SADD', KEYS[7], ARGV[3])
	if ARGV[4] == '1' then
		redis.call('DEL', KEYS[8])
	end
	return 1
`)

var statusSetOrder = []core.Status{core.StatusPending, core.StatusActive, core.StatusEnded, core.StatusCancelled}

// Store implements core.Store for one item kind on top of Redis.
type Store[T core.Record] struct {
	client    *redis.Client
	kind      core.Kind
	newRecord func() T
}

// New pings the connection and returns a store for the given kind.
func New[T core.Record](client *redis.Client, kind core.Kind, newRecord func() T) (*Store[T], error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Store[T]{client: client, kind: kind, newRecord: newRecord}, nil
}

func (s *Store[T]) itemKey(id string) string {
	return fmt.Sprintf("sale:%s:item:%s", s.kind, id)
}

func (s *Store[T]) versionKey(id string) string {
	return fmt.Sprintf("sale:%s:version:%s", s.kind, id)
}

func (s *Store[T]) statusKey(status core.Status) string {
	return fmt.Sprintf("sale:%s:status:%s", s.kind, status)
}

func (s *Store[T]) assetKey(assetID string) string {
	return fmt.Sprintf("sale:%s:asset:%s", s.kind, assetID)
}

func (s *Store[T]) Create(ctx context.Context, rec T) error {
	base := rec.Base()
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	keys := []string{
		s.itemKey(base.ID),
		s.versionKey(base.ID),
		s.statusKey(base.Status),
		s.assetKey(base.AssetID),
	}
	res, err := createScript.Run(ctx, s.client, keys, raw, base.ID, base.Version).Int()
	if err != nil {
		return fmt.Errorf("run create script: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return core.Errf(core.CodeInvalidSpec, "asset %s already has an open listing", base.AssetID)
	default:
		return core.Errf(core.CodeInvalidSpec, "id %s already exists", base.ID)
	}
}

func (s *Store[T]) Read(ctx context.Context, id string) (T, error) {
	var zero T
	raw, err := s.client.Get(ctx, s.itemKey(id)).Bytes()
	if err == redis.Nil {
		return zero, core.Errf(core.CodeNotFound, "item %s not found", id)
	}
	if err != nil {
		return zero, fmt.Errorf("read item %s: %w", id, err)
	}
	rec := s.newRecord()
	if err := json.Unmarshal(raw, rec); err != nil {
		return zero, fmt.Errorf("corrupt record %s: %w", id, err)
	}
	return rec, nil
}

func (s *Store[T]) CompareAndSwap(ctx context.Context, rec T) error {
	base := rec.Base()
	expected := base.Version
	base.Version = expected + 1
	raw, err := json.Marshal(rec)
	if err != nil {
		base.Version = expected
		return fmt.Errorf("marshal record: %w", err)
	}

	keys := make([]string, 0, 8)
	keys = append(keys, s.itemKey(base.ID), s.versionKey(base.ID))
	for _, st := range statusSetOrder {
		keys = append(keys, s.statusKey(st))
	}
	keys = append(keys, s.statusKey(base.Status), s.assetKey(base.AssetID))

	terminal := "0"
	if base.Status.Terminal() {
		terminal = "1"
	}
	res, err := casScript.Run(ctx, s.client, keys, expected, raw, base.ID, terminal).Int()
	if err != nil {
		base.Version = expected
		return fmt.Errorf("run cas script: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		base.Version = expected
		return core.Errf(core.CodeConflict, "version %d is stale for %s", expected, base.ID)
	default:
		base.Version = expected
		return core.Errf(core.CodeNotFound, "item %s not found", base.ID)
	}
}

func (s *Store[T]) ListByStatus(ctx context.Context, status core.Status) ([]T, error) {
	ids, err := s.client.SMembers(ctx, s.statusKey(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s by status %s: %w", s.kind, status, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.itemKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch %d items: %w", len(keys), err)
	}
	var out []T
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// Item deleted between SMEMBERS and MGET.
			continue
		}
		rec := s.newRecord()
		if err := json.Unmarshal([]byte(str), rec); err != nil {
			return nil, fmt.Errorf("corrupt record %s: %w", ids[i], err)
		}
		// A racing transition may have moved the record out of the set
		// after SMEMBERS; trust the record, not the index.
		if rec.Base().Status == status {
			out = append(out, rec)
		}
	}
	return out, nil
}
