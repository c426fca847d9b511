package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

const (
	maxCASAttempts = 64
	casBackoff     = 2 * time.Millisecond
)

var ErrContention = errors.New("bandit state update contention")

type redisStore struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
}

// NewRedisStore keeps bandit state as JSON under prefix+key. Updates use
// WATCH/MULTI so concurrent writers from any process never lose an update.
func NewRedisStore(log *logger.Logger, rdb goredis.UniversalClient, prefix string) (bandit.Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "adaptive:bandit:"
	}
	return &redisStore{log: log.With("store", "RedisBanditStore"), rdb: rdb, prefix: prefix}, nil
}

func (s *redisStore) key(k string) string { return s.prefix + k }

func decode(raw string) (bandit.State, error) {
	var st bandit.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return bandit.State{}, fmt.Errorf("decode bandit state: %w", err)
	}
	return st, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (bandit.State, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return bandit.State{}, false, nil
	}
	if err != nil {
		return bandit.State{}, false, err
	}
	st, err := decode(raw)
	if err != nil {
		return bandit.State{}, false, err
	}
	return st, true, nil
}

func (s *redisStore) Update(ctx context.Context, key string, fn func(*bandit.State) error) (bandit.State, error) {
	rk := s.key(key)
	var out bandit.State
	txf := func(tx *goredis.Tx) error {
		st := bandit.State{}
		raw, err := tx.Get(ctx, rk).Result()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			if st, err = decode(raw); err != nil {
				return err
			}
		}
		if err := fn(&st); err != nil {
			return err
		}
		st.UpdatedAt = time.Now().UTC()
		payload, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, rk, payload, 0)
			return nil
		})
		if err == nil {
			out = st
		}
		return err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, rk)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, goredis.TxFailedErr) {
			return bandit.State{}, err
		}
		s.log.Debug("bandit state CAS retry", "key", key, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return bandit.State{}, ctx.Err()
		case <-time.After(casBackoff):
		}
	}
	return bandit.State{}, fmt.Errorf("%w: key %s", ErrContention, key)
}

func (s *redisStore) Reset(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}
