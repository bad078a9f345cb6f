package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const reserveAttempts = 5

// RedisIntervals keeps one list of JSON intervals per commune plus a set of
// known commune codes.
type RedisIntervals struct {
	client *redis.Client
	keyNS  string
	now    func() time.Time
}

func NewRedisIntervals(redisURL, keyNS string) (*RedisIntervals, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if keyNS == "" {
		keyNS = "qrprint"
	}
	return &RedisIntervals{client: c, keyNS: keyNS, now: time.Now}, nil
}

func (s *RedisIntervals) key(code string) string { return fmt.Sprintf("%s:intervals:%s", s.keyNS, code) }

func (s *RedisIntervals) codesKey() string { return fmt.Sprintf("%s:intervals:codes", s.keyNS) }

func (s *RedisIntervals) Close() error { return s.client.Close() }

func (s *RedisIntervals) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func decodeIntervals(raw []string) ([]Interval, error) {
	out := make([]Interval, 0, len(raw))
	for _, r := range raw {
		var iv Interval
		if err := json.Unmarshal([]byte(r), &iv); err != nil {
			return nil, fmt.Errorf("decode interval: %w", err)
		}
		out = append(out, iv)
	}
	return out, nil
}

func (s *RedisIntervals) list(ctx context.Context, c redis.Cmdable, code string) ([]Interval, error) {
	raw, err := c.LRange(ctx, s.key(code), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	return decodeIntervals(raw)
}

func (s *RedisIntervals) Check(ctx context.Context, code string, start, end int) (CheckResult, error) {
	if err := validate(start, end); err != nil {
		return CheckResult{}, err
	}
	list, err := s.list(ctx, s.client, code)
	if err != nil {
		return CheckResult{}, err
	}
	return checkAgainst(list, start, end), nil
}

// Reserve runs the overlap check and the append in one WATCH transaction so
// two servers sharing the database cannot hand out the same range.
func (s *RedisIntervals) Reserve(ctx context.Context, code string, start, end int) (Interval, error) {
	if err := validate(start, end); err != nil {
		return Interval{}, err
	}
	iv := Interval{Start: start, End: end, Timestamp: s.now().UTC()}
	payload, err := json.Marshal(iv)
	if err != nil {
		return Interval{}, err
	}

	key := s.key(code)
	txf := func(tx *redis.Tx) error {
		list, err := s.list(ctx, tx, code)
		if err != nil {
			return err
		}
		if oe := firstOverlap(list, start, end); oe != nil {
			return oe
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, key, string(payload))
			pipe.SAdd(ctx, s.codesKey(), code)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= reserveAttempts; attempt++ {
		err = s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			log.Debug().Str("commune", code).Int("attempt", attempt).Msg("interval reservation raced, retrying")
			continue
		}
		if err != nil {
			return Interval{}, err
		}
		log.Info().Str("commune", code).Int("start", start).Int("end", end).Msg("interval reserved")
		return iv, nil
	}
	return Interval{}, fmt.Errorf("reserve %s [%d - %d]: %w", code, start, end, err)
}

func (s *RedisIntervals) All(ctx context.Context) (map[string][]Interval, error) {
	codes, err := s.client.SMembers(ctx, s.codesKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Interval, len(codes))
	for _, code := range codes {
		list, err := s.list(ctx, s.client, code)
		if err != nil {
			return nil, err
		}
		out[code] = list
	}
	return out, nil
}
