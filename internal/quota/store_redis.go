package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetField = "reset_date"
	keyTTL     = 62 * 24 * time.Hour
)

// Lua script for atomic check-and-increment of one counter. A negative
// delta releases units, floored at zero. Returns {applied, value}.
const addLuaScript = `
local current = tonumber(redis.call("HGET", KEYS[1], ARGV[1]) or "0")
local n = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local value = current + n
if n > 0 and value > max then
    return {0, current}
end
if value < 0 then
    value = 0
end
redis.call("HSET", KEYS[1], ARGV[1], value)
return {1, value}
`

// Lua script that zeroes the hash unless its reset date is still ahead.
// ARGV: now, next reset, ttl seconds, then the counter fields.
// Returns 1 when the counters were reset.
const rolloverLuaScript = `
local reset = tonumber(redis.call("HGET", KEYS[1], "reset_date") or "0")
if reset > tonumber(ARGV[1]) then
    return 0
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], "reset_date", ARGV[2])
for i = 4, #ARGV do
    redis.call("HSET", KEYS[1], ARGV[i], 0)
end
redis.call("EXPIRE", KEYS[1], ARGV[3])
return 1
`

// RedisStore keeps one hash per user: a field per Kind plus reset_date.
type RedisStore struct {
	redis          *redis.Client
	prefix         string
	addScript      *redis.Script
	rolloverScript *redis.Script
}

// NewRedisStore creates a RedisStore under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		redis:          client,
		prefix:         prefix,
		addScript:      redis.NewScript(addLuaScript),
		rolloverScript: redis.NewScript(rolloverLuaScript),
	}
}

func (s *RedisStore) key(userID string) string {
	return fmt.Sprintf("%s:quota:%s", s.prefix, userID)
}

func (s *RedisStore) Get(ctx context.Context, userID string) (Usage, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return Usage{}, err
	}

	u := Usage{Counts: make(map[Kind]int64, len(Kinds))}
	for field, value := range fields {
		if field == resetField {
			unix, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Usage{}, fmt.Errorf("invalid reset date %q: %w", value, err)
			}
			u.ResetDate = time.Unix(unix, 0).UTC()
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Usage{}, fmt.Errorf("invalid counter %s=%q: %w", field, value, err)
		}
		u.Counts[Kind(field)] = n
	}
	return u, nil
}

func (s *RedisStore) Rollover(ctx context.Context, userID string, now, next time.Time) (bool, error) {
	// Two periods, so a user who stops logging in eventually drops out.
	args := []interface{}{now.Unix(), next.Unix(), int64(keyTTL / time.Second)}
	for _, k := range Kinds {
		args = append(args, string(k))
	}
	n, err := s.rolloverScript.Run(ctx, s.redis, []string{s.key(userID)}, args...).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisStore) Add(ctx context.Context, userID string, kind Kind, n, max int64) (int64, bool, error) {
	res, err := s.addScript.Run(ctx, s.redis, []string{s.key(userID)}, string(kind), n, max).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected script result %v", res)
	}
	return res[1], res[0] == 1, nil
}
