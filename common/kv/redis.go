package kv

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ==================== Redis 实现 ====================

// redisStore 基于 go-redis 的 Store 实现
type redisStore struct {
	client *redis.Client
}

// Config Redis 连接配置
type Config struct {
	Addr     string
	Password string `json:",optional"`
	DB       int    `json:",default=0"`
	PoolSize int    `json:",default=10"`
}

// NewRedisStore 创建 Redis Store
func NewRedisStore(c Config) Store {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})
	return &redisStore{client: client}
}

// NewRedisStoreWithClient 复用已有客户端创建 Store
func NewRedisStoreWithClient(client *redis.Client) Store {
	return &redisStore{client: client}
}

// wrapErr 错误映射：redis.Nil -> ErrNotFound，其余 -> ErrStoreUnavailable
func wrapErr(err error, op, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return errors.WithMessage(ErrStoreUnavailable, fmt.Sprintf("%s %s: %v", op, key, err))
}

// ---------- 字符串 ----------

func (s *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return "", wrapErr(err, "get", key)
	}
	return val, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return wrapErr(s.client.Set(ctx, key, value, ttl).Err(), "set", key)
}

func (s *redisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, wrapErr(err, "setnx", key)
	}
	return ok, nil
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	return wrapErr(s.client.Del(ctx, keys...).Err(), "del", strings.Join(keys, ","))
}

func (s *redisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, wrapErr(err, "incr", key)
	}
	return n, nil
}

// ---------- 脚本 ----------

func (s *redisStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	res, err := s.client.Eval(ctx, script, keys, args...).Result()
	if err != nil {
		return nil, wrapErr(err, "eval", strings.Join(keys, ","))
	}
	return res, nil
}

// ---------- 集合 ----------

func (s *redisStore) SAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return wrapErr(s.client.SAdd(ctx, key, args...).Err(), "sadd", key)
}

func (s *redisStore) SRem(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return wrapErr(s.client.SRem(ctx, key, args...).Err(), "srem", key)
}

func (s *redisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, wrapErr(err, "sismember", key)
	}
	return ok, nil
}

func (s *redisStore) SInter(ctx context.Context, keys ...string) ([]string, error) {
	members, err := s.client.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, wrapErr(err, "sinter", strings.Join(keys, ","))
	}
	return members, nil
}

// ---------- 有序集合 ----------

func (s *redisStore) ZAdd(ctx context.Context, key, member string, score float64) error {
	return wrapErr(s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(), "zadd", key)
}

func (s *redisStore) ZRem(ctx context.Context, key, member string) error {
	return wrapErr(s.client.ZRem(ctx, key, member).Err(), "zrem", key)
}

func (s *redisStore) ZScore(ctx context.Context, key, member string) (float64, error) {
	score, err := s.client.ZScore(ctx, key, member).Result()
	if err != nil {
		return 0, wrapErr(err, "zscore", key)
	}
	return score, nil
}

func (s *redisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := s.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, wrapErr(err, "zrange", key)
	}
	return members, nil
}

func (s *redisStore) ZRevRangeByScore(ctx context.Context, key string, max, min float64, offset, count int64) ([]Z, error) {
	zs, err := s.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Max:    fmt.Sprintf("%f", max),
		Min:    fmt.Sprintf("%f", min),
		Offset: offset,
		Count:  count,
	}).Result()
	if err != nil {
		return nil, wrapErr(err, "zrevrangebyscore", key)
	}
	result := make([]Z, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		result = append(result, Z{Member: member, Score: z.Score})
	}
	return result, nil
}

// ---------- 位图 ----------

func (s *redisStore) SetBit(ctx context.Context, key string, offset int64, value int) error {
	return wrapErr(s.client.SetBit(ctx, key, offset, value).Err(), "setbit", key)
}

func (s *redisStore) BitFieldGet(ctx context.Context, key string, bits int, offset int64) (int64, error) {
	vals, err := s.client.BitField(ctx, key, "GET", fmt.Sprintf("u%d", bits), offset).Result()
	if err != nil {
		return 0, wrapErr(err, "bitfield", key)
	}
	if len(vals) == 0 {
		return 0, nil
	}
	return vals[0], nil
}

// ---------- HyperLogLog ----------

func (s *redisStore) PFAdd(ctx context.Context, key string, members ...string) error {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return wrapErr(s.client.PFAdd(ctx, key, args...).Err(), "pfadd", key)
}

func (s *redisStore) PFCount(ctx context.Context, key string) (int64, error) {
	n, err := s.client.PFCount(ctx, key).Result()
	if err != nil {
		return 0, wrapErr(err, "pfcount", key)
	}
	return n, nil
}

// ---------- 地理位置 ----------

func (s *redisStore) GeoAdd(ctx context.Context, key string, longitude, latitude float64, member string) error {
	return wrapErr(s.client.GeoAdd(ctx, key, &redis.GeoLocation{
		Name:      member,
		Longitude: longitude,
		Latitude:  latitude,
	}).Err(), "geoadd", key)
}

func (s *redisStore) GeoSearch(ctx context.Context, key string, longitude, latitude, radius float64, count int64) ([]GeoLocation, error) {
	locs, err := s.client.GeoSearchLocation(ctx, key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  longitude,
			Latitude:   latitude,
			Radius:     radius,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      int(count),
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, wrapErr(err, "geosearch", key)
	}
	result := make([]GeoLocation, 0, len(locs))
	for _, loc := range locs {
		result = append(result, GeoLocation{Member: loc.Name, Dist: loc.Dist})
	}
	return result, nil
}

// ---------- 消息流 ----------

func (s *redisStore) XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: values,
	}).Result()
	if err != nil {
		return "", wrapErr(err, "xadd", stream)
	}
	return id, nil
}

func (s *redisStore) XGroupCreateMkStream(ctx context.Context, stream, group, start string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		// 消费者组已存在
		return nil
	}
	return wrapErr(err, "xgroup-create", stream)
}

func (s *redisStore) XReadGroup(ctx context.Context, group, consumer, stream, offset string, count int64, block time.Duration) ([]StreamMessage, error) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, offset},
		Count:    count,
	}
	if offset == ">" {
		args.Block = block
	} else {
		// 读 pending 列表时不阻塞
		args.Block = -1
	}

	streams, err := s.client.XReadGroup(ctx, args).Result()
	if err != nil {
		return nil, wrapErr(err, "xreadgroup", stream)
	}

	var messages []StreamMessage
	for _, str := range streams {
		for _, msg := range str.Messages {
			messages = append(messages, StreamMessage{ID: msg.ID, Values: msg.Values})
		}
	}
	if len(messages) == 0 {
		return nil, ErrNotFound
	}
	return messages, nil
}

func (s *redisStore) XAck(ctx context.Context, stream, group string, ids ...string) error {
	return wrapErr(s.client.XAck(ctx, stream, group, ids...).Err(), "xack", stream)
}
