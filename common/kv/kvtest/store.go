// Package kvtest 提供 kv.Store 的内存实现，供单元测试使用
//
// 特性：
//   - 全部操作在同一把互斥锁下执行，脚本天然原子
//   - 可注入时钟偏移，测试 TTL/逻辑过期
//   - 可注入故障，测试 StoreUnavailable 路径
package kvtest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/levi04206/hmdp/common/kv"
)

// ScriptFunc 脚本的 Go 实现，在存储锁内原子执行
type ScriptFunc func(tx *Tx, keys []string, args []string) (interface{}, error)

type valueEntry struct {
	val      string
	expireAt time.Time // 零值表示不过期
}

type streamEntry struct {
	id     string
	values map[string]interface{}
}

type consumerGroup struct {
	// nextIdx 下一条待投递消息在 entries 中的下标
	nextIdx int
	// pending 已投递未确认的消息 ID，按投递顺序
	pending []string
}

type streamData struct {
	entries []streamEntry
	groups  map[string]*consumerGroup
	seq     int64
}

// Store kv.Store 的内存实现
type Store struct {
	mu sync.Mutex

	strings map[string]valueEntry
	sets    map[string]map[string]struct{}
	zsets   map[string]map[string]float64
	bits    map[string][]byte
	hlls    map[string]map[string]struct{}
	geos    map[string]map[string][2]float64
	streams map[string]*streamData
	scripts map[string]ScriptFunc

	clockOffset time.Duration
	failErr     error
}

var _ kv.Store = (*Store)(nil)

// New 创建内存 Store
func New() *Store {
	return &Store{
		strings: make(map[string]valueEntry),
		sets:    make(map[string]map[string]struct{}),
		zsets:   make(map[string]map[string]float64),
		bits:    make(map[string][]byte),
		hlls:    make(map[string]map[string]struct{}),
		geos:    make(map[string]map[string][2]float64),
		streams: make(map[string]*streamData),
		scripts: make(map[string]ScriptFunc),
	}
}

// RegisterScript 注册脚本的 Go 实现，Eval 按脚本原文匹配
func (s *Store) RegisterScript(script string, fn ScriptFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[script] = fn
}

// Advance 前移内部时钟，使 TTL/逻辑过期可测
func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockOffset += d
}

// SetErr 注入故障：非 nil 后所有操作返回该错误，传 nil 恢复
func (s *Store) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *Store) now() time.Time {
	return time.Now().Add(s.clockOffset)
}

// expired 判断并惰性清理过期键，调用方需持锁
func (s *Store) expired(key string) bool {
	e, ok := s.strings[key]
	if !ok {
		return false
	}
	if !e.expireAt.IsZero() && s.now().After(e.expireAt) {
		delete(s.strings, key)
		return true
	}
	return false
}

// ---------- 字符串 ----------

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return "", s.failErr
	}
	s.expired(key)
	e, ok := s.strings[key]
	if !ok {
		return "", kv.ErrNotFound
	}
	return e.val, nil
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.setLocked(key, value, ttl)
	return nil
}

func (s *Store) setLocked(key, value string, ttl time.Duration) {
	e := valueEntry{val: value}
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}
	s.strings[key] = e
}

func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	s.expired(key)
	if _, ok := s.strings[key]; ok {
		return false, nil
	}
	s.setLocked(key, value, ttl)
	return true, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	for _, key := range keys {
		delete(s.strings, key)
		delete(s.sets, key)
		delete(s.zsets, key)
		delete(s.bits, key)
	}
	return nil
}

func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	return s.incrByLocked(key, 1)
}

func (s *Store) incrByLocked(key string, delta int64) (int64, error) {
	s.expired(key)
	var cur int64
	if e, ok := s.strings[key]; ok {
		if _, err := fmt.Sscanf(e.val, "%d", &cur); err != nil {
			return 0, fmt.Errorf("value is not an integer: %q", e.val)
		}
	}
	cur += delta
	e := s.strings[key]
	e.val = fmt.Sprintf("%d", cur)
	s.strings[key] = e
	return cur, nil
}

// ---------- 脚本 ----------

func (s *Store) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	fn, ok := s.scripts[script]
	if !ok {
		return nil, fmt.Errorf("kvtest: script not registered:\n%s", script)
	}
	strArgs := make([]string, len(args))
	for i, a := range args {
		strArgs[i] = fmt.Sprint(a)
	}
	return fn(&Tx{s: s}, keys, strArgs)
}

// ---------- 集合 ----------

func (s *Store) SAdd(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.saddLocked(key, members...)
	return nil
}

func (s *Store) saddLocked(key string, members ...string) {
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
}

func (s *Store) SRem(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	for _, m := range members {
		delete(s.sets[key], m)
	}
	return nil
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	_, ok := s.sets[key][member]
	return ok, nil
}

func (s *Store) SInter(ctx context.Context, keys ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	if len(keys) == 0 {
		return nil, nil
	}
	var result []string
	for m := range s.sets[keys[0]] {
		in := true
		for _, key := range keys[1:] {
			if _, ok := s.sets[key][m]; !ok {
				in = false
				break
			}
		}
		if in {
			result = append(result, m)
		}
	}
	sort.Strings(result)
	return result, nil
}

// ---------- 有序集合 ----------

func (s *Store) ZAdd(ctx context.Context, key, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	zset, ok := s.zsets[key]
	if !ok {
		zset = make(map[string]float64)
		s.zsets[key] = zset
	}
	zset[member] = score
	return nil
}

func (s *Store) ZRem(ctx context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	delete(s.zsets[key], member)
	return nil
}

func (s *Store) ZScore(ctx context.Context, key, member string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	score, ok := s.zsets[key][member]
	if !ok {
		return 0, kv.ErrNotFound
	}
	return score, nil
}

func (s *Store) sortedMembers(key string) []kv.Z {
	zs := make([]kv.Z, 0, len(s.zsets[key]))
	for m, score := range s.zsets[key] {
		zs = append(zs, kv.Z{Member: m, Score: score})
	}
	sort.Slice(zs, func(i, j int) bool {
		if zs[i].Score != zs[j].Score {
			return zs[i].Score < zs[j].Score
		}
		return zs[i].Member < zs[j].Member
	})
	return zs
}

func (s *Store) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	zs := s.sortedMembers(key)
	n := int64(len(zs))
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = n + start
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		return nil, nil
	}
	var result []string
	for _, z := range zs[start : stop+1] {
		result = append(result, z.Member)
	}
	return result, nil
}

func (s *Store) ZRevRangeByScore(ctx context.Context, key string, max, min float64, offset, count int64) ([]kv.Z, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	zs := s.sortedMembers(key)
	// 降序遍历
	var filtered []kv.Z
	for i := len(zs) - 1; i >= 0; i-- {
		if zs[i].Score <= max && zs[i].Score >= min {
			filtered = append(filtered, zs[i])
		}
	}
	if offset >= int64(len(filtered)) {
		return nil, nil
	}
	filtered = filtered[offset:]
	if count > 0 && count < int64(len(filtered)) {
		filtered = filtered[:count]
	}
	return filtered, nil
}

// ---------- 位图 ----------

func (s *Store) SetBit(ctx context.Context, key string, offset int64, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	byteIdx := int(offset / 8)
	if len(s.bits[key]) <= byteIdx {
		grown := make([]byte, byteIdx+1)
		copy(grown, s.bits[key])
		s.bits[key] = grown
	}
	mask := byte(1) << (7 - uint(offset%8))
	if value == 1 {
		s.bits[key][byteIdx] |= mask
	} else {
		s.bits[key][byteIdx] &^= mask
	}
	return nil
}

func (s *Store) BitFieldGet(ctx context.Context, key string, bits int, offset int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	var result int64
	data := s.bits[key]
	for i := int64(0); i < int64(bits); i++ {
		result <<= 1
		pos := offset + i
		byteIdx := int(pos / 8)
		if byteIdx < len(data) {
			mask := byte(1) << (7 - uint(pos%8))
			if data[byteIdx]&mask != 0 {
				result |= 1
			}
		}
	}
	return result, nil
}

// ---------- HyperLogLog ----------

func (s *Store) PFAdd(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	hll, ok := s.hlls[key]
	if !ok {
		hll = make(map[string]struct{})
		s.hlls[key] = hll
	}
	for _, m := range members {
		hll[m] = struct{}{}
	}
	return nil
}

func (s *Store) PFCount(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, s.failErr
	}
	return int64(len(s.hlls[key])), nil
}

// ---------- 地理位置 ----------

func (s *Store) GeoAdd(ctx context.Context, key string, longitude, latitude float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	geo, ok := s.geos[key]
	if !ok {
		geo = make(map[string][2]float64)
		s.geos[key] = geo
	}
	geo[member] = [2]float64{longitude, latitude}
	return nil
}

func (s *Store) GeoSearch(ctx context.Context, key string, longitude, latitude, radius float64, count int64) ([]kv.GeoLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	var result []kv.GeoLocation
	for m, pos := range s.geos[key] {
		dist := haversine(latitude, longitude, pos[1], pos[0])
		if dist <= radius {
			result = append(result, kv.GeoLocation{Member: m, Dist: dist})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Dist < result[j].Dist })
	if count > 0 && count < int64(len(result)) {
		result = result[:count]
	}
	return result, nil
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ---------- 消息流 ----------

func (s *Store) XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return "", s.failErr
	}
	return s.xaddLocked(stream, values), nil
}

func (s *Store) xaddLocked(stream string, values map[string]interface{}) string {
	data := s.streamLocked(stream)
	data.seq++
	id := fmt.Sprintf("%d-%d", s.now().UnixMilli(), data.seq)
	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}
	data.entries = append(data.entries, streamEntry{id: id, values: copied})
	return id
}

func (s *Store) streamLocked(stream string) *streamData {
	data, ok := s.streams[stream]
	if !ok {
		data = &streamData{groups: make(map[string]*consumerGroup)}
		s.streams[stream] = data
	}
	return data
}

func (s *Store) XGroupCreateMkStream(ctx context.Context, stream, group, start string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	data := s.streamLocked(stream)
	if _, ok := data.groups[group]; ok {
		return nil
	}
	g := &consumerGroup{}
	if start == "$" {
		g.nextIdx = len(data.entries)
	}
	data.groups[group] = g
	return nil
}

func (s *Store) XReadGroup(ctx context.Context, group, consumer, stream, offset string, count int64, block time.Duration) ([]kv.StreamMessage, error) {
	deadline := time.Now().Add(block)
	for {
		msgs, err := s.tryReadGroup(group, stream, offset, count)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}
		// pending 读取不阻塞；新消息读取阻塞到超时
		if offset != ">" || time.Now().After(deadline) {
			return nil, kv.ErrNotFound
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (s *Store) tryReadGroup(group, stream, offset string, count int64) ([]kv.StreamMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	data, ok := s.streams[stream]
	if !ok {
		return nil, kv.ErrNotFound
	}
	g, ok := data.groups[group]
	if !ok {
		return nil, fmt.Errorf("kvtest: no such consumer group %q", group)
	}

	var msgs []kv.StreamMessage
	if offset == ">" {
		for g.nextIdx < len(data.entries) && int64(len(msgs)) < count {
			e := data.entries[g.nextIdx]
			g.nextIdx++
			g.pending = append(g.pending, e.id)
			msgs = append(msgs, kv.StreamMessage{ID: e.id, Values: e.values})
		}
	} else {
		// 读取 pending 列表中未确认的历史消息
		for _, id := range g.pending {
			if int64(len(msgs)) >= count {
				break
			}
			for _, e := range data.entries {
				if e.id == id {
					msgs = append(msgs, kv.StreamMessage{ID: e.id, Values: e.values})
					break
				}
			}
		}
	}
	return msgs, nil
}

func (s *Store) XAck(ctx context.Context, stream, group string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	data, ok := s.streams[stream]
	if !ok {
		return nil
	}
	g, ok := data.groups[group]
	if !ok {
		return nil
	}
	for _, id := range ids {
		for i, pid := range g.pending {
			if pid == id {
				g.pending = append(g.pending[:i], g.pending[i+1:]...)
				break
			}
		}
	}
	return nil
}

// PendingCount 指定组当前未确认消息数（测试断言用）
func (s *Store) PendingCount(stream, group string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.streams[stream]
	if !ok {
		return 0
	}
	g, ok := data.groups[group]
	if !ok {
		return 0
	}
	return len(g.pending)
}

// StreamLen 流内消息总数（测试断言用）
func (s *Store) StreamLen(stream string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.streams[stream]
	if !ok {
		return 0
	}
	return len(data.entries)
}

// ==================== 脚本事务视图 ====================

// Tx 脚本执行期间对存储的原子视图，所有方法在持锁状态下调用
type Tx struct {
	s *Store
}

// Get 读取字符串，键不存在返回 false
func (t *Tx) Get(key string) (string, bool) {
	t.s.expired(key)
	e, ok := t.s.strings[key]
	return e.val, ok
}

// Set 写入字符串（不过期）
func (t *Tx) Set(key, value string) {
	t.s.setLocked(key, value, 0)
}

// Del 删除键
func (t *Tx) Del(key string) {
	delete(t.s.strings, key)
}

// IncrBy 整数加减
func (t *Tx) IncrBy(key string, delta int64) (int64, error) {
	return t.s.incrByLocked(key, delta)
}

// SIsMember 集合成员判断
func (t *Tx) SIsMember(key, member string) bool {
	_, ok := t.s.sets[key][member]
	return ok
}

// SAdd 集合添加
func (t *Tx) SAdd(key string, members ...string) {
	t.s.saddLocked(key, members...)
}

// XAdd 追加流消息
func (t *Tx) XAdd(stream string, values map[string]interface{}) string {
	return t.s.xaddLocked(stream, values)
}
