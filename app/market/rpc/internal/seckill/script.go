package seckill

// ==================== 秒杀准入脚本 ====================
//
// 原子完成四步：
//   1. 校验库存 > 0
//   2. 校验用户未下过单（一人一单）
//   3. 预扣库存
//   4. 订单消息入流（与扣减同脚本，保证不丢单）
//
// KEYS[1] 库存 key (seckill:stock:{voucherId})
// KEYS[2] 下单用户集合 key (seckill:order:{voucherId})
// KEYS[3] 订单消息流
// ARGV[1] voucherId
// ARGV[2] userId
// ARGV[3] orderId
//
// 返回值：
//   0 准入成功
//   1 库存不足
//   2 重复下单

// AdmissionScript 秒杀准入脚本
const AdmissionScript = `local stock = redis.call('get', KEYS[1])
if stock == false or tonumber(stock) <= 0 then
    return 1
end
if redis.call('sismember', KEYS[2], ARGV[2]) == 1 then
    return 2
end
redis.call('incrby', KEYS[1], -1)
redis.call('sadd', KEYS[2], ARGV[2])
redis.call('xadd', KEYS[3], '*', 'userId', ARGV[2], 'voucherId', ARGV[1], 'id', ARGV[3])
return 0`

// 脚本返回值
const (
	admitOK             int64 = 0 // 准入成功
	admitStockExhausted int64 = 1 // 库存不足
	admitDuplicate      int64 = 2 // 重复下单
)
