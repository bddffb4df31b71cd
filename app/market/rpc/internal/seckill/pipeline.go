// Package seckill 实现秒杀下单管线
//
// 架构：
//   - 提交路径：脚本原子完成库存校验、一人一单去重、预扣减、订单消息入流，
//     用户请求在内存判定后立即返回
//   - 落库路径：单消费者从消息流拉取订单消息，事务内扣减库存并创建订单，
//     成功后 ACK
//   - 恢复路径：落库失败的消息留在 pending 列表，消费者优先补偿，
//     多次失败进入死信流
package seckill

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/zeromicro/go-zero/core/logx"
	"gorm.io/gorm"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/common/cache"
	"github.com/levi04206/hmdp/common/constants"
	"github.com/levi04206/hmdp/common/errorx"
	"github.com/levi04206/hmdp/common/idgen"
	"github.com/levi04206/hmdp/common/kv"
)

const (
	// readBlock 消费者阻塞读取时长
	readBlock = 2 * time.Second

	// maxPersistAttempts 单条消息最大落库尝试次数，超过进死信流
	maxPersistAttempts = 5

	// retryBackoff 补偿失败后的退避时长
	retryBackoff = 20 * time.Millisecond
)

// errConflict 落库与准入结果矛盾（如 DB 库存不足），不可重试
var errConflict = errors.New("seckill: persistence conflict")

// VoucherReader 秒杀券信息读取
type VoucherReader interface {
	FindByVoucherID(ctx context.Context, voucherID uint64) (*model.SeckillVoucher, error)
}

// OrderPersister 订单落库
//
// 实现要求：扣减库存与创建订单在同一事务内，
// 订单重复返回 model.ErrOrderExists，库存不足返回 model.ErrStockNotEnough。
type OrderPersister interface {
	Persist(ctx context.Context, order *model.VoucherOrder) error
}

// Pipeline 秒杀下单管线
type Pipeline struct {
	logx.Logger

	store     kv.Store
	idGen     *idgen.Generator
	vouchers  VoucherReader
	persister OrderPersister
	metrics   *Metrics

	// attempts 消息ID -> 落库失败次数
	attempts map[string]int

	// ctx 在构造时创建，Stop 先于 Start 执行也能取消消费者
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	// now 可注入的时钟，便于测试
	now func() time.Time
}

// NewPipeline 创建秒杀管线
func NewPipeline(store kv.Store, idGen *idgen.Generator,
	vouchers VoucherReader, persister OrderPersister, metrics *Metrics) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		Logger:    logx.WithContext(context.Background()),
		store:     store,
		idGen:     idGen,
		vouchers:  vouchers,
		persister: persister,
		metrics:   metrics,
		attempts:  make(map[string]int),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// ==================== 默认落库实现 ====================

// DBPersister 基于 MySQL 的订单落库实现
type DBPersister struct {
	orderModel   *model.VoucherOrderModel
	seckillModel *model.SeckillVoucherModel
}

// NewDBPersister 创建 MySQL 落库实现
func NewDBPersister(orderModel *model.VoucherOrderModel, seckillModel *model.SeckillVoucherModel) *DBPersister {
	return &DBPersister{orderModel: orderModel, seckillModel: seckillModel}
}

// Persist 事务落库：创建订单 + 扣减库存
func (p *DBPersister) Persist(ctx context.Context, order *model.VoucherOrder) error {
	return p.orderModel.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.orderModel.CreateTx(tx, order); err != nil {
			return err
		}
		return p.seckillModel.DecrStockTx(tx, order.VoucherID)
	})
}

// ==================== 提交路径 ====================

// Submit 提交秒杀请求
//
// 返回订单ID。库存不足返回 CodeStockExhausted，
// 重复下单返回 CodeDuplicateOrder。
// 此时订单尚未落库，落库由消费者异步完成。
func (p *Pipeline) Submit(ctx context.Context, userID, voucherID uint64) (uint64, error) {
	start := time.Now()

	seckillVoucher, err := p.vouchers.FindByVoucherID(ctx, voucherID)
	if err != nil {
		if errors.Is(err, model.ErrVoucherNotFound) {
			p.metrics.submitTotal.WithLabelValues("not_found").Inc()
			return 0, errorx.ErrVoucherNotFound()
		}
		p.metrics.submitTotal.WithLabelValues("error").Inc()
		return 0, errorx.ErrDBError(err)
	}

	now := p.now()
	if now.Before(seckillVoucher.BeginTime) {
		p.metrics.submitTotal.WithLabelValues("not_started").Inc()
		return 0, errorx.NewDefaultError("秒杀尚未开始！")
	}
	if now.After(seckillVoucher.EndTime) {
		p.metrics.submitTotal.WithLabelValues("ended").Inc()
		return 0, errorx.NewDefaultError("秒杀已经结束！")
	}

	orderID, err := p.idGen.NextID(ctx, "order")
	if err != nil {
		p.metrics.submitTotal.WithLabelValues("error").Inc()
		return 0, errorx.ErrStoreError(err)
	}

	result, err := p.store.Eval(ctx, AdmissionScript,
		[]string{
			cache.SeckillStockKey(int64(voucherID)),
			cache.SeckillOrderKey(int64(voucherID)),
			constants.SeckillOrderStream,
		},
		voucherID, userID, orderID)
	if err != nil {
		p.metrics.submitTotal.WithLabelValues("error").Inc()
		return 0, errorx.ErrStoreError(err)
	}

	p.metrics.submitDuration.Observe(time.Since(start).Seconds())

	code, ok := result.(int64)
	if !ok {
		p.metrics.submitTotal.WithLabelValues("error").Inc()
		return 0, errorx.NewSystemError("秒杀脚本返回异常")
	}
	switch code {
	case admitOK:
		p.metrics.submitTotal.WithLabelValues("ok").Inc()
		return uint64(orderID), nil
	case admitStockExhausted:
		p.metrics.submitTotal.WithLabelValues("stock_exhausted").Inc()
		return 0, errorx.ErrStockExhausted()
	case admitDuplicate:
		p.metrics.submitTotal.WithLabelValues("duplicate").Inc()
		return 0, errorx.ErrDuplicateOrder()
	default:
		p.metrics.submitTotal.WithLabelValues("error").Inc()
		return 0, errorx.NewSystemError("秒杀脚本返回异常")
	}
}

// PreloadStock 预热秒杀库存到缓存（券上架时调用）
func (p *Pipeline) PreloadStock(ctx context.Context, voucherID uint64, stock int32) error {
	key := cache.SeckillStockKey(int64(voucherID))
	return p.store.Set(ctx, key, strconv.FormatInt(int64(stock), 10), 0)
}

// ==================== 落库路径 ====================

// Start 启动订单消费者，阻塞直到 Stop 被调用
func (p *Pipeline) Start() {
	ctx := p.ctx
	defer close(p.done)

	if err := p.store.XGroupCreateMkStream(ctx, constants.SeckillOrderStream,
		constants.SeckillOrderGroup, "0"); err != nil {
		p.Errorf("[seckill] 创建消费者组失败: %v", err)
	}

	// 启动时先补偿上次崩溃遗留的 pending 消息
	p.handlePendingList(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messages, err := p.store.XReadGroup(ctx, constants.SeckillOrderGroup,
			constants.SeckillOrderConsumer, constants.SeckillOrderStream, ">", 1, readBlock)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				// 阻塞窗口内无新消息
				continue
			}
			if ctx.Err() != nil {
				return
			}
			p.Errorf("[seckill] 读取订单消息失败: %v", err)
			time.Sleep(retryBackoff)
			continue
		}

		for _, msg := range messages {
			if err := p.persistOrder(ctx, msg); err != nil {
				p.Errorf("[seckill] 订单落库失败: id=%s, err=%v", msg.ID, err)
				// 消息留在 pending 列表，转入补偿流程
				p.handlePendingList(ctx)
				continue
			}
			p.ack(ctx, msg.ID)
		}
	}
}

// Stop 停止消费者并等待退出
func (p *Pipeline) Stop() {
	p.cancel()
	<-p.done
}

// handlePendingList 补偿 pending 列表中未确认的消息
//
// 逐条重试落库，连续失败超过上限的消息转入死信流后确认，
// 保证 pending 列表不会被坏消息堵死。
func (p *Pipeline) handlePendingList(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		messages, err := p.store.XReadGroup(ctx, constants.SeckillOrderGroup,
			constants.SeckillOrderConsumer, constants.SeckillOrderStream, "0", 1, 0)
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				// pending 列表已清空
				return
			}
			p.Errorf("[seckill] 读取 pending 列表失败: %v", err)
			time.Sleep(retryBackoff)
			continue
		}

		for _, msg := range messages {
			err := p.persistOrder(ctx, msg)
			if err == nil {
				p.metrics.pendingRecovered.Inc()
				p.ack(ctx, msg.ID)
				continue
			}

			p.attempts[msg.ID]++
			if errors.Is(err, errConflict) || p.attempts[msg.ID] >= maxPersistAttempts {
				if dlqErr := p.deadLetter(ctx, msg, err); dlqErr != nil {
					// 死信流写不进去就不确认，消息留在 pending 列表等下一轮
					p.Errorf("[seckill] 写入死信流失败: id=%s, err=%v", msg.ID, dlqErr)
					time.Sleep(retryBackoff)
					continue
				}
				p.Errorf("[seckill] 消息进入死信流: id=%s, attempts=%d, err=%v",
					msg.ID, p.attempts[msg.ID], err)
				p.ack(ctx, msg.ID)
				continue
			}

			p.Errorf("[seckill] pending 消息补偿失败: id=%s, attempts=%d, err=%v",
				msg.ID, p.attempts[msg.ID], err)
			time.Sleep(retryBackoff)
		}
	}
}

// persistOrder 解析消息并落库
//
// 返回 errConflict 表示不可重试（消息损坏或与准入结果矛盾），
// 其余错误视为瞬时故障可重试。
func (p *Pipeline) persistOrder(ctx context.Context, msg kv.StreamMessage) error {
	start := time.Now()

	order, err := parseOrderMessage(msg)
	if err != nil {
		p.metrics.persistTotal.WithLabelValues("malformed").Inc()
		return errors.WithMessage(errConflict, err.Error())
	}

	err = p.createOrder(ctx, order)
	p.metrics.persistDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, errConflict) {
			p.metrics.persistTotal.WithLabelValues("conflict").Inc()
		} else {
			p.metrics.persistTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	p.metrics.persistTotal.WithLabelValues("ok").Inc()
	return nil
}

// createOrder 落库并处理幂等
//
// 订单唯一键冲突视为已落库成功（消息重复投递时发生），
// 此时库存不会被重复扣减（事务整体回滚）。
func (p *Pipeline) createOrder(ctx context.Context, order *model.VoucherOrder) error {
	err := p.persister.Persist(ctx, order)
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrOrderExists) {
		// 重复投递，订单已落库
		p.Infof("[seckill] 订单已存在，跳过: orderId=%d", order.ID)
		return nil
	}
	if errors.Is(err, model.ErrStockNotEnough) {
		// 准入通过但 DB 库存不足，库存状态矛盾
		return errors.WithMessage(errConflict, "db stock exhausted")
	}
	return err
}

// deadLetter 把处理失败的消息转入死信流
//
// 写入失败时返回错误，调用方此时不得确认消息。
func (p *Pipeline) deadLetter(ctx context.Context, msg kv.StreamMessage, cause error) error {
	values := make(map[string]interface{}, len(msg.Values)+2)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["sourceId"] = msg.ID
	values["error"] = cause.Error()

	if _, err := p.store.XAdd(ctx, constants.SeckillOrderDLQStream, values); err != nil {
		return err
	}
	p.metrics.dlqTotal.Inc()
	return nil
}

// ack 确认消息并清理重试计数
func (p *Pipeline) ack(ctx context.Context, msgID string) {
	if err := p.store.XAck(ctx, constants.SeckillOrderStream,
		constants.SeckillOrderGroup, msgID); err != nil {
		p.Errorf("[seckill] ACK 失败: id=%s, err=%v", msgID, err)
		return
	}
	delete(p.attempts, msgID)
}

// parseOrderMessage 解析订单消息
func parseOrderMessage(msg kv.StreamMessage) (*model.VoucherOrder, error) {
	orderID, err := parseUintValue(msg.Values, "id")
	if err != nil {
		return nil, err
	}
	userID, err := parseUintValue(msg.Values, "userId")
	if err != nil {
		return nil, err
	}
	voucherID, err := parseUintValue(msg.Values, "voucherId")
	if err != nil {
		return nil, err
	}
	return &model.VoucherOrder{
		ID:        orderID,
		UserID:    userID,
		VoucherID: voucherID,
		PayType:   model.PayTypeBalance,
		Status:    model.OrderStatusUnpaid,
	}, nil
}

func parseUintValue(values map[string]interface{}, key string) (uint64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, errors.Errorf("missing field %q", key)
	}
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse field %q", key)
		}
		return n, nil
	case int64:
		return uint64(v), nil
	case uint64:
		return v, nil
	default:
		return 0, errors.Errorf("unexpected type %T for field %q", raw, key)
	}
}
