package errorx

// 错误码规范：
// 0       - 成功
// 1xxx    - 通用错误
// 2xxx    - 用户/社交相关错误
// 3xxx    - 商铺相关错误
// 4xxx    - 秒杀/订单相关错误

const (
	CodeSuccess            = 0    // 成功
	CodeInternalError      = 1000 // 内部服务器错误
	CodeInvalidParams      = 1001 // 参数校验失败
	CodeNotFound           = 1004 // 资源不存在
	CodeTooManyRequests    = 1005 // 请求过于频繁
	CodeServiceUnavailable = 1006 // 服务暂不可用
	CodeDBError            = 1008 // 数据库错误
	CodeStoreError         = 1009 // 缓存/存储错误

	// 用户/社交 2xxx
	CodeUserNotFound   = 2001 // 用户不存在
	CodeFollowNotFound = 2002 // 关注关系不存在
	CodeBlogNotFound   = 2003 // 笔记不存在

	// 商铺 3xxx
	CodeShopNotFound     = 3001 // 商铺不存在
	CodeShopTypeNotFound = 3002 // 商铺分类不存在

	// 秒杀/订单 4xxx
	CodeVoucherNotFound = 4001 // 优惠券不存在
	CodeStockExhausted  = 4002 // 库存不足
	CodeDuplicateOrder  = 4003 // 重复下单
	CodeOrderNotFound   = 4004 // 订单不存在
)

// codeMessages 错误码对应的默认消息
var codeMessages = map[int]string{
	CodeSuccess:            "success",
	CodeInternalError:      "内部服务器错误",
	CodeInvalidParams:      "参数校验失败",
	CodeNotFound:           "资源不存在",
	CodeTooManyRequests:    "请求过于频繁，请稍后再试",
	CodeServiceUnavailable: "服务暂不可用",
	CodeDBError:            "数据库错误",
	CodeStoreError:         "缓存服务异常",
	CodeUserNotFound:       "用户不存在",
	CodeFollowNotFound:     "关注关系不存在",
	CodeBlogNotFound:       "笔记不存在",
	CodeShopNotFound:       "商铺不存在",
	CodeShopTypeNotFound:   "商铺分类不存在",
	CodeVoucherNotFound:    "优惠券不存在",
	CodeStockExhausted:     "库存不足！",
	CodeDuplicateOrder:     "不能重复下单！",
	CodeOrderNotFound:      "订单不存在",
}

// GetMessage 根据错误码获取默认消息
func GetMessage(code int) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "未知错误"
}

// IsValidCode 判断是否为有效的业务错误码
func IsValidCode(code int) bool {
	_, exists := codeMessages[code]
	return exists
}
