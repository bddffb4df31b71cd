package ctxdata

import (
	"context"
	"encoding/json"
	"strconv"
)

// 定义上下文 key 类型，避免冲突
type contextKey string

const (
	// CtxKeyUserID 用户ID在上下文中的key
	CtxKeyUserID contextKey = "userId"
	// CtxKeyPhone 手机号在上下文中的key
	CtxKeyPhone contextKey = "phone"
	// CtxKeyTraceID 追踪ID
	CtxKeyTraceID contextKey = "traceId"
)

// GetUserIDFromCtx 从上下文中获取当前登录用户ID
// 网关层鉴权后会将用户身份注入到 context 中
func GetUserIDFromCtx(ctx context.Context) int64 {
	if val := ctx.Value(CtxKeyUserID); val != nil {
		return parseToInt64(val)
	}

	// 兼容字符串 key 的注入方式
	if val := ctx.Value("userId"); val != nil {
		return parseToInt64(val)
	}

	return 0
}

// GetPhoneFromCtx 从上下文中获取手机号
func GetPhoneFromCtx(ctx context.Context) string {
	if val := ctx.Value(CtxKeyPhone); val != nil {
		if phone, ok := val.(string); ok {
			return phone
		}
	}
	return ""
}

// GetTraceIDFromCtx 从上下文中获取追踪ID
func GetTraceIDFromCtx(ctx context.Context) string {
	if val := ctx.Value(CtxKeyTraceID); val != nil {
		if traceID, ok := val.(string); ok {
			return traceID
		}
	}
	return ""
}

// WithUserID 将用户ID注入上下文
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, CtxKeyUserID, userID)
}

// WithPhone 将手机号注入上下文
func WithPhone(ctx context.Context, phone string) context.Context {
	return context.WithValue(ctx, CtxKeyPhone, phone)
}

// WithTraceID 将追踪ID注入上下文
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, CtxKeyTraceID, traceID)
}

// parseToInt64 将各种类型转换为 int64
func parseToInt64(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return 0
}
