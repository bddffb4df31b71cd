package errorx

import (
	"fmt"

	"github.com/pkg/errors"
)

// BizError 业务错误，实现 error 接口
type BizError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e *BizError) Error() string {
	return fmt.Sprintf("BizError: code=%d, message=%s", e.Code, e.Message)
}

// GetCode 获取错误码
func (e *BizError) GetCode() int {
	return e.Code
}

// GetMessage 获取错误消息
func (e *BizError) GetMessage() string {
	return e.Message
}

// New 创建业务错误（使用默认消息）
func New(code int) *BizError {
	return &BizError{
		Code:    code,
		Message: GetMessage(code),
	}
}

// NewWithMessage 创建业务错误（自定义消息）
func NewWithMessage(code int, message string) *BizError {
	return &BizError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误，添加上下文信息
func Wrap(code int, err error) *BizError {
	if err == nil {
		return New(code)
	}
	return &BizError{
		Code:    code,
		Message: fmt.Sprintf("%s: %v", GetMessage(code), err),
	}
}

// Is 判断是否为特定错误码
func Is(err error, code int) bool {
	if err == nil {
		return false
	}
	if bizErr, ok := errors.Cause(err).(*BizError); ok {
		return bizErr.Code == code
	}
	return false
}

// FromError 从 error 转换为 BizError
// 支持以下错误类型：
//  1. *BizError：直接返回（支持 errors.Wrap 包装）
//  2. 其他错误：返回内部错误（隐藏细节）
func FromError(err error) *BizError {
	if err == nil {
		return nil
	}

	causeErr := errors.Cause(err)

	if bizErr, ok := causeErr.(*BizError); ok {
		return bizErr
	}

	return &BizError{
		Code:    CodeInternalError,
		Message: GetMessage(CodeInternalError),
	}
}

// ============ 常用错误快捷方法 ============

// ErrInternalError 内部错误
func ErrInternalError() *BizError {
	return New(CodeInternalError)
}

// ErrInvalidParams 参数错误
func ErrInvalidParams(msg string) *BizError {
	if msg == "" {
		return New(CodeInvalidParams)
	}
	return NewWithMessage(CodeInvalidParams, msg)
}

// NewDefaultError 创建默认业务错误（通常用于提示用户）
func NewDefaultError(msg string) *BizError {
	return NewWithMessage(CodeInvalidParams, msg)
}

// NewSystemError 创建系统错误
func NewSystemError(msg string) *BizError {
	return NewWithMessage(CodeInternalError, msg)
}

// ErrNotFound 资源不存在
func ErrNotFound() *BizError {
	return New(CodeNotFound)
}

// ErrTooManyRequests 请求过于频繁
func ErrTooManyRequests() *BizError {
	return New(CodeTooManyRequests)
}

// ErrServiceUnavailable 服务暂不可用
func ErrServiceUnavailable() *BizError {
	return New(CodeServiceUnavailable)
}

// ErrDBError 数据库错误
func ErrDBError(err error) *BizError {
	return Wrap(CodeDBError, err)
}

// ErrStoreError 缓存/存储错误
func ErrStoreError(err error) *BizError {
	return Wrap(CodeStoreError, err)
}

// ============ 商铺相关错误 ============

// ErrShopNotFound 商铺不存在
func ErrShopNotFound() *BizError {
	return New(CodeShopNotFound)
}

// ErrShopTypeNotFound 商铺分类不存在
func ErrShopTypeNotFound() *BizError {
	return New(CodeShopTypeNotFound)
}

// ============ 秒杀/订单相关错误 ============

// ErrVoucherNotFound 优惠券不存在
func ErrVoucherNotFound() *BizError {
	return New(CodeVoucherNotFound)
}

// ErrStockExhausted 库存不足
func ErrStockExhausted() *BizError {
	return New(CodeStockExhausted)
}

// ErrDuplicateOrder 重复下单
func ErrDuplicateOrder() *BizError {
	return New(CodeDuplicateOrder)
}

// ErrOrderNotFound 订单不存在
func ErrOrderNotFound() *BizError {
	return New(CodeOrderNotFound)
}

// ============ 用户/社交相关错误 ============

// ErrUserNotFound 用户不存在
func ErrUserNotFound() *BizError {
	return New(CodeUserNotFound)
}

// ErrBlogNotFound 笔记不存在
func ErrBlogNotFound() *BizError {
	return New(CodeBlogNotFound)
}

// ErrFollowNotFound 关注关系不存在
func ErrFollowNotFound() *BizError {
	return New(CodeFollowNotFound)
}
