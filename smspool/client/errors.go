package client

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrMalformedResponse 远程返回了无法解析的响应
	ErrMalformedResponse = errors.New("远程响应格式无法解析")

	// ErrInvalidCredential 凭证无效
	ErrInvalidCredential = errors.New("API 凭证无效")
)

// APIError 远程服务返回的业务失败（success==0）
type APIError struct {
	Endpoint string
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
}

// InsufficientBalanceError 余额不足
// Required/Balance 从远程错误消息解析，解析失败时为零值
type InsufficientBalanceError struct {
	Required decimal.Decimal
	Balance  decimal.Decimal
	Message  string
}

func (e *InsufficientBalanceError) Error() string {
	if e.Required.IsPositive() {
		return fmt.Sprintf("余额不足: 需要 %s，当前 %s", fmtDecimal(e.Required), fmtDecimal(e.Balance))
	}
	return "余额不足: " + e.Message
}

// Shortfall 返回差额
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Balance)
}

// IsInsufficientBalance 判断是否为余额不足错误
func IsInsufficientBalance(err error) bool {
	var target *InsufficientBalanceError
	return errors.As(err, &target)
}
