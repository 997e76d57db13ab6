package client

// 号码池 API 端点
const (
	endpointBalance  = "/request/balance"
	endpointStock    = "/sms/stock"
	endpointPrice    = "/request/price"
	endpointPurchase = "/purchase/sms"
	endpointCheckSMS = "/sms/check"
	endpointCancel   = "/sms/cancel"
)
