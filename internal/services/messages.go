package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smsbot/gosms/internal/domain"
)

// 用户侧消息文案（沿用产品原有的越南语文案）

func availabilityMessage(count int, price decimal.Decimal, serviceName string) (string, []Action) {
	text := fmt.Sprintf(
		"🚨 THÔNG BÁO: Có số %s!\n\n"+
			"📱 Số lượng có sẵn: %d\n"+
			"💰 Giá: $%s\n"+
			"⏰ Thời gian: %s\n\n"+
			"🔥 Hãy nhanh tay thuê số trước khi hết!",
		serviceName, count, price.StringFixed(2), time.Now().Format("15:04:05"),
	)
	actions := []Action{
		{Label: fmt.Sprintf("🎮 Thuê số ngay ($%s)", price.StringFixed(2)), Command: "rent_number"},
		{Label: "📋 Xem menu", Command: "main_menu"},
	}
	return text, actions
}

func codeReceivedMessage(o *domain.Order) string {
	return fmt.Sprintf(
		"✅ ĐÃ NHẬN ĐƯỢC SMS!\n\n"+
			"📱 Số điện thoại: %s\n"+
			"🆔 Order ID: %s\n"+
			"📩 Nội dung SMS: %s\n\n"+
			"🎉 Giao dịch hoàn tất thành công!",
		o.PhoneNumber, o.OrderID, o.ReceivedContent,
	)
}

func refundedMessage(o *domain.Order, balance decimal.Decimal) string {
	return fmt.Sprintf(
		"⏰ ĐƠN HÀNG HẾT HẠN - ĐÃ HOÀN TIỀN\n\n"+
			"📱 Số điện thoại: %s\n"+
			"🆔 Order ID: %s\n"+
			"💰 Số tiền hoàn: $%s\n"+
			"💵 Số dư hiện tại: $%s\n\n"+
			"😔 Không nhận được SMS trong thời gian quy định.\n"+
			"🔄 Bạn có thể thử thuê số khác.",
		o.PhoneNumber, o.OrderID, o.Price.StringFixed(2), balance.StringFixed(2),
	)
}

func refundFailedMessage(o *domain.Order) string {
	return fmt.Sprintf(
		"⚠️ ĐƠN HÀNG HẾT HẠN\n\n"+
			"📱 Số điện thoại: %s\n"+
			"🆔 Order ID: %s\n\n"+
			"❌ Không thể hoàn tiền tự động.\n"+
			"📞 Vui lòng liên hệ support.",
		o.PhoneNumber, o.OrderID,
	)
}
