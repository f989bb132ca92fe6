package tools

import (
	"context"
	"fmt"
)

// orderRecord is one entry in the mock order store.
type orderRecord struct {
	Status    string
	Product   string
	Amount    string
	CreatedAt string
	Logistics string
}

// OrderProvider looks up order records. It is backed by an in-memory mock
// store; the router treats a failed lookup for an order-centric utterance as
// a critical failure and escalates.
type OrderProvider struct {
	orders map[string]orderRecord
}

// NewOrderProvider builds the provider with sample orders.
func NewOrderProvider() *OrderProvider {
	return &OrderProvider{orders: map[string]orderRecord{
		"202401150001": {
			Status:    "已发货",
			Product:   "无线降噪耳机",
			Amount:    "¥899.00",
			CreatedAt: "2024-01-15 10:23:45",
			Logistics: "顺丰速运 SF1390268805",
		},
		"202401180002": {
			Status:    "待付款",
			Product:   "机械键盘",
			Amount:    "¥499.00",
			CreatedAt: "2024-01-18 20:01:12",
			Logistics: "",
		},
		"202402010003": {
			Status:    "已完成",
			Product:   "显示器支架",
			Amount:    "¥199.00",
			CreatedAt: "2024-02-01 09:40:03",
			Logistics: "中通快递 73112899021",
		},
	}}
}

func (p *OrderProvider) Kind() string { return "order_info" }

// Invoke expects args["order_id"].
func (p *OrderProvider) Invoke(_ context.Context, args map[string]string) Result {
	orderID := args["order_id"]
	if orderID == "" {
		return Fail("order lookup requires an order id")
	}

	record, ok := p.orders[orderID]
	if !ok {
		return Fail(fmt.Sprintf("未找到订单 %s，请核对订单号", orderID))
	}
	return Ok(map[string]interface{}{
		"order_id":   orderID,
		"status":     record.Status,
		"product":    record.Product,
		"amount":     record.Amount,
		"created_at": record.CreatedAt,
		"logistics":  record.Logistics,
	})
}
