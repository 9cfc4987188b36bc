package shared

import "fmt"

// AlertThrottleKey builds the redis key guarding low stock mail per material.
func AlertThrottleKey(materialID int64) string {
	return fmt.Sprintf("stockroom:alert:material:%d:throttle", materialID)
}

// LowStockNoticeKey is the redis key of the transient low stock notice.
const LowStockNoticeKey = "stockroom:low_stock_notice"
