package orders

const (
	TopicOrderPlaced        = "order.placed"
	TopicStockReleased      = "order.stock.released"
	TopicOrderStatusChanged = "order.status.changed"
)

// Partition key = order number (or reservation id), so events of one order keep their order.
func PartitionKey(id string) []byte { return []byte(id) }
