package events

// Topic enumerates the lifecycle notifications the engine publishes.
type Topic string

const (
	TopicOrderPlaced   Topic = "order.placed"
	TopicOrderFilled   Topic = "order.filled"
	TopicOrderCanceled Topic = "order.canceled"
	TopicOrderFailed   Topic = "order.failed"
	TopicOrderReplaced Topic = "order.replaced"
	TopicDealCreated   Topic = "deal.created"
	TopicDealClosed    Topic = "deal.closed"
	TopicDealCanceled  Topic = "deal.canceled"
)
