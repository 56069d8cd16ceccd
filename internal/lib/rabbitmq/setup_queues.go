package rabbitmq

// Exchange is the direct exchange all notification messages go through.
const Exchange = "notifications"

// Routing keys and queue names of the notification pipeline.
const (
	QueueReminder      = "notification.reminder"
	RoutingKeyReminder = "reminder"
)

// QueueConfig binds one queue to its routing key on the notifications
// exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues returns the queues consumed by the
// notification-sender worker.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueReminder, RoutingKey: RoutingKeyReminder},
	}
}
