package models

// TaskResult is the outcome of a finished task addressed to a user's conversation.
type TaskResult struct {
	UserID         string
	ConversationID string
	TaskName       string
	TaskID         string
	Result         string
	TaskType       TaskType
	Success        bool
}

type NotificationType string

const (
	NotificationStarted   NotificationType = "started"
	NotificationFailed    NotificationType = "failed"
	NotificationCancelled NotificationType = "cancelled"
)

// TaskNotification is a lifecycle event for a task. Details is optional.
type TaskNotification struct {
	UserID           string
	ConversationID   string
	TaskName         string
	TaskID           string
	NotificationType NotificationType
	Details          string
}

// TaskResultPayload is the wire body of a task result delivery.
type TaskResultPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	TaskName       string `json:"taskName"`
	TaskID         string `json:"taskId"`
	Result         string `json:"result"`
	TaskType       string `json:"taskType"`
	Success        bool   `json:"success"`
}

// TaskNotificationPayload is the wire body of a lifecycle notification.
type TaskNotificationPayload struct {
	UserID           string  `json:"userId"`
	ConversationID   string  `json:"conversationId"`
	TaskName         string  `json:"taskName"`
	TaskID           string  `json:"taskId"`
	NotificationType string  `json:"notificationType"`
	Details          *string `json:"details"`
}

func (r TaskResult) ToPayload() TaskResultPayload {
	taskType := string(r.TaskType)
	if taskType == "" {
		taskType = "unknown"
	}
	return TaskResultPayload{
		UserID:         r.UserID,
		ConversationID: r.ConversationID,
		TaskName:       r.TaskName,
		TaskID:         r.TaskID,
		Result:         r.Result,
		TaskType:       taskType,
		Success:        r.Success,
	}
}

func (n TaskNotification) ToPayload() TaskNotificationPayload {
	notificationType := n.NotificationType
	if notificationType == "" {
		notificationType = NotificationStarted
	}
	return TaskNotificationPayload{
		UserID:           n.UserID,
		ConversationID:   n.ConversationID,
		TaskName:         n.TaskName,
		TaskID:           n.TaskID,
		NotificationType: string(notificationType),
		Details:          nullString(n.Details),
	}
}

// Error Response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
