package mq

// HabitEventPayload habit.created / habit.updated / habit.deleted 的消息体
type HabitEventPayload struct {
	HabitID  int    `json:"habit_id"`
	UserID   *int   `json:"user_id"`
	Action   string `json:"action"`
	IsPublic bool   `json:"is_public"`
	TraceID  string `json:"trace_id,omitempty"`
}
