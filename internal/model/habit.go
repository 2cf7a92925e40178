package model

import "time"

// 频率单位
const (
	FrequencyMinutes = "minutes"
	FrequencyHours   = "hours"
	FrequencyDays    = "days"
)

// FrequencyUnits 合法的频率单位
var FrequencyUnits = []string{FrequencyMinutes, FrequencyHours, FrequencyDays}

// Habit 用户的习惯：在什么地点、什么时间、做什么动作，以及完成后的奖励
type Habit struct {
	ID              int       `json:"id"`
	Name            *string   `json:"name"`
	OwnerID         *int      `json:"user"`
	Place           string    `json:"place"`
	Time            string    `json:"time"` // HH:MM:SS
	Action          string    `json:"action"`
	IsPleasant      bool      `json:"is_pleasant"`
	RelatedHabitID  *int      `json:"related_habit"`
	FrequencyNumber int       `json:"frequency_number"`
	FrequencyUnit   string    `json:"frequency_unit"`
	Reward          *string   `json:"reward"`
	Duration        int       `json:"duration"` // 秒
	IsPublic        bool      `json:"is_public"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// OwnedBy 判断习惯是否属于指定用户
func (h *Habit) OwnedBy(userID int) bool {
	return h.OwnerID != nil && *h.OwnerID == userID
}
