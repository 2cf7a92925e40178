package habit

import (
	"habittracker/internal/model"
)

// Input 创建和整体更新时提交的字段
type Input struct {
	Name            *string `json:"name" validate:"omitempty,max=100"`
	Place           string  `json:"place" validate:"required,max=75"`
	Time            string  `json:"time" validate:"required,timeofday"`
	Action          string  `json:"action" validate:"required,max=75"`
	IsPleasant      bool    `json:"is_pleasant"`
	RelatedHabitID  *int    `json:"related_habit" validate:"omitempty,gt=0,lte=2147483647"`
	FrequencyNumber int     `json:"frequency_number" validate:"required,gt=0,lte=2147483647"`
	FrequencyUnit   string  `json:"frequency_unit" validate:"omitempty,oneof=minutes hours days"`
	Reward          *string `json:"reward" validate:"omitempty,max=200"`
	Duration        int     `json:"duration" validate:"required,gt=0,lte=2147483647"`
	IsPublic        *bool   `json:"is_public"`
}

// Patch 部分更新，只修改提交了的字段
type Patch struct {
	Name            Optional[string] `json:"name"`
	Place           Optional[string] `json:"place"`
	Time            Optional[string] `json:"time"`
	Action          Optional[string] `json:"action"`
	IsPleasant      Optional[bool]   `json:"is_pleasant"`
	RelatedHabitID  Optional[int]    `json:"related_habit"`
	FrequencyNumber Optional[int]    `json:"frequency_number"`
	FrequencyUnit   Optional[string] `json:"frequency_unit"`
	Reward          Optional[string] `json:"reward"`
	Duration        Optional[int]    `json:"duration"`
	IsPublic        Optional[bool]   `json:"is_public"`
}

func inputFromHabit(h *model.Habit) Input {
	isPublic := h.IsPublic
	return Input{
		Name:            h.Name,
		Place:           h.Place,
		Time:            h.Time,
		Action:          h.Action,
		IsPleasant:      h.IsPleasant,
		RelatedHabitID:  h.RelatedHabitID,
		FrequencyNumber: h.FrequencyNumber,
		FrequencyUnit:   h.FrequencyUnit,
		Reward:          h.Reward,
		Duration:        h.Duration,
		IsPublic:        &isPublic,
	}
}

func (p Patch) applyTo(in *Input) {
	p.Name.applyPtr(&in.Name)
	p.Place.apply(&in.Place)
	p.Time.apply(&in.Time)
	p.Action.apply(&in.Action)
	p.IsPleasant.apply(&in.IsPleasant)
	p.RelatedHabitID.applyPtr(&in.RelatedHabitID)
	p.FrequencyNumber.apply(&in.FrequencyNumber)
	p.FrequencyUnit.apply(&in.FrequencyUnit)
	p.Reward.applyPtr(&in.Reward)
	p.Duration.apply(&in.Duration)
	p.IsPublic.applyPtr(&in.IsPublic)
}

// applyTo 把已校验的输入写到习惯上，所有者和 ID 不变。
// 没有提交 is_public 时保留原值，新建习惯的默认值由 Create 设置。
func (in Input) applyTo(h *model.Habit) {
	h.Name = in.Name
	h.Place = in.Place
	h.Time = in.Time
	h.Action = in.Action
	h.IsPleasant = in.IsPleasant
	h.RelatedHabitID = in.RelatedHabitID
	h.FrequencyNumber = in.FrequencyNumber
	h.FrequencyUnit = in.FrequencyUnit
	if h.FrequencyUnit == "" {
		h.FrequencyUnit = model.FrequencyDays
	}
	h.Reward = in.Reward
	h.Duration = in.Duration
	if in.IsPublic != nil {
		h.IsPublic = *in.IsPublic
	}
}
