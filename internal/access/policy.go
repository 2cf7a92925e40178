package access

import "habittracker/internal/model"

// Authorizer 两级权限检查：操作级和对象级
type Authorizer interface {
	Authorize(action Action, actor Actor) error
	AuthorizeObject(actor Actor, habit *model.Habit) error
}

// Requirement 执行某个操作需要满足的条件
type Requirement struct {
	Authenticated bool
	Owner         bool // 对象级：必须是习惯的所有者
}

var (
	allowAny      = Requirement{}
	authenticated = Requirement{Authenticated: true}
	ownerOnly     = Requirement{Authenticated: true, Owner: true}
)

// 操作权限表
var requirements = map[Action]Requirement{
	ActionList:          allowAny,
	ActionCreate:        authenticated,
	ActionRetrieve:      ownerOnly,
	ActionUpdate:        ownerOnly,
	ActionPartialUpdate: ownerOnly,
	ActionDestroy:       ownerOnly,
}

// 未登记的操作走默认策略：必须登录
var defaultRequirement = authenticated

// RequirementFor 返回操作对应的条件
func RequirementFor(action Action) Requirement {
	if r, ok := requirements[action]; ok {
		return r
	}
	return defaultRequirement
}

// HabitPolicy 习惯资源的访问策略。无状态，可并发使用。
type HabitPolicy struct{}

var _ Authorizer = HabitPolicy{}

func NewHabitPolicy() HabitPolicy {
	return HabitPolicy{}
}

// Authorize 操作级检查
func (HabitPolicy) Authorize(action Action, actor Actor) error {
	req := RequirementFor(action)
	if req.Authenticated && !actor.IsAuthenticated() {
		return &DeniedError{Action: action, Actor: actor, Reason: ReasonUnauthenticated}
	}
	return nil
}

// AuthorizeObject 对象级检查：只有所有者可以访问，与 is_public 无关
func (HabitPolicy) AuthorizeObject(actor Actor, habit *model.Habit) error {
	userID, ok := actor.UserID()
	if !ok {
		return &DeniedError{Actor: actor, Reason: ReasonUnauthenticated}
	}
	if !habit.OwnedBy(userID) {
		return &DeniedError{Actor: actor, Reason: ReasonForbidden}
	}
	return nil
}

// RequiresObjectCheck 该操作在取到记录后是否还要做对象级检查
func (HabitPolicy) RequiresObjectCheck(action Action) bool {
	return RequirementFor(action).Owner
}

// Scope 操作可见的习惯范围。
// list：匿名只看公开的，登录用户只看自己的；其他操作不限制，依赖 AuthorizeObject。
func (HabitPolicy) Scope(action Action, actor Actor) Scope {
	if action != ActionList {
		return AllScope()
	}
	if userID, ok := actor.UserID(); ok {
		return OwnedBy(userID)
	}
	return PublicOnly()
}

// PublicScope 公开习惯列表，与 Actor 无关
func (HabitPolicy) PublicScope() Scope {
	return PublicOnly()
}
