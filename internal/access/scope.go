package access

import (
	"fmt"

	"habittracker/internal/model"
)

// ScopeKind 可见范围的类型
type ScopeKind int

const (
	// ScopeAll 不做过滤，所有权由 AuthorizeObject 在取到记录后检查
	ScopeAll ScopeKind = iota
	// ScopePublic is_public = true
	ScopePublic
	// ScopeOwner owner = 指定用户
	ScopeOwner
)

// Scope 某个操作可见的习惯集合。
// 内存中用 Match 过滤，repository 把它翻译成 WHERE 条件。
type Scope struct {
	kind    ScopeKind
	ownerID int
}

func AllScope() Scope {
	return Scope{kind: ScopeAll}
}

func PublicOnly() Scope {
	return Scope{kind: ScopePublic}
}

func OwnedBy(userID int) Scope {
	return Scope{kind: ScopeOwner, ownerID: userID}
}

func (s Scope) Kind() ScopeKind {
	return s.kind
}

// OwnerID 仅 ScopeOwner 时有效
func (s Scope) OwnerID() (int, bool) {
	if s.kind != ScopeOwner {
		return 0, false
	}
	return s.ownerID, true
}

// Match 判断习惯是否在范围内
func (s Scope) Match(h *model.Habit) bool {
	switch s.kind {
	case ScopePublic:
		return h.IsPublic
	case ScopeOwner:
		return h.OwnedBy(s.ownerID)
	default:
		return true
	}
}

func (s Scope) String() string {
	switch s.kind {
	case ScopePublic:
		return "public"
	case ScopeOwner:
		return fmt.Sprintf("owner:%d", s.ownerID)
	default:
		return "all"
	}
}
