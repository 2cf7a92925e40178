package access

import "fmt"

// ActorKind 请求发起者的类型
type ActorKind int

const (
	// KindAnonymous 未认证的请求
	KindAnonymous ActorKind = iota
	// KindAuthenticated 携带有效 token 的用户
	KindAuthenticated
)

func (k ActorKind) String() string {
	switch k {
	case KindAnonymous:
		return "anonymous"
	case KindAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Actor 请求发起者：匿名，或者是某个已认证的用户。
// 零值即匿名。
type Actor struct {
	kind   ActorKind
	userID int
}

// Anonymous 返回匿名 Actor
func Anonymous() Actor {
	return Actor{kind: KindAnonymous}
}

// Authenticated 返回代表 userID 的已认证 Actor
func Authenticated(userID int) Actor {
	return Actor{kind: KindAuthenticated, userID: userID}
}

func (a Actor) Kind() ActorKind {
	return a.kind
}

func (a Actor) IsAuthenticated() bool {
	return a.kind == KindAuthenticated
}

// UserID 返回用户 ID；匿名时第二个返回值为 false
func (a Actor) UserID() (int, bool) {
	if a.kind != KindAuthenticated {
		return 0, false
	}
	return a.userID, true
}

// String 用于日志
func (a Actor) String() string {
	if a.kind == KindAuthenticated {
		return fmt.Sprintf("user:%d", a.userID)
	}
	return "anonymous"
}
