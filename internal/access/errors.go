package access

import "errors"

// Reason 拒绝原因
type Reason string

const (
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonForbidden       Reason = "forbidden"
)

// DeniedError 表示策略拒绝了请求
type DeniedError struct {
	Action Action
	Actor  Actor
	Reason Reason
}

func (e *DeniedError) Error() string {
	switch e.Reason {
	case ReasonUnauthenticated:
		return "authentication required"
	default:
		return "not permitted for this actor"
	}
}

// Is 让 errors.Is(err, ErrUnauthenticated / ErrForbidden) 按原因匹配
func (e *DeniedError) Is(target error) bool {
	t, ok := target.(*DeniedError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

var (
	ErrUnauthenticated = &DeniedError{Reason: ReasonUnauthenticated}
	ErrForbidden       = &DeniedError{Reason: ReasonForbidden}
)

// IsDenied 判断 err 是否为策略拒绝，并返回具体的 DeniedError
func IsDenied(err error) (*DeniedError, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied, true
	}
	return nil, false
}
