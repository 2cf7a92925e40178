package habit

import "encoding/json"

// Optional PATCH 请求里的字段：Set 表示客户端提交了该字段，Value 为 nil 表示提交的是 null
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Of 构造一个已提交的值
func Of[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null 构造一个显式提交的 null
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// apply 把已提交的字段写入 dst，null 写入零值
func (o Optional[T]) apply(dst *T) {
	if !o.Set {
		return
	}
	if o.Value == nil {
		var zero T
		*dst = zero
		return
	}
	*dst = *o.Value
}

// applyPtr 用于本身可为空的字段
func (o Optional[T]) applyPtr(dst **T) {
	if o.Set {
		*dst = o.Value
	}
}
