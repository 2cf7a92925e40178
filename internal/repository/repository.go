package repository

import (
	"errors"
	"strings"

	"habittracker/internal/access"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrEmailTaken = errors.New("email already exists")
)

// 排序字段
const (
	OrderByID       = ""
	OrderByTime     = "time"
	OrderByTimeDesc = "-time"
)

// HabitQuery 列表查询：范围 + 搜索 + 排序 + 分页
type HabitQuery struct {
	Scope   access.Scope
	Search  string // action 包含的子串，大小写不敏感
	OrderBy string // "", "time", "-time"；默认按 id 升序
	Limit   int    // <= 0 表示不限制
	Offset  int
}

// ValidOrdering 判断排序参数是否合法
func ValidOrdering(orderBy string) bool {
	switch orderBy {
	case OrderByID, OrderByTime, OrderByTimeDesc:
		return true
	}
	return false
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
