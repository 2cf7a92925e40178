package habit

import (
	"errors"
	"math"
	"strings"

	"habittracker/internal/model"
	"habittracker/internal/repository"
)

var ErrInvalidOrdering = errors.New("ordering must be one of: time, -time")

// ListParams 列表查询参数，零值表示使用默认值
type ListParams struct {
	Page     int
	PageSize int
	Search   string
	Ordering string
}

// Page 分页结果
type Page struct {
	Count    int
	Page     int
	PageSize int
	Results  []model.Habit
}

// HasNext 是否还有下一页
func (p *Page) HasNext() bool {
	return p.Page*p.PageSize < p.Count
}

// HasPrevious 是否有上一页
func (p *Page) HasPrevious() bool {
	return p.Page > 1
}

func (p ListParams) query(opts Options) (repository.HabitQuery, error) {
	ordering := strings.TrimSpace(p.Ordering)
	if !repository.ValidOrdering(ordering) {
		return repository.HabitQuery{}, ErrInvalidOrdering
	}

	page := p.Page
	if page == 0 {
		page = 1
	}
	if page < 0 {
		return repository.HabitQuery{}, ErrInvalidPage
	}

	size := p.PageSize
	if size <= 0 {
		size = opts.PageSize
	}
	size = min(size, opts.MaxPageSize)

	// 超出 int 范围的页码不可能有数据
	if page-1 > math.MaxInt/size {
		return repository.HabitQuery{}, ErrInvalidPage
	}

	return repository.HabitQuery{
		Search:  strings.TrimSpace(p.Search),
		OrderBy: ordering,
		Limit:   size,
		Offset:  (page - 1) * size,
	}, nil
}

func newPage(habits []model.Habit, total int, q repository.HabitQuery) *Page {
	if habits == nil {
		habits = []model.Habit{}
	}
	return &Page{
		Count:    total,
		Page:     q.Offset/q.Limit + 1,
		PageSize: q.Limit,
		Results:  habits,
	}
}
