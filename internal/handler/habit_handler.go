package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"habittracker/internal/access"
	"habittracker/internal/service/habit"
	"habittracker/pkg/logger"
	"habittracker/pkg/util"
)

// IdempotencyHeader 创建请求的幂等键
const IdempotencyHeader = "Idempotency-Key"

type HabitHandler struct {
	habitService *habit.Service
	deduper      *util.Deduper // 可为 nil，此时忽略 Idempotency-Key
	logger       *zap.Logger
}

func NewHabitHandler(habitService *habit.Service, deduper *util.Deduper, logger *zap.Logger) *HabitHandler {
	return &HabitHandler{habitService: habitService, deduper: deduper, logger: logger}
}

// pageResponse 分页响应
type pageResponse struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

// List handles GET /habits
func (h *HabitHandler) List(c *gin.Context) {
	params, ok := listParams(c)
	if !ok {
		return
	}

	page, err := h.habitService.List(c.Request.Context(), ActorFrom(c), params)
	if err != nil {
		writeError(c, h.logger, "ListHabits", err)
		return
	}
	c.JSON(http.StatusOK, newPageResponse(c, page))
}

// ListPublic handles GET /habits/public
func (h *HabitHandler) ListPublic(c *gin.Context) {
	params, ok := listParams(c)
	if !ok {
		return
	}

	page, err := h.habitService.ListPublic(c.Request.Context(), params)
	if err != nil {
		writeError(c, h.logger, "ListPublicHabits", err)
		return
	}
	c.JSON(http.StatusOK, newPageResponse(c, page))
}

// Create handles POST /habits
func (h *HabitHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	actor := ActorFrom(c)

	if err := h.habitService.Authorize(ctx, access.ActionCreate, actor); err != nil {
		writeError(c, h.logger, "CreateHabit", err)
		return
	}

	var in habit.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	key := c.GetHeader(IdempotencyHeader)
	scope := "habit.create:" + actor.String()
	if h.deduper != nil && key != "" && actor.IsAuthenticated() {
		if !h.deduper.AcquireOnce(ctx, scope, key) {
			c.JSON(http.StatusConflict, gin.H{"error": "duplicate request"})
			return
		}
	}

	created, err := h.habitService.Create(ctx, actor, in)
	if err != nil {
		if h.deduper != nil && key != "" && actor.IsAuthenticated() {
			h.deduper.Release(ctx, scope, key)
		}
		writeError(c, h.logger, "CreateHabit", err)
		return
	}

	logger.WithTrace(ctx, h.logger).Info("CreateHabit: success",
		zap.Int("habit_id", created.ID),
		zap.String("actor", actor.String()),
	)
	c.JSON(http.StatusCreated, created)
}

// Retrieve handles GET /habits/:id
func (h *HabitHandler) Retrieve(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	found, err := h.habitService.Retrieve(c.Request.Context(), ActorFrom(c), id)
	if err != nil {
		writeError(c, h.logger, "RetrieveHabit", err)
		return
	}
	c.JSON(http.StatusOK, found)
}

// Update handles PUT /habits/:id
func (h *HabitHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	actor := ActorFrom(c)
	if err := h.habitService.Authorize(c.Request.Context(), access.ActionUpdate, actor); err != nil {
		writeError(c, h.logger, "UpdateHabit", err)
		return
	}

	var in habit.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	updated, err := h.habitService.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		writeError(c, h.logger, "UpdateHabit", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// PartialUpdate handles PATCH /habits/:id
func (h *HabitHandler) PartialUpdate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	actor := ActorFrom(c)
	if err := h.habitService.Authorize(c.Request.Context(), access.ActionPartialUpdate, actor); err != nil {
		writeError(c, h.logger, "PartialUpdateHabit", err)
		return
	}

	var patch habit.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	updated, err := h.habitService.PartialUpdate(c.Request.Context(), actor, id, patch)
	if err != nil {
		writeError(c, h.logger, "PartialUpdateHabit", err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Destroy handles DELETE /habits/:id
func (h *HabitHandler) Destroy(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.habitService.Destroy(c.Request.Context(), ActorFrom(c), id); err != nil {
		writeError(c, h.logger, "DestroyHabit", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listParams 解析 page/page_size/search/ordering；page 非法时直接返回 404
func listParams(c *gin.Context) (habit.ListParams, bool) {
	params := habit.ListParams{
		Search:   c.Query("search"),
		Ordering: c.Query("ordering"),
	}

	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusNotFound, gin.H{"error": "invalid page"})
			return params, false
		}
		params.Page = n
	}
	if raw := c.Query("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			params.PageSize = n
		}
	}
	return params, true
}

func newPageResponse(c *gin.Context, page *habit.Page) pageResponse {
	resp := pageResponse{Count: page.Count, Results: page.Results}
	if page.HasNext() {
		next := pageURL(c, page.Page+1)
		resp.Next = &next
	}
	if page.HasPrevious() {
		prev := pageURL(c, page.Page-1)
		resp.Previous = &prev
	}
	return resp
}

// pageURL 保留原有查询参数，只替换 page
func pageURL(c *gin.Context, n int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	q := c.Request.URL.Query()
	if n <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}

	u := url.URL{
		Scheme:   scheme,
		Host:     c.Request.Host,
		Path:     c.Request.URL.Path,
		RawQuery: q.Encode(),
	}
	return u.String()
}
