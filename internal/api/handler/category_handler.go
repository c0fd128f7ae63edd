package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"labkeeper/internal/dto"
	"labkeeper/internal/service"
	"labkeeper/pkg/response"
)

// CategoryHandler 分类模块 HTTP 处理器
type CategoryHandler struct {
	categorySvc service.CategoryService
}

// NewCategoryHandler 创建 CategoryHandler
func NewCategoryHandler(categorySvc service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categorySvc: categorySvc}
}

// CreateCategory 创建分类（staff/admin）
// POST /api/v1/categories
func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.categorySvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.Created(c, result)
}

// ListCategories 分类列表
// GET /api/v1/categories
func (h *CategoryHandler) ListCategories(c *gin.Context) {
	result, err := h.categorySvc.List(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// UpdateCategory 更新分类（staff/admin）
// PUT /api/v1/categories/:id
func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.categorySvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			response.NotFound(c, 30001, "分类不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, result)
}

// DeleteCategory 删除分类（staff/admin，软删除）
// DELETE /api/v1/categories/:id
func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.categorySvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		if errors.Is(err, service.ErrCategoryNotFound) {
			response.NotFound(c, 30001, "分类不存在")
			return
		}
		response.InternalError(c)
		return
	}
	response.OK(c, nil)
}
