package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/verdemarket/engage-backend/internal/app/model"
	"github.com/verdemarket/engage-backend/internal/app/service"
	"github.com/verdemarket/engage-backend/internal/middleware"
)

type TagController struct {
	tagService service.TagService
}

func NewTagController(tagService service.TagService) *TagController {
	return &TagController{
		tagService: tagService,
	}
}

type CreateTagRequest struct {
	Name      string            `json:"name" binding:"required"`
	Category  model.TagCategory `json:"category" binding:"required"`
	Type      model.TagType     `json:"type"`
	Color     string            `json:"color"`
	Icon      string            `json:"icon"`
	Priority  int               `json:"priority"`
	AutoRules model.TagRules    `json:"auto_rules"`
}

type TagEntityRequest struct {
	TagIDs []string `json:"tag_ids" binding:"required,min=1"`
}

type SuggestTagsRequest struct {
	EntityType model.TagCategory      `json:"entity_type" binding:"required"`
	Context    map[string]interface{} `json:"context" binding:"required"`
}

// CreateTag registers a new tag (Admin only)
// POST /api/v1/tags
func (ctrl *TagController) CreateTag(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid tag creation request", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	tag, err := ctrl.tagService.CreateTag(service.CreateTagInput{
		Name:      req.Name,
		Category:  req.Category,
		Type:      req.Type,
		Color:     req.Color,
		Icon:      req.Icon,
		Priority:  req.Priority,
		AutoRules: req.AutoRules,
	})
	if err != nil {
		if errors.Is(err, service.ErrTagAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "A tag with this name already exists",
			})
			return
		}
		log.Error("Failed to create tag", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create tag",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tag": tag,
	})
}

// ListTags returns tags, optionally filtered by category
// GET /api/v1/tags?category=product
func (ctrl *TagController) ListTags(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	category := model.TagCategory(c.Query("category"))
	tags, err := ctrl.tagService.ListTags(category)
	if err != nil {
		log.Error("Failed to fetch tags", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch tags",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags":  tags,
		"count": len(tags),
	})
}

// GetTag returns one tag
// GET /api/v1/tags/:id
func (ctrl *TagController) GetTag(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tag, err := ctrl.tagService.GetTag(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrTagNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Tag not found",
			})
			return
		}
		log.Error("Failed to fetch tag", err, map[string]interface{}{
			"tag_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch tag",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tag": tag,
	})
}

// GetTrendingTags returns the trending ranking
// GET /api/v1/tags/trending?category=&limit=
func (ctrl *TagController) GetTrendingTags(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	category := model.TagCategory(c.Query("category"))

	tags, err := ctrl.tagService.GetTrendingTags(category, limit)
	if err != nil {
		log.Error("Failed to fetch trending tags", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch trending tags",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags":  tags,
		"count": len(tags),
	})
}

// GetRelatedTags returns tags that co-occur with the given tag
// GET /api/v1/tags/:id/related?limit=
func (ctrl *TagController) GetRelatedTags(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	tags, err := ctrl.tagService.FindRelatedTags(c.Param("id"), limit)
	if err != nil {
		log.Error("Failed to fetch related tags", err, map[string]interface{}{
			"tag_id": c.Param("id"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch related tags",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags":  tags,
		"count": len(tags),
	})
}

// SuggestTags evaluates auto-apply rules against a context record
// POST /api/v1/tags/suggest
func (ctrl *TagController) SuggestTags(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req SuggestTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	tags, err := ctrl.tagService.SuggestTags(req.EntityType, req.Context)
	if err != nil {
		log.Error("Failed to suggest tags", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to suggest tags",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags":  tags,
		"count": len(tags),
	})
}

// TagEntity attaches tags to an entity
// POST /api/v1/entities/:type/:id/tags
func (ctrl *TagController) TagEntity(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req TagEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	actor, _ := middleware.GetOperatorID(c)
	entity, err := ctrl.tagService.TagEntity(c.Param("id"), c.Param("type"), req.TagIDs, actor)
	if err != nil {
		log.Error("Failed to tag entity", err, map[string]interface{}{
			"entity_id":   c.Param("id"),
			"entity_type": c.Param("type"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to tag entity",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entity": entity,
	})
}

// UntagEntity removes tags from an entity
// DELETE /api/v1/entities/:type/:id/tags
func (ctrl *TagController) UntagEntity(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req TagEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	entity, err := ctrl.tagService.UntagEntity(c.Param("id"), c.Param("type"), req.TagIDs)
	if err != nil {
		log.Error("Failed to untag entity", err, map[string]interface{}{
			"entity_id":   c.Param("id"),
			"entity_type": c.Param("type"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to untag entity",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entity": entity,
	})
}

// GetEntityTags returns the full tag records attached to an entity
// GET /api/v1/entities/:type/:id/tags
func (ctrl *TagController) GetEntityTags(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	tags, err := ctrl.tagService.GetEntityTags(c.Param("id"), c.Param("type"))
	if err != nil {
		log.Error("Failed to fetch entity tags", err, map[string]interface{}{
			"entity_id":   c.Param("id"),
			"entity_type": c.Param("type"),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to fetch entity tags",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tags":  tags,
		"count": len(tags),
	})
}
