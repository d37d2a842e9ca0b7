package api

import (
	"log"
	"net/http"
	"time"

	"CineDraft-server/models"
	"CineDraft-server/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// 时长档位 -> 分钟数。custom 档位由请求体的 duration_minutes 提供。
var durationBuckets = map[string]float64{
	"15s":  0.25,
	"30s":  0.5,
	"1min": 1,
	"2min": 2,
	"3min": 3,
	"5min": 5,
}

type createProjectRequest struct {
	Title           string  `json:"title"`
	Mode            string  `json:"mode"`
	Genre           string  `json:"genre"`
	Style           string  `json:"style"`
	StyleCustom     string  `json:"style_custom"`
	Duration        string  `json:"duration"`
	DurationMinutes float64 `json:"duration_minutes"`
	Premise         string  `json:"premise"`
}

// 创建项目并启动生成流水线
func CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Mode == "" {
		req.Mode = models.ModeStoryboard
	}
	switch req.Mode {
	case models.ModeStoryboard, models.ModeVideoContinuation, models.ModeFreeform:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的生成模式: " + req.Mode})
		return
	}

	// custom 档位必须带上对应的自定义内容
	if req.Style == models.CustomOption && req.StyleCustom == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "自定义风格需要填写 style_custom"})
		return
	}

	var minutes float64
	if req.Duration == models.CustomOption {
		if req.DurationMinutes <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "自定义时长需要填写 duration_minutes"})
			return
		}
		minutes = req.DurationMinutes
	} else {
		m, ok := durationBuckets[req.Duration]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的时长档位: " + req.Duration})
			return
		}
		minutes = m
	}

	project := models.Project{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Mode:            req.Mode,
		Genre:           req.Genre,
		Style:           req.Style,
		StyleCustom:     req.StyleCustom,
		Duration:        req.Duration,
		DurationMinutes: minutes,
		Premise:         req.Premise,
		Status:          models.ProjectStatusDraft,
		Progress:        0,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := models.CreateProject(&project); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建项目失败: " + err.Error()})
		return
	}

	if err := service.EnqueuePipelineRun(project.ID); err != nil {
		log.Printf("流水线任务入队失败: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"project_id": project.ID,
			"message":    "项目已创建，但流水线入队失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id":  project.ID,
		"scene_count": service.TargetSceneCount(minutes),
	})
}

// 获取项目详情
func GetProject(c *gin.Context) {
	projectID := c.Param("project_id")

	project, err := models.GetProjectByID(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// 项目列表，按创建时间倒序
func ListProjects(c *gin.Context) {
	projects, err := models.ListProjects()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取项目列表失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// 删除项目
func DeleteProject(c *gin.Context) {
	projectID := c.Param("project_id")

	if err := models.DeleteProjectByID(projectID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除项目失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "项目已删除", "project_id": projectID})
}
