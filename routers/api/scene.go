package api

import (
	"net/http"
	"strconv"

	"CineDraft-server/models"
	"CineDraft-server/service"

	"github.com/gin-gonic/gin"
)

// 获取项目的分镜列表（来自剧本 JSON）
func GetScenes(c *gin.Context) {
	projectID := c.Param("project_id")

	project, err := models.GetProjectByID(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if project.Script.IsZero() {
		c.JSON(http.StatusOK, gin.H{"scenes": []models.Scene{}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"scenes": project.Script.Scenes})
}

// 对单个分镜重新生图（scene_no 为 1 起始的镜号）
func RegenerateSceneImage(c *gin.Context) {
	projectID := c.Param("project_id")

	sceneNo, err := strconv.Atoi(c.Param("scene_no"))
	if err != nil || sceneNo < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的镜号: " + c.Param("scene_no")})
		return
	}

	project, err := models.GetProjectByID(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if project.Script.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "项目尚未生成剧本"})
		return
	}
	if sceneNo > len(project.Script.Scenes) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "镜号超出范围"})
		return
	}

	if err := service.EnqueueSceneRegen(projectID, sceneNo-1); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "任务入队失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "分镜重生成任务已创建",
		"project_id": projectID,
		"scene_no":   sceneNo,
	})
}
