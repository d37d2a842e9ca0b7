package api

import (
	"net/http"
	"os"
	"path/filepath"

	"CineDraft-server/models"
	"CineDraft-server/service"

	"github.com/gin-gonic/gin"
)

// 续作模式：上传参考视频，抽取最后一帧作为种子图
func UploadContinuationFrame(c *gin.Context) {
	projectID := c.Param("project_id")

	project, err := models.GetProjectByID(projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "项目未找到: " + err.Error()})
		return
	}
	if project.Mode != models.ModeVideoContinuation {
		c.JSON(http.StatusBadRequest, gin.H{"error": "仅续作模式支持上传种子视频"})
		return
	}

	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 video 文件: " + err.Error()})
		return
	}

	tmpDir, err := os.MkdirTemp("", "cinedraft-upload")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建临时目录失败: " + err.Error()})
		return
	}
	defer os.RemoveAll(tmpDir)

	videoPath := filepath.Join(tmpDir, filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, videoPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存上传文件失败: " + err.Error()})
		return
	}

	frameURL, err := service.ExtractLastFrame(c.Request.Context(), videoPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "抽帧失败: " + err.Error()})
		return
	}

	if err := models.UpdateProjectSeedFrame(projectID, frameURL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存种子帧失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id": projectID,
		"seed_frame": frameURL,
	})
}
