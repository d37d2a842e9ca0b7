package api

import (
	"net/http"
	"time"

	"CineDraft-server/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 项目进度 WebSocket 推送。流水线处理器把每次状态迁移写回 DB，
// 这里只轮询 DB 并把状态/进度/日志的变化推给前端。
func ProjectProgressWebSocket(c *gin.Context) {
	projectID := c.Param("project_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	// 先推一次当前状态
	p, err := models.GetProjectByID(projectID)
	if err != nil {
		conn.WriteJSON(map[string]interface{}{"error": "project not found: " + err.Error()})
		return
	}
	_ = conn.WriteJSON(progressPayload(p))
	if isTerminal(p.Status) {
		// 已经终态，首推即最终状态，直接关闭
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	prevStatus := p.Status
	prevProgress := p.Progress
	prevLogLen := len(p.Log)

	for range ticker.C {
		cur, err := models.GetProjectByID(projectID)
		if err != nil {
			// 查询失败继续重试
			continue
		}

		// 有变化才推，终态的那次变化也由这里推出，不再重复发送
		if cur.Status != prevStatus || cur.Progress != prevProgress || len(cur.Log) != prevLogLen {
			if err := conn.WriteJSON(progressPayload(cur)); err != nil {
				break
			}
			prevStatus = cur.Status
			prevProgress = cur.Progress
			prevLogLen = len(cur.Log)
		}

		if isTerminal(cur.Status) {
			break
		}
	}
}

func isTerminal(status string) bool {
	return status == models.ProjectStatusCompleted || status == models.ProjectStatusError
}

func progressPayload(p models.Project) map[string]interface{} {
	return map[string]interface{}{
		"project_id": p.ID,
		"status":     p.Status,
		"progress":   p.Progress,
		"log":        p.Log,
	}
}
