package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"CineDraft-server/config"

	"github.com/hibiken/asynq"
)

const (
	// 一次完整的生成流水线（剧本 + 全部分镜图）
	TypePipelineRun = "pipeline:run"
	// 单个分镜重新生图
	TypeSceneRegen = "pipeline:scene_regen"
)

type PipelinePayload struct {
	ProjectID string `json:"project_id"`
}

type SceneRegenPayload struct {
	ProjectID  string `json:"project_id"`
	SceneIndex int    `json:"scene_index"`
}

var QueueClient *asynq.Client

// InitQueue 初始化
func InitQueue() {
	QueueClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.Redis.Addr,
		Password: config.AppConfig.Redis.Password,
	})
}

// EnqueuePipelineRun 流水线任务入队。失败不自动重试，重跑由用户手动发起。
func EnqueuePipelineRun(projectID string) error {
	payload, err := json.Marshal(PipelinePayload{ProjectID: projectID})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(TypePipelineRun, payload,
		asynq.MaxRetry(0),             // 无自动重试策略，只 catch-and-log
		asynq.Timeout(30*time.Minute), // 生成较慢，设置较长超时
		asynq.Retention(24*time.Hour), // 任务结果在 Redis 保留时间
	)

	info, err := QueueClient.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	log.Printf("[Queue] Pipeline Enqueued: ProjectID=%s, TaskID=%s", projectID, info.ID)
	return nil
}

// EnqueueSceneRegen 单镜重生成任务入队
func EnqueueSceneRegen(projectID string, sceneIndex int) error {
	payload, err := json.Marshal(SceneRegenPayload{ProjectID: projectID, SceneIndex: sceneIndex})
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(TypeSceneRegen, payload,
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	)

	info, err := QueueClient.Enqueue(task)
	if err != nil {
		return fmt.Errorf("enqueue failed: %w", err)
	}

	log.Printf("[Queue] Scene Regen Enqueued: ProjectID=%s, Scene=%d, TaskID=%s", projectID, sceneIndex+1, info.ID)
	return nil
}
