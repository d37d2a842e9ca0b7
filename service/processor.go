package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"CineDraft-server/config"
	"CineDraft-server/models"

	"github.com/hibiken/asynq"
)

// Processor 消费队列任务，执行生成流水线。持久化统一走 models 包。
type Processor struct {
	Scripts ScriptRequester
	Images  SceneImageRequester
}

func NewProcessor() *Processor {
	ai := config.AppConfig.AI
	return &Processor{
		Scripts: NewLLMScriptRequester(ai.LLMBaseURL, ai.LLMModel),
		Images:  NewHTTPImageRequester(ai.ImageAPI, ai.ImageModel),
	}
}

// StartProcessor 启动任务消费者。
// 并发固定为 1：分镜必须严格串行，同一时刻最多一个生成请求在途。
func (p *Processor) StartProcessor() {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     config.AppConfig.Redis.Addr,
			Password: config.AppConfig.Redis.Password,
		},
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypePipelineRun, p.HandlePipelineRun)
	mux.HandleFunc(TypeSceneRegen, p.HandleSceneRegen)

	log.Printf("Starting Pipeline Processor (concurrency=1)...")
	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatalf("could not run server: %v", err)
		}
	}()
}

func (p *Processor) credentials() Credentials {
	return Credentials{APIKey: config.AppConfig.AI.APIKey}
}

// HandlePipelineRun 执行一次完整流水线：读项目 -> 跑编排器 -> 每次状态迁移落库
func (p *Processor) HandlePipelineRun(ctx context.Context, t *asynq.Task) error {
	var payload PipelinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	project, err := models.GetProjectByID(payload.ProjectID)
	if err != nil {
		return fmt.Errorf("project not found: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing Pipeline: project=%s title=%q", project.ID, project.Title)

	pipeline := &Pipeline{
		Scripts: p.Scripts,
		Images:  p.Images,
		Store:   StoreImageReference,
		OnUpdate: func(cur *models.Project) {
			// 每个事件之后都把最新状态写回，WebSocket 端轮询 DB 即可看到增量进度
			if err := models.SaveProject(cur); err != nil {
				log.Printf("保存项目状态失败: %v", err)
			}
		},
	}

	if err := pipeline.Run(ctx, &project, p.credentials()); err != nil {
		// 业务失败已经写进项目状态与日志，不向 asynq 返回错误以免重试
		log.Printf("项目 %s 流水线失败: %v", project.ID, err)
		return nil
	}

	log.Printf("Pipeline completed: project=%s scenes=%d", project.ID, len(project.Script.Scenes))
	return nil
}

// HandleSceneRegen 对已完成项目的单个分镜重新生图
func (p *Processor) HandleSceneRegen(ctx context.Context, t *asynq.Task) error {
	var payload SceneRegenPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	project, err := models.GetProjectByID(payload.ProjectID)
	if err != nil {
		return fmt.Errorf("project not found: %v: %w", err, asynq.SkipRetry)
	}
	if project.Script.IsZero() {
		return fmt.Errorf("project %s has no script: %w", project.ID, asynq.SkipRetry)
	}
	idx := payload.SceneIndex
	if idx < 0 || idx >= len(project.Script.Scenes) {
		return fmt.Errorf("scene index %d out of range: %w", idx, asynq.SkipRetry)
	}

	scene := project.Script.Scenes[idx]
	ref, err := p.Images.RequestSceneImage(ctx, p.credentials(), project.Script.VisualContext, scene.VisualPrompt, project.StyleLabel())
	if err != nil {
		log.Printf("项目 %s 场景 %d 重生成失败: %v", project.ID, idx+1, err)
	} else if stored, serr := StoreImageReference(ctx, project.ID, idx, ref); serr == nil {
		ref = stored
	}

	project = applySceneRegen(project, idx, ref, err)

	if err := models.SaveProject(&project); err != nil {
		log.Printf("保存项目状态失败: %v", err)
	}
	return nil
}

// applySceneRegen 把单镜重生成的结果套到已完成的项目上。
// 重生成不改变整体进度：无论成败都维持 completed/100，失败只追加日志，原图保留。
func applySceneRegen(p models.Project, idx int, ref string, err error) models.Project {
	if err != nil {
		p = Apply(p, Event{Kind: EventSceneImageFailed, SceneIndex: idx, Err: err})
	} else {
		p = Apply(p, Event{Kind: EventSceneImageReceived, SceneIndex: idx, ImageRef: ref})
	}
	p.Status = models.ProjectStatusCompleted
	p.Progress = 100
	return p
}
