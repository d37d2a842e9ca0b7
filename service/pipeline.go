package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"CineDraft-server/models"
)

// 流水线事件。编排器不直接改 Project，而是把每一步的结果表达成事件，
// 交给 Apply 做状态迁移，方便脱离网络做单测。
type EventKind int

const (
	EventRunStarted EventKind = iota
	EventScriptReceived
	EventSceneImageReceived
	EventSceneImageFailed
	EventPipelineCompleted
	EventPipelineFailed
)

type Event struct {
	Kind         EventKind
	Script       *models.Script
	TargetScenes int // ScriptReceived 时携带，用于记录生成数量与目标的偏差
	SceneIndex   int
	ImageRef     string
	Err          error
}

// 剧本完成后进度固定到 20，剩余 80 由分镜逐个推进
const scriptDoneProgress = 20

// sceneProgress 计算处理完第 done 个分镜后的进度（线性推进到 100）
func sceneProgress(done, total int) int {
	if total <= 0 {
		return scriptDoneProgress
	}
	return scriptDoneProgress + int(float64(done)/float64(total)*80)
}

func appendLog(p models.Project, level, format string, args ...interface{}) models.Project {
	entry := models.LogEntry{
		Time:    time.Now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	}
	newLog := make(models.RunLog, len(p.Log), len(p.Log)+1)
	copy(newLog, p.Log)
	p.Log = append(newLog, entry)
	return p
}

// Apply 状态迁移函数：输入当前项目与一个事件，返回迁移后的项目。
// 状态机：draft -> generating_script -> generating_images -> completed，error 为吸收态。
func Apply(p models.Project, ev Event) models.Project {
	switch ev.Kind {
	case EventRunStarted:
		p.Status = models.ProjectStatusGeneratingScript
		p = appendLog(p, models.LogLevelInfo, "开始生成剧本...")

	case EventScriptReceived:
		if ev.Script != nil {
			p.Script = *ev.Script
		}
		p.Status = models.ProjectStatusGeneratingImages
		p.Progress = scriptDoneProgress
		p = appendLog(p, models.LogLevelInfo, "剧本生成完成: %s（%d 个分镜）", p.Script.Title, len(p.Script.Scenes))
		if ev.TargetScenes > 0 && len(p.Script.Scenes) != ev.TargetScenes {
			// 生成器返回的分镜数与请求不符时不纠正，只留痕（保持宽容行为）
			p = appendLog(p, models.LogLevelInfo, "分镜数量与目标不符: 期望 %d，实际 %d", ev.TargetScenes, len(p.Script.Scenes))
		}

	case EventSceneImageReceived:
		total := len(p.Script.Scenes)
		if ev.SceneIndex >= 0 && ev.SceneIndex < total {
			scenes := make([]models.Scene, total)
			copy(scenes, p.Script.Scenes)
			scenes[ev.SceneIndex].ImageURL = ev.ImageRef
			p.Script.Scenes = scenes
		}
		p.Progress = sceneProgress(ev.SceneIndex+1, total)

	case EventSceneImageFailed:
		total := len(p.Script.Scenes)
		// 单镜失败不致命：留一条日志，图像引用保持为空，继续下一镜
		p = appendLog(p, models.LogLevelError, "场景 %d 图像生成失败: %v", ev.SceneIndex+1, ev.Err)
		p.Progress = sceneProgress(ev.SceneIndex+1, total)

	case EventPipelineCompleted:
		p.Status = models.ProjectStatusCompleted
		p.Progress = 100
		p = appendLog(p, models.LogLevelInfo, "流水线执行完成")

	case EventPipelineFailed:
		// 进度保持失败前的值不动
		p.Status = models.ProjectStatusError
		p = appendLog(p, models.LogLevelError, "流水线失败: %v", ev.Err)
	}
	return p
}

// ImageStore 可选的图像落盘钩子：把提供商返回的引用转存后返回新引用（如 data URI 转 MinIO URL）
type ImageStore func(ctx context.Context, projectID string, sceneIndex int, ref string) (string, error)

// Pipeline 生成流水线编排器：剧本请求 -> N 次分镜生图 -> 完成落库。
// 分镜严格按数组顺序串行处理，同一时刻只有一个请求在途。
type Pipeline struct {
	Scripts  ScriptRequester
	Images   SceneImageRequester
	Store    ImageStore             // 为 nil 时直接使用提供商返回的引用
	OnUpdate func(*models.Project)  // 每次状态迁移后的持久化/推送钩子
}

func (pl *Pipeline) apply(p *models.Project, ev Event) {
	*p = Apply(*p, ev)
	if pl.OnUpdate != nil {
		pl.OnUpdate(p)
	}
}

// Run 执行一次完整的流水线。剧本阶段失败立即中止；
// 单镜生图失败只记日志并跳过，所有分镜处理完后仍然收敛到 completed。
func (pl *Pipeline) Run(ctx context.Context, p *models.Project, creds Credentials) error {
	if creds.APIKey == "" {
		pl.apply(p, Event{Kind: EventPipelineFailed, Err: ErrMissingCredential})
		return ErrMissingCredential
	}

	pl.apply(p, Event{Kind: EventRunStarted})

	script, err := pl.Scripts.RequestScript(ctx, creds, p.Genre, p.StyleLabel(), p.DurationMinutes, p.Premise)
	if err != nil {
		pl.apply(p, Event{Kind: EventPipelineFailed, Err: err})
		return err
	}
	pl.apply(p, Event{
		Kind:         EventScriptReceived,
		Script:       script,
		TargetScenes: TargetSceneCount(p.DurationMinutes),
	})

	total := len(p.Script.Scenes)
	for i := 0; i < total; i++ {
		scene := p.Script.Scenes[i]
		ref, err := pl.Images.RequestSceneImage(ctx, creds, p.Script.VisualContext, scene.VisualPrompt, p.StyleLabel())
		if err != nil {
			log.Printf("项目 %s 场景 %d 生图失败: %v", p.ID, i+1, err)
			pl.apply(p, Event{Kind: EventSceneImageFailed, SceneIndex: i, Err: err})
			continue
		}
		if pl.Store != nil {
			if stored, serr := pl.Store(ctx, p.ID, i, ref); serr != nil {
				log.Printf("项目 %s 场景 %d 图像转存失败，保留原始引用: %v", p.ID, i+1, serr)
			} else {
				ref = stored
			}
		}
		pl.apply(p, Event{Kind: EventSceneImageReceived, SceneIndex: i, ImageRef: ref})
	}

	pl.apply(p, Event{Kind: EventPipelineCompleted})
	return nil
}
