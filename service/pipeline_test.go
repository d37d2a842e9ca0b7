package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"CineDraft-server/models"

	"github.com/stretchr/testify/assert"
)

func testScript(sceneCount int) *models.Script {
	s := &models.Script{
		Title:         "霓虹追击",
		Logline:       "侦探追捕失控仿生人",
		VisualContext: "赛博朋克雨夜都市",
	}
	for i := 0; i < sceneCount; i++ {
		s.Scenes = append(s.Scenes, models.Scene{
			ID:           fmt.Sprintf("scene-%d", i+1),
			VisualPrompt: fmt.Sprintf("动作 %d", i+1),
		})
	}
	return s
}

type fakeScripts struct {
	script *models.Script
	err    error
	calls  int
}

func (f *fakeScripts) RequestScript(ctx context.Context, creds Credentials, genre, style string, durationMinutes float64, premise string) (*models.Script, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.script, nil
}

type fakeImages struct {
	failAt map[int]error // 按 0 起始下标注入失败
	calls  []int         // 记录调用顺序
}

func (f *fakeImages) RequestSceneImage(ctx context.Context, creds Credentials, visualContext, visualPrompt, style string) (string, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, idx)
	if err, ok := f.failAt[idx]; ok {
		return "", err
	}
	return fmt.Sprintf("https://example.com/scene-%d.png", idx+1), nil
}

func newTestProject() models.Project {
	return models.Project{
		ID:              "proj-1",
		Title:           "测试项目",
		Mode:            models.ModeStoryboard,
		Genre:           "Action",
		Style:           "Cyberpunk",
		Duration:        "1min",
		DurationMinutes: 1,
		Premise:         "A detective chases a rogue android",
		Status:          models.ProjectStatusDraft,
	}
}

func TestApply(t *testing.T) {
	t.Run("RunStarted 进入 generating_script", func(t *testing.T) {
		p := Apply(newTestProject(), Event{Kind: EventRunStarted})
		assert.Equal(t, models.ProjectStatusGeneratingScript, p.Status)
	})

	t.Run("ScriptReceived 挂剧本并推进到 20", func(t *testing.T) {
		p := Apply(newTestProject(), Event{Kind: EventScriptReceived, Script: testScript(4), TargetScenes: 4})
		assert.Equal(t, models.ProjectStatusGeneratingImages, p.Status)
		assert.Equal(t, 20, p.Progress)
		assert.Len(t, p.Script.Scenes, 4)
		assert.Empty(t, p.Log.Errors())
	})

	t.Run("分镜数量与目标不符时留痕但不纠正", func(t *testing.T) {
		p := Apply(newTestProject(), Event{Kind: EventScriptReceived, Script: testScript(3), TargetScenes: 4})
		assert.Len(t, p.Script.Scenes, 3) // 宽容接受
		assert.Len(t, p.Log, 2)           // 完成 + 偏差提示
		assert.Empty(t, p.Log.Errors())
	})

	t.Run("SceneImageReceived 线性推进进度", func(t *testing.T) {
		p := Apply(newTestProject(), Event{Kind: EventScriptReceived, Script: testScript(4), TargetScenes: 4})
		wantProgress := []int{40, 60, 80, 100}
		for i := 0; i < 4; i++ {
			p = Apply(p, Event{Kind: EventSceneImageReceived, SceneIndex: i, ImageRef: "https://example.com/x.png"})
			assert.Equal(t, wantProgress[i], p.Progress, "scene %d", i+1)
		}
	})

	t.Run("PipelineFailed 不动进度", func(t *testing.T) {
		p := newTestProject()
		p.Progress = 0
		p = Apply(p, Event{Kind: EventPipelineFailed, Err: ErrMissingCredential})
		assert.Equal(t, models.ProjectStatusError, p.Status)
		assert.Equal(t, 0, p.Progress)
		assert.Len(t, p.Log, 1)
	})
}

func TestPipelineRun_PartialImageFailure(t *testing.T) {
	// 端到端：4 个分镜，第 2 镜失败，其余成功，最终仍然 completed
	scripts := &fakeScripts{script: testScript(4)}
	images := &fakeImages{failAt: map[int]error{1: ErrUnrecognizedImageFormat}}

	var updates int
	pl := &Pipeline{
		Scripts:  scripts,
		Images:   images,
		OnUpdate: func(*models.Project) { updates++ },
	}

	p := newTestProject()
	err := pl.Run(context.Background(), &p, Credentials{APIKey: "test-key"})
	assert.NoError(t, err)

	// 严格按数组顺序串行调用
	assert.Equal(t, []int{0, 1, 2, 3}, images.calls)

	assert.Equal(t, models.ProjectStatusCompleted, p.Status)
	assert.Equal(t, 100, p.Progress)

	assert.Equal(t, "https://example.com/scene-1.png", p.Script.Scenes[0].ImageURL)
	assert.Empty(t, p.Script.Scenes[1].ImageURL) // 失败的镜保持无图
	assert.Equal(t, "https://example.com/scene-3.png", p.Script.Scenes[2].ImageURL)
	assert.Equal(t, "https://example.com/scene-4.png", p.Script.Scenes[3].ImageURL)

	errLogs := p.Log.Errors()
	assert.Len(t, errLogs, 1)
	assert.Contains(t, errLogs[0].Message, "场景 2")

	// 每个事件都触发一次持久化钩子：启动 + 剧本 + 4 镜 + 完成
	assert.Equal(t, 7, updates)
}

func TestPipelineRun_MissingCredential(t *testing.T) {
	scripts := &fakeScripts{script: testScript(4)}
	images := &fakeImages{}
	pl := &Pipeline{Scripts: scripts, Images: images}

	p := newTestProject()
	err := pl.Run(context.Background(), &p, Credentials{})
	assert.ErrorIs(t, err, ErrMissingCredential)

	// 未发起任何网络调用
	assert.Equal(t, 0, scripts.calls)
	assert.Empty(t, images.calls)

	assert.Equal(t, models.ProjectStatusError, p.Status)
	assert.Equal(t, 0, p.Progress) // 进度保持运行前的值
	assert.Len(t, p.Log, 1)
}

func TestPipelineRun_ScriptFailureAborts(t *testing.T) {
	scripts := &fakeScripts{err: fmt.Errorf("%w: status 500", ErrScriptRequest)}
	images := &fakeImages{}
	pl := &Pipeline{Scripts: scripts, Images: images}

	p := newTestProject()
	err := pl.Run(context.Background(), &p, Credentials{APIKey: "test-key"})
	assert.ErrorIs(t, err, ErrScriptRequest)

	assert.Equal(t, models.ProjectStatusError, p.Status)
	assert.Empty(t, images.calls) // 剧本失败后不再生图
	assert.True(t, p.Script.IsZero())
	assert.Len(t, p.Log.Errors(), 1)
}

func TestPipelineRun_AllImagesFailStillCompletes(t *testing.T) {
	scripts := &fakeScripts{script: testScript(3)}
	images := &fakeImages{failAt: map[int]error{
		0: ErrImageRequest,
		1: ErrImageRequest,
		2: ErrUnrecognizedImageFormat,
	}}
	pl := &Pipeline{Scripts: scripts, Images: images}

	p := newTestProject()
	err := pl.Run(context.Background(), &p, Credentials{APIKey: "test-key"})
	assert.NoError(t, err)

	assert.Equal(t, models.ProjectStatusCompleted, p.Status)
	assert.Equal(t, 100, p.Progress)
	for _, s := range p.Script.Scenes {
		assert.Empty(t, s.ImageURL)
	}
	assert.Len(t, p.Log.Errors(), 3)
}

func TestPipelineRun_StoreHookRewritesReference(t *testing.T) {
	scripts := &fakeScripts{script: testScript(1)}
	images := &fakeImages{}
	pl := &Pipeline{
		Scripts: scripts,
		Images:  images,
		Store: func(ctx context.Context, projectID string, sceneIndex int, ref string) (string, error) {
			return "https://oss.example.com/stored.png", nil
		},
	}

	p := newTestProject()
	assert.NoError(t, pl.Run(context.Background(), &p, Credentials{APIKey: "test-key"}))
	assert.Equal(t, "https://oss.example.com/stored.png", p.Script.Scenes[0].ImageURL)
}

func TestPipelineRun_StoreHookFailureKeepsOriginal(t *testing.T) {
	scripts := &fakeScripts{script: testScript(1)}
	images := &fakeImages{}
	pl := &Pipeline{
		Scripts: scripts,
		Images:  images,
		Store: func(ctx context.Context, projectID string, sceneIndex int, ref string) (string, error) {
			return "", errors.New("oss down")
		},
	}

	p := newTestProject()
	assert.NoError(t, pl.Run(context.Background(), &p, Credentials{APIKey: "test-key"}))
	// 转存失败不致命，保留提供商返回的原始引用
	assert.Equal(t, "https://example.com/scene-1.png", p.Script.Scenes[0].ImageURL)
}
