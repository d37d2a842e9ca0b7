package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"CineDraft-server/models"

	openai "github.com/sashabaranov/go-openai"
)

// 流水线错误分类
var (
	// ErrMissingCredential 未配置访问令牌，流水线不会发起任何网络请求
	ErrMissingCredential = errors.New("missing api credential")
	// ErrScriptRequest 文本生成接口网络/HTTP 层失败，对整次运行是致命的
	ErrScriptRequest = errors.New("script request failed")
	// ErrScriptParse 返回内容不是合法 JSON
	ErrScriptParse = errors.New("script response is not valid JSON")
	// ErrInvalidScriptData JSON 合法但缺少 scenes 字段
	ErrInvalidScriptData = errors.New("script data missing scenes")
)

// Credentials 流水线使用的访问令牌，由入口显式传入，便于测试时注入假令牌
type Credentials struct {
	APIKey string
}

// TargetSceneCount 根据时长计算建议分镜数：不足 1 分钟固定 1 个，
// 否则按每分钟 4 个取整，下限 1。该数值只写进提示词，不校验生成结果。
func TargetSceneCount(durationMinutes float64) int {
	if durationMinutes < 1 {
		return 1
	}
	n := int(math.Round(durationMinutes * 4))
	if n < 1 {
		n = 1
	}
	return n
}

// ScriptRequester 剧本请求器接口，流水线通过它发起文本生成
type ScriptRequester interface {
	RequestScript(ctx context.Context, creds Credentials, genre, style string, durationMinutes float64, premise string) (*models.Script, error)
}

// LLMScriptRequester 调用 OpenAI 兼容接口生成剧本
type LLMScriptRequester struct {
	BaseURL string // OpenAI 兼容服务地址，空则用官方默认
	Model   string
}

func NewLLMScriptRequester(baseURL, model string) *LLMScriptRequester {
	return &LLMScriptRequester{BaseURL: baseURL, Model: model}
}

const scriptSystemPrompt = `你是一位专业的电影编剧和分镜师。你只输出 JSON，不输出任何解释性文字。`

// buildScriptPrompt 组装用户指令：题材、风格、时长、目标分镜数、创意前提，外加严格的输出结构说明
func buildScriptPrompt(genre, style string, durationMinutes float64, sceneCount int, premise string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "请为下面的电影创意撰写一份短片剧本和分镜脚本。\n\n")
	fmt.Fprintf(&b, "题材: %s\n视觉风格: %s\n目标时长: %.2g 分钟\n分镜数量: %d 个\n创意前提: %s\n\n", genre, style, durationMinutes, sceneCount, premise)
	b.WriteString(`输出必须是一个 JSON 对象，结构如下：
{
  "title": "片名",
  "logline": "一句话故事梗概",
  "visualContext": "贯穿全片的视觉上下文：角色外观与环境的持久描述，用于保证各镜头画面一致",
  "characters": ["角色名", ...],
  "acts": [{"title": "幕标题", "content": "剧情内容"}, ...],
  "scenes": [
    {
      "id": "scene-1",
      "startTime": "00:00",
      "endTime": "00:15",
      "description": "镜头剧情描述",
      "cameraMovement": "镜头运动描述",
      "visualPrompt": "只写本镜头的动作画面，不要重复 visualContext 里的环境与角色描述"
    }, ...
  ]
}
scenes 数组长度应等于上面的分镜数量。`)
	return b.String()
}

// RequestScript 请求剧本：构建提示词 -> 调用文本生成 -> 解析校验。
// 任何一步失败都是致命错误，由调用方终止本次运行。
func (r *LLMScriptRequester) RequestScript(ctx context.Context, creds Credentials, genre, style string, durationMinutes float64, premise string) (*models.Script, error) {
	if creds.APIKey == "" {
		return nil, ErrMissingCredential
	}

	cfg := openai.DefaultConfig(creds.APIKey)
	if r.BaseURL != "" {
		cfg.BaseURL = r.BaseURL
	}
	client := openai.NewClientWithConfig(cfg)

	sceneCount := TargetSceneCount(durationMinutes)
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scriptSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildScriptPrompt(genre, style, durationMinutes, sceneCount, premise)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptRequest, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrScriptRequest)
	}

	return parseScriptResponse(resp.Choices[0].Message.Content)
}

// parseScriptResponse 去掉模型爱加的 ``` 围栏后按 Script 结构解析，缺少 scenes 视为无效数据
func parseScriptResponse(raw string) (*models.Script, error) {
	cleaned := stripCodeFence(raw)

	var script models.Script
	if err := json.Unmarshal([]byte(cleaned), &script); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScriptParse, err)
	}
	if len(script.Scenes) == 0 {
		return nil, ErrInvalidScriptData
	}
	return &script, nil
}

// stripCodeFence 去除 ```json ... ``` 或 ``` ... ``` 包裹
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
