package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrImageRequest 单个分镜的生图请求失败（网络/HTTP 层），对整次运行非致命
	ErrImageRequest = errors.New("image request failed")
	// ErrUnrecognizedImageFormat 响应里找不到任何可用的图像引用
	ErrUnrecognizedImageFormat = errors.New("unrecognized image response format")
)

// 固定的画质后缀，拼在每个分镜提示词末尾
const cinematicSuffix = "cinematic lighting, film still, highly detailed, masterpiece quality"

const (
	urlPrefix     = "http"
	dataURIPrefix = "data:"
)

// SceneImageRequester 分镜生图接口，流水线逐镜调用
type SceneImageRequester interface {
	RequestSceneImage(ctx context.Context, creds Credentials, visualContext, visualPrompt, style string) (string, error)
}

// HTTPImageRequester 调用图像生成接口，并从异构的响应里探取图像引用
type HTTPImageRequester struct {
	Endpoint string // 完整接口地址，每镜 POST 一次
	Model    string
	Client   *http.Client
}

func NewHTTPImageRequester(endpoint, model string) *HTTPImageRequester {
	return &HTTPImageRequester{
		Endpoint: endpoint,
		Model:    model,
		Client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// buildImagePrompt 组合提示词：风格 + 全片视觉上下文 + 本镜动作 + 固定画质后缀
func buildImagePrompt(style, visualContext, visualPrompt string) string {
	parts := []string{}
	if style != "" {
		parts = append(parts, style+" style")
	}
	if visualContext != "" {
		parts = append(parts, visualContext)
	}
	if visualPrompt != "" {
		parts = append(parts, visualPrompt)
	}
	parts = append(parts, cinematicSuffix)
	return strings.Join(parts, ". ")
}

// imageMessage 生图响应里的消息体。不同提供商返回的形态不一样：
// 有的带结构化 images 数组，有的只在 content 里塞一段 markdown 或裸链接。
type imageMessage struct {
	Content string       `json:"content"`
	Images  []imageAsset `json:"images"`
}

type imageAsset struct {
	URL      string `json:"url"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
	B64JSON string `json:"b64_json"`
}

type imageAPIResponse struct {
	Choices []struct {
		Message imageMessage `json:"message"`
	} `json:"choices"`
}

// imageExtractor 单个提取策略：命中返回图像引用。按固定优先级逐个尝试，取第一个命中。
type imageExtractor func(msg imageMessage) (string, bool)

var imageExtractors = []imageExtractor{
	extractFromImageList,
	extractFromMarkdown,
	extractFromBareContent,
}

// extractFromImageList 结构化 images 数组：优先嵌套 image_url.url，其次直接 url，最后内联 base64
func extractFromImageList(msg imageMessage) (string, bool) {
	for _, img := range msg.Images {
		if img.ImageURL.URL != "" {
			return img.ImageURL.URL, true
		}
		if img.URL != "" {
			return img.URL, true
		}
		if img.B64JSON != "" {
			return "data:image/png;base64," + img.B64JSON, true
		}
	}
	return "", false
}

var markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)\)`)

// extractFromMarkdown 从自由文本里找 markdown 图像语法 ![alt](link)
func extractFromMarkdown(msg imageMessage) (string, bool) {
	m := markdownImagePattern.FindStringSubmatch(msg.Content)
	if len(m) == 2 {
		return m[1], true
	}
	return "", false
}

// extractFromBareContent content 本身就是裸 URL 或 data URI
func extractFromBareContent(msg imageMessage) (string, bool) {
	c := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(c, urlPrefix) || strings.HasPrefix(c, dataURIPrefix) {
		return c, true
	}
	return "", false
}

// extractImageReference 依次套用各提取策略，全部落空返回 ErrUnrecognizedImageFormat
func extractImageReference(msg imageMessage) (string, error) {
	for _, extract := range imageExtractors {
		if ref, ok := extract(msg); ok {
			return ref, nil
		}
	}
	return "", ErrUnrecognizedImageFormat
}

// RequestSceneImage 单镜生图：一次请求一次响应，不重试不退避
func (r *HTTPImageRequester) RequestSceneImage(ctx context.Context, creds Credentials, visualContext, visualPrompt, style string) (string, error) {
	if creds.APIKey == "" {
		return "", ErrMissingCredential
	}

	reqBody := map[string]interface{}{
		"model": r.Model,
		"messages": []map[string]string{
			{"role": "user", "content": buildImagePrompt(style, visualContext, visualPrompt)},
		},
		"modalities": []string{"image", "text"},
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImageRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status code %d", ErrImageRequest, resp.StatusCode)
	}

	var apiResp imageAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("%w: decode response failed: %v", ErrImageRequest, err)
	}
	if len(apiResp.Choices) == 0 {
		return "", ErrUnrecognizedImageFormat
	}

	return extractImageReference(apiResp.Choices[0].Message)
}
