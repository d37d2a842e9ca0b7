package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Script 是 LLM 返回的结构化剧本，整体作为 JSON 列存进 project 表
type Script struct {
	Title         string   `json:"title"`
	Logline       string   `json:"logline"`
	VisualContext string   `json:"visualContext"`
	Characters    []string `json:"characters"`
	Acts          []Act    `json:"acts"`
	Scenes        []Scene  `json:"scenes"`
}

type Act struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Scene 单个分镜。VisualPrompt 只含动作描述，视觉上下文由 Script.VisualContext 统一提供，
// 避免每个镜头的提示词重复携带同一段环境描写。
type Scene struct {
	ID             string `json:"id"`
	StartTime      string `json:"startTime"` // mm:ss 文本
	EndTime        string `json:"endTime"`
	Description    string `json:"description"`
	CameraMovement string `json:"cameraMovement"`
	VisualPrompt   string `json:"visualPrompt"`
	ImageURL       string `json:"imageUrl,omitempty"` // 生图失败时为空
}

// IsZero 判断剧本是否尚未生成（script 列为 NULL 时反序列化得到零值）
func (s Script) IsZero() bool {
	return s.Title == "" && len(s.Scenes) == 0
}

// 实现 driver.Valuer 接口: Go Struct -> JSON String (存入数据库)
// 剧本未生成时写 NULL，保持列的可空语义
func (s Script) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, nil
	}
	return json.Marshal(s)
}

// 实现 sql.Scanner 接口: JSON String -> Go Struct (从数据库读取)
func (s *Script) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, sok := value.(string); sok {
			bytes = []byte(str)
		} else {
			return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
		}
	}
	return json.Unmarshal(bytes, s)
}

// 运行日志级别
const (
	LogLevelInfo  = "info"
	LogLevelError = "error"
)

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// RunLog 流水线运行日志，整体作为 JSON 列存储
type RunLog []LogEntry

func (l RunLog) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *RunLog) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if str, sok := value.(string); sok {
			bytes = []byte(str)
		} else {
			return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", value))
		}
	}
	return json.Unmarshal(bytes, l)
}

// Errors 返回日志中 error 级别的条目
func (l RunLog) Errors() []LogEntry {
	var out []LogEntry
	for _, e := range l {
		if e.Level == LogLevelError {
			out = append(out, e)
		}
	}
	return out
}
