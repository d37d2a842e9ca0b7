package models

import "time"

// 项目状态常量（流水线状态机，error 为吸收态）
const (
	ProjectStatusDraft            = "draft"             // 项目已创建，流水线未开始
	ProjectStatusGeneratingScript = "generating_script" // 正在请求剧本
	ProjectStatusGeneratingImages = "generating_images" // 剧本已生成，正在逐镜生图
	ProjectStatusCompleted        = "completed"         // 流水线跑完（允许部分分镜无图）
	ProjectStatusError            = "error"             // 剧本阶段失败，流水线中止
)

// 生成模式
const (
	ModeStoryboard        = "storyboard"         // 概念 -> 分镜图
	ModeVideoContinuation = "video_continuation" // 基于已有视频末帧续作
	ModeFreeform          = "freeform"           // 自由创作
)

// 自定义档位标记：style/duration 取该值时必须带上对应的自定义内容
const CustomOption = "custom"

type Project struct {
    ID              string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
    Title           string    `json:"title"`
    Mode            string    `json:"mode"`
    Genre           string    `json:"genre"`
    Style           string    `json:"style"`
    StyleCustom     string    `json:"styleCustom"`
    Duration        string    `json:"duration"`
    DurationMinutes float64   `json:"durationMinutes"`
    Premise         string    `json:"premise"`
    Status          string    `json:"status"`
    Progress        int       `json:"progress"`
    Script          Script    `gorm:"type:json" json:"script"`
    Log             RunLog    `gorm:"type:json" json:"log"`
    SeedFrame       string    `json:"seedFrame"`
    CreatedAt       time.Time `json:"createdAt"`
    UpdatedAt       time.Time `json:"updatedAt"`
}

func (Project) TableName() string {
    return "project"
}

// StyleLabel 返回用于提示词的风格文本，custom 档位使用用户自填内容
func (p *Project) StyleLabel() string {
	if p.Style == CustomOption && p.StyleCustom != "" {
		return p.StyleCustom
	}
	return p.Style
}
