package config

import (
    "log"
    "os"

    "gopkg.in/yaml.v2"
)

type Config struct {
    Server struct {
        Port string `yaml:"port"`
    } `yaml:"server"`
    MySQL struct {
        DSN string `yaml:"dsn"`
    } `yaml:"mysql"`
    AI struct {
        // OpenAI 兼容的文本生成服务地址（例如 https://openrouter.ai/api/v1）
        LLMBaseURL string `yaml:"llm_base_url"`
        LLMModel   string `yaml:"llm_model"`
        // 图像生成接口完整地址，每个分镜 POST 一次
        ImageAPI   string `yaml:"image_api"`
        ImageModel string `yaml:"image_model"`
        // 访问令牌，可被环境变量 CINEDRAFT_API_KEY 覆盖
        APIKey string `yaml:"api_key"`
    } `yaml:"ai"`

    Redis struct {
        Addr     string `yaml:"addr"`
        Password string `yaml:"password"`
    } `yaml:"redis"`
    MinIO struct {
        Endpoint  string `yaml:"endpoint"`
        AccessKey string `yaml:"access_key"`
        SecretKey string `yaml:"secret_key"`
        Bucket    string `yaml:"bucket"`
        UseSSL    bool   `yaml:"use_ssl"`
        Domain    string `yaml:"domain"`
    } `yaml:"minio"`
}

var AppConfig *Config

func InitConfig() {
    f, err := os.Open("config/config.yaml")
    if err != nil {
        log.Fatalf("配置文件读取失败: %v", err)
    }
    defer f.Close()
    decoder := yaml.NewDecoder(f)
    AppConfig = &Config{}
    if err := decoder.Decode(AppConfig); err != nil {
        log.Fatalf("配置文件解析失败: %v", err)
    }

    // 环境变量优先于配置文件，方便部署时注入密钥
    if v := os.Getenv("CINEDRAFT_API_KEY"); v != "" {
        AppConfig.AI.APIKey = v
    }
}
