package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"CineDraft-server/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var MinioClient *minio.Client

// InitMinIO 初始化连接，在 main.go 中调用
func InitMinIO() {
	cfg := config.AppConfig.MinIO
	var err error
	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatalf("MinIO 初始化失败: %v", err)
	}
	log.Println("MinIO 连接成功")
}

// UploadToMinIO 通用上传函数，从 io.Reader 上传到 MinIO，返回可访问的 URL
// 参数:
//   - reader: 文件数据流
//   - objectName: 云端存储路径，例如 "projects/123/scene-1.png"
//   - size: 文件大小（字节），-1 表示未知大小
func UploadToMinIO(reader io.Reader, objectName string, size int64) (string, error) {
	ctx := context.Background()
	cfg := config.AppConfig.MinIO
	bucketName := cfg.Bucket

	// 确保 Bucket 存在
	exists, err := MinioClient.BucketExists(ctx, bucketName)
	if err != nil {
		return "", fmt.Errorf("检查 Bucket 失败: %w", err)
	}
	if !exists {
		err = MinioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{})
		if err != nil {
			return "", fmt.Errorf("创建 Bucket 失败: %w", err)
		}
		log.Printf("Bucket '%s' 已创建", bucketName)
	}

	// 根据文件扩展名确定 ContentType
	contentType := "application/octet-stream"
	ext := filepath.Ext(objectName)
	switch ext {
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	case ".webp":
		contentType = "image/webp"
	case ".mp4":
		contentType = "video/mp4"
	}

	// 上传文件
	_, err = MinioClient.PutObject(ctx, bucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("上传到 MinIO 失败: %w", err)
	}

	// 生成预签名 URL（72小时有效期）
	expiry := time.Hour * 72
	reqParams := make(url.Values)

	presignedURL, err := MinioClient.PresignedGetObject(ctx, bucketName, objectName, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("生成签名 URL 失败: %w", err)
	}

	log.Printf("文件已上传: %s", objectName)
	return presignedURL.String(), nil
}

// StoreImageReference 图像引用落盘：内联 data URI 体积太大不适合直接进 DB，
// 解码后转存 MinIO 并换成预签名 URL；远端 URL 原样保留。
// MinIO 未初始化（如单测环境）时原样返回。
func StoreImageReference(ctx context.Context, projectID string, sceneIndex int, ref string) (string, error) {
	if MinioClient == nil || !strings.HasPrefix(ref, dataURIPrefix) {
		return ref, nil
	}

	data, ext, err := decodeDataURI(ref)
	if err != nil {
		return "", fmt.Errorf("解析 data URI 失败: %w", err)
	}

	objectName := fmt.Sprintf("projects/%s/scene-%d%s", projectID, sceneIndex+1, ext)
	return UploadToMinIO(bytes.NewReader(data), objectName, int64(len(data)))
}

// decodeDataURI 解码 data:image/...;base64,xxxx 形式的引用，返回字节与扩展名
func decodeDataURI(uri string) ([]byte, string, error) {
	comma := strings.Index(uri, ",")
	if comma < 0 {
		return nil, "", fmt.Errorf("data URI 缺少数据段")
	}
	meta, payload := uri[:comma], uri[comma+1:]

	ext := ".png"
	if strings.Contains(meta, "image/jpeg") {
		ext = ".jpg"
	} else if strings.Contains(meta, "image/webp") {
		ext = ".webp"
	}

	if !strings.Contains(meta, "base64") {
		return nil, "", fmt.Errorf("不支持的 data URI 编码: %s", meta)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", err
	}
	return data, ext, nil
}
