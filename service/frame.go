package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ExtractLastFrame 抽取视频文件的最后一帧，上传 MinIO 后返回可访问的 URL。
// 只用于续作模式的种子图，不参与生成流水线本身。
func ExtractLastFrame(ctx context.Context, videoPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "cinedraft-frame")
	if err != nil {
		return "", fmt.Errorf("创建临时目录失败: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	framePath := filepath.Join(tmpDir, "last_frame.png")

	// -sseof -1 从末尾前 1 秒开始解码，-update 1 让输出只保留最后一帧
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-sseof", "-1",
		"-i", videoPath,
		"-update", "1",
		"-q:v", "2",
		framePath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg 抽帧失败: %v, output: %s", err, string(out))
	}

	f, err := os.Open(framePath)
	if err != nil {
		return "", fmt.Errorf("读取抽帧结果失败: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	objectName := fmt.Sprintf("frames/%s", filepath.Base(videoPath)+".png")
	return UploadToMinIO(f, objectName, stat.Size())
}
