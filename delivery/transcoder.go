package delivery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FFmpeg halves the resolution of media by running an ffmpeg subprocess.
type FFmpeg struct {
	path   string
	logger *zap.Logger
}

// NewFFmpeg creates a transcoder using the ffmpeg binary at path.
func NewFFmpeg(path string, logger *zap.Logger) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path, logger: logger}
}

// Transcode writes data to a temporary file, downscales it and returns the
// re-encoded bytes. Video is re-encoded to H.264 in an mp4 container.
func (f *FFmpeg) Transcode(ctx context.Context, data []byte, ext string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "embed-bot-transcode-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in"+ext)
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write input: %w", err)
	}

	outExt := ext
	args := []string{"-y", "-loglevel", "error", "-i", in, "-vf", "scale=trunc(iw/4)*2:trunc(ih/4)*2"}
	if isVideo(data) {
		outExt = ".mp4"
		args = append(args, "-c:v", "libx264", "-crf", "28", "-preset", "veryfast", "-c:a", "aac", "-movflags", "+faststart")
	}
	out := filepath.Join(dir, "out"+outExt)
	args = append(args, out)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.path, args...)
	cmd.Stderr = &stderr

	f.logger.Debug("Running ffmpeg", zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	result, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return result, nil
}
