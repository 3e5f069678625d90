package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/nvr-ai/go-camerax/images"
	"github.com/pkg/errors"
)

type ffprobeStream struct {
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type ffprobeResult struct {
	Streams []ffprobeStream `json:"streams"`
}

// VideoInfo is the size and aspect ratio class of a recorded video.
type VideoInfo struct {
	Width       int
	Height      int
	AspectRatio images.AspectRatio
}

// ProbeAspectRatio runs ffprobe on a video file and classifies its first
// video stream as 4:3 or 16:9.
func ProbeAspectRatio(ctx context.Context, path string) (VideoInfo, error) {
	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return VideoInfo{}, errors.Wrapf(err, "ffprobe %s: %s", path, bytes.TrimSpace(stderr.Bytes()))
	}
	return parseProbeOutput(stdout.Bytes())
}

func parseProbeOutput(data []byte) (VideoInfo, error) {
	var result ffprobeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return VideoInfo{}, errors.Wrap(err, "decode ffprobe output")
	}
	if len(result.Streams) == 0 {
		return VideoInfo{}, errors.New("ffprobe returned no streams")
	}

	for _, s := range result.Streams {
		// Older ffprobe builds omit codec_type for some containers.
		if s.CodecType != "" && s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			continue
		}
		ratio, err := images.ClassifyAspectRatio(s.Width, s.Height)
		if err != nil {
			return VideoInfo{}, err
		}
		return VideoInfo{Width: s.Width, Height: s.Height, AspectRatio: ratio}, nil
	}
	return VideoInfo{}, errors.New("ffprobe did not report a video stream size")
}
