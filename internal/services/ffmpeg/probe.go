package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProbeResult describes the audio properties ffprobe reported for a file.
type ProbeResult struct {
	SampleRate int
	Duration   time.Duration
}

// Probe inspects inputPath with ffprobe and returns the sample rate and
// duration of its first audio stream.
func (c *Client) Probe(ctx context.Context, inputPath string) (ProbeResult, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate:format=duration",
		"-of", "json",
		inputPath,
	}

	var output strings.Builder
	if err := c.exec.Run(ctx, c.ffprobeBinary, args, func(line string) {
		output.WriteString(line)
		output.WriteString("\n")
	}); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe: %w", err)
	}

	var payload struct {
		Streams []struct {
			SampleRate string `json:"sample_rate"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(output.String()), &payload); err != nil {
		return ProbeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := ProbeResult{}
	if len(payload.Streams) > 0 {
		if rate, err := strconv.Atoi(strings.TrimSpace(payload.Streams[0].SampleRate)); err == nil {
			result.SampleRate = rate
		}
	}
	if seconds, err := strconv.ParseFloat(strings.TrimSpace(payload.Format.Duration), 64); err == nil && seconds > 0 {
		result.Duration = time.Duration(seconds * float64(time.Second))
	}
	return result, nil
}
