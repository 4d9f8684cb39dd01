package video

import (
	"encoding/json"
	"fmt"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Info describes the first video stream of a file.
type Info struct {
	Width     int
	Height    int
	FrameRate string // rational, as reported by ffprobe ("30000/1001")
	Frames    int    // 0 when the container does not record a count
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbFrames     string `json:"nb_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe runs ffprobe on path.
func Probe(path string) (Info, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return Info{}, fmt.Errorf("video: ffprobe %s: %w", path, err)
	}
	info, err := parseProbe(out)
	if err != nil {
		return Info{}, fmt.Errorf("video: %s: %w", path, err)
	}
	return info, nil
}

func parseProbe(out string) (Info, error) {
	var p probeOutput
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, s := range p.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return Info{}, fmt.Errorf("video stream has no size")
		}
		info := Info{Width: s.Width, Height: s.Height, FrameRate: s.AvgFrameRate}
		if info.FrameRate == "" || info.FrameRate == "0/0" {
			info.FrameRate = s.RFrameRate
		}
		if info.FrameRate == "" || info.FrameRate == "0/0" {
			info.FrameRate = "25"
		}
		if n, err := strconv.Atoi(s.NbFrames); err == nil {
			info.Frames = n
		}
		return info, nil
	}
	return Info{}, fmt.Errorf("no video stream")
}
