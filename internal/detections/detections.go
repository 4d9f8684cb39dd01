// Package detections reads detector output for the mosaic command-line tools.
//
// A detections file is JSON. It is either a bare list of detections applied
// to every frame:
//
//	[{"box": [100, 100, 64, 64], "label": "face", "score": 0.93}]
//
// or an object listing detections per frame index, optionally with a
// "static" list applied to every frame:
//
//	{
//	  "static": [{"box": [0, 0, 320, 40]}],
//	  "frames": [
//	    {"frame": 0, "detections": [{"box": [100, 100, 64, 64]}]},
//	    {"frame": 1, "detections": [{"box": [104, 98, 64, 64]}]}
//	  ]
//	}
//
// Boxes are [left, top, width, height] in frame pixels.
package detections

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gogpu/mosaic"
)

// ErrMalformed is returned for files that decode but describe invalid data.
var ErrMalformed = errors.New("detections: malformed file")

// Detection is one detector hit.
type Detection struct {
	Box   []float32 `json:"box"`
	Label string    `json:"label,omitempty"`
	Score float32   `json:"score,omitempty"`
}

// FrameDetections lists the detections of one frame.
type FrameDetections struct {
	Frame      int         `json:"frame"`
	Detections []Detection `json:"detections"`
}

type file struct {
	Static []Detection       `json:"static"`
	Frames []FrameDetections `json:"frames"`
}

// Set holds the boxes to pixelate per frame.
type Set struct {
	static  mosaic.Boxes
	byFrame map[int]mosaic.Boxes
}

// Options filters detections while loading.
type Options struct {
	// MinScore drops detections scored below it. Detections without a
	// score are always kept.
	MinScore float32

	// Labels, when not empty, keeps only detections with one of these labels.
	Labels []string
}

// Load reads a detections file.
func Load(path string, opts Options) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("detections: open %s: %w", path, err)
	}
	defer f.Close()

	s, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a detections document from r.
func Parse(r io.Reader, opts Options) (*Set, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("detections: read: %w", err)
	}

	var doc file
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &doc.Static)
	} else {
		err = json.Unmarshal(trimmed, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("detections: parse: %w", err)
	}

	static, err := opts.boxes(doc.Static)
	if err != nil {
		return nil, err
	}
	s := &Set{
		static:  static,
		byFrame: make(map[int]mosaic.Boxes, len(doc.Frames)),
	}
	for _, fd := range doc.Frames {
		if fd.Frame < 0 {
			return nil, fmt.Errorf("%w: negative frame index %d", ErrMalformed, fd.Frame)
		}
		boxes, err := opts.boxes(fd.Detections)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", fd.Frame, err)
		}
		// Repeated frame entries accumulate.
		s.byFrame[fd.Frame] = append(s.byFrame[fd.Frame], boxes...)
	}
	return s, nil
}

// Static returns a set that applies boxes to every frame.
func Static(boxes mosaic.Boxes) *Set {
	return &Set{static: boxes, byFrame: map[int]mosaic.Boxes{}}
}

// Boxes returns the boxes of frame: the static boxes first, then the
// frame's own detections in file order.
func (s *Set) Boxes(frame int) mosaic.Boxes {
	own := s.byFrame[frame]
	if len(own) == 0 {
		return s.static
	}
	if len(s.static) == 0 {
		return own
	}
	out := make(mosaic.Boxes, 0, len(s.static)+len(own))
	out = append(out, s.static...)
	return append(out, own...)
}

// Frames returns the frame indices that carry their own detections, in
// ascending order.
func (s *Set) Frames() []int {
	idx := make([]int, 0, len(s.byFrame))
	for i := range s.byFrame {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func (o Options) keep(d Detection) bool {
	if d.Score != 0 && d.Score < o.MinScore {
		return false
	}
	if len(o.Labels) == 0 {
		return true
	}
	for _, l := range o.Labels {
		if d.Label == l {
			return true
		}
	}
	return false
}

func (o Options) boxes(ds []Detection) (mosaic.Boxes, error) {
	var out mosaic.Boxes
	for i, d := range ds {
		if len(d.Box) != 4 {
			return nil, fmt.Errorf("%w: detection %d has %d box values, want 4", ErrMalformed, i, len(d.Box))
		}
		if !o.keep(d) {
			continue
		}
		out = append(out, mosaic.BoundingBox{Left: d.Box[0], Top: d.Box[1], Width: d.Box[2], Height: d.Box[3]})
	}
	return out, nil
}

// ParseBox parses a "left,top,width,height" command-line box.
func ParseBox(s string) (mosaic.BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return mosaic.BoundingBox{}, fmt.Errorf("%w: box %q needs 4 comma-separated values", ErrMalformed, s)
	}
	var v [4]float32
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return mosaic.BoundingBox{}, fmt.Errorf("%w: box %q: %w", ErrMalformed, s, err)
		}
		v[i] = float32(f)
	}
	return mosaic.BoundingBox{Left: v[0], Top: v[1], Width: v[2], Height: v[3]}, nil
}

// Merge returns a set holding the boxes of s followed by extra on every frame.
func (s *Set) Merge(extra mosaic.Boxes) *Set {
	if len(extra) == 0 {
		return s
	}
	static := make(mosaic.Boxes, 0, len(s.static)+len(extra))
	static = append(static, s.static...)
	static = append(static, extra...)
	return &Set{static: static, byFrame: s.byFrame}
}
