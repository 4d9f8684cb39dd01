package detections

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/mosaic"
)

func box(l, t, w, h float32) mosaic.BoundingBox {
	return mosaic.BoundingBox{Left: l, Top: t, Width: w, Height: h}
}

func TestParseBareList(t *testing.T) {
	s, err := Parse(strings.NewReader(` [{"box": [1, 2, 3, 4]}, {"box": [5, 6, 7, 8], "label": "plate"}]`), Options{})
	require.NoError(t, err)

	want := mosaic.Boxes{box(1, 2, 3, 4), box(5, 6, 7, 8)}
	assert.Equal(t, want, s.Boxes(0))
	assert.Equal(t, want, s.Boxes(1234))
	assert.Empty(t, s.Frames())
}

func TestParsePerFrame(t *testing.T) {
	doc := `{
	  "static": [{"box": [0, 0, 10, 10]}],
	  "frames": [
	    {"frame": 2, "detections": [{"box": [20, 20, 8, 8]}]},
	    {"frame": 0, "detections": [{"box": [1, 1, 4, 4]}]},
	    {"frame": 2, "detections": [{"box": [30, 30, 8, 8]}]}
	  ]
	}`
	s, err := Parse(strings.NewReader(doc), Options{})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, s.Frames())
	assert.Equal(t, mosaic.Boxes{box(0, 0, 10, 10), box(1, 1, 4, 4)}, s.Boxes(0))
	assert.Equal(t, mosaic.Boxes{box(0, 0, 10, 10)}, s.Boxes(1))
	assert.Equal(t, mosaic.Boxes{box(0, 0, 10, 10), box(20, 20, 8, 8), box(30, 30, 8, 8)}, s.Boxes(2))
}

func TestParseFilters(t *testing.T) {
	doc := `[
	  {"box": [0, 0, 1, 1], "label": "face", "score": 0.9},
	  {"box": [1, 1, 1, 1], "label": "face", "score": 0.2},
	  {"box": [2, 2, 1, 1], "label": "plate"},
	  {"box": [3, 3, 1, 1], "label": "person", "score": 0.99}
	]`

	tests := []struct {
		name string
		opts Options
		want mosaic.Boxes
	}{
		{"none", Options{}, mosaic.Boxes{box(0, 0, 1, 1), box(1, 1, 1, 1), box(2, 2, 1, 1), box(3, 3, 1, 1)}},
		{"score", Options{MinScore: 0.5}, mosaic.Boxes{box(0, 0, 1, 1), box(2, 2, 1, 1), box(3, 3, 1, 1)}},
		{"labels", Options{Labels: []string{"face", "plate"}}, mosaic.Boxes{box(0, 0, 1, 1), box(1, 1, 1, 1), box(2, 2, 1, 1)}},
		{"both", Options{MinScore: 0.5, Labels: []string{"face"}}, mosaic.Boxes{box(0, 0, 1, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(strings.NewReader(doc), tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Boxes(0))
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"frames": [{"frame": -1, "detections": []}]}`), Options{})
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = Parse(strings.NewReader(`[{"box": [1, 2, 3]}]`), Options{})
	assert.True(t, errors.Is(err, ErrMalformed))

	_, err = Parse(strings.NewReader(`{"frames": [{"frame": 3, "detections": [{"box": [1, 2, 3, 4, 5]}]}]}`), Options{})
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.ErrorContains(t, err, "frame 3")

	_, err = Parse(strings.NewReader(`[{"box": "wide"}]`), Options{})
	assert.ErrorContains(t, err, "detections: parse")

	_, err = Parse(strings.NewReader(`{"frames": `), Options{})
	assert.ErrorContains(t, err, "detections: parse")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boxes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"box": [100, 100, 64, 64]}]`), 0o600))

	s, err := Load(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, mosaic.Boxes{box(100, 100, 64, 64)}, s.Boxes(7))

	_, err = Load(filepath.Join(t.TempDir(), "none.json"), Options{})
	assert.ErrorContains(t, err, "detections: open")
}

func TestStatic(t *testing.T) {
	s := Static(mosaic.Boxes{box(1, 1, 2, 2)})
	assert.Equal(t, mosaic.Boxes{box(1, 1, 2, 2)}, s.Boxes(0))
	assert.Empty(t, s.Frames())
}

func TestParseBox(t *testing.T) {
	b, err := ParseBox("10, 20.5,30,-4")
	require.NoError(t, err)
	assert.Equal(t, box(10, 20.5, 30, -4), b)

	for _, bad := range []string{"", "1,2,3", "1,2,3,4,5", "a,b,c,d"} {
		_, err := ParseBox(bad)
		assert.True(t, errors.Is(err, ErrMalformed), bad)
	}
}

func TestMerge(t *testing.T) {
	s, err := Parse(strings.NewReader(`{"static": [{"box": [0, 0, 1, 1]}], "frames": [{"frame": 1, "detections": [{"box": [5, 5, 1, 1]}]}]}`), Options{})
	require.NoError(t, err)

	m := s.Merge(mosaic.Boxes{box(9, 9, 2, 2)})
	assert.Equal(t, mosaic.Boxes{box(0, 0, 1, 1), box(9, 9, 2, 2)}, m.Boxes(0))
	assert.Equal(t, mosaic.Boxes{box(0, 0, 1, 1), box(9, 9, 2, 2), box(5, 5, 1, 1)}, m.Boxes(1))
	assert.Same(t, s, s.Merge(nil))
	// The original set is unchanged.
	assert.Equal(t, mosaic.Boxes{box(0, 0, 1, 1)}, s.Boxes(0))
}
