package mosaic

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"github.com/gogpu/mosaic/internal/parallel"
)

// =============================================================================
// Engine Behaviour Tests
// =============================================================================

func TestApply_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	boxes := Boxes{
		{Left: 10, Top: 12, Width: 90, Height: 60},
		{Left: 150.5, Top: 40.25, Width: 33.3, Height: 47.9},
		{Left: 300, Top: 200, Width: 40, Height: 40},
	}

	a := NewFrame(320, 240, FormatRGBA8)
	fillGradient(a)
	b := cloneFrame(a)

	if err := e.Apply(a, boxes, 1234); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := e.Apply(b, boxes, 1234); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(a.Data, b.Data) {
		t.Error("two calls with equal inputs produced different output")
	}
}

func TestApply_SeedSensitivity(t *testing.T) {
	e := newTestEngine(t)
	boxes := Boxes{{Left: 20, Top: 20, Width: 120, Height: 80}}

	orig := NewFrame(200, 150, FormatRGBA8)
	fillGradient(orig)

	differ := 0
	for seed := uint32(0); seed < 8; seed++ {
		a, b := cloneFrame(orig), cloneFrame(orig)
		if err := e.Apply(a, boxes, seed); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if err := e.Apply(b, boxes, seed+100); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if !bytes.Equal(a.Data, b.Data) {
			differ++
		}
	}
	if differ == 0 {
		t.Error("no seed pair produced a different output")
	}
}

func TestApply_NoBoxesIsNoop(t *testing.T) {
	e := newTestEngine(t)
	frame := NewFrame(64, 48, FormatRGBA8)
	fillGradient(frame)
	want := cloneFrame(frame)

	if err := e.Apply(frame, nil, 7); err != nil {
		t.Fatalf("Apply(nil boxes): %v", err)
	}
	if err := e.ApplyFlat(frame, []float32{}, 7); err != nil {
		t.Fatalf("ApplyFlat(empty): %v", err)
	}
	if !bytes.Equal(frame.Data, want.Data) {
		t.Error("frame changed without boxes")
	}
}

func TestApply_OutOfFrameTolerated(t *testing.T) {
	e := newTestEngine(t)
	frame := NewFrame(640, 480, FormatRGBA8)
	fillGradient(frame)
	want := cloneFrame(frame)

	boxes := Boxes{
		{Left: -100, Top: -100, Width: 10, Height: 10},
		{Left: 700, Top: 10, Width: 50, Height: 50},
		{Left: 10, Top: 10, Width: 0, Height: 30},
		{Left: 10, Top: 10, Width: -5, Height: 30},
	}
	if err := e.Apply(frame, boxes, 42); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bytes.Equal(frame.Data, want.Data) {
		t.Error("out-of-frame boxes mutated the frame")
	}
}

func TestApply_ClipsToFrameEdge(t *testing.T) {
	e := newTestEngine(t)
	frame := NewFrame(640, 480, FormatRGBA8)
	fillGradient(frame)
	orig := cloneFrame(frame)

	if err := e.Apply(frame, Boxes{{Left: 630, Top: 470, Width: 50, Height: 50}}, 42); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	inside := image.Rect(630, 470, 640, 480)
	changed := 0
	for y := range 480 {
		for x := range 640 {
			same := bytes.Equal(pixelAt(frame, x, y), pixelAt(orig, x, y))
			if !(image.Point{X: x, Y: y}).In(inside) {
				if !same {
					t.Fatalf("pixel (%d, %d) outside [630,640)x[470,480) changed", x, y)
				}
				continue
			}
			if !same {
				changed++
			}
		}
	}
	if changed == 0 {
		t.Error("no pixel inside the clipped region changed")
	}
}

func TestApply_BlockMeans(t *testing.T) {
	cfg := BlockConfig{Cells: 1, Jitter: 1, MinBlock: 8, MaxBlock: 8}
	e := newTestEngine(t, WithBlockConfig(cfg))

	frame := NewFrame(64, 48, FormatRGBA8)
	fillGradient(frame)
	orig := cloneFrame(frame)

	box := BoundingBox{Left: 8, Top: 8, Width: 40, Height: 32}
	if err := e.Apply(frame, Boxes{box}, 99); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	r := Clip(box, 64, 48)
	pat := DerivePattern(99, 0, r.Dx(), r.Dy(), cfg)
	if pat.Size != 8 {
		t.Fatalf("pattern size = %d, want 8", pat.Size)
	}

	// Reference: group pixels by containing block and average them.
	type key struct{ col, row int }
	sums := make(map[key][4]int)
	counts := make(map[key]int)
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			k := key{(x - r.X0 + pat.OffsetX) / 8, (y - r.Y0 + pat.OffsetY) / 8}
			s := sums[k]
			for c, v := range pixelAt(orig, x, y) {
				s[c] += int(v)
			}
			sums[k] = s
			counts[k]++
		}
	}

	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			k := key{(x - r.X0 + pat.OffsetX) / 8, (y - r.Y0 + pat.OffsetY) / 8}
			n := counts[k]
			got := pixelAt(frame, x, y)
			for c := range 4 {
				want := byte((sums[k][c] + n/2) / n)
				if got[c] != want {
					t.Fatalf("pixel (%d, %d) channel %d = %d, want block mean %d", x, y, c, got[c], want)
				}
			}
		}
	}
}

func TestApply_PitchPaddingUntouched(t *testing.T) {
	formats := []Format{FormatRGBA8, FormatBGRA8, FormatRGB8, FormatGray8}
	for _, f := range formats {
		t.Run(f.String(), func(t *testing.T) {
			e := newTestEngine(t)
			const w, h = 37, 21
			pitch := f.RowBytes(w) + 13
			frame := NewFrameWithPitch(w, h, pitch, f)
			fillBytes(frame, 0xEE)
			fillGradient(frame)

			full := Boxes{{Left: -5, Top: -5, Width: 100, Height: 100}}
			if err := e.Apply(frame, full, 5); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			for y := range h {
				for i := f.RowBytes(w); i < pitch; i++ {
					if b := frame.Data[y*pitch+i]; b != 0xEE {
						t.Fatalf("padding byte %d of row %d = %#x, want 0xEE", i, y, b)
					}
				}
			}
		})
	}
}

func TestApply_ShortLastRow(t *testing.T) {
	e := newTestEngine(t)
	const w, h, pitch = 10, 6, 48
	frame := Frame{
		Data:   make([]byte, (h-1)*pitch+w*4),
		Width:  w,
		Height: h,
		Pitch:  pitch,
	}
	fillGradient(frame)

	if err := e.Apply(frame, Boxes{{Left: 0, Top: 0, Width: w, Height: h}}, 3); err != nil {
		t.Fatalf("Apply on unpadded last row: %v", err)
	}
}

func TestApply_NV12(t *testing.T) {
	e := newTestEngine(t)
	const w, h = 32, 16
	frame := NewFrame(w, h, FormatNV12)
	fillGradient(frame)
	orig := cloneFrame(frame)

	if err := e.Apply(frame, Boxes{{Left: 5, Top: 4, Width: 12, Height: 8}}, 11); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Odd edges widen the chroma rect to whole quads: luma columns 4 and 17
	// stay intact but share chroma columns 2 and 8 with the box.
	luma := image.Rect(5, 4, 17, 12)
	chroma := image.Rect(2, 2, 9, 6)
	planes, origPlanes := frame.planes(), orig.planes()

	for i, bounds := range []image.Rectangle{luma, chroma} {
		p, o := planes[i], origPlanes[i]
		changed := 0
		for y := range p.height {
			for x := range p.width {
				off := y*p.pitch + x*p.bpp
				same := bytes.Equal(p.data[off:off+p.bpp], o.data[off:off+p.bpp])
				if !(image.Point{X: x, Y: y}).In(bounds) {
					if !same {
						t.Fatalf("plane %d sample (%d, %d) outside %v changed", i, x, y, bounds)
					}
				} else if !same {
					changed++
				}
			}
		}
		if changed == 0 {
			t.Errorf("plane %d: nothing inside %v changed", i, bounds)
		}
	}
}

func TestApply_OverlapLastWriterWins(t *testing.T) {
	e := newTestEngine(t)
	frame := NewFrame(120, 90, FormatRGBA8)
	fillGradient(frame)
	want := cloneFrame(frame)

	boxes := Boxes{
		{Left: 10, Top: 10, Width: 60, Height: 50},
		{Left: 40, Top: 30, Width: 60, Height: 50},
	}
	if err := e.Apply(frame, boxes, 77); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Running the planned jobs one at a time in index order gives the same result.
	jobs := PlanRegions(want.Width, want.Height, boxes, 77, e.BlockConfig())
	for i := range jobs {
		if err := e.pixelateCPU(want, jobs[i:i+1]); err != nil {
			t.Fatalf("pixelateCPU(job %d): %v", i, err)
		}
	}
	if !bytes.Equal(frame.Data, want.Data) {
		t.Error("overlapping regions did not resolve in index order")
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestApply_InvalidFrame(t *testing.T) {
	e := newTestEngine(t)
	boxes := Boxes{{Left: 0, Top: 0, Width: 8, Height: 8}}

	tests := []struct {
		name  string
		frame Frame
	}{
		{"nil buffer", Frame{Width: 8, Height: 8, Pitch: 32}},
		{"zero width", Frame{Data: make([]byte, 64), Height: 8, Pitch: 32}},
		{"negative height", Frame{Data: make([]byte, 64), Width: 8, Height: -1, Pitch: 32}},
		{"pitch too small", Frame{Data: make([]byte, 256), Width: 8, Height: 8, Pitch: 31}},
		{"short buffer", Frame{Data: make([]byte, 255), Width: 8, Height: 8, Pitch: 32}},
		{"unknown format", Frame{Data: make([]byte, 256), Width: 8, Height: 8, Pitch: 32, Format: 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.Apply(tt.frame, boxes, 1); !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("Apply = %v, want ErrInvalidFrame", err)
			}
			if err := e.ApplyFlat(tt.frame, []float32{1, 2, 3}, 1); !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("ApplyFlat = %v, want ErrInvalidFrame before box validation", err)
			}
		})
	}
}

func TestApplyFlat_InvalidBoxArray(t *testing.T) {
	e := newTestEngine(t)
	frame := NewFrame(16, 16, FormatRGBA8)
	fillGradient(frame)
	want := cloneFrame(frame)

	for _, flat := range [][]float32{{1}, {1, 2, 3}, {0, 0, 8, 8, 1}} {
		if err := e.ApplyFlat(frame, flat, 1); !errors.Is(err, ErrInvalidBoxArray) {
			t.Errorf("ApplyFlat(len %d) = %v, want ErrInvalidBoxArray", len(flat), err)
		}
	}
	if !bytes.Equal(frame.Data, want.Data) {
		t.Error("frame changed after box validation failure")
	}
}

func TestApply_ExecutionFailureAfterClose(t *testing.T) {
	e, err := NewEngine(WithCPUOnly(), WithWorkers(2))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.Close()

	frame := NewFrame(32, 32, FormatRGBA8)
	fillGradient(frame)
	want := cloneFrame(frame)

	boxes := Boxes{
		{Left: -50, Top: -50, Width: 10, Height: 10}, // skipped
		{Left: 4, Top: 4, Width: 16, Height: 16},
	}
	err = e.Apply(frame, boxes, 1)
	if !errors.Is(err, ErrExecutionFailure) {
		t.Fatalf("Apply after Close = %v, want ErrExecutionFailure", err)
	}
	if !errors.Is(err, parallel.ErrPoolClosed) {
		t.Errorf("Apply after Close = %v, want it to wrap ErrPoolClosed", err)
	}
	var re *RegionError
	if !errors.As(err, &re) || re.Index != 1 {
		t.Errorf("RegionError = %+v, want index 1", re)
	}
	if !bytes.Equal(frame.Data, want.Data) {
		t.Error("frame changed although the pool was closed")
	}
}

func TestRegionError(t *testing.T) {
	cause := errors.New("device lost")
	err := error(&RegionError{Index: 4, Err: cause})

	if !errors.Is(err, ErrExecutionFailure) {
		t.Error("RegionError should match ErrExecutionFailure")
	}
	if !errors.Is(err, cause) {
		t.Error("RegionError should unwrap to its cause")
	}
	if errors.Is(err, ErrInvalidFrame) {
		t.Error("RegionError should not match ErrInvalidFrame")
	}
	if got, want := err.Error(), "mosaic: region 4: device lost"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// =============================================================================
// Planning and Package-Level API Tests
// =============================================================================

func TestPlanRegions(t *testing.T) {
	boxes := Boxes{
		{Left: 10, Top: 10, Width: 20, Height: 20},
		{Left: -30, Top: 0, Width: 10, Height: 10}, // fully outside
		{Left: 90, Top: 90, Width: 20, Height: 20}, // clipped
	}
	jobs := PlanRegions(100, 100, boxes, 5, DefaultBlockConfig)

	if len(jobs) != 2 {
		t.Fatalf("len(jobs) = %d, want 2", len(jobs))
	}
	if jobs[0].Index != 0 || jobs[1].Index != 2 {
		t.Errorf("job indices = %d, %d, want 0, 2", jobs[0].Index, jobs[1].Index)
	}
	if want := (Region{X0: 90, Y0: 90, X1: 100, Y1: 100}); jobs[1].Region != want {
		t.Errorf("jobs[1].Region = %+v, want %+v", jobs[1].Region, want)
	}
	if want := DerivePattern(5, 2, 10, 10, DefaultBlockConfig); jobs[1].Pattern != want {
		t.Errorf("jobs[1].Pattern = %+v, want %+v", jobs[1].Pattern, want)
	}
}

func TestPackageApply(t *testing.T) {
	resetAccelerator()

	frame := NewFrame(64, 64, FormatRGBA8)
	fillGradient(frame)
	viaEngine := cloneFrame(frame)
	viaFlat := cloneFrame(frame)
	boxes := Boxes{{Left: 8, Top: 8, Width: 32, Height: 24}}

	if err := Apply(frame, boxes, 9); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := ApplyFlat(viaFlat, boxes.Flatten(), 9); err != nil {
		t.Fatalf("ApplyFlat: %v", err)
	}
	if err := newTestEngine(t).Apply(viaEngine, boxes, 9); err != nil {
		t.Fatalf("Engine.Apply: %v", err)
	}

	if !bytes.Equal(frame.Data, viaEngine.Data) {
		t.Error("package Apply differs from a default engine")
	}
	if !bytes.Equal(frame.Data, viaFlat.Data) {
		t.Error("ApplyFlat differs from Apply")
	}
	if Default() != Default() {
		t.Error("Default() should return the same engine")
	}
}

// =============================================================================
// Kernel Tests
// =============================================================================

func TestFillMean_RoundHalfUp(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want byte
	}{
		{"exact", []byte{10, 20}, 15},
		{"half rounds up", []byte{1, 2}, 2},
		{"third rounds down", []byte{1, 1, 2}, 1},
		{"two thirds rounds up", []byte{1, 2, 2}, 2},
		{"saturated", []byte{255, 255, 255, 255}, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append([]byte(nil), tt.in...)
			p := plane{data: data, width: len(data), height: 1, pitch: len(data), bpp: 1}
			fillMean(p, image.Rect(0, 0, len(data), 1))
			for i, v := range data {
				if v != tt.want {
					t.Errorf("pixel %d = %d, want %d", i, v, tt.want)
				}
			}
		})
	}
}

func TestPlaneGrid_Chroma(t *testing.T) {
	job := RegionJob{
		Region:  Region{X0: 5, Y0: 4, X1: 17, Y1: 12},
		Pattern: BlockPattern{Size: 9, OffsetX: 8, OffsetY: 3},
	}

	luma := planeGrid(job, 0)
	if luma.Bounds != image.Rect(5, 4, 17, 12) || luma.Size != 9 || luma.OffsetX != 8 || luma.OffsetY != 3 {
		t.Errorf("luma grid = %+v", luma)
	}

	chroma := planeGrid(job, 1)
	if chroma.Bounds != image.Rect(2, 2, 9, 6) {
		t.Errorf("chroma bounds = %v, want (2,2)-(9,6)", chroma.Bounds)
	}
	if chroma.Size != 4 || chroma.OffsetX != 0 || chroma.OffsetY != 1 {
		t.Errorf("chroma grid = size %d offset (%d, %d), want size 4 offset (0, 1)",
			chroma.Size, chroma.OffsetX, chroma.OffsetY)
	}

	tiny := planeGrid(RegionJob{Region: Region{X1: 2, Y1: 2}, Pattern: BlockPattern{Size: 1}}, 1)
	if tiny.Size != 1 || tiny.OffsetX != 0 {
		t.Errorf("size-1 chroma grid = %+v, want size 1", tiny)
	}
}
