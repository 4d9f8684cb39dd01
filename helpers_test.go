package mosaic

import "testing"

// fillGradient writes a deterministic per-channel gradient into every logical
// pixel of every plane. Padding bytes are left alone.
func fillGradient(f Frame) {
	for _, p := range f.planes() {
		for y := range p.height {
			for x := range p.width {
				off := y*p.pitch + x*p.bpp
				for c := range p.bpp {
					p.data[off+c] = byte(x*(c+1) + y*(c+2)*3 + c*61)
				}
			}
		}
	}
}

// fillBytes sets every byte of the frame, padding included.
func fillBytes(f Frame, v byte) {
	for i := range f.Data {
		f.Data[i] = v
	}
}

func cloneFrame(f Frame) Frame {
	c := f
	c.Data = append([]byte(nil), f.Data...)
	return c
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(append([]EngineOption{WithCPUOnly()}, opts...)...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

// pixelAt returns the bytes of pixel (x, y) of a packed frame.
func pixelAt(f Frame, x, y int) []byte {
	bpp := f.Format.BytesPerPixel()
	off := y*f.Pitch + x*bpp
	return f.Data[off : off+bpp]
}
