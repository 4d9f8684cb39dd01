//go:build !nogpu

package gpu

import _ "embed"

// Embedded WGSL shader sources.

//go:embed shaders/pixelate.wgsl
var pixelateShaderSource string

// PixelateShaderSource returns the WGSL source of the pixelate compute shader.
func PixelateShaderSource() string {
	return pixelateShaderSource
}
