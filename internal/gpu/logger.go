//go:build !nogpu

package gpu

import (
	"log/slog"

	"github.com/gogpu/mosaic"
)

// SetLogger routes accelerator logging to l. mosaic.SetLogger and
// mosaic.RegisterAccelerator call it; nil falls back to mosaic.Logger.
func (a *MosaicAccelerator) SetLogger(l *slog.Logger) {
	a.log.Store(l)
}

func (a *MosaicAccelerator) logger() *slog.Logger {
	if l := a.log.Load(); l != nil {
		return l
	}
	return mosaic.Logger()
}
