package mosaic

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// FrameDigest returns the BLAKE2b-256 digest of the logical pixels of frame.
//
// Row padding is excluded, so two frames with equal pixels and different
// pitches hash equal. For planar formats the chroma plane follows the luma
// plane.
func FrameDigest(frame Frame) ([blake2b.Size256]byte, error) {
	var sum [blake2b.Size256]byte
	if err := frame.Validate(); err != nil {
		return sum, err
	}

	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	for _, p := range frame.planes() {
		rowBytes := p.width * p.bpp
		for y := range p.height {
			h.Write(p.data[y*p.pitch:][:rowBytes])
		}
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// FrameDigestHex is FrameDigest encoded as lowercase hex.
func FrameDigestHex(frame Frame) (string, error) {
	sum, err := FrameDigest(frame)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}
