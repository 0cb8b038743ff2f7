package artifact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var coefficientsMagic = [4]byte{'P', 'P', 'E', 'C'}

// ErrCorrupt is returned for unreadable coefficient files
var ErrCorrupt = errors.New("corrupt coefficients")

// encodeCoefficients writes magic, a uint32 count and little-endian float64 values
func encodeCoefficients(w io.Writer, beta []float64) error {
	buf := make([]byte, 0, 8+8*len(beta))
	buf = append(buf, coefficientsMagic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(beta)))
	for _, b := range beta {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(b))
	}
	_, err := w.Write(buf)
	return err
}

func decodeCoefficients(data []byte) ([]float64, error) {
	if len(data) < 8 || !bytes.Equal(data[:4], coefficientsMagic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	n := int(binary.LittleEndian.Uint32(data[4:8]))
	if len(data) != 8+8*n {
		return nil, fmt.Errorf("%w: %d bytes for %d values", ErrCorrupt, len(data), n)
	}
	beta := make([]float64, n)
	for i := range beta {
		off := 8 + 8*i
		beta[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[off : off+8]))
		if math.IsNaN(beta[i]) || math.IsInf(beta[i], 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient %d", ErrCorrupt, i)
		}
	}
	return beta, nil
}
