package canvas

import (
	"errors"

	"github.com/inkwell-paint/drawnet/internal/wire"
)

var (
	ErrTransferTooLarge = errors.New("canvas: declared transfer size too large")
	ErrChunkMismatch    = errors.New("canvas: chunk metadata does not match transfer")
	ErrChunkOutOfRange  = errors.New("canvas: chunk index out of range")
	ErrChunkOverflow    = errors.New("canvas: chunk bytes exceed transfer size")
)

// MaxTransferSize bounds an inbound transfer allocation against a hostile
// sender. 64 MiB comfortably covers an uncompressed high-resolution canvas.
const MaxTransferSize = 64 << 20

// Assembler is the receive side of one canvas transfer. It is created on
// the first CANVAS_DATA chunk and discarded once complete or abandoned.
//
// Chunks are copied to index*chunkSize and counted; contiguity and
// deduplication are not enforced beyond what TCP already guarantees.
type Assembler struct {
	totalSize   uint64
	totalChunks uint32
	chunkSize   int
	received    uint32
	buf         []byte
}

// NewAssembler allocates the receive buffer from the first chunk's declared
// totals. A sentinel chunk announcing a zero-chunk transfer (empty canvas)
// yields an assembler that is immediately done with an empty buffer.
func NewAssembler(first wire.CanvasChunk, chunkSize int) (*Assembler, error) {
	if first.TotalSize > MaxTransferSize {
		return nil, ErrTransferTooLarge
	}
	if first.TotalChunks != PlanChunks(first.TotalSize, chunkSize) {
		return nil, ErrChunkMismatch
	}
	if first.TotalChunks == 0 {
		return &Assembler{chunkSize: chunkSize, buf: []byte{}}, nil
	}
	a := &Assembler{
		totalSize:   first.TotalSize,
		totalChunks: first.TotalChunks,
		chunkSize:   chunkSize,
		buf:         make([]byte, first.TotalSize),
	}
	if err := a.Apply(first); err != nil {
		return nil, err
	}
	return a, nil
}

// Apply copies one chunk into the transfer buffer.
func (a *Assembler) Apply(c wire.CanvasChunk) error {
	if c.TotalChunks != a.totalChunks || c.TotalSize != a.totalSize {
		return ErrChunkMismatch
	}
	if c.Index >= a.totalChunks {
		return ErrChunkOutOfRange
	}
	off := uint64(c.Index) * uint64(a.chunkSize)
	if off+uint64(len(c.Data)) > a.totalSize {
		return ErrChunkOverflow
	}
	copy(a.buf[off:], c.Data)
	a.received++
	return nil
}

// Done reports whether as many chunks have arrived as were announced.
func (a *Assembler) Done() bool {
	return a.received >= a.totalChunks
}

// Progress returns received and total chunk counts.
func (a *Assembler) Progress() (received, total uint32) {
	return a.received, a.totalChunks
}

// Bytes hands off the assembled buffer. The assembler must not be used
// afterwards.
func (a *Assembler) Bytes() []byte {
	buf := a.buf
	a.buf = nil
	return buf
}

// Abandon releases the partial buffer of an interrupted transfer.
func (a *Assembler) Abandon() {
	a.buf = nil
	a.received = 0
}
