// Package canvas implements the chunked bulk-transfer data path: splitting a
// serialized canvas into fixed-size chunks on the sending side and
// reassembling them on the receiving side.
package canvas

import "github.com/inkwell-paint/drawnet/internal/wire"

// PlanChunks returns the chunk count for a blob of size bytes:
// ceil(size/chunkSize). An empty blob plans zero chunks; the session layer
// announces such a transfer with a single sentinel chunk instead.
func PlanChunks(size uint64, chunkSize int) uint32 {
	cs := uint64(chunkSize)
	return uint32((size + cs - 1) / cs)
}

// Split slices blob into CANVAS_DATA chunk payloads in index order. The
// chunk data aliases blob; callers must not mutate blob until the chunks
// have been written out.
func Split(blob []byte, chunkSize int) []wire.CanvasChunk {
	total := PlanChunks(uint64(len(blob)), chunkSize)
	chunks := make([]wire.CanvasChunk, 0, total)
	for i := uint32(0); i < total; i++ {
		start := int(i) * chunkSize
		end := start + chunkSize
		if end > len(blob) {
			end = len(blob)
		}
		chunks = append(chunks, wire.CanvasChunk{
			Index:       i,
			TotalChunks: total,
			TotalSize:   uint64(len(blob)),
			Data:        blob[start:end],
		})
	}
	return chunks
}
