package corpus

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

// BlockRange is a byte range containing (at most) blockDocs complete lines,
// with start aligned to the beginning of a line and end one past the
// terminator of the block's last line.
type BlockRange struct {
	BlockID int
	Start   int64
	End     int64
}

// Partition scans path counting line terminators and streams BlockRange
// values on the returned channel without ever loading the file into
// memory; workers later open the file independently and seek to their
// range. The scan runs in its own goroutine and can be cancelled via ctx;
// a scan error is delivered as the sole value on the returned error
// channel after the range channel closes.
func Partition(ctx context.Context, path string, blockDocs int) (<-chan BlockRange, <-chan error) {
	ranges := make(chan BlockRange)
	errCh := make(chan error, 1)

	go func() {
		defer close(ranges)
		defer close(errCh)

		if blockDocs <= 0 {
			errCh <- fmt.Errorf("spimidx: invalid block size %d", blockDocs)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			errCh <- fmt.Errorf("spimidx: opening corpus: %w", err)
			return
		}
		defer f.Close()

		reader := bufio.NewReaderSize(f, 1<<20)

		var (
			blockID    int
			blockStart int64
			offset     int64
			linesInBlk int
		)

		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			chunk, readErr := reader.ReadBytes('\n')
			offset += int64(len(chunk))

			if len(chunk) > 0 {
				linesInBlk++
			}

			if linesInBlk == blockDocs {
				select {
				case ranges <- BlockRange{BlockID: blockID, Start: blockStart, End: offset}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
				blockID++
				blockStart = offset
				linesInBlk = 0
			}

			if readErr != nil {
				break
			}
		}

		// Flush a final short block for any trailing lines (the last line
		// may lack a terminator).
		if linesInBlk > 0 {
			select {
			case ranges <- BlockRange{BlockID: blockID, Start: blockStart, End: offset}:
			case <-ctx.Done():
				errCh <- ctx.Err()
			}
		}
	}()

	return ranges, errCh
}
