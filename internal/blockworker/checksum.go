package blockworker

import (
	"encoding/hex"
	"os"

	"github.com/cespare/xxhash/v2"
)

// writeChecksum writes a sibling "<path>.xxh64" file holding the hex
// digest of path's contents, so the merger can detect a shard that was
// torn mid-write before trusting it.
func writeChecksum(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sum := xxhash.Sum64(content)
	return os.WriteFile(path+".xxh64", []byte(hex.EncodeToString(sum64ToBytes(sum))), 0o644)
}

// VerifyChecksum recomputes a file's xxhash64 and compares it against its
// sibling ".xxh64" file. A missing checksum file is treated as valid (for
// externally supplied block files in tests); a mismatch is not.
func VerifyChecksum(path string) (bool, error) {
	want, err := os.ReadFile(path + ".xxh64")
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	got := hex.EncodeToString(sum64ToBytes(xxhash.Sum64(content)))
	return got == string(want), nil
}

func sum64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
	return b
}
