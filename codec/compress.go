package codec

import (
	"fmt"

	"github.com/WelcomerTeam/czlib"
)

// Inflate decompresses a zlib compressed frame. Binary frames received by
// the json codec are compressed when identify requested compression.
func Inflate(frame []byte) ([]byte, error) {
	data, err := czlib.Decompress(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress frame: %w", err)
	}

	return data, nil
}
