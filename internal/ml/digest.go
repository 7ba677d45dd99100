package ml

import (
	"io"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"phishguard/pkg/errors"
)

const digestPrefix = "xxh64:"

// contentVersion identifies an artifact by its bytes. Used when the artifact
// declares no version of its own.
func contentVersion(data []byte) string {
	return digestPrefix + strconv.FormatUint(xxhash.Sum64(data), 16)
}

// fileVersion is contentVersion over the file at path
func fileVersion(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "failed to open model artifact")
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "failed to hash model artifact")
	}
	return digestPrefix + strconv.FormatUint(h.Sum64(), 16), nil
}
