package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/branchsnap/branchsnap/gitexec"
)

// codecVersion is the current storable envelope version. Bump it when the
// record shape changes; decode keeps accepting every older shape.
const codecVersion = 1

// envelope is the storable form of a commit or diff sequence. Order in
// Items is the order that was encoded.
type envelope[T any] struct {
	V     int `json:"v"`
	Items []T `json:"items"`
}

func encodeSeq[T any](items []T) ([]byte, error) {
	data, err := json.Marshal(envelope[T]{V: codecVersion, Items: items})
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return data, nil
}

// decodeSeq is the tolerant inverse of encodeSeq. Nil or empty input, a
// bare-array blob from before the envelope existed, and any blob that does
// not decode as a sequence at all, all yield an empty slice — never an
// error. Rows written by incompatible historical formats must stay readable.
func decodeSeq[T any](data []byte) []T {
	if len(data) == 0 {
		return nil
	}
	var env envelope[T]
	if err := json.Unmarshal(data, &env); err == nil && env.Items != nil {
		return env.Items
	}
	var bare []T
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare
	}
	return nil
}

// EncodeCommits converts commits to their storable form, preserving order.
func EncodeCommits(commits []gitexec.Commit) ([]byte, error) {
	return encodeSeq(commits)
}

// DecodeCommits is the inverse of EncodeCommits. Absent or legacy-shaped
// blobs decode to an empty sequence.
func DecodeCommits(data []byte) []gitexec.Commit {
	return decodeSeq[gitexec.Commit](data)
}

// EncodeDiffs converts diff records to their storable form, preserving order.
func EncodeDiffs(diffs []gitexec.FileDiff) ([]byte, error) {
	return encodeSeq(diffs)
}

// DecodeDiffs is the inverse of EncodeDiffs. Absent or legacy-shaped blobs
// decode to an empty sequence.
func DecodeDiffs(data []byte) []gitexec.FileDiff {
	return decodeSeq[gitexec.FileDiff](data)
}
