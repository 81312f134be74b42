package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

const (
	postingUIDs  byte = 0
	postingCount byte = 1
)

// ErrBadPosting is returned for index values that do not decode.
var ErrBadPosting = errors.New("index: bad posting")

// Posting is the decoded value of one index entry.
type Posting struct {
	// UIDs is nil when the entry stores a count only.
	UIDs  *roaring64.Bitmap
	Count int64
}

// EncodeUIDs serializes a record-id set.
func EncodeUIDs(uids *roaring64.Bitmap) ([]byte, error) {
	data, err := uids.ToBytes()
	if err != nil {
		return nil, err
	}
	return append([]byte{postingUIDs}, data...), nil
}

// EncodeCount serializes a posting that only knows how many records match.
func EncodeCount(n int64) []byte {
	return binary.AppendUvarint([]byte{postingCount}, uint64(n))
}

// DecodePosting parses an index value.
func DecodePosting(data []byte) (Posting, error) {
	if len(data) == 0 {
		return Posting{}, fmt.Errorf("%w: empty value", ErrBadPosting)
	}
	switch data[0] {
	case postingUIDs:
		uids := roaring64.New()
		if err := uids.UnmarshalBinary(data[1:]); err != nil {
			return Posting{}, fmt.Errorf("%w: %v", ErrBadPosting, err)
		}
		return Posting{UIDs: uids, Count: int64(uids.GetCardinality())}, nil
	case postingCount:
		n, k := binary.Uvarint(data[1:])
		if k <= 0 {
			return Posting{}, fmt.Errorf("%w: bad count", ErrBadPosting)
		}
		return Posting{Count: int64(n)}, nil
	}
	return Posting{}, fmt.Errorf("%w: unknown kind %d", ErrBadPosting, data[0])
}

// Qualifier builds the column qualifier of an entry.
func Qualifier(shard, datatype string) string {
	return shard + "\x00" + datatype
}

// SplitQualifier returns the shard and datatype of a qualifier.
func SplitQualifier(q string) (shard, datatype string) {
	shard, datatype, _ = strings.Cut(q, "\x00")
	return shard, datatype
}
