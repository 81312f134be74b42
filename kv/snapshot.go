package kv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/google/btree"

	"github.com/hupe1980/rangestream/blobstore"
	"github.com/hupe1980/rangestream/internal/resource"
)

// Snapshot layout:
//
//	magic "RSKV" | version uint8 | compression uint8 | reserved uint16 | entries uint64
//	block*       | terminator (12 zero bytes)
//
// Blocks carry a stream of entries, each encoded as uvarint-prefixed row,
// family, qualifier and value. Entries may span blocks.
const (
	snapshotMagic   = "RSKV"
	snapshotVersion = 1
	headerSize      = 16

	// DefaultBlockSize is the uncompressed size of a snapshot block.
	DefaultBlockSize = 256 * 1024
)

// ErrBadSnapshot is returned when a blob is not a readable snapshot.
var ErrBadSnapshot = errors.New("kv: bad snapshot")

type saveOptions struct {
	compression Compression
	blockSize   int
}

// SaveOption configures Save.
type SaveOption func(*saveOptions)

// WithCompression selects the block compression.
func WithCompression(c Compression) SaveOption {
	return func(o *saveOptions) { o.compression = c }
}

// WithBlockSize sets the uncompressed block size.
func WithBlockSize(n int) SaveOption {
	return func(o *saveOptions) {
		if n > 0 {
			o.blockSize = n
		}
	}
}

// SnapshotInfo describes a saved or loaded snapshot.
type SnapshotInfo struct {
	Entries     uint64
	Compression Compression
	// Bytes is the size of the snapshot blob.
	Bytes int64
}

// Save writes a point-in-time copy of t to name in store. Writes to t may
// continue while the snapshot is written.
func Save(ctx context.Context, store blobstore.BlobStore, name string, t *Table, opts ...SaveOption) (SnapshotInfo, error) {
	o := saveOptions{compression: CompressionZSTD, blockSize: DefaultBlockSize}
	for _, fn := range opts {
		fn(&o)
	}

	t.mu.RLock()
	tree := t.tree.Clone()
	t.mu.RUnlock()

	w, err := store.Create(ctx, name)
	if err != nil {
		return SnapshotInfo{}, err
	}

	cw := &countingWriter{w: w}
	info := SnapshotInfo{Entries: uint64(tree.Len()), Compression: o.compression}

	if err := writeSnapshot(ctx, cw, tree, info, o); err != nil {
		_ = w.Close()
		return SnapshotInfo{}, fmt.Errorf("kv: save %s: %w", name, err)
	}
	if err := w.Sync(); err != nil {
		_ = w.Close()
		return SnapshotInfo{}, fmt.Errorf("kv: save %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("kv: save %s: %w", name, err)
	}

	info.Bytes = cw.n
	return info, nil
}

func writeSnapshot(ctx context.Context, w io.Writer, tree *btree.BTreeG[Entry], info SnapshotInfo, o saveOptions) error {
	var hdr [headerSize]byte
	copy(hdr[:], snapshotMagic)
	hdr[4] = snapshotVersion
	hdr[5] = byte(o.compression)
	binary.LittleEndian.PutUint64(hdr[8:], info.Entries)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	bw := &blockWriter{w: w, compression: o.compression, blockSize: o.blockSize}

	var (
		scratch []byte
		err     error
	)
	tree.Ascend(func(e Entry) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		scratch = appendEntry(scratch[:0], e)
		_, err = bw.Write(scratch)
		return err == nil
	})
	if err != nil {
		return err
	}
	return bw.Close()
}

type loadOptions struct {
	limits *resource.Controller
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

// WithLoadLimits throttles snapshot reads with the controller's IO limit.
func WithLoadLimits(rc *resource.Controller) LoadOption {
	return func(o *loadOptions) { o.limits = rc }
}

// Load reads the snapshot name from store into a new Table.
func Load(ctx context.Context, store blobstore.BlobStore, name string, opts ...LoadOption) (*Table, SnapshotInfo, error) {
	var o loadOptions
	for _, fn := range opts {
		fn(&o)
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, SnapshotInfo{}, err
	}
	defer func() { _ = blob.Close() }()

	if blob.Size() < headerSize {
		return nil, SnapshotInfo{}, fmt.Errorf("%w: %s is too small", ErrBadSnapshot, name)
	}

	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return nil, SnapshotInfo{}, err
	}
	defer func() { _ = rc.Close() }()

	r := bufio.NewReaderSize(resource.NewRateLimitedReader(ctx, rc, o.limits), 64*1024)

	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, SnapshotInfo{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if string(hdr[:4]) != snapshotMagic {
		return nil, SnapshotInfo{}, fmt.Errorf("%w: %s has no snapshot header", ErrBadSnapshot, name)
	}
	if hdr[4] != snapshotVersion {
		return nil, SnapshotInfo{}, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, hdr[4])
	}

	info := SnapshotInfo{
		Entries:     binary.LittleEndian.Uint64(hdr[8:]),
		Compression: Compression(hdr[5]),
		Bytes:       blob.Size(),
	}

	entries := bufio.NewReader(&blockReader{r: r, compression: info.Compression})
	t := NewTable()
	var n uint64
	for {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, SnapshotInfo{}, err
			}
		}
		e, err := readEntry(entries)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, SnapshotInfo{}, fmt.Errorf("%w: entry %d: %v", ErrBadSnapshot, n, err)
		}
		t.tree.ReplaceOrInsert(e)
		t.size += entrySize(e)
		n++
	}

	if n != info.Entries {
		return nil, SnapshotInfo{}, fmt.Errorf("%w: read %d of %d entries", ErrBadSnapshot, n, info.Entries)
	}
	return t, info, nil
}

// Inspect reads only the snapshot header.
func Inspect(ctx context.Context, store blobstore.BlobStore, name string) (SnapshotInfo, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return SnapshotInfo{}, err
	}
	defer func() { _ = blob.Close() }()

	var hdr [headerSize]byte
	if _, err := blob.ReadAt(ctx, hdr[:], 0); err != nil {
		return SnapshotInfo{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if string(hdr[:4]) != snapshotMagic || hdr[4] != snapshotVersion {
		return SnapshotInfo{}, fmt.Errorf("%w: %s has no snapshot header", ErrBadSnapshot, name)
	}
	return SnapshotInfo{
		Entries:     binary.LittleEndian.Uint64(hdr[8:]),
		Compression: Compression(hdr[5]),
		Bytes:       blob.Size(),
	}, nil
}

func appendEntry(dst []byte, e Entry) []byte {
	for _, s := range []string{e.Key.Row, e.Key.Family, e.Key.Qualifier} {
		dst = binary.AppendUvarint(dst, uint64(len(s)))
		dst = append(dst, s...)
	}
	dst = binary.AppendUvarint(dst, uint64(len(e.Value)))
	return append(dst, e.Value...)
}

// readEntry returns io.EOF only at a clean entry boundary.
func readEntry(r *bufio.Reader) (Entry, error) {
	var fields [4][]byte
	for i := range fields {
		n, err := binary.ReadUvarint(r)
		if err != nil {
			if i == 0 && errors.Is(err, io.EOF) {
				return Entry{}, io.EOF
			}
			return Entry{}, noEOF(err)
		}
		if n > 1<<30 {
			return Entry{}, fmt.Errorf("field length %d", n)
		}
		fields[i] = make([]byte, n)
		if _, err := io.ReadFull(r, fields[i]); err != nil {
			return Entry{}, noEOF(err)
		}
	}
	return Entry{
		Key:   Key{Row: string(fields[0]), Family: string(fields[1]), Qualifier: string(fields[2])},
		Value: fields[3],
	}, nil
}

func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// blockWriter cuts its input into blocks of blockSize bytes.
type blockWriter struct {
	w           io.Writer
	compression Compression
	blockSize   int
	buf         bytes.Buffer
}

func (b *blockWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		space := b.blockSize - b.buf.Len()
		if space == 0 {
			if err := b.flush(); err != nil {
				return total, err
			}
			space = b.blockSize
		}
		n := min(space, len(p))
		b.buf.Write(p[:n])
		total += n
		p = p[n:]
	}
	return total, nil
}

func (b *blockWriter) flush() error {
	if b.buf.Len() == 0 {
		return nil
	}
	block, err := encodeBlock(b.buf.Bytes(), b.compression)
	if err != nil {
		return err
	}
	b.buf.Reset()
	_, err = b.w.Write(block)
	return err
}

// Close flushes the last block and writes the terminator.
func (b *blockWriter) Close() error {
	if err := b.flush(); err != nil {
		return err
	}
	var term [blockHeaderSize]byte
	_, err := b.w.Write(term[:])
	return err
}

// blockReader concatenates the payloads of consecutive blocks.
type blockReader struct {
	r           io.Reader
	compression Compression
	cur         []byte
	done        bool
}

func (b *blockReader) Read(p []byte) (int, error) {
	for len(b.cur) == 0 {
		if b.done {
			return 0, io.EOF
		}
		if err := b.next(); err != nil {
			return 0, err
		}
	}
	n := copy(p, b.cur)
	b.cur = b.cur[n:]
	return n, nil
}

func (b *blockReader) next() error {
	var hdr [blockHeaderSize]byte
	if _, err := io.ReadFull(b.r, hdr[:]); err != nil {
		return fmt.Errorf("block header: %w", noEOF(err))
	}
	size := payloadSize(hdr)
	if size == 0 {
		b.done = true
		return nil
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(b.r, payload); err != nil {
		return fmt.Errorf("block payload: %w", noEOF(err))
	}
	data, err := decodeBlock(hdr, payload, b.compression)
	if err != nil {
		return err
	}
	b.cur = data
	return nil
}
