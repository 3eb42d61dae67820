package pagestore

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/gomam/blobstore"
	"github.com/hupe1980/gomam/resource"
)

// Compression selects how page images are stored in a snapshot.
type Compression uint8

const (
	// CompressionNone stores pages verbatim.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses zstd block compression.
	CompressionZSTD Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// ParseCompression maps "none", "lz4" and "zstd" to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}

// ErrBadSnapshot is returned when a snapshot stream cannot be decoded.
var ErrBadSnapshot = errors.New("pagestore: bad snapshot")

const (
	snapshotMagic   uint32 = 0x4e534d47 // "GMSN"
	snapshotVersion uint16 = 1

	// magic u32 | version u16 | compression u8 | reserved u8 |
	// pageSize u32 | headerSize u32 | pageCount u32 | maxID u32
	snapshotPreambleSize = 24

	// uncompressed u32 | stored u32 (0 = raw)
	blockHeaderSize = 8
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// SnapshotInfo describes an exported snapshot.
type SnapshotInfo struct {
	Compression Compression
	PageSize    int
	HeaderSize  int
	Pages       int
	MaxID       PageID
}

// Export writes the header page and every live page of m to w.
func Export(m Manager, w io.Writer, c Compression) (SnapshotInfo, error) {
	hdr, err := m.HeaderPage()
	if err != nil {
		return SnapshotInfo{}, err
	}
	defer m.ReleasePage(hdr)

	type entry struct {
		id   PageID
		data []byte
	}

	want := m.PageCount()
	entries := make([]entry, 0, want)
	var maxID PageID
	for id := PageID(1); len(entries) < want; id++ {
		if id == 0 {
			return SnapshotInfo{}, fmt.Errorf("%w: page ids exhausted", ErrBadSnapshot)
		}
		p, err := m.ReadPage(id)
		if errors.Is(err, ErrPageNotFound) {
			continue
		}
		if err != nil {
			return SnapshotInfo{}, err
		}
		entries = append(entries, entry{id: id, data: append([]byte(nil), p.Data()...)})
		m.ReleasePage(p)
		maxID = id
	}

	info := SnapshotInfo{
		Compression: c,
		PageSize:    m.PageSize(),
		HeaderSize:  hdr.Size(),
		Pages:       len(entries),
		MaxID:       maxID,
	}

	bw := bufio.NewWriter(w)

	pre := make([]byte, snapshotPreambleSize)
	binary.LittleEndian.PutUint32(pre[0:], snapshotMagic)
	binary.LittleEndian.PutUint16(pre[4:], snapshotVersion)
	pre[6] = byte(c)
	binary.LittleEndian.PutUint32(pre[8:], uint32(info.PageSize))
	binary.LittleEndian.PutUint32(pre[12:], uint32(info.HeaderSize))
	binary.LittleEndian.PutUint32(pre[16:], uint32(info.Pages))
	binary.LittleEndian.PutUint32(pre[20:], uint32(maxID))
	if _, err := bw.Write(pre); err != nil {
		return SnapshotInfo{}, err
	}

	if err := writeBlock(bw, hdr.Data(), c); err != nil {
		return SnapshotInfo{}, err
	}

	var idBuf [4]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint32(idBuf[:], uint32(e.id))
		if _, err := bw.Write(idBuf[:]); err != nil {
			return SnapshotInfo{}, err
		}
		if err := writeBlock(bw, e.data, c); err != nil {
			return SnapshotInfo{}, err
		}
	}

	return info, bw.Flush()
}

// Import restores a snapshot into the empty manager m, reproducing page ids.
func Import(r io.Reader, m Manager) (SnapshotInfo, error) {
	if !m.IsEmpty() {
		return SnapshotInfo{}, fmt.Errorf("%w: target manager is not empty", ErrBadSnapshot)
	}

	br := bufio.NewReader(r)

	pre := make([]byte, snapshotPreambleSize)
	if _, err := io.ReadFull(br, pre); err != nil {
		return SnapshotInfo{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	if binary.LittleEndian.Uint32(pre[0:]) != snapshotMagic {
		return SnapshotInfo{}, fmt.Errorf("%w: bad magic", ErrBadSnapshot)
	}
	if v := binary.LittleEndian.Uint16(pre[4:]); v != snapshotVersion {
		return SnapshotInfo{}, fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, v)
	}

	info := SnapshotInfo{
		Compression: Compression(pre[6]),
		PageSize:    int(binary.LittleEndian.Uint32(pre[8:])),
		HeaderSize:  int(binary.LittleEndian.Uint32(pre[12:])),
		Pages:       int(binary.LittleEndian.Uint32(pre[16:])),
		MaxID:       PageID(binary.LittleEndian.Uint32(pre[20:])),
	}
	if info.PageSize != m.PageSize() {
		return SnapshotInfo{}, fmt.Errorf("%w: page size %d, manager has %d", ErrBadSnapshot, info.PageSize, m.PageSize())
	}

	hdr, err := m.HeaderPage()
	if err != nil {
		return SnapshotInfo{}, err
	}
	if info.HeaderSize > hdr.Size() {
		m.ReleasePage(hdr)
		return SnapshotInfo{}, fmt.Errorf("%w: header of %d bytes, manager has %d", ErrBadSnapshot, info.HeaderSize, hdr.Size())
	}
	hdrData, err := readBlock(br, info.Compression, info.HeaderSize)
	if err != nil {
		m.ReleasePage(hdr)
		return SnapshotInfo{}, err
	}
	hdr.CopyFrom(hdrData)
	err = m.WriteHeaderPage(hdr)
	m.ReleasePage(hdr)
	if err != nil {
		return SnapshotInfo{}, err
	}

	var (
		next   PageID = 1
		holes  []*Page
		idBuf  [4]byte
		prevID PageID
	)
	for i := 0; i < info.Pages; i++ {
		if _, err := io.ReadFull(br, idBuf[:]); err != nil {
			return SnapshotInfo{}, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		id := PageID(binary.LittleEndian.Uint32(idBuf[:]))
		if id <= prevID || id > info.MaxID {
			return SnapshotInfo{}, fmt.Errorf("%w: page id %d out of order", ErrBadSnapshot, id)
		}
		prevID = id

		data, err := readBlock(br, info.Compression, info.PageSize)
		if err != nil {
			return SnapshotInfo{}, err
		}

		for ; next <= id; next++ {
			p, err := m.AllocatePage()
			if err != nil {
				return SnapshotInfo{}, err
			}
			if p.ID() != next {
				m.ReleasePage(p)
				return SnapshotInfo{}, fmt.Errorf("%w: manager allocated page %d, expected %d", ErrBadSnapshot, p.ID(), next)
			}
			if next < id {
				holes = append(holes, p)
				continue
			}
			p.CopyFrom(data)
			err = m.WritePage(p)
			m.ReleasePage(p)
			if err != nil {
				return SnapshotInfo{}, err
			}
		}
	}

	for _, p := range holes {
		if err := m.DisposePage(p); err != nil {
			return SnapshotInfo{}, err
		}
	}

	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		return SnapshotInfo{}, fmt.Errorf("%w: data after the last page", ErrBadSnapshot)
	}
	return info, nil
}

// Backup exports m into the snapshot named name. A non-nil controller
// throttles the upload. A failed export is aborted, so the store never
// publishes a partial snapshot.
func Backup(ctx context.Context, m Manager, store blobstore.Store, name string, c Compression, rc *resource.Controller) (SnapshotInfo, error) {
	w, err := store.Create(ctx, name)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to create snapshot %s: %w", name, err)
	}

	info, err := Export(m, resource.NewRateLimitedWriter(ctx, w, rc), c)
	if err != nil {
		return SnapshotInfo{}, errors.Join(err, w.Abort())
	}
	if err := w.Close(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to finish snapshot %s: %w", name, err)
	}
	return info, nil
}

// Restore imports the snapshot named name into the empty manager m. A
// snapshot whose content does not match the size the store recorded fails
// with ErrBadSnapshot.
func Restore(ctx context.Context, store blobstore.Store, name string, m Manager, rc *resource.Controller) (SnapshotInfo, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to open snapshot %s: %w", name, err)
	}
	defer blob.Close()

	return Import(resource.NewRateLimitedReader(ctx, blob, rc), m)
}

func writeBlock(w io.Writer, data []byte, c Compression) error {
	var stored []byte
	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return err
		}
		stored = buf[:n]
	case CompressionZSTD:
		enc := getZstdEncoder()
		stored = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case CompressionNone:
	default:
		return fmt.Errorf("unknown compression %d", c)
	}

	// Incompressible blocks are kept raw.
	if len(stored) == 0 || len(stored) >= len(data) {
		stored = nil
	}

	var h [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(h[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(h[4:], uint32(len(stored)))
	if _, err := w.Write(h[:]); err != nil {
		return err
	}
	if stored == nil {
		_, err := w.Write(data)
		return err
	}
	_, err := w.Write(stored)
	return err
}

// readBlock reads one block that must decode to want bytes. Sizes are
// checked before anything is allocated.
func readBlock(r io.Reader, c Compression, want int) ([]byte, error) {
	var h [blockHeaderSize]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	size := binary.LittleEndian.Uint32(h[0:])
	stored := binary.LittleEndian.Uint32(h[4:])
	if int64(size) != int64(want) {
		return nil, fmt.Errorf("%w: block of %d bytes, expected %d", ErrBadSnapshot, size, want)
	}
	if stored >= size {
		return nil, fmt.Errorf("%w: compressed block of %d bytes is not smaller than %d", ErrBadSnapshot, stored, size)
	}

	if stored == 0 {
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		return data, nil
	}

	src := make([]byte, stored)
	if _, err := io.ReadFull(r, src); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	out := make([]byte, size)
	switch c {
	case CompressionLZ4:
		n, err := lz4.UncompressBlock(src, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrBadSnapshot)
		}
		return out, nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(src, out[:0])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		if uint32(len(decoded)) != size {
			return nil, fmt.Errorf("%w: decompressed size mismatch", ErrBadSnapshot)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compressed block with compression %s", ErrBadSnapshot, c)
	}
}
