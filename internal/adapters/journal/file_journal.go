package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ghalamif/CalibraFlow/internal/domain"
	"github.com/ghalamif/CalibraFlow/internal/ports"
)

// record layout: [8 bytes id][4 bytes len][4 bytes crc32(body)][len bytes json]
const recordHeaderLen = 16

var ErrCorrupt = errors.New("journal: corrupt record")

// FileJournal is an append-only reading journal. Entries stay on disk until
// they are committed and TruncateCommitted compacts the log.
type FileJournal struct {
	mu        sync.Mutex
	path      string
	metaPath  string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.JournalEntryID
	committed ports.JournalEntryID
	sizeBytes int64
}

func NewFileJournal(dir string) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	j := &FileJournal{
		path:     filepath.Join(dir, "readings.journal"),
		metaPath: filepath.Join(dir, "readings.meta"),
	}
	if err := j.open(); err != nil {
		return nil, err
	}
	if err := j.bootstrap(); err != nil {
		_ = j.file.Close()
		return nil, err
	}
	return j, nil
}

func (j *FileJournal) open() error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	j.file = f
	j.writer = bufio.NewWriterSize(f, 64<<10)
	return nil
}

func (j *FileJournal) bootstrap() error {
	size, lastID, err := scanValid(j.path)
	if err != nil {
		return err
	}
	// drop a torn tail left by a crash mid-append
	if err := j.file.Truncate(size); err != nil {
		return err
	}
	j.sizeBytes = size
	j.nextID = lastID

	if err := j.loadCommitted(); err != nil {
		return err
	}
	if j.nextID < j.committed {
		j.nextID = j.committed
	}
	_, err = j.file.Seek(0, io.SeekEnd)
	return err
}

// scanValid returns the byte length of the valid prefix and the last id in it.
func scanValid(path string) (int64, ports.JournalEntryID, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	defer f.Close()

	var (
		offset int64
		lastID ports.JournalEntryID
	)
	err = readRecords(bufio.NewReader(f), func(id ports.JournalEntryID, body []byte) error {
		offset += int64(recordHeaderLen + len(body))
		lastID = id
		return nil
	})
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return 0, 0, err
	}
	return offset, lastID, nil
}

// readRecords stops with ErrCorrupt at the first torn or mismatching record.
func readRecords(r io.Reader, fn func(id ports.JournalEntryID, body []byte) error) error {
	for {
		var hdr [recordHeaderLen]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: truncated header", ErrCorrupt)
			}
			return err
		}
		id := ports.JournalEntryID(binary.BigEndian.Uint64(hdr[0:8]))
		length := binary.BigEndian.Uint32(hdr[8:12])
		sum := binary.BigEndian.Uint32(hdr[12:16])

		body := make([]byte, length)
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("%w: truncated body", ErrCorrupt)
			}
			return err
		}
		if crc32.ChecksumIEEE(body) != sum {
			return fmt.Errorf("%w: checksum mismatch at id %d", ErrCorrupt, id)
		}
		if err := fn(id, body); err != nil {
			return err
		}
	}
}

func (j *FileJournal) loadCommitted() error {
	data, err := os.ReadFile(j.metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	val := strings.TrimSpace(string(data))
	if val == "" {
		return nil
	}
	u, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return fmt.Errorf("journal meta parse: %w", err)
	}
	j.committed = ports.JournalEntryID(u)
	return nil
}

func (j *FileJournal) Append(r *domain.Reading) (ports.JournalEntryID, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return 0, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	id := j.nextID + 1
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(b)))
	binary.BigEndian.PutUint32(hdr[12:16], crc32.ChecksumIEEE(b))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return 0, err
	}
	if _, err := j.writer.Write(b); err != nil {
		return 0, err
	}

	j.nextID = id
	j.sizeBytes += int64(len(b) + len(hdr))
	return id, nil
}

func (j *FileJournal) Iterate(from ports.JournalEntryID, fn func(id ports.JournalEntryID, r *domain.Reading) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}

	f, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer f.Close()

	return readRecords(bufio.NewReader(f), func(id ports.JournalEntryID, body []byte) error {
		if id < from {
			return nil
		}
		var r domain.Reading
		if err := json.Unmarshal(body, &r); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return fn(id, &r)
	})
}

func (j *FileJournal) Commit(upto ports.JournalEntryID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if upto <= j.committed {
		return nil
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}
	j.committed = upto
	return j.persistMetaLocked()
}

// TruncateCommitted rewrites the log keeping only uncommitted entries.
func (j *FileJournal) TruncateCommitted() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}

	src, err := os.Open(j.path)
	if err != nil {
		return err
	}
	tmpPath := j.path + ".tmp"
	dst, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		src.Close()
		return err
	}

	w := bufio.NewWriter(dst)
	var kept int64
	err = readRecords(bufio.NewReader(src), func(id ports.JournalEntryID, body []byte) error {
		if id <= j.committed {
			return nil
		}
		var hdr [recordHeaderLen]byte
		binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
		binary.BigEndian.PutUint32(hdr[8:12], uint32(len(body)))
		binary.BigEndian.PutUint32(hdr[12:16], crc32.ChecksumIEEE(body))
		if _, err := w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
		kept += int64(recordHeaderLen + len(body))
		return nil
	})
	src.Close()
	if err == nil {
		err = w.Flush()
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("journal compact: %w", err)
	}

	if err := j.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return err
	}
	if err := j.open(); err != nil {
		return err
	}
	j.sizeBytes = kept
	return nil
}

func (j *FileJournal) Stats() ports.JournalStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ports.JournalStats{
		OldestUncommitted: j.committed + 1,
		LatestAppended:    j.nextID,
		SizeBytes:         j.sizeBytes,
	}
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		_ = j.file.Close()
		return err
	}
	return j.file.Close()
}

func (j *FileJournal) persistMetaLocked() error {
	data := []byte(fmt.Sprintf("%d\n", j.committed))
	return os.WriteFile(j.metaPath, data, 0o644)
}

var _ ports.Journal = (*FileJournal)(nil)
