package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const indexFile = "index.json"

// Disk stores clips as zstd-compressed files under one directory.
type Disk struct {
	dir      string
	capacity int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.Mutex
	size  int64
	index map[string]*diskEntry
	stats Stats
}

type diskEntry struct {
	File         string    `json:"file"`
	Size         int64     `json:"size"`
	OriginalSize int64     `json:"original_size"`
	Compressed   bool      `json:"compressed"`
	Created      time.Time `json:"created"`
	LastAccess   time.Time `json:"last_access"`
}

// NewDisk opens or creates a disk cache in dir. Entries older than ttl are
// dropped; a ttl of zero keeps everything.
func NewDisk(dir string, capacity int64, compressionLevel int, ttl time.Duration) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
	}

	if compressionLevel > 0 {
		var err error
		d.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		d.decoder, err = zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	}

	if err := d.loadIndex(); err != nil {
		log.Warn("Discarding unreadable cache index", "dir", dir, "err", err)
		d.index = make(map[string]*diskEntry)
	}
	for _, e := range d.index {
		d.size += e.Size
	}
	if ttl > 0 {
		if n := d.removeOlderThan(time.Now().Add(-ttl)); n > 0 {
			log.Debug("Expired cached clips", "count", n)
		}
	}
	return d, nil
}

// Get reads and decompresses the clip stored under key.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(d.dir, e.File))
	if err == nil && e.Compressed {
		if d.decoder == nil {
			err = errors.New("compressed entry without decoder")
		} else {
			data, err = d.decoder.DecodeAll(data, nil)
		}
	}
	if err != nil {
		log.Debug("Dropping unreadable cache entry", "key", key, "err", err)
		d.drop(key, e)
		d.stats.Misses++
		return nil, false
	}

	e.LastAccess = time.Now()
	d.stats.Hits++
	return data, true
}

// Put compresses value and writes it under key.
func (d *Disk) Put(key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, compressed := value, false
	if d.encoder != nil && len(value) > 1024 {
		if c := d.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data, compressed = c, true
		}
	}

	n := int64(len(data))
	if n > d.capacity {
		return ErrItemTooLarge
	}
	if old, ok := d.index[key]; ok {
		d.drop(key, old)
	}
	for d.size+n > d.capacity && len(d.index) > 0 {
		d.evictOldest()
	}

	file := key + ".zst"
	if err := writeFileAtomic(filepath.Join(d.dir, file), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	d.index[key] = &diskEntry{
		File:         file,
		Size:         n,
		OriginalSize: int64(len(value)),
		Compressed:   compressed,
		Created:      now,
		LastAccess:   now,
	}
	d.size += n
	return nil
}

// Stats returns a snapshot of the cache counters.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.Capacity = d.capacity
	s.Size = d.size
	s.Items = int64(len(d.index))
	return s
}

// Close persists the index.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder != nil {
		d.encoder.Close()
	}
	if d.decoder != nil {
		d.decoder.Close()
	}
	return d.saveIndex()
}

func (d *Disk) removeOlderThan(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, e := range d.index {
		if e.Created.Before(cutoff) {
			d.drop(key, e)
			removed++
		}
	}
	return removed
}

func (d *Disk) evictOldest() {
	var (
		oldestKey string
		oldest    *diskEntry
	)
	for key, e := range d.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldestKey, oldest = key, e
		}
	}
	if oldest != nil {
		d.drop(oldestKey, oldest)
		d.stats.Evictions++
	}
}

func (d *Disk) drop(key string, e *diskEntry) {
	_ = os.Remove(filepath.Join(d.dir, e.File))
	delete(d.index, key)
	d.size -= e.Size
}

func (d *Disk) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(d.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &d.index)
}

func (d *Disk) saveIndex() error {
	data, err := json.Marshal(d.index)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(d.dir, indexFile), data)
}

// writeFileAtomic writes to a temp file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
