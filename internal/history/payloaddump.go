package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// PayloadDumper writes each cycle's outgoing AI-service payload to disk
// for offline debugging, following the upstream bot's
// analyze_payload_dumps.py / setup_payload_dumping.py naming and
// rotation scheme: files are named payload_<cycle_id>_<unix_ts>.json,
// and once more than MaxFiles accumulate the oldest are deleted.
type PayloadDumper struct {
	Dir      string
	MaxFiles int
}

// NewPayloadDumper constructs a PayloadDumper, creating dir if needed.
func NewPayloadDumper(dir string, maxFiles int) (*PayloadDumper, error) {
	if maxFiles <= 0 {
		maxFiles = 200
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create payload dump dir: %w", err)
	}
	return &PayloadDumper{Dir: dir, MaxFiles: maxFiles}, nil
}

// Dump writes data under payload_<cycleID>_<unixTS>.json and evicts the
// oldest files beyond MaxFiles.
func (d *PayloadDumper) Dump(cycleID string, ts time.Time, data []byte) error {
	name := fmt.Sprintf("payload_%s_%d.json", cycleID, ts.Unix())
	path := filepath.Join(d.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write payload dump: %w", err)
	}
	return d.evictOldest()
}

func (d *PayloadDumper) evictOldest() error {
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return fmt.Errorf("read payload dump dir: %w", err)
	}
	if len(entries) <= d.MaxFiles {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool {
		ii, erri := entries[i].Info()
		jj, errj := entries[j].Info()
		if erri != nil || errj != nil {
			return entries[i].Name() < entries[j].Name()
		}
		return ii.ModTime().Before(jj.ModTime())
	})
	excess := len(entries) - d.MaxFiles
	for _, e := range entries[:excess] {
		if err := os.Remove(filepath.Join(d.Dir, e.Name())); err != nil {
			return fmt.Errorf("evict payload dump %s: %w", e.Name(), err)
		}
	}
	return nil
}
