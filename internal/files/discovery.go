package files

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery provides file discovery operations
type Discovery struct {
	basePath string
	exclude  map[string]struct{}
}

// NewDiscovery creates a new file discovery instance. Relative directories
// passed to its methods are resolved against basePath.
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath, exclude: make(map[string]struct{})}
}

// Exclude makes discovery ignore the given file names or paths.
func (d *Discovery) Exclude(names ...string) *Discovery {
	for _, n := range names {
		if n == "" {
			continue
		}
		d.exclude[filepath.Clean(n)] = struct{}{}
		d.exclude[filepath.Base(n)] = struct{}{}
	}
	return d
}

func (d *Discovery) excluded(name, path string) bool {
	if _, ok := d.exclude[name]; ok {
		return true
	}
	_, ok := d.exclude[filepath.Clean(path)]
	return ok
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

// FindCSVFiles finds all CSV files directly under dir, ordered by name.
// A directory that does not exist yields no files and no error.
func (d *Discovery) FindCSVFiles(dir string) ([]FileInfo, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".csv") {
			continue
		}
		path := filepath.Join(fullPath, name)
		if d.excluded(name, path) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, FileInfo{
			Path:    path,
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// Names returns the file names in discovery order.
func Names(files []FileInfo) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

// Fingerprint hashes name, size and modification time of every file.
// Any change to the discovered set changes the fingerprint.
func Fingerprint(files []FileInfo) string {
	h := murmur3.New128()
	var buf [8]byte
	for _, f := range files {
		h.Write([]byte(f.Name))
		h.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(f.Size))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(f.ModTime.UnixNano()))
		h.Write(buf[:])
	}
	hi, lo := h.Sum128()

	var sum [16]byte
	binary.BigEndian.PutUint64(sum[:8], hi)
	binary.BigEndian.PutUint64(sum[8:], lo)
	return hex.EncodeToString(sum[:])
}
