package crashlog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/olegiv/crashlens-ai-go/internal/analyzer"
)

// Compile-time interface check
var _ analyzer.LogReader = (*Reader)(nil)

// Extension allow-lists.
var (
	UploadExtensions = []string{"txt", "log", "dmp", "dump", "err", "out", "crash", "trace", "logs"}
	LocalExtensions  = []string{"log", "txt", "err", "out", "crash", "trace", "dmp", "dump"}
)

// Reader errors. Callers map them to HTTP statuses with errors.Is.
var (
	ErrNotFound    = errors.New("file not found")
	ErrNotAFile    = errors.New("path is not a regular file")
	ErrPermission  = errors.New("permission denied")
	ErrExtension   = errors.New("file type not allowed")
	ErrTooLarge    = errors.New("file too large")
	ErrOutsideBase = errors.New("path outside allowed directory")
	ErrBinary      = errors.New("content looks binary")
)

// binarySampleBytes is the prefix inspected by Validate.
const binarySampleBytes = 8192

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	MaxSizeMB         int
	AllowedExtensions []string // without leading dot, case-insensitive
	BaseDir           string   // when set, paths must resolve inside it
	RejectBinary      bool     // run Validate on every Read
}

// Reader reads crash and error logs from disk.
// Implements analyzer.LogReader interface.
type Reader struct {
	maxBytes     int64
	allowed      map[string]struct{}
	baseDir      string
	rejectBinary bool
}

// NewReader creates a reader. MaxSizeMB <= 0 defaults to 10.
func NewReader(opts ReaderOptions) *Reader {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	baseDir := ""
	if opts.BaseDir != "" {
		if abs, err := filepath.Abs(opts.BaseDir); err == nil {
			baseDir = abs
		} else {
			baseDir = filepath.Clean(opts.BaseDir)
		}
	}
	return &Reader{
		maxBytes:     int64(opts.MaxSizeMB) * 1024 * 1024,
		allowed:      allowed,
		baseDir:      baseDir,
		rejectBinary: opts.RejectBinary,
	}
}

// MaxBytes returns the size limit in bytes.
func (r *Reader) MaxBytes() int64 {
	return r.maxBytes
}

// CheckName reports whether name has an allowed extension.
// An empty allow-list accepts every name.
func (r *Reader) CheckName(name string) error {
	if len(r.allowed) == 0 {
		return nil
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if _, ok := r.allowed[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrExtension, filepath.Base(name))
	}
	return nil
}

// CheckSize reports whether size fits the reader's limit.
func (r *Reader) CheckSize(size int64) error {
	if size > r.maxBytes {
		return fmt.Errorf("%w: maximum is %dMB (size: %.2fMB)",
			ErrTooLarge, r.maxBytes/1024/1024, float64(size)/1024/1024)
	}
	return nil
}

// Read implements analyzer.LogReader.Read.
// Invalid UTF-8 sequences and NUL bytes are dropped from the returned text.
func (r *Reader) Read(sourcePath string) (string, error) {
	path, err := r.resolve(sourcePath)
	if err != nil {
		return "", err
	}
	// Both the requested name and a symlink's target must be allowed.
	for _, name := range []string{sourcePath, path} {
		if err := r.CheckName(name); err != nil {
			return "", err
		}
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return "", classifyFSError(err, path)
	}
	if !fileInfo.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrNotAFile, path)
	}
	if err := r.CheckSize(fileInfo.Size()); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", classifyFSError(err, path)
	}
	defer func() { _ = f.Close() }()

	data, err := readLimited(f, r.maxBytes)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	content := CleanText(data)
	if r.rejectBinary {
		if err := r.Validate(content); err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
	}
	return content, nil
}

// Validate implements analyzer.LogReader.Validate.
// Content is rejected when more than 30% of its leading runes are control
// characters other than tab, newline and carriage return.
func (r *Reader) Validate(content string) error {
	sample := content
	if len(sample) > binarySampleBytes {
		sample = sample[:binarySampleBytes]
	}
	total, control := 0, 0
	for _, c := range sample {
		total++
		if c == utf8.RuneError || (unicode.IsControl(c) && c != '\n' && c != '\r' && c != '\t') {
			control++
		}
	}
	if total > 0 && control*10 > total*3 {
		return ErrBinary
	}
	return nil
}

// Limits implements analyzer.LogReader.Limits.
func (r *Reader) Limits() analyzer.Limits {
	exts := make([]string, 0, len(r.allowed))
	for ext := range r.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return analyzer.Limits{
		Extensions:   exts,
		MaxBytes:     r.maxBytes,
		BaseDir:      r.baseDir,
		RejectBinary: r.rejectBinary,
	}
}

// resolve cleans path and, when a base directory is set, confines it there.
// Relative paths are taken relative to the base directory. Symlinks are
// followed before the check, so a link inside the base directory cannot
// expose a file outside it.
func (r *Reader) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrNotFound)
	}
	if r.baseDir == "" {
		return filepath.Clean(path), nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	path = filepath.Clean(path)
	if !within(r.baseDir, path) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, path)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", classifyFSError(err, path)
	}
	base, err := filepath.EvalSymlinks(r.baseDir)
	if err != nil {
		return "", classifyFSError(err, r.baseDir)
	}
	if !within(base, resolved) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, path)
	}
	return resolved, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// readLimited reads at most limit bytes from rd. A file that grew past the
// limit after it was stat'ed fails with ErrTooLarge instead of being read whole.
func readLimited(rd io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(rd, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: grew past %dMB while reading", ErrTooLarge, limit/1024/1024)
	}
	return data, nil
}

func classifyFSError(err error, path string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrPermission, path)
	default:
		return fmt.Errorf("failed to access %s: %w", path, err)
	}
}

// CleanText converts raw bytes to text, dropping invalid UTF-8 and NUL bytes.
func CleanText(data []byte) string {
	s := strings.ToValidUTF8(string(data), "")
	return strings.ReplaceAll(s, "\x00", "")
}
