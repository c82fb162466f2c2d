// Package upload validates ECG recordings offered for analysis and holds the
// single pending file.
package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/YuminosukeSato/ecgstudio/pkg/log"
)

// DefaultMaxSize is the largest accepted file, inclusive.
const DefaultMaxSize int64 = 5 * 1024 * 1024

// DefaultExtensions are the accepted file extensions.
var DefaultExtensions = []string{".csv", ".xlsx"}

// File is an ECG recording offered for upload.
type File struct {
	Name string
	Size int64
	Data []byte
}

// Gate accepts at most one pending file. It is safe for concurrent use.
type Gate struct {
	mu         sync.Mutex
	maxSize    int64
	extensions []string
	pending    *File
	onClear    []func()
	logger     log.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithMaxSize sets the size limit in bytes.
func WithMaxSize(n int64) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxSize = n
		}
	}
}

// WithExtensions sets the accepted extensions. A missing leading dot is added.
func WithExtensions(exts ...string) Option {
	return func(g *Gate) {
		if len(exts) == 0 {
			return
		}
		g.extensions = make([]string, 0, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			g.extensions = append(g.extensions, ext)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// NewGate returns a gate with the default limits unless overridden.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		maxSize:    DefaultMaxSize,
		extensions: append([]string(nil), DefaultExtensions...),
		logger:     log.GetLoggerWithName("upload"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxSize returns the size limit in bytes.
func (g *Gate) MaxSize() int64 {
	return g.maxSize
}

// Offer validates f and makes it the pending upload, replacing any previous
// one. A rejected file leaves the gate unchanged and returns an
// *errors.UploadRejectedError whose message can be shown as is.
func (g *Gate) Offer(f File) error {
	// 中身があれば申告サイズより実サイズを信用する
	if f.Data != nil {
		f.Size = int64(len(f.Data))
	}
	if err := g.check(f.Name, f.Size); err != nil {
		return err
	}

	g.mu.Lock()
	g.pending = &File{Name: f.Name, Size: f.Size, Data: f.Data}
	g.mu.Unlock()

	g.logger.Info("Upload accepted",
		log.UploadNameKey, f.Name,
		log.UploadSizeKey, f.Size,
		"upload.size_human", humanize.IBytes(uint64(f.Size)),
	)
	return nil
}

// OfferPath reads the file at path and offers it. The size is checked before
// the contents are read.
func (g *Gate) OfferPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "upload: stat %s", path)
	}
	if info.IsDir() {
		return errors.Newf("upload: %s is a directory", path)
	}
	name := filepath.Base(path)
	if err := g.check(name, info.Size()); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "upload: open %s", path)
	}
	defer f.Close()
	// one extra byte catches files that grew after the stat
	data, err := io.ReadAll(io.LimitReader(f, g.maxSize+1))
	if err != nil {
		return errors.Wrapf(err, "upload: read %s", path)
	}
	return g.Offer(File{Name: name, Size: int64(len(data)), Data: data})
}

func (g *Gate) check(name string, size int64) error {
	if !g.allowedExtension(name) {
		g.logger.Debug("Upload rejected", log.UploadNameKey, name, "reason", "extension")
		return errors.NewUploadRejectedError(name, size, g.invalidFileMessage())
	}
	if size < 0 {
		g.logger.Debug("Upload rejected", log.UploadNameKey, name, log.UploadSizeKey, size, "reason", "size")
		return errors.NewUploadRejectedError(name, size, g.invalidFileMessage())
	}
	if size > g.maxSize {
		g.logger.Debug("Upload rejected", log.UploadNameKey, name, log.UploadSizeKey, size, "reason", "size")
		return errors.NewUploadRejectedError(name, size,
			fmt.Sprintf("File too large. Please upload a file smaller than %s.", sizeLabel(g.maxSize)))
	}
	return nil
}

func (g *Gate) allowedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range g.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// invalidFileMessage reads "Invalid file. Please upload a CSV or XLSX file."
// for the default extensions.
func (g *Gate) invalidFileMessage() string {
	names := make([]string, len(g.extensions))
	for i, ext := range g.extensions {
		names[i] = strings.ToUpper(strings.TrimPrefix(ext, "."))
	}
	var list string
	switch len(names) {
	case 1:
		list = names[0]
	default:
		list = strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
	}
	return fmt.Sprintf("Invalid file. Please upload a %s file.", list)
}

// sizeLabel renders whole mebibytes as "5MB" and anything else with humanize.
func sizeLabel(n int64) string {
	const mib = 1024 * 1024
	if n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return humanize.IBytes(uint64(n))
}

// Pending returns a copy of the pending upload.
func (g *Gate) Pending() (File, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return File{}, false
	}
	return *g.pending, true
}

// OnClear registers fn to run after every Clear.
func (g *Gate) OnClear(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onClear = append(g.onClear, fn)
}

// Clear drops the pending upload and runs the registered hooks.
func (g *Gate) Clear() {
	g.mu.Lock()
	had := g.pending != nil
	g.pending = nil
	hooks := append([]func(){}, g.onClear...)
	g.mu.Unlock()

	if had {
		g.logger.Debug("Upload cleared")
	}
	for _, fn := range hooks {
		fn()
	}
}
