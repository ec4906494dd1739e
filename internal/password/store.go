package password

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultFile is where the password artifact is kept when the operator does
// not choose a path.
const DefaultFile = "./latestpassword.txt"

var (
	// ErrNotFound is returned by Load when the artifact does not exist.
	ErrNotFound = errors.New("password file not found")

	// ErrNotText is returned by Load for rendered (image) artifacts, which
	// cannot be read back.
	ErrNotText = errors.New("password file is not a text file")

	// ErrUnsupportedRenderTarget is returned by Save when the artifact
	// encoding cannot be produced.
	ErrUnsupportedRenderTarget = errors.New("unsupported render target")
)

// Format is the on-disk encoding of a password artifact.
type Format string

const (
	FormatText Format = "text"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatGIF  Format = "gif"
)

// FormatFor returns the encoding selected by the extension of path.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return FormatText, true
	case ".png":
		return FormatPNG, true
	case ".jpg", ".jpeg":
		return FormatJPEG, true
	case ".gif":
		return FormatGIF, true
	default:
		return "", false
	}
}

// Renderer draws password text into an image encoding.
type Renderer interface {
	Render(w io.Writer, text string, format Format) error
}

// RenderError describes why an image artifact could not be produced.
// It matches ErrUnsupportedRenderTarget with errors.Is.
type RenderError struct {
	Format Format
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("render %s: %s", e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RenderError) Unwrap() error { return e.Err }

func (e *RenderError) Is(target error) bool {
	return target == ErrUnsupportedRenderTarget
}

// Store persists passwords as text or rendered images.
type Store struct {
	renderer Renderer
	logger   *zap.Logger
}

// NewStore returns a Store that delegates image encodings to renderer.
// A nil renderer disables image artifacts.
func NewStore(renderer Renderer, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{renderer: renderer, logger: logger}
}

// Generate returns a fresh random password.
func (s *Store) Generate() (string, error) {
	return Generate()
}

// Save writes password to path in the encoding chosen by its extension.
// Nothing is written when the encoding fails.
func (s *Store) Save(password, path string) error {
	format, ok := FormatFor(path)
	if !ok {
		return &RenderError{
			Format: Format(strings.TrimPrefix(filepath.Ext(path), ".")),
			Reason: fmt.Sprintf("unknown file extension %q", filepath.Ext(path)),
		}
	}

	var buf bytes.Buffer
	if format == FormatText {
		buf.WriteString(password)
	} else {
		if s.renderer == nil {
			return &RenderError{Format: format, Reason: "no image renderer configured"}
		}
		if err := s.renderer.Render(&buf, password, format); err != nil {
			var re *RenderError
			if errors.As(err, &re) {
				return err
			}
			return &RenderError{Format: format, Reason: "encoding failed", Err: err}
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write password file %s: %w", path, err)
	}
	s.logger.Debug("password saved",
		zap.String("path", path),
		zap.String("format", string(format)),
	)
	return nil
}

// Load reads a password previously saved as text.
func (s *Store) Load(path string) (string, error) {
	if format, ok := FormatFor(path); ok && format != FormatText {
		return "", fmt.Errorf("%s: %w", path, ErrNotText)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("open password file: %w", err)
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password file %s: %w", path, err)
	}
	s.logger.Debug("password loaded", zap.String("path", path))
	return strings.TrimSpace(line), nil
}
