package validation

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"attendx/internal/dataprocessing"
)

var (
	// ErrEmptyFile is returned for a zero-byte upload
	ErrEmptyFile = errors.New("file is empty")
	// ErrFileTooLarge is returned when an upload exceeds the configured size
	ErrFileTooLarge = errors.New("file too large")
	// ErrTemporaryFile is returned for office lock files such as ~$book.xlsx
	ErrTemporaryFile = errors.New("temporary office file")
	// ErrSignatureMismatch is returned when the content does not match the extension
	ErrSignatureMismatch = errors.New("file content does not match its extension")
)

// zip local file header; every xlsx workbook starts with it
var zipSignature = []byte("PK\x03\x04")

// SniffLen is the number of leading bytes ValidateUpload inspects
const SniffLen = 512

// FileValidator checks uploaded and local spreadsheet files before parsing
type FileValidator struct {
	logger   *slog.Logger
	maxBytes int64
}

// NewFileValidator creates a new file validator. A maxBytes of 0 disables
// the size check.
func NewFileValidator(logger *slog.Logger, maxBytes int64) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger:   logger.With(slog.String("component", "file_validator")),
		maxBytes: maxBytes,
	}
}

// ValidateUpload checks the name, size and leading bytes of an upload and
// returns the format to parse it with.
func (v *FileValidator) ValidateUpload(name string, size int64, head []byte) (dataprocessing.Format, error) {
	base := filepath.Base(name)
	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Rejected temporary office file", slog.String("file", base))
		return "", fmt.Errorf("%w: %s", ErrTemporaryFile, base)
	}

	format, err := dataprocessing.DetectFormat(base)
	if err != nil {
		v.logger.Warn("Rejected unsupported file",
			slog.String("file", base),
			slog.String("extension", filepath.Ext(base)))
		return "", err
	}

	if size == 0 || len(head) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmptyFile, base)
	}
	if v.maxBytes > 0 && size > v.maxBytes {
		v.logger.Warn("Rejected oversized file",
			slog.String("file", base),
			slog.Int64("size", size),
			slog.Int64("max_bytes", v.maxBytes))
		return "", fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, v.maxBytes)
	}

	if err := checkSignature(format, head); err != nil {
		v.logger.Warn("Rejected file with wrong signature",
			slog.String("file", base),
			slog.String("format", string(format)))
		return "", fmt.Errorf("%w: %s", err, base)
	}

	v.logger.Debug("Upload validated",
		slog.String("file", base),
		slog.String("format", string(format)),
		slog.Int64("size", size))
	return format, nil
}

// ValidateFile checks a local file the same way as an upload
func (v *FileValidator) ValidateFile(path string) (dataprocessing.Format, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, not a file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("file %s is not readable: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, SniffLen)
	n, _ := f.Read(head)
	return v.ValidateUpload(path, info.Size(), head[:n])
}

func checkSignature(format dataprocessing.Format, head []byte) error {
	switch format {
	case dataprocessing.FormatXLSX:
		if !bytes.HasPrefix(head, zipSignature) {
			return ErrSignatureMismatch
		}
	case dataprocessing.FormatCSV:
		// binary content never passes as text; the sniffed prefix may end
		// mid-rune so only invalid runes before the last 3 bytes count
		if bytes.IndexByte(head, 0) >= 0 {
			return ErrSignatureMismatch
		}
		body := head
		if len(body) > utf8.UTFMax {
			body = body[:len(body)-utf8.UTFMax]
		}
		if !utf8.Valid(body) {
			return ErrSignatureMismatch
		}
	}
	return nil
}
