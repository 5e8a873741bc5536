// Package assets implements the image asset store referenced by inline
// markers: a flat directory of image files with collision-resistant names.
//
// Dimension probing uses image.DecodeConfig, which reads only the header.
// png, jpg/jpeg, and gif are probeable; webp files are stored and served
// but cannot be probed, so markers referencing them are skipped at render
// time like missing assets.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	// Registered decoders for DecodeConfig.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/markup"
)

const maxAssetSize = 10 << 20 // 10 MB

var (
	allowedExtensions = map[string]bool{
		".png": true, ".jpg": true, ".jpeg": true,
		".gif": true, ".webp": true,
	}

	safeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// Store manages the asset directory. The directory must already exist.
type Store struct {
	dir string
}

// NewStore creates an asset store rooted at dir.
func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("assets: resolve dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("assets: stat dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assets: not a directory: %s", abs)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute asset directory path.
func (s *Store) Dir() string { return s.dir }

// CopyIntoStore copies the file at sourcePath into the store under a
// collision-resistant name preserving the original extension, and returns
// the generated asset name. The copy happens before any marker referencing
// the asset is written, so a marker never precedes its asset.
func (s *Store) CopyIntoStore(sourcePath string) (string, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("assets: read source: %w", err)
	}
	return s.Put(filepath.Base(sourcePath), data)
}

// Put stores data under a generated name derived from originalName,
// validating extension, size, and magic bytes.
func (s *Store) Put(originalName string, data []byte) (string, error) {
	if len(data) > maxAssetSize {
		return "", fmt.Errorf("assets: file too large: %d bytes (max %d)", len(data), maxAssetSize)
	}
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("assets: unsupported extension %q (allowed: png, jpg, jpeg, gif, webp)", ext)
	}
	if err := validateMagicBytes(data, ext); err != nil {
		return "", err
	}

	stem := sanitizeStem(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	name := fmt.Sprintf("%s-%s%s", stem, uuid.NewString()[:8], ext)

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("assets: write %s: %w", name, err)
	}
	return name, nil
}

// Resolve returns the natural pixel dimensions of the named asset. A
// missing or unprobeable asset is apperr.ErrAssetUnresolved.
func (s *Store) Resolve(name string) (markup.Dimensions, error) {
	abs, err := s.safePath(name)
	if err != nil {
		return markup.Dimensions{}, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return markup.Dimensions{}, fmt.Errorf("assets: %s: %w", name, apperr.ErrAssetUnresolved)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return markup.Dimensions{}, fmt.Errorf("assets: probe %s: %w", name, apperr.ErrAssetUnresolved)
	}
	return markup.Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// FilePath returns the on-disk path of a stored asset for serving,
// or apperr.ErrNotFound when it does not exist.
func (s *Store) FilePath(name string) (string, error) {
	abs, err := s.safePath(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", apperr.ErrNotFound
	}
	return abs, nil
}

// safePath rejects anything that is not a plain flat filename.
func (s *Store) safePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("assets: name is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("assets: invalid name: %s", name)
	}
	return filepath.Join(s.dir, cleaned), nil
}

func sanitizeStem(stem string) string {
	out := safeFilenameRe.ReplaceAllString(stem, "_")
	if out == "" || strings.Trim(out, "._") == "" {
		out = "asset"
	}
	return out
}

// validateMagicBytes checks that the content matches the claimed extension.
func validateMagicBytes(data []byte, ext string) error {
	ok := false
	switch ext {
	case ".png":
		ok = bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n"))
	case ".jpg", ".jpeg":
		ok = bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF})
	case ".gif":
		ok = bytes.HasPrefix(data, []byte("GIF8"))
	case ".webp":
		ok = len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP"))
	}
	if !ok {
		return fmt.Errorf("assets: content does not match %s signature", ext)
	}
	return nil
}
