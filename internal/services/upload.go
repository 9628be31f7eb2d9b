package services

import (
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

var ErrInvalidFileType = errors.New("invalid file type. Only JPG, PNG, GIF allowed.")

type UploadKind string

const (
	UploadKindPost    UploadKind = "posts"
	UploadKindProfile UploadKind = "profiles"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

// UploadStore writes user-supplied images under a base directory, one
// subdirectory per kind. JPEG and PNG uploads larger than maxEdge pixels on
// either side are scaled down; GIFs are stored verbatim to keep animation.
type UploadStore struct {
	dir     string
	maxEdge int
}

func NewUploadStore(dir string, maxEdge int) (*UploadStore, error) {
	for _, kind := range []UploadKind{UploadKindPost, UploadKindProfile} {
		if err := os.MkdirAll(filepath.Join(dir, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("creating upload directory: %w", err)
		}
	}
	return &UploadStore{dir: dir, maxEdge: maxEdge}, nil
}

// Save stores the image and returns the generated filename. The original
// filename is only consulted for its extension.
func (s *UploadStore) Save(kind UploadKind, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", ErrInvalidFileType
	}

	name := uuid.New().String() + ext
	dst := filepath.Join(s.dir, string(kind), name)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}

	if err := s.write(f, ext, r); err != nil {
		f.Close()
		os.Remove(dst)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("closing upload file: %w", err)
	}

	return name, nil
}

func (s *UploadStore) write(w io.Writer, ext string, r io.Reader) error {
	switch ext {
	case ".jpg", ".jpeg":
		img, err := jpeg.Decode(r)
		if err != nil {
			return fmt.Errorf("decoding jpeg: %w", err)
		}
		if err := jpeg.Encode(w, s.downscale(img), &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("encoding jpeg: %w", err)
		}
	case ".png":
		img, err := png.Decode(r)
		if err != nil {
			return fmt.Errorf("decoding png: %w", err)
		}
		if err := png.Encode(w, s.downscale(img)); err != nil {
			return fmt.Errorf("encoding png: %w", err)
		}
	case ".gif":
		if _, err := gif.DecodeConfig(io.TeeReader(r, w)); err != nil {
			return fmt.Errorf("checking gif: %w", err)
		}
		if _, err := io.Copy(w, r); err != nil {
			return fmt.Errorf("copying gif: %w", err)
		}
	default:
		return ErrInvalidFileType
	}
	return nil
}

func (s *UploadStore) downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if s.maxEdge <= 0 || (w <= s.maxEdge && h <= s.maxEdge) {
		return img
	}

	if w >= h {
		h = h * s.maxEdge / w
		w = s.maxEdge
	} else {
		w = w * s.maxEdge / h
		h = s.maxEdge
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)
	return scaled
}

// Remove deletes a stored file. A file that is already gone is not an
// error. Names containing path separators are rejected so database values
// can never reach outside the upload tree.
func (s *UploadStore) Remove(kind UploadKind, name string) error {
	if name == "" || name != filepath.Base(name) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, string(kind), name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing upload: %w", err)
	}
	return nil
}

// Path returns the on-disk location of a stored file, or an empty string
// for names that would escape the upload tree.
func (s *UploadStore) Path(kind UploadKind, name string) string {
	if name == "" || name != filepath.Base(name) {
		return ""
	}
	return filepath.Join(s.dir, string(kind), name)
}

// Allowed reports whether a filename carries an accepted image extension.
func Allowed(originalName string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(originalName))]
}
