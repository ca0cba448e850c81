package binder

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxMemory is the in-memory part of multipart parsing; larger parts spill to disk.
const DefaultMaxMemory = 10 << 20

// FileUpload is a fully read multipart file.
type FileUpload struct {
	Filename string
	Size     int64
	// DeclaredType is the Content-Type the client sent for the part.
	DeclaredType string
	Content      []byte
}

// ContentType sniffs the media type from the file content, ignoring what
// the client declared.
func (f FileUpload) ContentType() string {
	mt, _, err := mime.ParseMediaType(mimetype.Detect(f.Content).String())
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}

// Multipart binds multipart/form-data into a struct. Fields tagged
// `form:"name"` receive the first text value; fields tagged `file:"name"`
// of type []FileUpload or FileUpload receive the uploaded files. A file
// larger than maxFileBytes fails with ErrFileTooLarge.
func Multipart(maxFileBytes int64) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			return fmt.Errorf("%w: expected multipart/form-data", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "multipart/form-data" {
			return fmt.Errorf("%w: got %s, expected multipart/form-data", ErrUnsupportedMediaType, ct)
		}
		if r.MultipartForm == nil {
			if err := r.ParseMultipartForm(DefaultMaxMemory); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					return errors.Join(ErrFileTooLarge, err)
				}
				return errors.Join(ErrInvalidForm, err)
			}
		}

		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return fmt.Errorf("%w: target must be a non-nil pointer to struct", ErrInvalidForm)
		}
		rv = rv.Elem()
		rt := rv.Type()

		for i := range rt.NumField() {
			sf := rt.Field(i)
			field := rv.Field(i)
			if !field.CanSet() {
				continue
			}
			if name := tagName(sf.Tag.Get("form")); name != "" {
				if vals := r.MultipartForm.Value[name]; len(vals) > 0 {
					if field.Kind() != reflect.String {
						return fmt.Errorf("%w: field %s must be a string", ErrInvalidForm, sf.Name)
					}
					field.SetString(vals[0])
				}
				continue
			}
			if name := tagName(sf.Tag.Get("file")); name != "" {
				if err := setFiles(field, r.MultipartForm.File[name], maxFileBytes); err != nil {
					return fmt.Errorf("field %s: %w", sf.Name, err)
				}
			}
		}
		return nil
	}
}

var (
	uploadType      = reflect.TypeFor[FileUpload]()
	uploadSliceType = reflect.TypeFor[[]FileUpload]()
)

func setFiles(field reflect.Value, headers []*multipart.FileHeader, limit int64) error {
	if len(headers) == 0 {
		return nil
	}
	switch field.Type() {
	case uploadSliceType:
		out := make([]FileUpload, 0, len(headers))
		for _, h := range headers {
			up, err := readUpload(h, limit)
			if err != nil {
				return err
			}
			out = append(out, up)
		}
		field.Set(reflect.ValueOf(out))
	case uploadType:
		up, err := readUpload(headers[0], limit)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(up))
	default:
		return fmt.Errorf("%w: unsupported file field type %s", ErrInvalidForm, field.Type())
	}
	return nil
}

func readUpload(h *multipart.FileHeader, limit int64) (FileUpload, error) {
	if limit > 0 && h.Size > limit {
		return FileUpload{}, fmt.Errorf("%w: %q is %d bytes", ErrFileTooLarge, h.Filename, h.Size)
	}
	f, err := h.Open()
	if err != nil {
		return FileUpload{}, errors.Join(ErrInvalidForm, err)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return FileUpload{}, errors.Join(ErrInvalidForm, err)
	}
	if limit > 0 && int64(len(content)) > limit {
		return FileUpload{}, fmt.Errorf("%w: %q", ErrFileTooLarge, h.Filename)
	}
	return FileUpload{
		Filename:     h.Filename,
		Size:         int64(len(content)),
		DeclaredType: h.Header.Get("Content-Type"),
		Content:      content,
	}, nil
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	return name
}
