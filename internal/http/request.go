package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/spotevents/spot/internal/application"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartBody = 10 << 20
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadRequestBody
		}
		return fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart reads the form and returns the optional file in field. The
// returned close func releases the file and temporary storage.
func parseMultipart(w http.ResponseWriter, r *http.Request, field string) (*application.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)
	if err := r.ParseMultipartForm(maxMultipartBody); err != nil {
		return nil, func() {}, fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, cleanup, nil
	}
	if err != nil {
		return nil, cleanup, fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	return &application.Upload{Filename: header.Filename, Content: file}, func() {
		_ = file.Close()
		cleanup()
	}, nil
}

// formFields collects typed multipart values and records parse failures.
type formFields struct {
	r      *http.Request
	errors map[string]string
}

func newFormFields(r *http.Request) *formFields {
	return &formFields{r: r}
}

func (f *formFields) has(key string) bool {
	_, ok := f.r.MultipartForm.Value[key]
	return ok
}

func (f *formFields) fail(key, message string) {
	if f.errors == nil {
		f.errors = make(map[string]string)
	}
	f.errors[key] = message
}

func (f *formFields) text(key string) *string {
	if !f.has(key) {
		return nil
	}
	value := strings.TrimSpace(f.r.FormValue(key))
	return &value
}

func (f *formFields) integer(key string) *int64 {
	if !f.has(key) {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(f.r.FormValue(key)), 10, 64)
	if err != nil {
		f.fail(key, key+" must be an integer")
		return nil
	}
	return &value
}

func (f *formFields) number(key string) *float64 {
	if !f.has(key) {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(f.r.FormValue(key)), 64)
	if err != nil {
		f.fail(key, key+" must be a number")
		return nil
	}
	return &value
}

func (f *formFields) flag(key string) *bool {
	if !f.has(key) {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(f.r.FormValue(key)))
	if err != nil {
		f.fail(key, key+" must be true or false")
		return nil
	}
	return &value
}

// list accepts repeated fields or a single comma separated value.
func (f *formFields) list(key string) []string {
	if !f.has(key) {
		return nil
	}
	var out []string
	for _, raw := range f.r.MultipartForm.Value[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func (f *formFields) err() error {
	if len(f.errors) == 0 {
		return nil
	}
	return &application.ValidationError{FieldErrors: f.errors}
}

func pageRequest(r *http.Request) (application.PageRequest, error) {
	var page application.PageRequest
	query := r.URL.Query()
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, errInvalidPagination
		}
		page.Page = n
	}
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, errInvalidPagination
		}
		page.Limit = n
	}
	return page, nil
}
