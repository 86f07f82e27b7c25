package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"graf/internal/ops"
)

const maxBodyBytes = 1 << 20

// decodeRequest reads the operation fields from a form, multipart or JSON
// body. JSON values must be strings or numbers; null leaves the field unset.
// A missing Content-Type is read as an empty form.
func decodeRequest(r *http.Request) (ops.Request, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	mediaType := ""
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return nil, fmt.Errorf("parsing content type: %w", err)
		}
		mediaType = mt
	}

	switch mediaType {
	case "application/json":
		return decodeJSON(r)
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("parsing multipart form: %w", err)
		}
		return firstValues(r.MultipartForm.Value), nil
	case "", "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parsing form: %w", err)
		}
		return firstValues(r.PostForm), nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func firstValues(form map[string][]string) ops.Request {
	req := make(ops.Request, len(form))
	for key, values := range form {
		if len(values) > 0 {
			req[key] = values[0]
		}
	}
	return req
}

func decodeJSON(r *http.Request) (ops.Request, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}
	if raw == nil {
		return nil, errors.New("body must be a JSON object")
	}

	req := make(ops.Request, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			req[key] = v
		case json.Number:
			req[key] = v.String()
		default:
			return nil, fmt.Errorf("field %q must be a string or a number", key)
		}
	}
	return req, nil
}
