package rest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// DefaultFileContentType is used for file-backed bodies when the request
// carries no Content-Type header.
const DefaultFileContentType = "application/octet-stream"

// openAttachment opens a request attachment, mapping any failure to
// ErrInvalidRequest.
func openAttachment(name string) (*os.File, os.FileInfo, error) {
	const op = "configure"

	info, err := os.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, &Error{Op: op, Kind: KindInvalidRequest, Err: fmt.Errorf("file not found: %s", name)}
		}
		return nil, nil, &Error{Op: op, Kind: KindInvalidRequest, Err: fmt.Errorf("cannot access file %s: %w", name, err)}
	}
	if info.IsDir() {
		return nil, nil, newError(op, KindInvalidRequest, "not a regular file: %s", name)
	}

	file, err := os.Open(name)
	if err != nil {
		return nil, nil, &Error{Op: op, Kind: KindInvalidRequest, Err: fmt.Errorf("cannot read file %s: %w", name, err)}
	}
	return file, info, nil
}

// setStringBody attaches an in-memory body to req.
func setStringBody(req *http.Request, data []byte) {
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.ContentLength = int64(len(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// setFileBody streams the named file as the raw request body.
func setFileBody(req *http.Request, name string) error {
	file, info, err := openAttachment(name)
	if err != nil {
		return err
	}

	req.Body = file
	req.ContentLength = info.Size()
	req.GetBody = func() (io.ReadCloser, error) {
		return os.Open(name)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", DefaultFileContentType)
	}
	return nil
}

// setMultipartBody encodes the file under paramName plus any form fields
// found in body as multipart/form-data.
func setMultipartBody(req *http.Request, name, paramName, body string) error {
	data, contentType, err := BuildMultipartBody(name, paramName, ParseFormBody(body))
	if err != nil {
		return err
	}
	setStringBody(req, data.Bytes())
	req.Header.Set("Content-Type", contentType)
	return nil
}

// BuildMultipartBody creates a multipart form data body holding the file
// under paramName followed by the given form fields.
func BuildMultipartBody(fileName, paramName string, fields []Header) (*bytes.Buffer, string, error) {
	file, _, err := openAttachment(fileName)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(paramName, filepath.Base(fileName))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", &Error{Op: "configure", Kind: KindInvalidRequest, Err: fmt.Errorf("cannot read file %s: %w", fileName, err)}
	}

	for _, field := range fields {
		if err := writer.WriteField(field.Name, field.Value); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

