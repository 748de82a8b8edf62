package uploadclient

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/gabriel-vasile/mimetype"
	"github.com/urbaine/upwatch/common/utils/ioutil"
)

const (
	DefaultFileField    = "file"
	DefaultThreadsField = "numThreads"
)

// UploadRequest describes one multipart submission.
type UploadRequest struct {
	// FilePath is opened and streamed as the file part.
	FilePath string
	// FileField defaults to "file".
	FileField string
	// NumThreads is sent verbatim as the numThreads field when not empty.
	NumThreads string
	// Fields are extra text fields, sent in key order.
	Fields map[string]string
	// OnSent is called as body bytes of the file part are written.
	OnSent func(sent, total int64)
}

// Upload posts the request as multipart/form-data and returns the response
// body. Transport failures wrap ErrTransport; non-2xx responses return a
// *StatusError carrying the body.
func (c *Client) Upload(ctx context.Context, ur UploadRequest) (string, error) {
	file, err := os.Open(filepath.Clean(ur.FilePath))
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(ur.FilePath); err == nil {
		contentType = mt.String()
	}

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, ur, file, info.Size(), contentType))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload", nil), pr)
	if err != nil {
		pr.CloseWithError(err)
		return "", fmt.Errorf("%w: failed to create upload request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		pr.CloseWithError(err)
		return "", fmt.Errorf("%w: upload: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read upload response: %w", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return string(body), &StatusError{Op: "upload", StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
	}
	return string(body), nil
}

func writeForm(mw *multipart.Writer, ur UploadRequest, file io.Reader, size int64, contentType string) error {
	keys := maputil.Keys(ur.Fields)
	slices.Sort(keys)
	for _, k := range keys {
		if err := mw.WriteField(k, ur.Fields[k]); err != nil {
			return err
		}
	}
	if ur.NumThreads != "" {
		if err := mw.WriteField(DefaultThreadsField, ur.NumThreads); err != nil {
			return err
		}
	}

	field := ur.FileField
	if field == "" {
		field = DefaultFileField
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(field), escapeQuotes(filepath.Base(ur.FilePath))))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, ioutil.NewProgressReader(file, size, ur.OnSent)); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
