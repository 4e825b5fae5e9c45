package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Evidence is the backend record of an uploaded file.
type Evidence struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	SHA256 string `json:"sha256,omitempty"`
	Size   int64  `json:"size"`
	CaseID string `json:"case_id,omitempty"`
}

// UploadProgress reports bytes sent for one file.
type UploadProgress struct {
	File  string
	Sent  int64
	Total int64
}

// UploadResult is the outcome for one file of a batch.
type UploadResult struct {
	Path     string
	Evidence *Evidence
	Err      error
}

// UploadEvidence uploads paths one at a time to caseID. A failed file is
// recorded and skipped; the remaining files still upload. Only context
// cancellation stops the batch early. progress may be nil.
func (c *Client) UploadEvidence(ctx context.Context, caseID string, paths []string, progress func(UploadProgress)) []UploadResult {
	out := make([]UploadResult, 0, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			out = append(out, UploadResult{Path: p, Err: ctx.Err()})
			continue
		}
		ev, err := c.uploadOne(ctx, caseID, p, progress)
		if err != nil {
			slog.Warn("evidence upload failed", "file", p, "error", err)
		}
		out = append(out, UploadResult{Path: p, Evidence: ev, Err: err})
	}
	return out
}

func (c *Client) uploadOne(ctx context.Context, caseID, path string, progress func(UploadProgress)) (*Evidence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backend: open evidence: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("backend: stat evidence: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("backend: %s is a directory", path)
	}

	pr, pw := io.Pipe()
	defer pr.Close() // unblocks the writer if the server answers early
	mw := multipart.NewWriter(pw)
	name := filepath.Base(path)

	go func() {
		err := writeMultipart(mw, caseID, name, &progressReader{
			r:        f,
			total:    info.Size(),
			file:     name,
			callback: progress,
		})
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evidence/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("backend: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var ev Evidence
	if err := c.send(req, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func writeMultipart(mw *multipart.Writer, caseID, name string, body io.Reader) error {
	if caseID != "" {
		if err := mw.WriteField("case_id", caseID); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}

type progressReader struct {
	r        io.Reader
	sent     int64
	total    int64
	file     string
	callback func(UploadProgress)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.sent += int64(n)
	if p.callback != nil && n > 0 {
		p.callback(UploadProgress{File: p.file, Sent: p.sent, Total: p.total})
	}
	return n, err
}
