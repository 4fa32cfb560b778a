package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptrace"
	"net/textproto"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
)

// UploadHooks receives transport milestones of a single submission.
type UploadHooks struct {
	// Progress is called with the share of the request body written so far (0-100).
	Progress func(percent int)
	// Sent is called once the whole request has been written, before the
	// response arrives.
	Sent func()
}

func (h UploadHooks) progress(percent int) {
	if h.Progress != nil {
		h.Progress(percent)
	}
}

func (h UploadHooks) sent() {
	if h.Sent != nil {
		h.Sent()
	}
}

// Analyzer submits a document to the analysis service and returns the
// decoded, not yet normalized, response body.
type Analyzer interface {
	Analyze(ctx context.Context, doc model.Document, body io.Reader, hooks UploadHooks) (any, error)
}

// AnalysisService talks to the document-analysis HTTP service.
type AnalysisService struct {
	config     *config.AnalysisConfig
	httpClient *http.Client
}

// NewAnalysisService creates the client. Deadlines come from the caller's
// context.
func NewAnalysisService(cfg *config.AnalysisConfig) *AnalysisService {
	return &AnalysisService{
		config:     cfg,
		httpClient: &http.Client{},
	}
}

// Analyze sends the document as one multipart request (field "file").
func (s *AnalysisService) Analyze(ctx context.Context, doc model.Document, body io.Reader, hooks UploadHooks) (any, error) {
	payload, contentType, err := multipartPayload(doc, body)
	if err != nil {
		return nil, err
	}

	total := int64(payload.Len())
	reader := &progressReader{r: payload, total: total, report: hooks.progress}

	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				hooks.sent()
			}
		},
	}
	ctx = httptrace.WithClientTrace(ctx, trace)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if s.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIToken)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, transportFailure(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportFailure(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{
			Kind:       TransportHTTPStatus,
			StatusCode: resp.StatusCode,
			Message:    serviceMessage(respBody),
		}
	}

	var raw any
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, &NormalizationError{Detail: fmt.Sprintf("malformed JSON body: %v", err)}
	}
	return raw, nil
}

func multipartPayload(doc model.Document, body io.Reader) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": doc.Filename,
	}))
	header.Set("Content-Type", doc.MediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, "", fmt.Errorf("failed to read document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return buf, writer.FormDataContentType(), nil
}

// serviceMessage extracts the error text an analysis or query service puts in
// a failed response, e.g. {"status":"error","message":"..."}.
func serviceMessage(body []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	return firstString(obj, "error", "message")
}

// progressReader reports how much of the request body the transport has read.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.total > 0 && (n > 0 || err == io.EOF) {
		p.report(int(p.read * 100 / p.total))
	}
	return n, err
}
