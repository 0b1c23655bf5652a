package superset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"strings"

	"github.com/majorcontext/superset-import/internal/log"
)

// Form field names of the dashboard import endpoint.
const (
	FieldFormData  = "formData"
	FieldOverwrite = "overwrite"
	FieldPasswords = "passwords"
)

// ImportRequest describes one dashboard upload.
type ImportRequest struct {
	// Path is the export file on local disk. It is also sent as the
	// upload's filename.
	Path      string
	Overwrite bool
	// Passwords maps databases/<name>.yaml to the database password.
	// The passwords field is omitted when empty.
	Passwords map[string]string
}

// ImportDashboard uploads an export file. Superset must answer 200; any
// other status is returned as an *APIError wrapped in a StepError.
func (s *Session) ImportDashboard(ctx context.Context, csrfToken string, req ImportRequest) error {
	if req.Path == "" {
		return stepErr(StepImport, errors.New("dashboard file path cannot be empty"))
	}

	body, contentType, err := buildImportForm(req)
	if err != nil {
		return stepErr(StepImport, err)
	}

	endpoint := s.client.Endpoint(ImportPath)
	log.Info("importing dashboard", "file", req.Path, "url", endpoint, "overwrite", req.Overwrite, "databases", len(req.Passwords))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return stepErr(StepImport, fmt.Errorf("creating request: %w", err))
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+s.Token())
	httpReq.Header.Set("X-CSRFToken", csrfToken)
	httpReq.Header.Set("Referer", endpoint)

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return stepErr(StepImport, fmt.Errorf("%s %s: %w", http.MethodPost, endpoint, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stepErr(StepImport, newAPIError(resp, http.MethodPost, endpoint))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Info("dashboard imported", "file", req.Path)
	return nil
}

// buildImportForm encodes the multipart body. The file is closed before
// returning on every path.
func buildImportForm(req ImportRequest) (io.Reader, string, error) {
	f, err := os.Open(req.Path)
	if err != nil {
		return nil, "", fmt.Errorf("opening dashboard file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FieldFormData, quoteEscaper.Replace(req.Path)))
	h.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading dashboard file: %w", err)
	}

	if err := mw.WriteField(FieldOverwrite, strconv.FormatBool(req.Overwrite)); err != nil {
		return nil, "", fmt.Errorf("writing %s field: %w", FieldOverwrite, err)
	}

	if len(req.Passwords) > 0 {
		encoded, err := EncodePasswords(req.Passwords)
		if err != nil {
			return nil, "", err
		}
		if err := mw.WriteField(FieldPasswords, encoded); err != nil {
			return nil, "", fmt.Errorf("writing %s field: %w", FieldPasswords, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")
