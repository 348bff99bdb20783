package paperspace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/pspace/pkg/job"
)

// Client implements API over HTTP. Uploads and downloads go through stream,
// which has no overall timeout and is bounded by the context instead.
type Client struct {
	http     *http.Client
	stream   *http.Client
	apiURL   string
	logsURL  string
	apiKey   string
	pageSize int
	limiter  *rate.Limiter
	logger   *zap.Logger
}

var _ API = (*Client)(nil)

// New creates a client from cfg.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		http:     cfg.HTTPClient,
		apiURL:   strings.TrimRight(valueOrDefault(cfg.APIURL, DefaultAPIURL), "/"),
		logsURL:  strings.TrimRight(valueOrDefault(cfg.LogsURL, DefaultLogsURL), "/"),
		apiKey:   cfg.APIKey,
		pageSize: cfg.LogPageLimit,
		logger:   cfg.Logger,
	}
	if c.http == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = DefaultTimeout
		c.http = &http.Client{Timeout: DefaultTimeout, Transport: transport}
	}
	stream := *c.http
	stream.Timeout = 0
	c.stream = &stream
	if c.pageSize <= 0 {
		c.pageSize = DefaultLogPageLimit
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	limit := cfg.RateLimit
	if limit == 0 {
		limit = DefaultRateLimit
	}
	if limit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(limit), 5)
	}
	return c, nil
}

// LogPageLimit reports the per-call line cap the client requests.
func (c *Client) LogPageLimit() int {
	return c.pageSize
}

// Create submits a new job.
func (c *Client) Create(ctx context.Context, p CreateParams) (*job.Record, error) {
	q := url.Values{}
	setIf(q, "container", p.Container)
	setIf(q, "machineType", p.MachineType)
	setIf(q, "command", p.Command)
	setIf(q, "project", p.Project)
	if len(p.IgnoreFiles) > 0 {
		q.Set("ignoreFiles", strings.Join(p.IgnoreFiles, ","))
	}
	// The CLI follows logs itself.
	q.Set("tail", "false")

	var body io.Reader
	contentType := ""
	if p.Workspace != nil {
		name := valueOrDefault(p.WorkspaceName, "workspace.zip")
		q.Set("workspaceFileName", name)

		pr, pw := io.Pipe()
		defer func() { _ = pr.Close() }()
		mw := multipart.NewWriter(pw)
		contentType = mw.FormDataContentType()
		go func() {
			_ = pw.CloseWithError(writeWorkspace(mw, name, p.Workspace))
		}()
		body = pr
	}

	var rec job.Record
	if err := c.doJSON(ctx, c.stream, "create", http.MethodPost, c.apiURL+"/jobs/createJob?"+q.Encode(), body, contentType, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns jobs matching filter, in the service's (chronological) order.
func (c *Client) List(ctx context.Context, f ListFilter) ([]job.Record, error) {
	q := url.Values{}
	setIf(q, "project", f.Project)
	setIf(q, "state", string(f.State))

	u := c.apiURL + "/jobs/getJobs"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var recs []job.Record
	if err := c.doJSON(ctx, c.http, "list", http.MethodGet, u, nil, "", &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Show returns one job.
func (c *Client) Show(ctx context.Context, jobID string) (*job.Record, error) {
	q := url.Values{"jobId": {jobID}}
	var rec job.Record
	if err := c.doJSON(ctx, c.http, "show", http.MethodGet, c.apiURL+"/jobs/getJob?"+q.Encode(), nil, "", &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Stop stops or cancels a job.
func (c *Client) Stop(ctx context.Context, jobID string) error {
	u := c.apiURL + "/jobs/" + url.PathEscape(jobID) + "/stop"
	return c.doJSON(ctx, c.http, "stop", http.MethodPost, u, nil, "", nil)
}

// Logs returns at most one page of log lines starting at lineStart.
// An empty result means no more lines are available yet.
func (c *Client) Logs(ctx context.Context, jobID string, lineStart int) ([]job.LogLine, error) {
	q := url.Values{
		"jobId": {jobID},
		"line":  {strconv.Itoa(lineStart)},
		"limit": {strconv.Itoa(c.pageSize)},
	}
	var lines []job.LogLine
	if err := c.doJSON(ctx, c.http, "logs", http.MethodGet, c.logsURL+"/jobs/logs?"+q.Encode(), nil, "", &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// ArtifactsList returns the job's artifact files with download links.
func (c *Client) ArtifactsList(ctx context.Context, jobID string) ([]job.Artifact, error) {
	q := url.Values{"jobId": {jobID}, "links": {"true"}}
	var arts []job.Artifact
	if err := c.doJSON(ctx, c.http, "artifactsList", http.MethodGet, c.apiURL+"/jobs/artifactsList?"+q.Encode(), nil, "", &arts); err != nil {
		return nil, err
	}
	return arts, nil
}

// Download streams a pre-signed artifact URL into w. The API key is not sent,
// since the link usually points at a storage host.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errorFromResponse("download", resp.StatusCode, b)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}
	return nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// doJSON issues one authenticated request and decodes a JSON response into out.
// Error records are returned as *RemoteError whether or not the HTTP status
// signals failure.
func (c *Client) doJSON(ctx context.Context, hc *http.Client, op, method, u string, body io.Reader, contentType string, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "pspace")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("API request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", redactURL(u)),
		zap.String("request_id", requestID))

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("paperspace %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("paperspace %s: read response: %w", op, err)
	}

	c.logger.Debug("API response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.String("request_id", requestID))

	if resp.StatusCode >= 300 {
		return errorFromResponse(op, resp.StatusCode, data)
	}
	if re, ok := parseErrorRecord(op, resp.StatusCode, data); ok {
		return re
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("paperspace %s: decode response: %w", op, err)
	}
	return nil
}

// writeWorkspace streams the archive as the "file" form part.
func writeWorkspace(mw *multipart.Writer, name string, r io.Reader) error {
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("create workspace form part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("write workspace form part: %w", err)
	}
	return mw.Close()
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func valueOrDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

// redactURL drops the query string, which can carry command lines.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
