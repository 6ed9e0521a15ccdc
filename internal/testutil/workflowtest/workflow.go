// Package workflowtest provides an end-to-end harness for the design validation job system:
// HTTP submission, the job engine and the status read path against a real database.
package workflowtest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/adapters/jobrunner"
	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/data"
	"github.com/innovites/cableaudit/internal/data/referencedata"
	"github.com/innovites/cableaudit/internal/domain/model"
	httpx "github.com/innovites/cableaudit/internal/http"
	"github.com/innovites/cableaudit/internal/pipeline"
	"github.com/innovites/cableaudit/internal/service"
	"github.com/innovites/cableaudit/internal/testutil"
)

// WorkflowTestHarness wires the API, the job store and a running engine.
//
//nolint:revive // WorkflowTestHarness is intentionally verbose for clarity in test code.
type WorkflowTestHarness struct {
	t  testutil.TestingTB
	db *sql.DB
	ts *httptest.Server

	JobRepo *data.JobRepo
	JobSvc  *service.JobService

	// References is what the validator reads from.
	References core.ReferenceReader

	// Optional Redis components
	RedisClient *redis.Client

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// WorkflowTestOptions configures the workflow test harness.
//
//nolint:revive // WorkflowTestOptions is intentionally verbose for clarity in test code.
type WorkflowTestOptions struct {
	// Engine configures the background job engine.
	Engine config.EngineConfig
	// DBReferences seeds the reference tables and reads through data.ReferenceRepo
	// instead of the in-memory index.
	DBReferences bool
	// EnableRedis puts the Redis reference cache in front of the tables. Implies DBReferences.
	EnableRedis bool
	// Pipeline overrides the default pattern+reference orchestrator.
	Pipeline jobrunner.Pipeline
}

// DefaultWorkflowOptions returns a fast engine configuration suitable for tests.
func DefaultWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		Engine: config.EngineConfig{
			Workers:       2,
			MaxAttempts:   3,
			Backoff:       config.BackoffFixed,
			BackoffBase:   0,
			LeaseDuration: 30 * time.Second,
			PollInterval:  100 * time.Millisecond,
		},
	}
}

// RedisWorkflowOptions returns DefaultWorkflowOptions with the Redis reference cache enabled.
func RedisWorkflowOptions() WorkflowTestOptions {
	opts := DefaultWorkflowOptions()
	opts.DBReferences = true
	opts.EnableRedis = true
	return opts
}

// NewWorkflowTestHarness creates the harness and starts the engine. Call Close when done.
func NewWorkflowTestHarness(t testutil.TestingTB, db *sql.DB, opts WorkflowTestOptions) *WorkflowTestHarness {
	t.Helper()

	h := &WorkflowTestHarness{t: t, db: db}
	h.JobRepo = data.NewJobRepo(db, data.RepoConfig{})
	h.JobSvc = service.MustNewJobService(service.JobServiceOptions{
		Repo:        h.JobRepo,
		MaxAttempts: opts.Engine.MaxAttempts,
	})

	h.References = h.setupReferences(opts)

	run := opts.Pipeline
	if run == nil {
		orch, err := pipeline.New(pipeline.Options{
			Extractor: pipeline.NewPatternExtractor(),
			Validator: pipeline.NewReferenceValidator(h.References),
			Auditor:   pipeline.NewReferenceAuditor(),
		})
		if err != nil {
			t.Fatalf("build pipeline: %v", err)
		}
		run = orch
	}

	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Jobs:     h.JobSvc,
		Pipeline: run,
		Config:   opts.Engine,
	})
	if err != nil {
		t.Fatalf("build job runner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if runErr := runner.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			t.Logf("job runner stopped: %v", runErr)
		}
	}()

	h.ts = httptest.NewServer(httpx.NewRouter(httpx.RouterServices{
		Jobs:         h.JobSvc,
		MaxBodyBytes: 1 << 20,
		Version:      "test",
	}))
	return h
}

//nolint:ireturn // the reader variant depends on the options.
func (h *WorkflowTestHarness) setupReferences(opts WorkflowTestOptions) core.ReferenceReader {
	ds, err := referencedata.Default()
	if err != nil {
		h.t.Fatalf("load reference dataset: %v", err)
	}
	if !opts.DBReferences && !opts.EnableRedis {
		return referencedata.NewIndex(ds)
	}

	repo := data.NewReferenceRepo(h.db)
	if err := repo.Replace(context.Background(), ds); err != nil {
		h.t.Fatalf("seed reference tables: %v", err)
	}

	readerOpts := data.CachedReferenceReaderOptions{Source: repo, TTL: time.Minute}
	if opts.EnableRedis {
		h.RedisClient = testutil.SetupTestRedis(h.t)
		readerOpts.Cache = data.NewRedisCacheRepo(h.RedisClient)
	}
	reader, err := data.NewCachedReferenceReader(readerOpts)
	if err != nil {
		h.t.Fatalf("build reference reader: %v", err)
	}
	return reader
}

// Close stops the engine, the HTTP server and the notifier.
func (h *WorkflowTestHarness) Close() {
	h.cancel()
	h.wg.Wait()
	h.JobSvc.StopNotifications()
	if h.ts != nil {
		h.ts.Close()
	}
	if h.RedisClient != nil {
		if err := h.RedisClient.Close(); err != nil {
			h.t.Logf("warning: failed to close redis client: %v", err)
		}
	}
}

// BaseURL returns the base URL of the test HTTP server.
func (h *WorkflowTestHarness) BaseURL() string {
	return h.ts.URL
}

// HTTPClient is a small JSON client bound to the harness server.
type HTTPClient struct {
	t       testutil.TestingTB
	baseURL string
	client  *http.Client
}

// NewHTTPClient returns a client for the harness server.
func (h *WorkflowTestHarness) NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		t:       h.t,
		baseURL: h.ts.URL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// DoJSON sends payload (if any) as JSON and returns the status code and body.
func (c *HTTPClient) DoJSON(method, path string, payload any) (int, []byte) {
	c.t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, c.baseURL+path, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, raw
}

// Submit posts a submission and returns the new job id. It fails the test on anything but 202.
func (c *HTTPClient) Submit(mode model.InputMode, data any) string {
	c.t.Helper()

	code, raw := c.DoJSON(http.MethodPost, "/api/v1/design/design-validations", map[string]any{
		"input_mode": mode,
		"data":       data,
	})
	if code != http.StatusAccepted {
		c.t.Fatalf("submit: status %d: %s", code, raw)
	}
	var resp model.SubmitResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.t.Fatalf("decode submit response: %v", err)
	}
	return resp.JobID
}

// Status fetches the status view of a job.
func (c *HTTPClient) Status(id string) model.JobStatusResponse {
	c.t.Helper()

	code, raw := c.DoJSON(http.MethodGet, "/api/v1/design/design-validations/"+id, nil)
	if code != http.StatusOK {
		c.t.Fatalf("status: status %d: %s", code, raw)
	}
	var resp model.JobStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.t.Fatalf("decode status response: %v", err)
	}
	return resp
}

// WaitForTerminal polls the status endpoint until the job leaves PENDING.
func (c *HTTPClient) WaitForTerminal(id string, timeout time.Duration) model.JobStatusResponse {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		resp := c.Status(id)
		if resp.JobStatus.Terminal() {
			return resp
		}
		if time.Now().After(deadline) {
			c.t.Fatalf("job %s still %s after %s", id, resp.JobStatus, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// DecodeReport unmarshals the audit report of a SUCCESS job.
func DecodeReport(t testutil.TestingTB, resp model.JobStatusResponse) model.AuditReport {
	var report model.AuditReport
	if err := json.Unmarshal(resp.Result, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	return report
}

// WithWorkflowHarness runs fn against a harness on an auto-provisioned test database.
func WithWorkflowHarness(t testutil.TestingTB, opts WorkflowTestOptions, fn func(*WorkflowTestHarness)) {
	t.Helper()
	testutil.WithAutoDB(t, func(db *sql.DB) {
		h := NewWorkflowTestHarness(t, db, opts)
		defer h.Close()
		fn(h)
	})
}
