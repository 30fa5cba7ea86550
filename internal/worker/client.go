package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"tuesearch/internal/model"
)

// MasterClient is the worker-side view of the master API. All mutations
// of the crawl state go through it.
type MasterClient struct {
	baseURL  string
	password string
	client   *http.Client

	// saveRetries bounds the retry budget of SaveResults, which must not
	// silently drop a finished crawl.
	saveRetries int
}

func NewMasterClient(baseURL, password string, timeout time.Duration, saveRetries int) *MasterClient {
	return &MasterClient{
		baseURL:     baseURL,
		password:    password,
		client:      &http.Client{Timeout: timeout},
		saveRetries: saveRetries,
	}
}

func (m *MasterClient) endpoint(path string) string {
	u := m.baseURL + path
	if m.password != "" {
		u += "?pw=" + url.QueryEscape(m.password)
	}
	return u
}

func (m *MasterClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		blob, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.endpoint(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		blob, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, blob)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// ReserveJobs asks the master for up to n jobs.
func (m *MasterClient) ReserveJobs(ctx context.Context, n int) ([]model.JobDescriptor, error) {
	var jobs []model.JobDescriptor
	err := m.do(ctx, http.MethodGet, fmt.Sprintf("/reserve_jobs/%d", n), nil, &jobs)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// UnreserveJobs returns unfinished jobs to the frontier. The body is a
// bare JSON array of job ids.
func (m *MasterClient) UnreserveJobs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return m.do(ctx, http.MethodPost, "/unreserve_jobs", ids, nil)
}

// MarkJobFailed finishes a job as failed.
func (m *MasterClient) MarkJobFailed(ctx context.Context, id int64) error {
	return m.do(ctx, http.MethodPost, fmt.Sprintf("/mark_job_as_fail/%d", id), nil, nil)
}

// SaveResults ships a crawl result to the master, retrying transient
// failures with exponential backoff.
func (m *MasterClient) SaveResults(ctx context.Context, id int64, req *model.SaveResultsRequest) error {
	retries := m.saveRetries
	if retries < 0 {
		retries = 0
	}
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := m.do(ctx, http.MethodPost, fmt.Sprintf("/save_crawling_results/%d", id), req, nil)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
