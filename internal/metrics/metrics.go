// Package metrics keeps simple Prometheus-style counters for the master
// and the search API. Intentionally minimal and in-memory only; the
// /metrics endpoints render the text exposition format.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	jobsReserved       int64
	jobsUnreserved     int64
	jobsFailed         int64
	documentsSaved     = make(map[string]int64) // by relevance label
	newJobsIngested    int64
	staleJobsSwept     int64
	searchQueriesTotal int64
	searchResultsTotal int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

// RecordRequest increments the request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	requestsTotal[reqKey{Method: method, Path: path, Status: status}]++
	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordReserved counts jobs handed out to workers.
func RecordReserved(n int) {
	mu.Lock()
	defer mu.Unlock()
	jobsReserved += int64(n)
}

// RecordUnreserved counts jobs returned to the frontier.
func RecordUnreserved(n int) {
	mu.Lock()
	defer mu.Unlock()
	jobsUnreserved += int64(n)
}

// RecordJobFailed counts jobs marked failed.
func RecordJobFailed() {
	mu.Lock()
	defer mu.Unlock()
	jobsFailed++
}

// RecordDocumentSaved counts ingested documents by relevance.
func RecordDocumentSaved(relevant bool) {
	mu.Lock()
	defer mu.Unlock()
	label := "false"
	if relevant {
		label = "true"
	}
	documentsSaved[label]++
}

// RecordNewJobs counts follow-up jobs inserted on ingest.
func RecordNewJobs(n int) {
	mu.Lock()
	defer mu.Unlock()
	newJobsIngested += int64(n)
}

// RecordSweep counts stale reservations released by the sweep.
func RecordSweep(n int64) {
	mu.Lock()
	defer mu.Unlock()
	staleJobsSwept += n
}

// RecordSearch counts one query and the results it returned.
func RecordSearch(results int) {
	mu.Lock()
	defer mu.Unlock()
	searchQueriesTotal++
	searchResultsTotal += int64(results)
}

// Export returns the metrics in Prometheus text exposition format with
// deterministic ordering.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# TYPE tuesearch_http_requests_total counter\n")
	reqKeys := make([]reqKey, 0, len(requestsTotal))
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		a, c := reqKeys[i], reqKeys[j]
		if a.Path != c.Path {
			return a.Path < c.Path
		}
		if a.Method != c.Method {
			return a.Method < c.Method
		}
		return a.Status < c.Status
	})
	for _, k := range reqKeys {
		fmt.Fprintf(&b, "tuesearch_http_requests_total{method=%q,path=%q,status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# TYPE tuesearch_http_latency_ms_sum counter\n")
	latKeys := make([]latKey, 0, len(latencyMsSum))
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		a, c := latKeys[i], latKeys[j]
		if a.Path != c.Path {
			return a.Path < c.Path
		}
		return a.Method < c.Method
	})
	for _, k := range latKeys {
		fmt.Fprintf(&b, "tuesearch_http_latency_ms_sum{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "tuesearch_http_latency_ms_count{method=%q,path=%q} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# TYPE tuesearch_jobs_reserved_total counter\n")
	fmt.Fprintf(&b, "tuesearch_jobs_reserved_total %d\n", jobsReserved)
	fmt.Fprintf(&b, "tuesearch_jobs_unreserved_total %d\n", jobsUnreserved)
	fmt.Fprintf(&b, "tuesearch_jobs_failed_total %d\n", jobsFailed)
	fmt.Fprintf(&b, "tuesearch_jobs_ingested_total %d\n", newJobsIngested)
	fmt.Fprintf(&b, "tuesearch_jobs_swept_total %d\n", staleJobsSwept)

	b.WriteString("# TYPE tuesearch_documents_saved_total counter\n")
	for _, label := range []string{"false", "true"} {
		if v, ok := documentsSaved[label]; ok {
			fmt.Fprintf(&b, "tuesearch_documents_saved_total{relevant=%q} %d\n", label, v)
		}
	}

	b.WriteString("# TYPE tuesearch_search_queries_total counter\n")
	fmt.Fprintf(&b, "tuesearch_search_queries_total %d\n", searchQueriesTotal)
	fmt.Fprintf(&b, "tuesearch_search_results_total %d\n", searchResultsTotal)

	return b.String()
}

// Reset clears all counters. Test helper.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	requestsTotal = make(map[reqKey]int64)
	latencyMsSum = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)
	documentsSaved = make(map[string]int64)
	jobsReserved, jobsUnreserved, jobsFailed = 0, 0, 0
	newJobsIngested, staleJobsSwept = 0, 0
	searchQueriesTotal, searchResultsTotal = 0, 0
}
