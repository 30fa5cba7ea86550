package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	Reset()
	RecordRequest("GET", "/reserve_jobs/:n", 200, 12)

	out := Export()
	if !strings.Contains(out, `tuesearch_http_requests_total{method="GET",path="/reserve_jobs/:n",status="200"} 1`) {
		t.Fatalf("expected request counter in export, got:\n%s", out)
	}
	if !strings.Contains(out, `tuesearch_http_latency_ms_sum{method="GET",path="/reserve_jobs/:n"} 12`) {
		t.Fatalf("expected latency sum in export, got:\n%s", out)
	}
}

func TestRecordCrawlCounters(t *testing.T) {
	Reset()
	RecordReserved(5)
	RecordUnreserved(2)
	RecordJobFailed()
	RecordNewJobs(7)
	RecordSweep(3)
	RecordDocumentSaved(true)
	RecordDocumentSaved(true)
	RecordDocumentSaved(false)

	out := Export()
	for _, want := range []string{
		"tuesearch_jobs_reserved_total 5",
		"tuesearch_jobs_unreserved_total 2",
		"tuesearch_jobs_failed_total 1",
		"tuesearch_jobs_ingested_total 7",
		"tuesearch_jobs_swept_total 3",
		`tuesearch_documents_saved_total{relevant="true"} 2`,
		`tuesearch_documents_saved_total{relevant="false"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in export, got:\n%s", want, out)
		}
	}
}

func TestRecordSearchCounters(t *testing.T) {
	Reset()
	RecordSearch(4)
	RecordSearch(0)

	out := Export()
	if !strings.Contains(out, "tuesearch_search_queries_total 2") {
		t.Fatalf("expected query counter, got:\n%s", out)
	}
	if !strings.Contains(out, "tuesearch_search_results_total 4") {
		t.Fatalf("expected results counter, got:\n%s", out)
	}
}

func TestExportDeterministicOrder(t *testing.T) {
	Reset()
	RecordRequest("GET", "/b", 200, 1)
	RecordRequest("GET", "/a", 200, 1)

	out := Export()
	if strings.Index(out, `path="/a"`) > strings.Index(out, `path="/b"`) {
		t.Fatalf("paths not sorted in export:\n%s", out)
	}
}
