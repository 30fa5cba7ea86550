package model

import "time"

// Fields enumerates the per-document text fields in the order they are
// indexed and ranked. Every extractor, index, and vector-space component
// iterates this list so the set stays consistent across the pipeline.
var Fields = []string{
	"title",
	"meta_description",
	"meta_keywords",
	"meta_author",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"body",
}

// Server aggregates per-host crawl statistics. Rows are created on first
// sight of a host and never deleted; counters are bumped by the master on
// result ingest and page_rank is rewritten by the offline PageRank job.
type Server struct {
	ID                int64
	Name              string
	Blacklisted       bool
	PageRank          float64
	TotalDoneJobs     int64
	SuccessJobs       int64
	RelevantDocuments int64
}

// Job is a unit of crawl work identified by a normalized URL. ParentID is
// the document whose page linked the URL, nil for seeds. Lifecycle is
// monotone: pending -> being_crawled -> done with success true or false.
// Unreserve is the only backward transition and clears being_crawled only.
type Job struct {
	ID                    int64
	URL                   string
	ServerID              int64
	ParentID              *int64
	AnchorText            string
	AnchorTextTokens      []string
	SurroundingText       string
	SurroundingTextTokens []string
	TitleText             string
	TitleTextTokens       []string
	URLTokens             []string
	Priority              float64
	Done                  bool
	Success               *bool
	BeingCrawled          bool
	ReservedAt            *time.Time
}

// Document is the structured result of fetching and parsing one URL.
// Text holds the humanized per-field text and Tokens the lemma_POS
// projections, both keyed by the names in Fields.
type Document struct {
	ID       int64
	JobID    int64
	HTML     string
	Markdown string
	Text     map[string]string
	Tokens   map[string][]string
	Relevant bool
}

// NewDocument returns a Document with empty text and token maps for every
// known field, so extraction failures still produce a storable row.
func NewDocument() *Document {
	d := &Document{
		Text:   make(map[string]string, len(Fields)),
		Tokens: make(map[string][]string, len(Fields)),
	}
	for _, f := range Fields {
		d.Text[f] = ""
		d.Tokens[f] = []string{}
	}
	return d
}

// Title and Body are convenience accessors for the two fields surfaced in
// search results.
func (d *Document) Title() string { return d.Text["title"] }
func (d *Document) Body() string  { return d.Text["body"] }

// JobDescriptor is the wire shape of a reserved job handed to workers.
// Workers must only rely on ID and URL.
type JobDescriptor struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// NewJobPayload is a follow-up job shipped from worker to master. The
// priority is the client-computed URL priority; the master adds the host
// importance bonus and fills in server_id and parent_id.
type NewJobPayload struct {
	URL                   string   `json:"url"`
	AnchorText            string   `json:"anchor_text"`
	AnchorTextTokens      []string `json:"anchor_text_tokens"`
	SurroundingText       string   `json:"surrounding_text"`
	SurroundingTextTokens []string `json:"surrounding_text_tokens"`
	TitleText             string   `json:"title_text"`
	TitleTextTokens       []string `json:"title_text_tokens"`
	URLTokens             []string `json:"url_tokens"`
	Priority              float64  `json:"priority"`
}

// NewDocumentPayload is the worker-to-master document shape.
type NewDocumentPayload struct {
	HTML     string              `json:"html"`
	Markdown string              `json:"markdown"`
	Text     map[string]string   `json:"text"`
	Tokens   map[string][]string `json:"tokens"`
	Relevant bool                `json:"relevant"`
}

// SaveResultsRequest is the body of POST /save_crawling_results/{id}.
type SaveResultsRequest struct {
	NewDocument *NewDocumentPayload `json:"new_document"`
	NewJobs     []NewJobPayload     `json:"new_jobs"`
}

// SearchResult is one entry of the search API response.
type SearchResult struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url"`
	Relevant bool   `json:"relevant"`
}

// SearchResponse is the full search API response shape.
type SearchResponse struct {
	Query       string         `json:"query"`
	QueryTokens []string       `json:"query_tokens"`
	Page        int            `json:"page"`
	PageSize    int            `json:"page_size"`
	Results     []SearchResult `json:"results"`
}
