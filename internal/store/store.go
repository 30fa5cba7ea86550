// Package store wraps all SQL access to the crawl corpus. The database is
// the single source of truth: jobs, documents, servers, and per-document
// TF-IDF vectors all live here, and every mutation outside the offline
// builders goes through the master.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tuesearch/internal/model"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// Store carries a shared *sql.DB with pooling.
type Store struct {
	DB *sql.DB
}

// New creates a new Store on the shared handle.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Open connects to Postgres with the pool settings used by every role.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	return db, nil
}

func encodeTokens(tokens []string) []byte {
	if tokens == nil {
		tokens = []string{}
	}
	b, _ := json.Marshal(tokens)
	return b
}

func decodeTokens(raw []byte) []string {
	var tokens []string
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &tokens)
	}
	if tokens == nil {
		tokens = []string{}
	}
	return tokens
}

// ---- servers ----

// UpsertServers inserts any unseen host names and returns the id of every
// given name. Existing rows are left untouched.
func (s *Store) UpsertServers(ctx context.Context, names []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		var id int64
		err := s.DB.QueryRowContext(ctx, `
			INSERT INTO servers (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, name).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert server %q: %w", name, err)
		}
		ids[name] = id
	}
	return ids, nil
}

// GetServer fetches one server row by id.
func (s *Store) GetServer(ctx context.Context, id int64) (*model.Server, error) {
	srv := &model.Server{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, is_blacklisted, page_rank, total_done_jobs, success_jobs, relevant_documents
		FROM servers WHERE id = $1`, id).
		Scan(&srv.ID, &srv.Name, &srv.Blacklisted, &srv.PageRank,
			&srv.TotalDoneJobs, &srv.SuccessJobs, &srv.RelevantDocuments)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get server %d: %w", id, err)
	}
	return srv, nil
}

// ListServers returns every server row.
func (s *Store) ListServers(ctx context.Context) ([]*model.Server, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, is_blacklisted, page_rank, total_done_jobs, success_jobs, relevant_documents
		FROM servers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var out []*model.Server
	for rows.Next() {
		srv := &model.Server{}
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.Blacklisted, &srv.PageRank,
			&srv.TotalDoneJobs, &srv.SuccessJobs, &srv.RelevantDocuments); err != nil {
			return nil, err
		}
		out = append(out, srv)
	}
	return out, rows.Err()
}

// BumpServerCounters updates the per-host totals after one job finished.
func (s *Store) BumpServerCounters(ctx context.Context, id int64, success, relevant bool) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE servers SET
			total_done_jobs = total_done_jobs + 1,
			success_jobs = success_jobs + CASE WHEN $2 THEN 1 ELSE 0 END,
			relevant_documents = relevant_documents + CASE WHEN $3 THEN 1 ELSE 0 END
		WHERE id = $1`, id, success, relevant)
	if err != nil {
		return fmt.Errorf("bump server counters %d: %w", id, err)
	}
	return nil
}

// UpdateServerPageRank rewrites the page_rank of one host by name.
func (s *Store) UpdateServerPageRank(ctx context.Context, name string, rank float64) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE servers SET page_rank = $2 WHERE name = $1`, name, rank)
	if err != nil {
		return fmt.Errorf("update page rank %q: %w", name, err)
	}
	return nil
}

// ---- jobs ----

// InsertJobs bulk-inserts jobs, dropping URL duplicates on conflict.
func (s *Store) InsertJobs(ctx context.Context, jobs []*model.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	stmt, err := s.DB.PrepareContext(ctx, `
		INSERT INTO jobs (
			url, server_id, parent_id,
			anchor_text, anchor_text_tokens,
			surrounding_text, surrounding_text_tokens,
			title_text, title_text_tokens,
			url_tokens, priority
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (url) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare insert jobs: %w", err)
	}
	defer stmt.Close()

	for _, job := range jobs {
		var parent any
		if job.ParentID != nil {
			parent = *job.ParentID
		}
		_, err := stmt.ExecContext(ctx,
			job.URL, job.ServerID, parent,
			job.AnchorText, encodeTokens(job.AnchorTextTokens),
			job.SurroundingText, encodeTokens(job.SurroundingTextTokens),
			job.TitleText, encodeTokens(job.TitleTextTokens),
			encodeTokens(job.URLTokens), job.Priority)
		if err != nil {
			return fmt.Errorf("insert job %q: %w", job.URL, err)
		}
	}
	return nil
}

// GetJob fetches one job row by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, url, server_id, parent_id, priority, done, success, being_crawled
		FROM jobs WHERE id = $1`, id)
	job := &model.Job{}
	var parent sql.NullInt64
	var success sql.NullBool
	err := row.Scan(&job.ID, &job.URL, &job.ServerID, &parent, &job.Priority,
		&job.Done, &success, &job.BeingCrawled)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	if parent.Valid {
		job.ParentID = &parent.Int64
	}
	if success.Valid {
		job.Success = &success.Bool
	}
	return job, nil
}

// MarkJobDone finishes a job's lifecycle, releasing the reservation.
func (s *Store) MarkJobDone(ctx context.Context, id int64, success bool) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE jobs SET done = TRUE, success = $2, being_crawled = FALSE, reserved_at = NULL
		WHERE id = $1`, id, success)
	if err != nil {
		return fmt.Errorf("mark job %d done: %w", id, err)
	}
	return nil
}

// UnreserveJobs clears being_crawled on the given jobs. Idempotent.
func (s *Store) UnreserveJobs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	_, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		UPDATE jobs SET being_crawled = FALSE, reserved_at = NULL
		WHERE id IN (%s) AND done = FALSE`, strings.Join(placeholders, ", ")), args...)
	if err != nil {
		return fmt.Errorf("unreserve jobs: %w", err)
	}
	return nil
}

// ForEachUnfinishedJob streams every not-done job through fn, with the
// link context needed to recompute its priority.
func (s *Store) ForEachUnfinishedJob(ctx context.Context, fn func(*model.Job) error) error {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, url, server_id, priority,
		       anchor_text, surrounding_text, title_text
		FROM jobs WHERE done = FALSE`)
	if err != nil {
		return fmt.Errorf("list unfinished jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		job := &model.Job{}
		if err := rows.Scan(&job.ID, &job.URL, &job.ServerID, &job.Priority,
			&job.AnchorText, &job.SurroundingText, &job.TitleText); err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpdateJobPriority rewrites one job's priority.
func (s *Store) UpdateJobPriority(ctx context.Context, id int64, priority float64) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE jobs SET priority = $2 WHERE id = $1`, id, priority)
	if err != nil {
		return fmt.Errorf("update job %d priority: %w", id, err)
	}
	return nil
}

// ChildJobURLs returns the URLs of every job a document produced;
// parent_id on jobs points at the document whose page linked them.
func (s *Store) ChildJobURLs(ctx context.Context, parentDocID int64) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT url FROM jobs WHERE parent_id = $1`, parentDocID)
	if err != nil {
		return nil, fmt.Errorf("child job urls of document %d: %w", parentDocID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ---- documents ----

func documentColumns() []string {
	cols := []string{"job_id", "html", "markdown", "relevant"}
	for _, f := range model.Fields {
		cols = append(cols, f)
	}
	for _, f := range model.Fields {
		cols = append(cols, f+"_tokens")
	}
	return cols
}

func documentArgs(doc *model.Document) []any {
	args := []any{doc.JobID, doc.HTML, doc.Markdown, doc.Relevant}
	for _, f := range model.Fields {
		args = append(args, doc.Text[f])
	}
	for _, f := range model.Fields {
		args = append(args, encodeTokens(doc.Tokens[f]))
	}
	return args
}

func scanDocument(rows interface{ Scan(...any) error }) (*model.Document, error) {
	doc := model.NewDocument()
	texts := make([]sql.NullString, len(model.Fields))
	tokens := make([][]byte, len(model.Fields))

	dest := []any{&doc.ID, &doc.JobID, &doc.HTML, &doc.Markdown, &doc.Relevant}
	for i := range model.Fields {
		dest = append(dest, &texts[i])
	}
	for i := range model.Fields {
		dest = append(dest, &tokens[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	for i, f := range model.Fields {
		doc.Text[f] = texts[i].String
		doc.Tokens[f] = decodeTokens(tokens[i])
	}
	return doc, nil
}

func documentSelect() string {
	cols := append([]string{"id"}, documentColumns()...)
	return "SELECT " + strings.Join(cols, ", ") + " FROM documents"
}

// InsertDocument stores one crawled document and returns its id. A second
// insert for the same job is rejected by the job_id uniqueness constraint,
// which keeps result ingestion idempotent per job.
func (s *Store) InsertDocument(ctx context.Context, doc *model.Document) (int64, error) {
	cols := documentColumns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO documents (%s) VALUES (%s) RETURNING id",
		strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	var id int64
	if err := s.DB.QueryRowContext(ctx, query, documentArgs(doc)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert document for job %d: %w", doc.JobID, err)
	}
	return id, nil
}

// GetDocumentsByIDs fetches document rows keyed by id.
func (s *Store) GetDocumentsByIDs(ctx context.Context, ids []int64) (map[int64]*model.Document, error) {
	out := make(map[int64]*model.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.DB.QueryContext(ctx,
		documentSelect()+" WHERE id IN ("+strings.Join(placeholders, ", ")+")", args...)
	if err != nil {
		return nil, fmt.Errorf("get documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out[doc.ID] = doc
	}
	return out, rows.Err()
}

// ForEachRelevantDocument streams all relevant documents through fn in id
// order, without loading the corpus into memory.
func (s *Store) ForEachRelevantDocument(ctx context.Context, fn func(*model.Document) error) error {
	rows, err := s.DB.QueryContext(ctx, documentSelect()+" WHERE relevant = TRUE ORDER BY id")
	if err != nil {
		return fmt.Errorf("stream relevant documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ForEachDocument streams every document through fn in id order.
func (s *Store) ForEachDocument(ctx context.Context, fn func(*model.Document) error) error {
	rows, err := s.DB.QueryContext(ctx, documentSelect()+" ORDER BY id")
	if err != nil {
		return fmt.Errorf("stream documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// DocumentJobURL returns the source URL of a document via its job.
func (s *Store) DocumentJobURL(ctx context.Context, docID int64) (string, error) {
	var u string
	err := s.DB.QueryRowContext(ctx, `
		SELECT j.url FROM documents d JOIN jobs j ON j.id = d.job_id
		WHERE d.id = $1`, docID).Scan(&u)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("document %d job url: %w", docID, err)
	}
	return u, nil
}

// DocumentServerName returns the host name owning a document.
func (s *Store) DocumentServerName(ctx context.Context, docID int64) (string, error) {
	var name string
	err := s.DB.QueryRowContext(ctx, `
		SELECT srv.name
		FROM documents d
		JOIN jobs j ON j.id = d.job_id
		JOIN servers srv ON srv.id = j.server_id
		WHERE d.id = $1`, docID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("document %d server: %w", docID, err)
	}
	return name, nil
}

// UpdateDocumentRelevance rewrites the relevant flag after offline
// re-classification.
func (s *Store) UpdateDocumentRelevance(ctx context.Context, docID int64, relevant bool) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE documents SET relevant = $2 WHERE id = $1`, docID, relevant)
	if err != nil {
		return fmt.Errorf("update document %d relevance: %w", docID, err)
	}
	return nil
}

// ---- tfidfs ----

// UpsertTfidf stores the per-field vectors of one document. Fields absent
// from the map are stored as NULL.
func (s *Store) UpsertTfidf(ctx context.Context, docID int64, vectors map[string][]byte) error {
	cols := []string{"document_id"}
	placeholders := []string{"$1"}
	args := []any{docID}
	updates := make([]string, 0, len(model.Fields))
	for i, f := range model.Fields {
		cols = append(cols, f)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+2))
		if blob, ok := vectors[f]; ok {
			args = append(args, blob)
		} else {
			args = append(args, nil)
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", f, f))
	}
	query := fmt.Sprintf(`
		INSERT INTO tfidfs (%s) VALUES (%s)
		ON CONFLICT (document_id) DO UPDATE SET %s, updated_at = now()`,
		strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert tfidf for document %d: %w", docID, err)
	}
	return nil
}

// GetTfidfs fetches the stored per-field vector blobs for the given
// documents. NULL fields are omitted from the inner maps.
func (s *Store) GetTfidfs(ctx context.Context, ids []int64) (map[int64]map[string][]byte, error) {
	out := make(map[int64]map[string][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf("SELECT document_id, %s FROM tfidfs WHERE document_id IN (%s)",
		strings.Join(model.Fields, ", "), strings.Join(placeholders, ", "))
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get tfidfs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var docID int64
		blobs := make([][]byte, len(model.Fields))
		dest := []any{&docID}
		for i := range blobs {
			dest = append(dest, &blobs[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		vectors := make(map[string][]byte)
		for i, f := range model.Fields {
			if blobs[i] != nil {
				vectors[f] = blobs[i]
			}
		}
		out[docID] = vectors
	}
	return out, rows.Err()
}
