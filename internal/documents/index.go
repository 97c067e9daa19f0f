// Package documents keeps a full-text index of local notes in SQLite.
package documents

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"github.com/reinhart/taskAgent/internal/logger"
)

// DefaultChunkSize matches the size notes are split into before indexing.
const DefaultChunkSize = 1000

const candidateLimit = 200

// Result is one matching chunk.
type Result struct {
	Source  string
	Content string
	Score   int
}

// Index is an FTS4 table of document chunks.
type Index struct {
	db        *sql.DB
	chunkSize int
}

// Open connects to the index at dsn (":memory:" works) and creates the
// table when missing.
func Open(dsn string) (*Index, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn must be provided")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(`CREATE VIRTUAL TABLE IF NOT EXISTS chunks USING fts4(source, content)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create chunks table: %w", err)
	}
	return &Index{db: db, chunkSize: DefaultChunkSize}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// AddText replaces everything indexed under source with the chunks of text.
// It returns the number of chunks stored.
func (ix *Index) AddText(ctx context.Context, source, text string) (int, error) {
	chunks := Chunk(text, ix.chunkSize)

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source); err != nil {
		return 0, fmt.Errorf("clear %s: %w", source, err)
	}
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chunks (source, content) VALUES (?, ?)`, source, c); err != nil {
			return 0, fmt.Errorf("insert chunk of %s: %w", source, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(chunks), nil
}

// AddFile indexes one file under its path.
func (ix *Index) AddFile(ctx context.Context, path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return ix.AddText(ctx, path, string(b))
}

// LoadDir indexes every .txt and .md file below dir and returns how many
// files were loaded.
func (ix *Index) LoadDir(ctx context.Context, dir string) (int, error) {
	files := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !indexable(path) {
			return nil
		}
		n, err := ix.AddFile(ctx, path)
		if err != nil {
			return err
		}
		logger.Debug("Indexed %s (%d chunks)", path, n)
		files++
		return nil
	})
	if err != nil {
		return files, fmt.Errorf("load %s: %w", dir, err)
	}
	return files, nil
}

func indexable(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return true
	}
	return false
}

// Search returns up to k chunks matching any word of question, best first.
func (ix *Index) Search(ctx context.Context, question string, k int) ([]Result, error) {
	terms := queryTerms(question)
	if len(terms) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 3
	}

	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	rows, err := ix.db.QueryContext(ctx,
		`SELECT rowid, source, content FROM chunks WHERE chunks MATCH ? LIMIT ?`,
		strings.Join(quoted, " OR "), candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	type ranked struct {
		Result
		rowid int64
	}
	var found []ranked
	for rows.Next() {
		var r ranked
		if err := rows.Scan(&r.rowid, &r.Source, &r.Content); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r.Score = score(r.Content, terms)
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Score != found[j].Score {
			return found[i].Score > found[j].Score
		}
		return found[i].rowid < found[j].rowid
	})
	if len(found) > k {
		found = found[:k]
	}
	out := make([]Result, len(found))
	for i, r := range found {
		out[i] = r.Result
	}
	return out, nil
}

var stopWords = map[string]bool{
	"the": true, "and": true, "are": true, "for": true, "from": true, "what": true,
	"was": true, "were": true, "with": true, "who": true, "how": true, "did": true,
	"does": true, "this": true, "that": true, "about": true, "have": true, "has": true,
	"when": true, "where": true, "which": true, "our": true, "you": true, "any": true,
}

// queryTerms lowercases question and keeps distinct words of three or more
// letters that are not stop words.
func queryTerms(question string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range strings.FieldsFunc(strings.ToLower(question), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

func score(content string, terms []string) int {
	lower := strings.ToLower(content)
	n := 0
	for _, t := range terms {
		n += strings.Count(lower, t)
	}
	return n
}

// Chunk splits text on blank lines and packs the paragraphs into pieces of
// at most size characters. A single paragraph longer than size is kept
// whole.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks []string
	var cur strings.Builder
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+2+len(p) > size {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// Format renders results the way query_documents reports them.
func Format(results []Result) string {
	if len(results) == 0 {
		return "No matching documents found."
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("Source: %s\nContent: %s", r.Source, r.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
