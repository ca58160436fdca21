package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bibneat/internal/bibtex"
	"bibneat/internal/logging"
)

// Sources recorded on inserted entries.
const (
	SourceImport   = "import"
	SourcePreprint = "arxiv"
	SourceResolver = "doi"
)

// Entry is one stored BibTeX block.
type Entry struct {
	Index     EntryIndex `json:"index"`
	Position  int64      `json:"position"`
	Type      string     `json:"type"`
	Key       string     `json:"key"`
	Content   string     `json:"content"`
	Source    string     `json:"source"`
	Revision  int        `json:"revision"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsRecord reports whether the entry is a citable record.
func (e Entry) IsRecord() bool {
	return e.Key != ""
}

// ImportSummary counts the outcome of Import.
type ImportSummary struct {
	Added      int
	Skipped    int
	Duplicates []string
}

const entryColumns = "id, position, entry_type, cite_key, content, source, revision, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry            Entry
		created, updated string
	)
	if err := row.Scan(&entry.Index, &entry.Position, &entry.Type, &entry.Key, &entry.Content,
		&entry.Source, &entry.Revision, &created, &updated); err != nil {
		return nil, err
	}
	entry.CreatedAt = parseTimestamp(created)
	entry.UpdatedAt = parseTimestamp(updated)
	return &entry, nil
}

// Insert parses content and appends the first block it contains.
func (s *Store) Insert(ctx context.Context, content, source string) (*Entry, error) {
	block, err := bibtex.ParseEntry(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}
	if !block.IsRecord() || block.Key == "" {
		return nil, ErrInvalidContent
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := keyExists(ctx, tx, block.Key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, block.Key)
		}
		id, err = insertBlock(ctx, tx, block, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("entry inserted",
		logging.String(logging.FieldEntryKey, block.Key),
		logging.Int64(logging.FieldEntryIndex, id),
		logging.String("source", source))
	return s.Get(ctx, EntryIndex(id))
}

// Import appends every block in text. Records whose cite key already exists
// are skipped and reported in the summary.
func (s *Store) Import(ctx context.Context, text string) (ImportSummary, error) {
	blocks, err := bibtex.Parse(text)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("parse bibtex: %w", err)
	}
	var summary ImportSummary
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		summary = ImportSummary{}
		for _, block := range blocks {
			if block.IsRecord() {
				if block.Key == "" {
					summary.Skipped++
					continue
				}
				exists, err := keyExists(ctx, tx, block.Key)
				if err != nil {
					return err
				}
				if exists {
					summary.Skipped++
					summary.Duplicates = append(summary.Duplicates, block.Key)
					continue
				}
			}
			if _, err := insertBlock(ctx, tx, block, SourceImport); err != nil {
				return err
			}
			summary.Added++
		}
		return nil
	})
	if err != nil {
		return ImportSummary{}, err
	}
	s.logger.Info("library import complete",
		logging.Int("added", summary.Added),
		logging.Int("skipped", summary.Skipped))
	return summary, nil
}

func keyExists(ctx context.Context, tx *sql.Tx, key string) (bool, error) {
	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM entries WHERE cite_key = ?", key).Scan(&count); err != nil {
		return false, fmt.Errorf("check cite key: %w", err)
	}
	return count > 0, nil
}

func insertBlock(ctx context.Context, tx *sql.Tx, block bibtex.Entry, source string) (int64, error) {
	timestamp := timestampNow()
	key := ""
	if block.IsRecord() {
		key = block.Key
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (position, entry_type, cite_key, content, source, created_at, updated_at)
         VALUES ((SELECT COALESCE(MAX(position), 0) + 1 FROM entries), ?, ?, ?, ?, ?, ?)`,
		block.Type, key, strings.TrimSpace(block.Raw), source, timestamp, timestamp)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Get fetches one entry.
func (s *Store) Get(ctx context.Context, idx EntryIndex) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, int64(idx))
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrEntryNotFound, idx)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// List returns every entry in library order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM entries ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// DisplayKey returns the cite key used to name an entry in logs.
func (s *Store) DisplayKey(ctx context.Context, idx EntryIndex) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, "SELECT cite_key FROM entries WHERE id = ?", int64(idx)).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %d", ErrEntryNotFound, idx)
	}
	if err != nil {
		return "", fmt.Errorf("read display key: %w", err)
	}
	if key == "" {
		key = fmt.Sprintf("#%d", idx)
	}
	return key, nil
}

// Replace overwrites an entry with registry metadata. When the store
// preserves keys, the incoming record is rekeyed to the existing cite key.
func (s *Store) Replace(ctx context.Context, idx EntryIndex, content string) error {
	block, err := bibtex.ParseEntry(content)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContent, err)
	}
	if !block.IsRecord() {
		return ErrInvalidContent
	}
	raw := strings.TrimSpace(block.Raw)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, "SELECT cite_key FROM entries WHERE id = ?", int64(idx)).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrEntryNotFound, idx)
		}
		if err != nil {
			return fmt.Errorf("read entry: %w", err)
		}
		key := block.Key
		if s.preserveKeys && current != "" && current != key {
			rekeyed, err := bibtex.Rekey(raw, current)
			if err != nil {
				return fmt.Errorf("rekey replacement: %w", err)
			}
			raw, key = rekeyed, current
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE entries SET entry_type = ?, cite_key = ?, content = ?, revision = revision + 1, updated_at = ?
             WHERE id = ?`,
			block.Type, key, raw, timestampNow(), int64(idx)); err != nil {
			return fmt.Errorf("replace entry: %w", err)
		}
		return nil
	})
}

// Export writes every block in library order, separated by blank lines.
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	for i, entry := range entries {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
		}
		if _, err := io.WriteString(w, entry.Content+"\n"); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	}
	return nil
}
