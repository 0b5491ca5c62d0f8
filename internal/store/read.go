package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/notionsync/internal/notion"
)

// ErrNotFound is returned by the Read functions when no row has the id.
var ErrNotFound = errors.New("not found")

// tables maps each kind to its table. Table names never come from input.
var tables = map[notion.Kind]string{
	notion.KindBlock:    "blocks",
	notion.KindPage:     "pages",
	notion.KindDatabase: "databases",
	notion.KindComment:  "comments",
}

func tableFor(kind notion.Kind) (string, error) {
	t, ok := tables[kind]
	if !ok {
		return "", fmt.Errorf("unknown kind %q", kind)
	}
	return t, nil
}

// Exists reports whether a row of the given kind has the id.
func (s *Store) Exists(ctx context.Context, kind notion.Kind, id string) (bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists %s %s: %w", kind, id, err)
	}
	return true, nil
}

// Count returns the number of rows of the given kind.
func (s *Store) Count(ctx context.Context, kind notion.Kind) (int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// Counts returns row counts for every kind.
func (s *Store) Counts(ctx context.Context) (map[notion.Kind]int, error) {
	out := make(map[notion.Kind]int, len(notion.Kinds))
	for _, kind := range notion.Kinds {
		n, err := s.Count(ctx, kind)
		if err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, nil
}

// ParentRef is the parent reference stored for one record.
type ParentRef struct {
	ID     string
	Parent notion.Parent
}

// Parents returns the parent reference of every row of the given kind,
// ordered by id.
func (s *Store) Parents(ctx context.Context, kind notion.Kind) ([]ParentRef, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, fmt.Errorf("parents: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, parent_type, parent_id FROM "+table+" ORDER BY id COLLATE BINARY ASC")
	if err != nil {
		return nil, fmt.Errorf("parents %s: %w", kind, err)
	}
	defer rows.Close()

	var refs []ParentRef
	for rows.Next() {
		var (
			ref        ParentRef
			parentType string
		)
		if err := rows.Scan(&ref.ID, &parentType, &ref.Parent.ID); err != nil {
			return nil, fmt.Errorf("parents %s: %w", kind, err)
		}
		ref.Parent.Type = notion.ParentType(parentType)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("parents %s: %w", kind, err)
	}
	return refs, nil
}

const blockColumns = `id, parent_type, parent_id, created_time, created_by, last_edited_time, last_edited_by,
	archived, in_trash, child_index, has_children, block_type, type_data`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner) (*notion.Block, error) {
	var (
		b                   notion.Block
		parentType          string
		created, lastEdited string
		typeData            string
	)
	err := row.Scan(&b.ID, &parentType, &b.Parent.ID, &created, &b.CreatedBy.ID, &lastEdited, &b.LastEditedBy.ID,
		&b.Archived, &b.InTrash, &b.ChildIndex, &b.HasChildren, &b.Type, &typeData)
	if err != nil {
		return nil, err
	}
	b.Parent.Type = notion.ParentType(parentType)
	b.TypeData = []byte(typeData)
	if b.CreatedTime, err = parseTime(created); err != nil {
		return nil, err
	}
	if b.LastEditedTime, err = parseTime(lastEdited); err != nil {
		return nil, err
	}
	return &b, nil
}

// ReadBlock reads one block by id.
func (s *Store) ReadBlock(ctx context.Context, id string) (*notion.Block, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+blockColumns+" FROM blocks WHERE id = ?", id)
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read block %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read block %s: %w", id, err)
	}
	return b, nil
}

// ChildBlocks returns the blocks whose parent is parentID, ordered by
// sibling index.
func (s *Store) ChildBlocks(ctx context.Context, parentID string) ([]*notion.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+blockColumns+" FROM blocks WHERE parent_id = ? ORDER BY child_index ASC, id ASC",
		parentID)
	if err != nil {
		return nil, fmt.Errorf("child blocks of %s: %w", parentID, err)
	}
	defer rows.Close()

	var out []*notion.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("child blocks of %s: %w", parentID, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("child blocks of %s: %w", parentID, err)
	}
	return out, nil
}

// ReadPage reads one page by id.
func (s *Store) ReadPage(ctx context.Context, id string) (*notion.Page, error) {
	var (
		p                   notion.Page
		parentType          string
		created, lastEdited string
		properties          string
		publicURL           sql.NullString
		icon, cover         sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, parent_type, parent_id, created_time, created_by, last_edited_time, last_edited_by,
			archived, in_trash, properties, url, public_url, icon, cover
		FROM pages WHERE id = ?
	`, id).Scan(&p.ID, &parentType, &p.Parent.ID, &created, &p.CreatedBy.ID, &lastEdited, &p.LastEditedBy.ID,
		&p.Archived, &p.InTrash, &properties, &p.URL, &publicURL, &icon, &cover)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read page %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read page %s: %w", id, err)
	}

	p.Parent.Type = notion.ParentType(parentType)
	p.Properties = []byte(properties)
	p.PublicURL = stringPtr(publicURL)
	p.Icon = rawOrNil(icon)
	p.Cover = rawOrNil(cover)
	if p.CreatedTime, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("read page %s: %w", id, err)
	}
	if p.LastEditedTime, err = parseTime(lastEdited); err != nil {
		return nil, fmt.Errorf("read page %s: %w", id, err)
	}
	return &p, nil
}

// ReadDatabase reads one database by id.
func (s *Store) ReadDatabase(ctx context.Context, id string) (*notion.Database, error) {
	var (
		d                          notion.Database
		parentType                 string
		created, lastEdited        string
		properties, title, descrip string
		publicURL                  sql.NullString
		icon, cover                sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, parent_type, parent_id, created_time, created_by, last_edited_time, last_edited_by,
			archived, in_trash, properties, url, public_url, icon, cover, is_inline, title, description
		FROM databases WHERE id = ?
	`, id).Scan(&d.ID, &parentType, &d.Parent.ID, &created, &d.CreatedBy.ID, &lastEdited, &d.LastEditedBy.ID,
		&d.Archived, &d.InTrash, &properties, &d.URL, &publicURL, &icon, &cover, &d.IsInline, &title, &descrip)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read database %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read database %s: %w", id, err)
	}

	d.Parent.Type = notion.ParentType(parentType)
	d.Properties = []byte(properties)
	d.Title = []byte(title)
	d.Description = []byte(descrip)
	d.PublicURL = stringPtr(publicURL)
	d.Icon = rawOrNil(icon)
	d.Cover = rawOrNil(cover)
	if d.CreatedTime, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("read database %s: %w", id, err)
	}
	if d.LastEditedTime, err = parseTime(lastEdited); err != nil {
		return nil, fmt.Errorf("read database %s: %w", id, err)
	}
	return &d, nil
}

// ReadComment reads one comment by id.
func (s *Store) ReadComment(ctx context.Context, id string) (*notion.Comment, error) {
	var (
		c                   notion.Comment
		parentType          string
		created, lastEdited string
		richText            string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, parent_type, parent_id, created_time, created_by, last_edited_time, discussion_id, rich_text
		FROM comments WHERE id = ?
	`, id).Scan(&c.ID, &parentType, &c.Parent.ID, &created, &c.CreatedBy.ID, &lastEdited, &c.DiscussionID, &richText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read comment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read comment %s: %w", id, err)
	}

	c.Parent.Type = notion.ParentType(parentType)
	c.RichText = []byte(richText)
	if c.CreatedTime, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("read comment %s: %w", id, err)
	}
	if c.LastEditedTime, err = parseTime(lastEdited); err != nil {
		return nil, fmt.Errorf("read comment %s: %w", id, err)
	}
	return &c, nil
}

// Dump renders every entity table as text, one row per line, tables in
// kind order and rows ordered by id. Columns are separated by '|' and NULL
// is rendered as "NULL". Two stores with equal dumps hold byte-identical
// entity rows. sync_runs is excluded: it differs on every run.
func (s *Store) Dump(ctx context.Context) (string, error) {
	var sb strings.Builder
	for _, kind := range notion.Kinds {
		table := tables[kind]
		if err := s.dumpTable(ctx, &sb, table); err != nil {
			return "", fmt.Errorf("dump %s: %w", table, err)
		}
	}
	return sb.String(), nil
}

func (s *Store) dumpTable(ctx context.Context, sb *strings.Builder, table string) error {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+table+" ORDER BY id COLLATE BINARY ASC")
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	fmt.Fprintf(sb, "# %s\n", table)

	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		for i, v := range values {
			if i > 0 {
				sb.WriteByte('|')
			}
			if v.Valid {
				sb.WriteString(v.String)
			} else {
				sb.WriteString("NULL")
			}
		}
		sb.WriteByte('\n')
	}
	return rows.Err()
}
