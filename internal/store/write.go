package store

import (
	"context"
	"fmt"

	"github.com/roach88/notionsync/internal/notion"
)

// UpsertBlock inserts a block or overwrites every column of the existing row.
// All blobs are marshaled before the statement runs, so a marshaling error
// never leaves a partially written row.
func (s *Store) UpsertBlock(ctx context.Context, b *notion.Block) error {
	typeData, err := marshalBlob("type_data", b.TypeData)
	if err != nil {
		return fmt.Errorf("upsert block %s: %w", b.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO blocks
		(id, parent_type, parent_id, created_time, created_by, last_edited_time, last_edited_by,
		 archived, in_trash, child_index, has_children, block_type, type_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_type = excluded.parent_type,
			parent_id = excluded.parent_id,
			created_time = excluded.created_time,
			created_by = excluded.created_by,
			last_edited_time = excluded.last_edited_time,
			last_edited_by = excluded.last_edited_by,
			archived = excluded.archived,
			in_trash = excluded.in_trash,
			child_index = excluded.child_index,
			has_children = excluded.has_children,
			block_type = excluded.block_type,
			type_data = excluded.type_data
	`,
		b.ID,
		string(b.Parent.Type),
		b.Parent.ID,
		formatTime(b.CreatedTime),
		b.CreatedBy.ID,
		formatTime(b.LastEditedTime),
		b.LastEditedBy.ID,
		b.Archived,
		b.InTrash,
		b.ChildIndex,
		b.HasChildren,
		b.Type,
		typeData,
	)
	if err != nil {
		return fmt.Errorf("upsert block %s: %w", b.ID, err)
	}
	return nil
}

// UpsertPage inserts a page or overwrites the existing row.
func (s *Store) UpsertPage(ctx context.Context, p *notion.Page) error {
	properties, err := marshalBlob("properties", p.Properties)
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", p.ID, err)
	}
	icon, err := marshalOptionalBlob("icon", p.Icon)
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", p.ID, err)
	}
	cover, err := marshalOptionalBlob("cover", p.Cover)
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", p.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pages
		(id, parent_type, parent_id, created_time, created_by, last_edited_time, last_edited_by,
		 archived, in_trash, properties, url, public_url, icon, cover)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_type = excluded.parent_type,
			parent_id = excluded.parent_id,
			created_time = excluded.created_time,
			created_by = excluded.created_by,
			last_edited_time = excluded.last_edited_time,
			last_edited_by = excluded.last_edited_by,
			archived = excluded.archived,
			in_trash = excluded.in_trash,
			properties = excluded.properties,
			url = excluded.url,
			public_url = excluded.public_url,
			icon = excluded.icon,
			cover = excluded.cover
	`,
		p.ID,
		string(p.Parent.Type),
		p.Parent.ID,
		formatTime(p.CreatedTime),
		p.CreatedBy.ID,
		formatTime(p.LastEditedTime),
		p.LastEditedBy.ID,
		p.Archived,
		p.InTrash,
		properties,
		p.URL,
		nullableString(p.PublicURL),
		icon,
		cover,
	)
	if err != nil {
		return fmt.Errorf("upsert page %s: %w", p.ID, err)
	}
	return nil
}

// UpsertDatabase inserts a database or overwrites the existing row.
func (s *Store) UpsertDatabase(ctx context.Context, d *notion.Database) error {
	properties, err := marshalBlob("properties", d.Properties)
	if err != nil {
		return fmt.Errorf("upsert database %s: %w", d.ID, err)
	}
	title, err := marshalBlob("title", d.Title)
	if err != nil {
		return fmt.Errorf("upsert database %s: %w", d.ID, err)
	}
	description, err := marshalBlob("description", d.Description)
	if err != nil {
		return fmt.Errorf("upsert database %s: %w", d.ID, err)
	}
	icon, err := marshalOptionalBlob("icon", d.Icon)
	if err != nil {
		return fmt.Errorf("upsert database %s: %w", d.ID, err)
	}
	cover, err := marshalOptionalBlob("cover", d.Cover)
	if err != nil {
		return fmt.Errorf("upsert database %s: %w", d.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO databases
		(id, parent_type, parent_id, created_time, created_by, last_edited_time, last_edited_by,
		 archived, in_trash, properties, url, public_url, icon, cover, is_inline, title, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_type = excluded.parent_type,
			parent_id = excluded.parent_id,
			created_time = excluded.created_time,
			created_by = excluded.created_by,
			last_edited_time = excluded.last_edited_time,
			last_edited_by = excluded.last_edited_by,
			archived = excluded.archived,
			in_trash = excluded.in_trash,
			properties = excluded.properties,
			url = excluded.url,
			public_url = excluded.public_url,
			icon = excluded.icon,
			cover = excluded.cover,
			is_inline = excluded.is_inline,
			title = excluded.title,
			description = excluded.description
	`,
		d.ID,
		string(d.Parent.Type),
		d.Parent.ID,
		formatTime(d.CreatedTime),
		d.CreatedBy.ID,
		formatTime(d.LastEditedTime),
		d.LastEditedBy.ID,
		d.Archived,
		d.InTrash,
		properties,
		d.URL,
		nullableString(d.PublicURL),
		icon,
		cover,
		d.IsInline,
		title,
		description,
	)
	if err != nil {
		return fmt.Errorf("upsert database %s: %w", d.ID, err)
	}
	return nil
}

// UpsertComment inserts a comment or overwrites the existing row.
func (s *Store) UpsertComment(ctx context.Context, c *notion.Comment) error {
	richText, err := marshalBlob("rich_text", c.RichText)
	if err != nil {
		return fmt.Errorf("upsert comment %s: %w", c.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO comments
		(id, parent_type, parent_id, created_time, created_by, last_edited_time, discussion_id, rich_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			parent_type = excluded.parent_type,
			parent_id = excluded.parent_id,
			created_time = excluded.created_time,
			created_by = excluded.created_by,
			last_edited_time = excluded.last_edited_time,
			discussion_id = excluded.discussion_id,
			rich_text = excluded.rich_text
	`,
		c.ID,
		string(c.Parent.Type),
		c.Parent.ID,
		formatTime(c.CreatedTime),
		c.CreatedBy.ID,
		formatTime(c.LastEditedTime),
		c.DiscussionID,
		richText,
	)
	if err != nil {
		return fmt.Errorf("upsert comment %s: %w", c.ID, err)
	}
	return nil
}

// Upserter is the write side of the mirror. Every upsert is keyed by id and
// overwrites the existing row.
type Upserter interface {
	UpsertBlock(ctx context.Context, b *notion.Block) error
	UpsertPage(ctx context.Context, p *notion.Page) error
	UpsertDatabase(ctx context.Context, d *notion.Database) error
	UpsertComment(ctx context.Context, c *notion.Comment) error
}

// Upsert writes obj through u, dispatching on its kind.
func Upsert(ctx context.Context, u Upserter, obj notion.Object) error {
	switch o := obj.(type) {
	case *notion.Block:
		return u.UpsertBlock(ctx, o)
	case *notion.Page:
		return u.UpsertPage(ctx, o)
	case *notion.Database:
		return u.UpsertDatabase(ctx, o)
	case *notion.Comment:
		return u.UpsertComment(ctx, o)
	}
	return fmt.Errorf("upsert: unsupported record type %T", obj)
}
