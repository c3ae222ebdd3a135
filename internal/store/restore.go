package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
)

// schemaObject is one row of an image's sqlite_master.
type schemaObject struct {
	typ, name, sql string
}

// restore copies image into the empty main database of db. The image is
// written to a temporary file, attached to the engine's connection and
// copied object by object. SQLite owns every page it reads this way.
func restore(ctx context.Context, db *sql.DB, image []byte) (err error) {
	f, err := os.CreateTemp("", "saku-image-*.db")
	if err != nil {
		return fmt.Errorf("restore: create temp file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(image); err != nil {
		f.Close()
		return fmt.Errorf("restore: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("restore: close temp file: %w", err)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("restore: acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS src`, path); err != nil {
		return fmt.Errorf("restore: attach image: %w", err)
	}
	defer func() {
		if _, derr := conn.ExecContext(context.WithoutCancel(ctx), `DETACH DATABASE src`); derr != nil && err == nil {
			err = fmt.Errorf("restore: detach image: %w", derr)
		}
	}()

	objects, err := imageSchema(ctx, conn)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("restore: begin: %w", err)
	}
	defer tx.Rollback()

	// Tables and their rows first; indexes, triggers and views after, so
	// index builds see the copied data.
	for _, o := range objects {
		if o.typ != "table" {
			continue
		}
		if _, err := tx.ExecContext(ctx, o.sql); err != nil {
			return fmt.Errorf("restore: create %s: %w", o.name, err)
		}
		q := quoteIdent(o.name)
		if _, err := tx.ExecContext(ctx, `INSERT INTO main.`+q+` SELECT * FROM src.`+q); err != nil {
			return fmt.Errorf("restore: copy %s: %w", o.name, err)
		}
	}
	for _, o := range objects {
		if o.typ == "table" {
			continue
		}
		if _, err := tx.ExecContext(ctx, o.sql); err != nil {
			return fmt.Errorf("restore: create %s %s: %w", o.typ, o.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("restore: commit: %w", err)
	}
	return nil
}

// imageSchema lists the user objects of the attached image in creation
// order. Internal objects (sqlite_sequence, automatic indexes) are
// recreated by SQLite itself.
func imageSchema(ctx context.Context, conn *sql.Conn) ([]schemaObject, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT type, name, sql FROM src.sqlite_master
		WHERE sql IS NOT NULL AND name NOT LIKE 'sqlite_%'
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("restore: read image schema: %w", err)
	}
	defer rows.Close()

	var out []schemaObject
	for rows.Next() {
		var o schemaObject
		if err := rows.Scan(&o.typ, &o.name, &o.sql); err != nil {
			return nil, fmt.Errorf("restore: read image schema: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("restore: read image schema: %w", err)
	}
	return out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
