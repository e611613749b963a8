package records

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Drivers lists the database/sql driver names SQLStore accepts.
var Drivers = []string{"sqlite", "postgres", "mysql"}

const schema = `
CREATE TABLE IF NOT EXISTS records (
	collection VARCHAR(255) NOT NULL,
	id VARCHAR(255) NOT NULL,
	annot VARCHAR(255) NOT NULL DEFAULT '',
	pos INTEGER NOT NULL,
	fields TEXT NOT NULL,
	PRIMARY KEY (collection, id)
)`

// SQLStore keeps records in one table of a SQL database. Fields are stored
// as a JSON document.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

type recordRow struct {
	ID     string `db:"id"`
	Annot  string `db:"annot"`
	Fields string `db:"fields"`
}

// OpenSQL connects to a database and creates the records table.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	known := false
	for _, d := range Drivers {
		known = known || d == driver
	}
	if !known {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	log.WithField("driver", driver).Debug("opening record store")
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating records table: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

func (s *SQLStore) Load(ctx context.Context, collection string) ([]*Record, error) {
	var rows []recordRow
	q := s.db.Rebind(`SELECT id, annot, fields FROM records WHERE collection = ? ORDER BY pos`)
	if err := s.db.SelectContext(ctx, &rows, q, collection); err != nil {
		return nil, fmt.Errorf("loading %s: %w", collection, err)
	}

	out := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec := &Record{ID: row.ID, Annot: row.Annot}
		if err := json.UnmarshalFromString(row.Fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", row.ID, err)
		}
		rec.Fields = normalize(rec.Fields).(map[string]any)
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLStore) Save(ctx context.Context, collection string, recs []*Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int64
	if err := tx.GetContext(ctx, &next, tx.Rebind(`SELECT COALESCE(MAX(pos), -1) + 1 FROM records WHERE collection = ?`), collection); err != nil {
		return fmt.Errorf("saving %s: %w", collection, err)
	}

	for _, r := range recs {
		fields := r.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		doc, err := json.MarshalToString(fields)
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", r.ID, err)
		}

		var n int
		if err := tx.GetContext(ctx, &n, tx.Rebind(`SELECT COUNT(*) FROM records WHERE collection = ? AND id = ?`), collection, r.ID); err != nil {
			return err
		}
		if n > 0 {
			_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE records SET annot = ?, fields = ? WHERE collection = ? AND id = ?`),
				r.Annot, doc, collection, r.ID)
		} else {
			_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO records (collection, id, annot, pos, fields) VALUES (?, ?, ?, ?, ?)`),
				collection, r.ID, r.Annot, next, doc)
			next++
		}
		if err != nil {
			return fmt.Errorf("saving record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Collections(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT DISTINCT collection FROM records ORDER BY collection`); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

var _ Store = (*SQLStore)(nil)

type jsonNumber interface {
	Int64() (int64, error)
	Float64() (float64, error)
}

// normalize turns decoded JSON numbers into int64 or float64.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	case jsonNumber:
		if n, err := t.Int64(); err == nil {
			return n
		}
		f, _ := t.Float64()
		return f
	case nil:
		return nil
	}
	return v
}
