package segout

import (
	"fmt"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
	"github.com/kshedden/chromhmm/hmmlib"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS segments (
	cell     TEXT    NOT NULL,
	chrom    TEXT    NOT NULL,
	start_bp INTEGER NOT NULL,
	end_bp   INTEGER NOT NULL,
	state    INTEGER NOT NULL,
	label    TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS segments_location ON segments (cell, chrom, start_bp);
`

// SegmentRow conforms to the rows of the "segments" table and can be read
// with sqlx.  States are numbered from 1.
type SegmentRow struct {
	Cell  string
	Chrom string
	Start int `db:"start_bp"`
	End   int `db:"end_bp"`
	State int
	Label string
}

// Store keeps segments in a SQLite database.
type Store struct {
	DB *sqlx.DB
}

// OpenStore opens or creates the SQLite database at path and makes sure the
// segments table exists.
func OpenStore(path string) (*Store, error) {

	// URI filenames have to begin with 'file:'; see
	// https://www.sqlite.org/c3ref/open.html
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	_, err = db.DB.Exec(`
	PRAGMA journal_mode = OFF;
	PRAGMA synchronous = OFF;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to set pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(err)
	}

	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Insert adds segments in a single transaction.
func (s *Store) Insert(segs []hmmlib.Segment) error {

	tx, err := s.DB.Beginx()
	if err != nil {
		return pfx.Err(err)
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO segments (cell, chrom, start_bp, end_bp, state, label)
		VALUES (:cell, :chrom, :start_bp, :end_bp, :state, :label)`)
	if err != nil {
		_ = tx.Rollback()
		return pfx.Err(err)
	}
	defer stmt.Close()

	for _, sg := range segs {
		row := SegmentRow{
			Cell:  sg.Cell,
			Chrom: sg.Chrom,
			Start: sg.Start,
			End:   sg.End,
			State: sg.State + 1,
			Label: StateLabel(sg.State),
		}
		if _, err := stmt.Exec(row); err != nil {
			_ = tx.Rollback()
			return pfx.Err(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// Segments returns the segments of a cell and chromosome ordered by start.
func (s *Store) Segments(cell, chrom string) ([]SegmentRow, error) {

	var rows []SegmentRow
	err := s.DB.Select(&rows, `SELECT cell, chrom, start_bp, end_bp, state, label FROM segments
		WHERE cell = ? AND chrom = ? ORDER BY start_bp`, cell, chrom)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return rows, nil
}

// Coverage returns the number of base pairs assigned to each state label in
// a cell.
func (s *Store) Coverage(cell string) (map[string]int, error) {

	var rows []struct {
		Label string
		Bp    int
	}
	err := s.DB.Select(&rows, `SELECT label, SUM(end_bp - start_bp) AS bp FROM segments
		WHERE cell = ? GROUP BY label`, cell)
	if err != nil {
		return nil, pfx.Err(err)
	}

	cov := make(map[string]int, len(rows))
	for _, r := range rows {
		cov[r.Label] = r.Bp
	}

	return cov, nil
}
