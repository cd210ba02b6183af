package output

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Velocidex/ordereddict"
	_ "modernc.org/sqlite"
)

// Rows inserted per transaction.
var SQLiteBatchSize = 10000

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func columnType(value interface{}) string {
	switch value.(type) {
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return "INTEGER"
	case float32, float64:
		return "REAL"
	}
	return "TEXT"
}

// SQLite integers are signed 64 bit.
func sqliteValue(value interface{}) interface{} {
	switch t := value.(type) {
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case string, float64, nil:
		return value
	}
	return cellString(value)
}

// WriteSQLite replaces table in the database at path with rows. The
// schema comes from the first row.
func WriteSQLite(ctx context.Context, path, table string,
	rows []*ordereddict.Dict) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.PingContext(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(table))
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return nil
	}

	columns := rows[0].Keys()
	definitions := make([]string, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	for _, column := range columns {
		value, _ := rows[0].Get(column)
		definitions = append(definitions,
			quoteIdentifier(column)+" "+columnType(value))
		placeholders = append(placeholders, "?")
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)",
		quoteIdentifier(table), strings.Join(definitions, ", ")))
	if err != nil {
		return err
	}

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)",
		quoteIdentifier(table), strings.Join(placeholders, ", "))

	for start := 0; start < len(rows); start += SQLiteBatchSize {
		end := start + SQLiteBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		err = insertBatch(ctx, db, insert, columns, rows[start:end])
		if err != nil {
			return err
		}
	}
	return nil
}

func insertBatch(ctx context.Context, db *sql.DB, insert string,
	columns []string, rows []*ordereddict.Dict) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	args := make([]interface{}, len(columns))
	for _, row := range rows {
		for idx, column := range columns {
			value, _ := row.Get(column)
			args[idx] = sqliteValue(value)
		}

		_, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}
