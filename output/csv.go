package output

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
)

func cellString(value interface{}) string {
	switch t := value.(type) {
	case string:
		return t
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", value)
}

// WriteCSV writes rows with a header taken from the first row.
func WriteCSV(w io.Writer, rows []*ordereddict.Dict) error {
	if len(rows) == 0 {
		return nil
	}

	writer := csv.NewWriter(w)
	headers := rows[0].Keys()
	err := writer.Write(headers)
	if err != nil {
		return err
	}

	record := make([]string, len(headers))
	for _, row := range rows {
		for idx, key := range headers {
			value, _ := row.Get(key)
			record[idx] = cellString(value)
		}

		err = writer.Write(record)
		if err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
