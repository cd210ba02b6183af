package output

import (
	"fmt"
	"io"

	"github.com/Velocidex/ordereddict"
	"github.com/olekukonko/tablewriter"
)

const DefaultTableRows = 20

// WriteTable renders the first rows as a console table. columns
// selects and orders the columns; all columns are shown when empty.
func WriteTable(w io.Writer, rows []*ordereddict.Dict, columns []string,
	options Options) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No records.")
		return
	}

	if len(columns) == 0 {
		columns = rows[0].Keys()
	}

	limit := options.TableRows
	if limit <= 0 {
		limit = DefaultTableRows
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(columns)
	table.SetAutoWrapText(false)
	if len(rows) > limit {
		table.SetCaption(true, fmt.Sprintf(
			"Showing %d of %d records", limit, len(rows)))
	}
	defer table.Render()

	for idx, row := range rows {
		if idx >= limit {
			break
		}

		cells := make([]string, 0, len(columns))
		for _, column := range columns {
			value, _ := row.Get(column)
			cells = append(cells, cellString(value))
		}
		table.Append(cells)
	}
}

// Columns shown in the console table of each artifact kind.
var TableColumns = map[string][]string{
	"mft": {"EntryNumber", "SequenceNumber", "InUse", "FileName",
		"FileSize", "IsDirectory", "LastModified0x10"},
	"usn": {"UpdateSequenceNumber", "UpdateTimestamp", "EntryNumber",
		"Name", "UpdateReasons"},
	"boot": {"OemId", "ClusterSize", "RecordSize", "TotalClusters",
		"MftCluster", "SerialNumber"},
	"sds": {"Id", "Hash", "Owner", "Group", "DaclAces", "SaclAces"},
	"i30": {"EntryNumber", "FileName", "FileSize", "Modified", "IsSlack"},
}
