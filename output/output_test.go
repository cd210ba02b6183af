package output

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mfte-go/mfte"
	"github.com/mfte-go/mfte/internal/fixtures"
	"github.com/mfte-go/mfte/parser"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMFT() []byte {
	deleted := fixtures.File(13, 2, 11, 1, "deleted.txt", nil)
	deleted.Flags = 0

	ads := fixtures.File(14, 1, 11, 1, "ads.txt", []byte("main"))
	ads.Attributes = append(ads.Attributes, fixtures.Resident(
		fixtures.ATTR_DATA, ZONE_IDENTIFIER, 4, []byte("[ZoneTransfer]\r\nZoneId=3\r\n")))
	ads.Attributes = append(ads.Attributes, fixtures.Resident(
		fixtures.ATTR_FILE_NAME, "", 5, fixtures.FileName(11, 1, "ADS~1.TXT", 2, 4)))

	return fixtures.MFT(
		fixtures.File(0, 1, 5, 5, "$MFT", nil),
		fixtures.Directory(5, 5, 5, 5, "root"),
		fixtures.Directory(10, 1, 5, 5, "10-name"),
		fixtures.Directory(11, 1, 10, 1, "11-name"),
		fixtures.File(12, 1, 11, 1, "12-name", []byte("hello")),
		deleted, ads,
	)
}

func parse(t *testing.T, data []byte, kind parser.ArtifactKind,
	mft_context []byte) *mfte.Result {
	options := parser.GetDefaultOptions()
	options.Workers = 2
	result, err := mfte.Parse(context.Background(), data, kind, mft_context, options)
	require.NoError(t, err)
	return result
}

func TestMFTRows(t *testing.T) {
	result := parse(t, testMFT(), parser.ArtifactMFT, nil)

	rows := Rows(result, GetDefaultOptions())

	// One row per entry plus one for the alternate data stream.
	require.Equal(t, 8, len(rows))

	keys := rows[0].Keys()
	for _, row := range rows {
		assert.Equal(t, keys, row.Keys())
	}
	assert.NotContains(t, keys, "ShortName")

	file := rows[4]
	name, _ := file.Get("FileName")
	assert.Equal(t, "12-name", name)
	parent_path, _ := file.Get("ParentPath")
	assert.Equal(t, "root/10-name/11-name", parent_path)
	created, _ := file.Get("Created0x10")
	assert.Equal(t, "2020-01-02T03:04:05Z", created)
	copied, _ := file.Get("Copied")
	assert.Equal(t, false, copied)

	// Whole second timestamps.
	usec_zeros, _ := file.Get("USecZeros")
	assert.Equal(t, true, usec_zeros)

	deleted := rows[5]
	in_use, _ := deleted.Get("InUse")
	assert.Equal(t, false, in_use)

	main := rows[6]
	has_ads, _ := main.Get("HasAds")
	assert.Equal(t, true, has_ads)
	zone, _ := main.Get("ZoneIdContents")
	assert.Equal(t, "[ZoneTransfer]\r\nZoneId=3\r\n", zone)
	extension, _ := main.Get("Extension")
	assert.Equal(t, "txt", extension)

	stream := rows[7]
	name, _ = stream.Get("FileName")
	assert.Equal(t, "ads.txt:Zone.Identifier", name)
	is_ads, _ := stream.Get("IsAds")
	assert.Equal(t, true, is_ads)

	options := GetDefaultOptions()
	options.ShortNames = true
	rows = Rows(result, options)
	short_name, _ := rows[6].Get("ShortName")
	assert.Equal(t, "ADS~1.TXT", short_name)
}

func TestBodyfile(t *testing.T) {
	data := fixtures.MFT(
		fixtures.File(0, 1, 5, 5, "$MFT", nil),
		fixtures.Directory(5, 5, 5, 5, "root"),
		fixtures.Directory(10, 1, 5, 5, "10-name"),
		fixtures.Directory(11, 1, 10, 1, "11-name"),
		fixtures.File(12, 1, 11, 1, "12-name", []byte("hello")),
	)
	result := parse(t, data, parser.ArtifactMFT, nil)

	options := GetDefaultOptions()
	options.LineFeed = true

	out := &bytes.Buffer{}
	require.NoError(t, WriteBodyfile(out, result, options))

	g := goldie.New(t)
	g.Assert(t, "bodyfile_mft", out.Bytes())

	// CRLF by default and the drive letter is configurable.
	options = GetDefaultOptions()
	options.DriveLetter = "E:"
	out.Reset()
	require.NoError(t, WriteBodyfile(out, result, options))
	lines := strings.Split(out.String(), "\r\n")
	assert.Equal(t, 6, len(lines))
	assert.True(t, strings.HasPrefix(lines[1], "0|E:/root|5|d/"))

	// Unused entries are skipped.
	result = parse(t, testMFT(), parser.ArtifactMFT, nil)
	out.Reset()
	require.NoError(t, WriteBodyfile(out, result, options))
	assert.NotContains(t, out.String(), "deleted.txt")

	boot := parse(t, fixtures.DefaultBoot().Bytes(), parser.ArtifactBoot, nil)
	assert.Error(t, WriteBodyfile(out, boot, options))
}

func testJournal() []byte {
	return fixtures.Journal(
		fixtures.UsnV2(0, 0x100, 12, 11, "12-name", 0x100),
		fixtures.UsnV2(0, 0x200, 13, 11, "13-name", 0x80000200))
}

func TestUsnCSV(t *testing.T) {
	mft_context := fixtures.MFT(
		fixtures.File(0, 1, 5, 5, "$MFT", nil),
		fixtures.Directory(5, 5, 5, 5, "root"),
		fixtures.Directory(10, 1, 5, 5, "10-name"),
		fixtures.Directory(11, 1, 10, 1, "11-name"),
	)
	result := parse(t, testJournal(), parser.ArtifactUsnJournal, mft_context)

	out := &bytes.Buffer{}
	require.NoError(t, WriteCSV(out, Rows(result, GetDefaultOptions())))

	g := goldie.New(t)
	g.Assert(t, "usn_rows", out.Bytes())

	// Journal bodyfile lines use the record timestamp throughout.
	out.Reset()
	require.NoError(t, WriteBodyfile(out, result, GetDefaultOptions()))
	assert.True(t, strings.HasPrefix(out.String(),
		"0|C:/root/10-name/11-name/12-name|12|r/r-xr-xr-x|0|0|0|"+
			"1580702706|1580702706|1580702706|1580702706\r\n"))
}

func TestCSVEmpty(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, WriteCSV(out, nil))
	assert.Equal(t, 0, out.Len())
}

func TestJSON(t *testing.T) {
	result := parse(t, testJournal(), parser.ArtifactUsnJournal, nil)

	out := &bytes.Buffer{}
	require.NoError(t, WriteJSON(out, result))

	decoded := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "usn", decoded["kind"])
	assert.Equal(t, 2, len(decoded["usn_records"].([]interface{})))

	// Rows keep their column order.
	out.Reset()
	require.NoError(t, WriteJSON(out, UsnRows(result.UsnRecords)))
	assert.True(t, strings.Index(out.String(), `"Offset"`) <
		strings.Index(out.String(), `"FullPath"`))
}

func TestTable(t *testing.T) {
	records := [][]byte{}
	for i := 0; i < 30; i++ {
		records = append(records,
			fixtures.UsnV2(0, int64(i), 12, 11, "file.txt", 0x100))
	}
	result := parse(t, fixtures.Journal(records...), parser.ArtifactUsnJournal, nil)

	out := &bytes.Buffer{}
	WriteTable(out, Rows(result, GetDefaultOptions()), TableColumns["usn"],
		GetDefaultOptions())

	assert.Contains(t, out.String(), "UPDATESEQUENCENUMBER")
	assert.Contains(t, out.String(), "Showing 20 of 30 records")
	assert.Equal(t, 20, strings.Count(out.String(), "file.txt"))

	out.Reset()
	WriteTable(out, nil, nil, GetDefaultOptions())
	assert.Equal(t, "No records.\n", out.String())
}

func TestSQLite(t *testing.T) {
	result := parse(t, testMFT(), parser.ArtifactMFT, nil)
	rows := Rows(result, GetDefaultOptions())

	path := filepath.Join(t.TempDir(), "out.db")

	batch_size := SQLiteBatchSize
	SQLiteBatchSize = 3
	defer func() { SQLiteBatchSize = batch_size }()

	// Writing twice replaces the table.
	for i := 0; i < 2; i++ {
		require.NoError(t, WriteSQLite(context.Background(), path, "mft", rows))
	}

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	count := 0
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "mft"`).Scan(&count))
	assert.Equal(t, len(rows), count)

	name := ""
	require.NoError(t, db.QueryRow(
		`SELECT FileName FROM "mft" WHERE EntryNumber = 12 AND IsAds = 0`).Scan(&name))
	assert.Equal(t, "12-name", name)
}

func TestDefaultFileName(t *testing.T) {
	assert.Equal(t, "$MFT_mft.csv", DefaultFileName("/evidence/$MFT", "mft", "csv"))
	assert.Equal(t, "J_usn.json", DefaultFileName("J.bin", "usn", ".json"))
	assert.Equal(t, "artifact_boot.body", DefaultFileName("", "boot", "body"))
}
