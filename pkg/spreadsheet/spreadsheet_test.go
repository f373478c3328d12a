package spreadsheet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteThenParseStudentRows(t *testing.T) {
	data, err := Write(Table{
		Sheet:   "roster",
		Headers: []string{"序号", HeaderExternalID, HeaderNickname},
		Rows: [][]interface{}{
			{1, "u-100", "Lin"},
			{2, "", "Orphan"},
			{3, "u-200", " Mei "},
		},
	})
	require.NoError(t, err)

	mime, err := Detect(data)
	require.NoError(t, err)
	require.Equal(t, XLSXMime, mime)

	rows, skipped, err := ParseStudentRows(data)
	require.NoError(t, err)
	require.Equal(t, []int{3}, skipped)
	require.Equal(t, []StudentRow{
		{Row: 2, ExternalID: "u-100", Name: "Lin"},
		{Row: 4, ExternalID: "u-200", Name: "Mei"},
	}, rows)
}

func TestParseStudentRowsRequiresHeaders(t *testing.T) {
	data, err := Write(Table{Headers: []string{"id", "name"}, Rows: [][]interface{}{{"u-1", "Lin"}}})
	require.NoError(t, err)

	_, _, err = ParseStudentRows(data)
	require.ErrorIs(t, err, ErrMissingColumns)
}

func TestDetectRejectsOtherContent(t *testing.T) {
	_, err := Detect([]byte("name,id\nLin,1\n"))
	require.ErrorIs(t, err, ErrNotWorkbook)
}
