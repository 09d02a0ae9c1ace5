package fetcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, input string, opts CSVOptions) ([][]string, error) {
	t.Helper()
	var rows [][]string
	_, err := StreamCSV(context.Background(), strings.NewReader(input), opts, func(row []string) error {
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func TestStreamCSV_Basic(t *testing.T) {
	rows, err := collectRows(t, "a,b,c\n1,2,3\n4,5,6\n", CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, rows[0])
	assert.Equal(t, []string{"4", "5", "6"}, rows[2])
}

func TestStreamCSV_Header(t *testing.T) {
	var header []string
	rows, err := collectRows(t, "borough,complaint_type\nBRONX,Noise\n", CSVOptions{
		HasHeader: true,
		OnHeader: func(h []string) error {
			header = h
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"borough", "complaint_type"}, header)
	assert.Equal(t, [][]string{{"BRONX", "Noise"}}, rows)
}

func TestStreamCSV_HeaderError(t *testing.T) {
	bad := errors.New("bad header")
	_, err := collectRows(t, "x\n1\n", CSVOptions{HasHeader: true, OnHeader: func([]string) error { return bad }})
	assert.ErrorIs(t, err, bad)
}

func TestStreamCSV_Empty(t *testing.T) {
	rows, err := collectRows(t, "", CSVOptions{HasHeader: true})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_VariableWidth(t *testing.T) {
	rows, err := collectRows(t, "a,b\n1\n2,3,4\n", CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"1"}, {"2", "3", "4"}}, rows)
}

func TestStreamCSV_QuotedNewline(t *testing.T) {
	rows, err := collectRows(t, "descriptor\n\"Loud Music\nParty\"\n", CSVOptions{HasHeader: true})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Loud Music\nParty"}}, rows)
}

func TestStreamCSV_Malformed(t *testing.T) {
	_, err := collectRows(t, "a,b\n\"unterminated,1\n", CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}
