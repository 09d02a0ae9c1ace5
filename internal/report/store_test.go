package report

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/nyc311-cli/internal/artifact"
	"github.com/sells-group/nyc311-cli/internal/model"
)

var sampleRows = []model.StatRow{
	{Date: "2024-01-01", Boro: "ALL", Metric: "complaints", Value: 3},
	{Date: "2024-01-01", Boro: "ALL", Metric: "Heat, Hot Water", Value: 2},
}

func TestEncodeRows(t *testing.T) {
	data, err := EncodeRows(sampleRows)
	require.NoError(t, err)
	assert.Equal(t, "date,boro,metric,value\n2024-01-01,ALL,complaints,3\n2024-01-01,ALL,\"Heat, Hot Water\",2\n", string(data))

	rows, err := DecodeRows(data)
	require.NoError(t, err)
	assert.Equal(t, sampleRows, rows)
}

func TestEncodeRows_EmptyKeepsHeader(t *testing.T) {
	data, err := EncodeRows(nil)
	require.NoError(t, err)
	assert.Equal(t, "date,boro,metric,value\n", string(data))

	rows, err := DecodeRows(data)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeRows_Invalid(t *testing.T) {
	_, err := DecodeRows([]byte("date,boro,metric,value\n2024-01-01,ALL,complaints,many\n"))
	assert.Error(t, err)
}

func TestStore_MarkerLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore(artifact.NewFS(t.TempDir()), "311")
	w := model.NewWindow(d(1), d(2), 5)

	done, err := s.Done(ctx, w)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = s.Marker(ctx, w)
	assert.True(t, errors.Is(err, artifact.ErrNotFound))

	require.NoError(t, s.MarkDone(ctx, w, Marker{RunID: "r1", Rows: 12}))
	done, err = s.Done(ctx, w)
	require.NoError(t, err)
	assert.True(t, done)

	m, err := s.Marker(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, "r1", m.RunID)
	assert.Equal(t, 12, m.Rows)
}

func TestStore_EmptyMarkerStillCountsAsDone(t *testing.T) {
	ctx := context.Background()
	fs := artifact.NewFS(t.TempDir())
	s := NewStore(fs, "311")
	w := model.NewWindow(d(1), d(2), 5)

	require.NoError(t, fs.Put(ctx, s.MarkerKey(w), nil))
	done, err := s.Done(ctx, w)
	require.NoError(t, err)
	assert.True(t, done)

	m, err := s.Marker(ctx, w)
	require.NoError(t, err)
	assert.Empty(t, m.RunID)
}

func TestStore_CorruptMarkerIsReported(t *testing.T) {
	ctx := context.Background()
	fs := artifact.NewFS(t.TempDir())
	s := NewStore(fs, "311")
	w := model.NewWindow(d(1), d(2), 5)

	require.NoError(t, fs.Put(ctx, s.MarkerKey(w), []byte("{not json")))
	done, err := s.Done(ctx, w)
	require.NoError(t, err)
	assert.True(t, done)

	m, err := s.Marker(ctx, w)
	require.Error(t, err)
	assert.Nil(t, m)
	assert.True(t, errors.Is(err, ErrBadMarker))
}

func TestSaveXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, SaveXLSX(path, sampleRows))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheet[SheetName]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 3)

	var header []string
	for _, c := range sheet.Rows[0].Cells {
		header = append(header, c.String())
	}
	assert.Equal(t, []string{"date", "boro", "metric", "value"}, header)
	assert.Equal(t, "Heat, Hot Water", sheet.Rows[2].Cells[2].String())
	assert.Equal(t, "2", sheet.Rows[2].Cells[3].String())
}
