package measurementdb

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anica/internal/predmanager"
)

func TestFileDBAppendsOneRecordPerBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "measurements.db")
	db, err := Open(path)
	require.NoError(t, err)

	err = db.RecordBatch("ithemal.0", [][]string{{"MOV_R64_R64"}, {"ADD_R64_R64"}}, []predmanager.Reading{
		{TP: 1.5},
		{Failed: true},
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.Len(t, records, 2)
	assert.Equal(t, "ithemal.0", records[0].PredictorKey)
	assert.Equal(t, 1.5, records[0].Reading.TP)
	assert.True(t, records[1].Reading.Failed)
}

func TestNullDBDiscardsRecords(t *testing.T) {
	db := NullDB{}
	assert.NoError(t, db.RecordBatch("x", nil, nil))
	assert.NoError(t, db.Close())
}
