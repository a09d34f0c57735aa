package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luahost/pkg/models"
)

// waitForLogs polls until the expected number of entries is visible.
func waitForLogs(t *testing.T, d *DB, want int) []*models.SystemLog {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		logs, total, err := d.GetLogs(context.Background(), 100, 0, "")
		require.NoError(t, err)
		if int(total) >= want {
			return logs
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %d log entries", want)
	return nil
}

func TestCreateLogEntry_Async(t *testing.T) {
	d := newTestDB(t)

	err := d.CreateLogEntry(
		context.Background(),
		models.LevelInfo,
		"MANAGER",
		"loaded plugin hello",
		"",
	)
	require.NoError(t, err)

	logs := waitForLogs(t, d, 1)
	assert.Equal(t, models.LevelInfo, logs[0].Level)
	assert.Equal(t, "MANAGER", logs[0].Source)
	assert.Equal(t, "loaded plugin hello", logs[0].Message)
}

func TestGetLogs_LevelFilter(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.CreateLogEntry(context.Background(), models.LevelInfo, "A", "info", ""))
	require.NoError(t, d.CreateLogEntry(context.Background(), models.LevelError, "B", "boom", ""))
	waitForLogs(t, d, 2)

	logs, total, err := d.GetLogs(context.Background(), 100, 0, models.LevelError)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "boom", logs[0].Message)
}

func TestPruneLogs(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.CreateLogEntry(context.Background(), models.LevelInfo, "A", "old", ""))
	waitForLogs(t, d, 1)

	// Nothing is older than an hour yet.
	count, err := d.PruneLogs(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Everything is older than "now".
	count, err = d.PruneLogs(context.Background(), -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
