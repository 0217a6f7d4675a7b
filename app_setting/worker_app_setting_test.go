package app_setting

import (
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSetting(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseWorkerAppSetting(t *testing.T) {
	path := writeSetting(t, `
FEEDS:
  - NAME: hankyung_economy
    URL: https://www.hankyung.com/feed/economy
INGEST_INTERVAL_SECOND: 60
DISPATCH_USER_ID: analyst
`)
	s, err := ParseWorkerAppSetting(path)
	require.NoError(t, err)
	require.Len(t, s.FEEDS, 1)
	assert.Equal(t, "hankyung_economy", s.FEEDS[0].NAME)
	assert.Equal(t, time.Minute, s.IngestInterval())
	assert.Equal(t, "analyst", s.DISPATCH_USER_ID)
	// untouched keys keep defaults
	assert.Equal(t, 50, s.SWEEP_BATCH_SIZE)
	assert.Equal(t, 30*time.Second, s.AITimeout())
	assert.Equal(t, 15*time.Minute, s.ExtractionGrace())
	assert.Equal(t, 4, s.DISPATCH_CONCURRENCY)
}

func TestParseWorkerAppSetting_Invalid(t *testing.T) {
	_, err := ParseWorkerAppSetting(writeSetting(t, "FEEDS:\n  - NAME: broken\n"))
	assert.Error(t, err)

	_, err = ParseWorkerAppSetting(writeSetting(t, "FEEDS: [unclosed"))
	assert.Error(t, err)

	_, err = ParseWorkerAppSetting(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
