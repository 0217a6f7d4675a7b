package app_setting

import (
	"io/ioutil"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type FeedSetting struct {
	NAME string `yaml:"NAME"`
	URL  string `yaml:"URL"`
	// Stored as Content.Source, defaults to "rss:" + NAME.
	SOURCE_NAME string `yaml:"SOURCE_NAME"`
}

// WorkerAppSetting configures the background worker binary.
type WorkerAppSetting struct {
	FEEDS []FeedSetting `yaml:"FEEDS"`
	// Every feed is polled once per interval.
	INGEST_INTERVAL_SECOND int64 `yaml:"INGEST_INTERVAL_SECOND"`
	// Pending content missed by the event bus is picked up by a periodic
	// batch run.
	SWEEP_INTERVAL_SECOND int64 `yaml:"SWEEP_INTERVAL_SECOND"`
	SWEEP_BATCH_SIZE      int   `yaml:"SWEEP_BATCH_SIZE"`
	// The sweep skips content whose company extraction is still queued until
	// it is this old.
	EXTRACTION_GRACE_SECOND int64 `yaml:"EXTRACTION_GRACE_SECOND"`
	// Upper bound of a single AI provider call.
	AI_TIMEOUT_SECOND int64 `yaml:"AI_TIMEOUT_SECOND"`
	// Article page fetch timeout during ingestion.
	ARTICLE_FETCH_TIMEOUT_SECOND int64 `yaml:"ARTICLE_FETCH_TIMEOUT_SECOND"`
	// The user whose followings decide auto summarization for new content.
	DISPATCH_USER_ID string `yaml:"DISPATCH_USER_ID"`
	// Number of goroutines consuming dispatch and extraction events.
	DISPATCH_CONCURRENCY int `yaml:"DISPATCH_CONCURRENCY"`
}

func DefaultWorkerAppSetting() WorkerAppSetting {
	return WorkerAppSetting{
		INGEST_INTERVAL_SECOND:       900,
		SWEEP_INTERVAL_SECOND:        300,
		SWEEP_BATCH_SIZE:             50,
		EXTRACTION_GRACE_SECOND:      900,
		AI_TIMEOUT_SECOND:            30,
		ARTICLE_FETCH_TIMEOUT_SECOND: 10,
		DISPATCH_USER_ID:             "default_user",
		DISPATCH_CONCURRENCY:         4,
	}
}

// ParseWorkerAppSetting reads the yaml file at path on top of the defaults.
func ParseWorkerAppSetting(path string) (WorkerAppSetting, error) {
	c := DefaultWorkerAppSetting()
	yamlFile, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrapf(err, "read worker setting %s", path)
	}
	if err = yaml.Unmarshal(yamlFile, &c); err != nil {
		return c, errors.Wrapf(err, "unmarshal worker setting %s", path)
	}
	for i, f := range c.FEEDS {
		if f.URL == "" {
			return c, errors.Errorf("feed #%d (%s) has no URL", i, f.NAME)
		}
	}
	if c.DISPATCH_CONCURRENCY <= 0 {
		c.DISPATCH_CONCURRENCY = 1
	}
	return c, nil
}

func (s WorkerAppSetting) IngestInterval() time.Duration {
	return time.Duration(s.INGEST_INTERVAL_SECOND) * time.Second
}

func (s WorkerAppSetting) SweepInterval() time.Duration {
	return time.Duration(s.SWEEP_INTERVAL_SECOND) * time.Second
}

func (s WorkerAppSetting) ExtractionGrace() time.Duration {
	return time.Duration(s.EXTRACTION_GRACE_SECOND) * time.Second
}

func (s WorkerAppSetting) AITimeout() time.Duration {
	return time.Duration(s.AI_TIMEOUT_SECOND) * time.Second
}

func (s WorkerAppSetting) ArticleFetchTimeout() time.Duration {
	return time.Duration(s.ARTICLE_FETCH_TIMEOUT_SECOND) * time.Second
}
