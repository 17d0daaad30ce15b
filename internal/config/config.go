package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendCassandra = "cassandra"
	BackendPostgres  = "postgres"
)

type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	Environment    string        `envconfig:"ENV" default:"development"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`

	// Primary store
	StoreBackend         string        `envconfig:"STORE_BACKEND" default:"cassandra"`
	CassandraHosts       []string      `envconfig:"CASSANDRA_HOSTS" default:"127.0.0.1"`
	CassandraKeyspace    string        `envconfig:"CASSANDRA_KEYSPACE" default:"lms"`
	CassandraConsistency string        `envconfig:"CASSANDRA_CONSISTENCY" default:"QUORUM"`
	CassandraUsername    string        `envconfig:"CASSANDRA_USERNAME"`
	CassandraPassword    string        `envconfig:"CASSANDRA_PASSWORD"`
	CassandraTimeout     time.Duration `envconfig:"CASSANDRA_TIMEOUT" default:"5s"`
	DBConnectionString   string        `envconfig:"DB_CONNECTION_STRING"`

	// Search index
	ElasticsearchURLs            []string `envconfig:"ELASTICSEARCH_URLS" default:"http://127.0.0.1:9200"`
	ElasticsearchUsername        string   `envconfig:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPassword        string   `envconfig:"ELASTICSEARCH_PASSWORD"`
	ElasticsearchMaxResultWindow int      `envconfig:"ELASTICSEARCH_MAX_RESULT_WINDOW" default:"10000"`
	CourseIndex                  string   `envconfig:"COURSE_INDEX" default:"lms.course"`
	CourseDocType                string   `envconfig:"COURSE_DOC_TYPE" default:"course"`
	LessonIndex                  string   `envconfig:"LESSON_INDEX" default:"lms.lesson"`

	// Consistency between store and index
	IndexStalenessBound      time.Duration `envconfig:"INDEX_STALENESS_BOUND" default:"1s"`
	DegradeReadsOnIndexError bool          `envconfig:"DEGRADE_READS_ON_INDEX_ERROR" default:"true"`
	IDScheme                 string        `envconfig:"ID_SCHEME" default:"timeuuid"`

	// Change notifications
	GCPProjectID          string `envconfig:"GCP_PROJECT_ID"`
	PubSubChangeTopic     string `envconfig:"PUBSUB_CHANGE_TOPIC"`
	GoogleCredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS_FILE"`
	PgmqChangeQueue       string `envconfig:"PGMQ_CHANGE_QUEUE"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings whose requirement depends on other settings.
func (c *Config) Validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendCassandra:
		if len(c.CassandraHosts) == 0 {
			return errors.New("CASSANDRA_HOSTS is required when STORE_BACKEND=cassandra")
		}
		if c.CassandraKeyspace == "" {
			return errors.New("CASSANDRA_KEYSPACE is required when STORE_BACKEND=cassandra")
		}
	case BackendPostgres:
		if c.DBConnectionString == "" {
			return errors.New("DB_CONNECTION_STRING is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	if c.PubSubChangeTopic != "" && c.GCPProjectID == "" {
		return errors.New("GCP_PROJECT_ID is required when PUBSUB_CHANGE_TOPIC is set")
	}
	if c.PgmqChangeQueue != "" {
		if c.StoreBackend != BackendPostgres {
			return errors.New("PGMQ_CHANGE_QUEUE requires STORE_BACKEND=postgres")
		}
		if c.PubSubChangeTopic != "" {
			return errors.New("set at most one of PUBSUB_CHANGE_TOPIC and PGMQ_CHANGE_QUEUE")
		}
	}
	if c.IndexStalenessBound < 0 {
		return errors.New("INDEX_STALENESS_BOUND must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
