package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Blob     BlobConfig     `yaml:"blob"`
	GPS      GPSConfig      `yaml:"gps"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                      string `yaml:"host"`
	Port                      int    `yaml:"port"`
	StatusUpdatedTopicName    string `yaml:"status_updated_topic_name"`
	PositionReportedTopicName string `yaml:"position_reported_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type BlobConfig struct {
	Dir string `yaml:"dir"`
}

type GPSConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	// Часовой пояс для civil-полей леджера (date/time). Явный, не ambient:
	// никто в коде не читает локальную зону процесса.
	Timezone string `yaml:"timezone"`

	LatestStatusTTLSeconds int `yaml:"latest_status_ttl_seconds"`

	TrackRateLimitPerMinute int `yaml:"track_rate_limit_per_minute"`

	WorkerHTTPAddr            string `yaml:"worker_http_addr"`
	WorkerScanIntervalSeconds int    `yaml:"worker_scan_interval_seconds"`
	WorkerOrphanMinAgeSeconds int    `yaml:"worker_orphan_min_age_seconds"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
