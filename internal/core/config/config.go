package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EngineHTTP = "http"
	EngineH3   = "h3"

	SinkKafka  = "kafka"
	SinkEngine = "engine"
	SinkFile   = "file"
)

type ZonalCacheCfg struct {
	Enabled   bool
	TTL       time.Duration
	LRUSize   int
	RedisAddr string
	OpTimeout time.Duration
}

type KafkaCfg struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	MetricsEnabled bool
	CatalogPath    string
	BoundaryDir    string
	EngineKind     string
	EngineURL      string
	EngineTimeout  time.Duration
	H3Res          int
	H3DataDir      string
	ZonalCache     ZonalCacheCfg
	AreaUnit       string
	SinkKind       string
	SinkDir        string
	ExportFolder   string
	Kafka          KafkaCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 8)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		CatalogPath:    getenv("CATALOG_PATH", ""),
		BoundaryDir:    getenv("BOUNDARY_DIR", "./data/boundaries"),
		EngineKind:     strings.ToLower(getenv("ENGINE_KIND", EngineHTTP)),
		EngineURL:      getenv("ENGINE_URL", "http://localhost:8081"),
		EngineTimeout:  getduration("ENGINE_TIMEOUT", 2*time.Minute),
		H3Res:          res,
		H3DataDir:      getenv("H3_DATA_DIR", "./data/rasters"),
		ZonalCache: ZonalCacheCfg{
			Enabled:   getbool("ZONAL_CACHE_ENABLED", true),
			TTL:       getduration("ZONAL_CACHE_TTL", 24*time.Hour),
			LRUSize:   getint("ZONAL_LRU_SIZE", 1024),
			RedisAddr: getenv("REDIS_ADDR", ""),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		AreaUnit:     getenv("AREA_UNIT", "kilometers^2"),
		SinkKind:     strings.ToLower(getenv("SINK_KIND", SinkEngine)),
		SinkDir:      getenv("SINK_DIR", "./exports"),
		ExportFolder: getenv("EXPORT_FOLDER", "MAPBIOMAS-EXPORT"),
		Kafka: KafkaCfg{
			Brokers: split(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getenv("KAFKA_TOPIC", "export-jobs"),
			GroupID: getenv("KAFKA_GROUP_ID", "export-worker"),
		},
	}
}

// Validate rejects unknown engine and sink kinds.
func (c Config) Validate() error {
	switch c.EngineKind {
	case EngineHTTP, EngineH3:
	default:
		return fmt.Errorf("ENGINE_KIND %q: want %s or %s", c.EngineKind, EngineHTTP, EngineH3)
	}
	switch c.SinkKind {
	case SinkKafka, SinkEngine, SinkFile:
	default:
		return fmt.Errorf("SINK_KIND %q: want %s, %s or %s", c.SinkKind, SinkKafka, SinkEngine, SinkFile)
	}
	if c.SinkKind == SinkKafka && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("SINK_KIND=kafka needs KAFKA_BROKERS")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func split(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if x := strings.TrimSpace(p); x != "" {
			out = append(out, x)
		}
	}
	return out
}
