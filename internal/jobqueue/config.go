package jobqueue

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Brokers          []string
	Topic            string
	GroupID          string
	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool
	DedupeSize       int
}

func FromEnv() Config {
	brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if brokers == "" {
		brokers = "localhost:9092"
	}
	topic := strings.TrimSpace(os.Getenv("KAFKA_TOPIC"))
	if topic == "" {
		topic = "export-jobs"
	}
	group := strings.TrimSpace(os.Getenv("KAFKA_GROUP_ID"))
	if group == "" {
		group = "export-worker"
	}
	size := 8192
	if v, err := strconv.Atoi(os.Getenv("WORKER_DEDUPE_SIZE")); err == nil && v > 0 {
		size = v
	}

	return Config{
		Brokers:          split(brokers),
		Topic:            topic,
		GroupID:          group,
		SessionTimeout:   30 * time.Second,
		Heartbeat:        3 * time.Second,
		RebalanceTimeout: 30 * time.Second,
		InitialOldest:    true,
		DedupeSize:       size,
	}
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
