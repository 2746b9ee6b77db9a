package config

import (
	"os"
	"strconv"
	"strings"
)

// IsProduction reports whether ENVIRONMENT=production.
func IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT"))) == "production"
}

// DebugErrors enables trusted-operator mode: internal error detail is returned to callers.
func DebugErrors() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("APP_DEBUG")))
	return v == "1" || v == "true"
}

// JWTSecret returns the HMAC key used to validate bearer tokens.
func JWTSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

// KafkaBrokers returns the configured broker list; empty disables the Kafka channel.
func KafkaBrokers() []string {
	return splitList(os.Getenv("KAFKA_BROKERS"))
}

// KafkaTopic returns the topic access-request events are published to.
func KafkaTopic() string {
	if topic := strings.TrimSpace(os.Getenv("KAFKA_TOPIC")); topic != "" {
		return topic
	}
	return "access-requests.events"
}

// NotifyChannels lists the enabled event channels (log, inbox, mail, kafka).
func NotifyChannels() []string {
	channels := splitList(strings.ToLower(os.Getenv("NOTIFY_CHANNELS")))
	if len(channels) == 0 {
		return []string{"log", "inbox"}
	}
	return channels
}

func splitList(raw string) []string {
	out := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
