package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort int

	// broker
	BrokerURL    string // explicit override, e.g. ssl://host:8883
	BrokerHost   string
	BrokerPort   int
	MQTTUser     string
	MQTTPassword string
	ClientID     string
	Secure       bool

	// topics
	TelemetryTopic string
	DataTopic      string
	StatusTopic    string
	CommandTopic   string
	TestTopic      string
	LegacyTopic    string

	// record store
	DBPath string

	// influx history (optional)
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// command relay fallback
	RelayURL     string
	RelayTimeout time.Duration

	SnapshotInterval time.Duration
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func loadConfig() Config {
	return Config{
		HTTPPort: envInt("HTTP_PORT", 8080),

		BrokerURL:    envStr("MQTT_BROKER_URL", ""),
		BrokerHost:   envStr("MQTT_BROKER", "test.mosquitto.org"),
		BrokerPort:   envInt("MQTT_PORT", 0),
		MQTTUser:     envStr("MQTT_USERNAME", ""),
		MQTTPassword: os.Getenv("MQTT_PASSWORD"),
		ClientID:     envStr("MQTT_CLIENT_ID", envStr("HOSTNAME", "capdash")),
		Secure:       envBool("MQTT_SECURE", false),

		TelemetryTopic: envStr("MQTT_TELEMETRY_TOPIC", "d02/telemetry"),
		DataTopic:      envStr("MQTT_DATA_TOPIC", "d02/data"),
		StatusTopic:    envStr("MQTT_STATUS_TOPIC", "d02/status"),
		CommandTopic:   envStr("MQTT_COMMAND_TOPIC", "d02/cmd"),
		TestTopic:      envStr("MQTT_TEST_TOPIC", "d02/test"),
		LegacyTopic:    envStr("MQTT_LEGACY_TELEMETRY_TOPIC", ""),

		DBPath: envStr("DB_PATH", "data/capdash.db"),

		InfluxURL:    envStr("INFLUX_URL", ""),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    envStr("INFLUX_ORG", "capdash"),
		InfluxBucket: envStr("INFLUX_BUCKET", "sensors"),

		RelayURL:     envStr("RELAY_URL", ""),
		RelayTimeout: time.Duration(envInt("RELAY_TIMEOUT_MS", 5000)) * time.Millisecond,

		SnapshotInterval: time.Duration(envInt("SNAPSHOT_INTERVAL_MS", 60000)) * time.Millisecond,
	}
}
