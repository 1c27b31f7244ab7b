package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "racesim.cfg.json"

// SimConfig holds the headless simulation settings
type SimConfig struct {
	TimeStep    float64
	Duration    time.Duration
	Vehicles    int
	RecordEvery uint
	TrackFile   string
	GroundFile  string
	Laps        int
	Tag         string
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the sqlite backend settings. An empty path keeps the
// database in memory and dumps it to OutputDir on close.
type SQLiteConfig struct {
	Path         string
	OutputDir    string
	DumpInterval time.Duration
}

// PostgresConfig holds the postgres connection settings
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// WebSocketConfig holds the streaming backend settings
type WebSocketConfig struct {
	URL    string
	Secret string
}

// StorageConfig selects and configures the recording backend
type StorageConfig struct {
	Type      string
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	Postgres  PostgresConfig
	WebSocket WebSocketConfig
}

// InfluxConfig holds the telemetry writer settings
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
	Bucket   string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./racelogs")
	viper.SetDefault("defaultTag", "practice")

	viper.SetDefault("sim.timeStep", 1.0/60)
	viper.SetDefault("sim.duration", "60s")
	viper.SetDefault("sim.vehicles", 4)
	viper.SetDefault("sim.recordEvery", 6)
	viper.SetDefault("sim.trackFile", "./tracks/oval.json")
	viper.SetDefault("sim.groundFile", "./tracks/oval.ground.json")
	viper.SetDefault("sim.laps", 3)

	viper.SetDefault("api.serverUrl", "http://localhost:5000/api")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/ws/race")
	viper.SetDefault("storage.websocket.secret", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "racecore")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "racecore")
	viper.SetDefault("influx.bucket", "telemetry")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "racesim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimConfig returns the simulation settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		TimeStep:    viper.GetFloat64("sim.timeStep"),
		Duration:    viper.GetDuration("sim.duration"),
		Vehicles:    viper.GetInt("sim.vehicles"),
		RecordEvery: viper.GetUint("sim.recordEvery"),
		TrackFile:   viper.GetString("sim.trackFile"),
		GroundFile:  viper.GetString("sim.groundFile"),
		Laps:        viper.GetInt("sim.laps"),
		Tag:         viper.GetString("defaultTag"),
	}
}

// GetStorageConfig returns the recording backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("storage.websocket.url"),
			Secret: viper.GetString("storage.websocket.secret"),
		},
	}
}

// GetInfluxConfig returns the telemetry writer settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
