package models

// MConfig Structure
type MConfig struct {
	Name        string         `yaml:"name"`
	LogLevel    string         `yaml:"log_level"`
	Feed        MFeedConfig    `yaml:"feed"`
	Series      MSeriesConfig  `yaml:"series"`
	Server      MServerConfig  `yaml:"server"`
	Storage     MStorageConfig `yaml:"storage"`
	View        MViewConfig    `yaml:"view"`
	Instruments []MAsset       `yaml:"instruments"`
}

type MFeedConfig struct {
	URL              string `yaml:"url" env:"MARKET_WS_URL"`
	HeartbeatSeconds int    `yaml:"heartbeat_seconds" env:"MARKET_HEARTBEAT_SECONDS"`
	ReconnectMillis  int    `yaml:"reconnect_millis" env:"MARKET_RECONNECT_MILLIS"`
	HandshakeSeconds int    `yaml:"handshake_seconds"`
	SendQueue        int    `yaml:"send_queue"`
}

type MSeriesConfig struct {
	MaxCandles           int   `yaml:"max_candles"`
	MaxQuotePoints       int   `yaml:"max_quote_points"`
	DefaultWindowSeconds int64 `yaml:"default_window_seconds"`
}

type MServerConfig struct {
	Host     string `yaml:"host" env:"MARKET_VIEWER_HOST"`
	Port     int    `yaml:"port" env:"MARKET_VIEWER_PORT"`
	GrpcPort int    `yaml:"grpc_port" env:"MARKET_VIEWER_GRPC_PORT"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type" env:"MARKET_DB_TYPE"`
	DBPath             string `yaml:"db_path" env:"MARKET_DB_PATH"`
	DBConnectionString string `yaml:"db_connection_string" env:"MARKET_DB_CONNECTION_STRING"`
}

type MViewConfig struct {
	DefaultResolutionSecs int64   `yaml:"default_resolution_seconds"`
	PublishPerSecond      float64 `yaml:"publish_per_second"`
}
