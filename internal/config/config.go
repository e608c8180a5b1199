package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Gallery  GalleryConfig
	Embedder EmbedderConfig
	Match    MatchConfig
	Camera   CameraConfig
	Ledger   LedgerConfig
	Database DatabaseConfig
	Web      WebConfig
	Admin    AdminConfig
	MQTT     MQTTConfig
	Log      LogConfig
}

type GalleryConfig struct {
	Dir          string `yaml:"dir"`            // root of <identity>/<image> enrollment tree
	ModelsDir    string `yaml:"models_dir"`     // dlib model files for the dlib embedder
	MaxImageSide int    `yaml:"max_image_side"` // enrollment images are downscaled to this before embedding
}

type EmbedderConfig struct {
	Backend string `yaml:"backend"` // dlib or http
	URL     string `yaml:"url"`     // face embedding service for the http backend
}

type MatchConfig struct {
	Threshold float64 `yaml:"threshold"` // accept when distance <= threshold
	Index     string  `yaml:"index"`     // linear or hnsw
}

type CameraConfig struct {
	Index int `yaml:"index"`
}

type LedgerConfig struct {
	Backend string `yaml:"backend"` // csv, postgres or sqlite
	Path    string `yaml:"path"`    // file path for csv and sqlite
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type WebConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	SessionSecret  string
	AllowedOrigins []string // CORS origins besides localhost
}

type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string // bcrypt hash, empty falls back to the built-in default password
}

type MQTTConfig struct {
	Broker string // empty disables notifications
	Topic  string `yaml:"topic"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string // optional rotated log file
}

// defaults mirrors defaults.yaml.
type defaults struct {
	Gallery  GalleryConfig  `yaml:"gallery"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Match    MatchConfig    `yaml:"match"`
	Camera   CameraConfig   `yaml:"camera"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Web      WebConfig      `yaml:"web"`
	Admin    AdminConfig    `yaml:"admin"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envIndex is like envInt but accepts zero, camera indexes start at 0.
func envIndex(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Gallery: GalleryConfig{
			Dir:          envString("GALLERY_DIR", d.Gallery.Dir),
			ModelsDir:    envString("MODELS_DIR", d.Gallery.ModelsDir),
			MaxImageSide: envInt("GALLERY_MAX_IMAGE_SIDE", d.Gallery.MaxImageSide),
		},
		Embedder: EmbedderConfig{
			Backend: envString("EMBEDDER", d.Embedder.Backend),
			URL:     envString("EMBEDDING_URL", d.Embedder.URL),
		},
		Match: MatchConfig{
			Threshold: envFloat("MATCH_THRESHOLD", d.Match.Threshold),
			Index:     envString("MATCH_INDEX", d.Match.Index),
		},
		Camera: CameraConfig{
			Index: envIndex("CAMERA_INDEX", d.Camera.Index),
		},
		Ledger: LedgerConfig{
			Backend: envString("LEDGER", d.Ledger.Backend),
			Path:    envString("LEDGER_PATH", d.Ledger.Path),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Web: WebConfig{
			Host:           envString("WEB_HOST", d.Web.Host),
			Port:           envInt("WEB_PORT", d.Web.Port),
			SessionSecret:  os.Getenv("WEB_SESSION_SECRET"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Admin: AdminConfig{
			Username:     envString("ADMIN_USERNAME", d.Admin.Username),
			PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
		MQTT: MQTTConfig{
			Broker: os.Getenv("MQTT_BROKER"),
			Topic:  envString("MQTT_TOPIC", d.MQTT.Topic),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", d.Log.Level),
			File:  os.Getenv("LOG_FILE"),
		},
	}
}
