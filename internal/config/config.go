package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StreamDefinition describes one camera stream.
type StreamDefinition struct {
	ID         string `yaml:"id" json:"id"`
	Label      string `yaml:"label" json:"label"`
	URL        string `yaml:"url" json:"url"`
	AlertSound string `yaml:"alert_sound" json:"alert_sound,omitempty"`
}

// Interest describes one object class the user cares about.
type Interest struct {
	Class         string  `json:"class"`
	Label         string  `json:"label"`
	Enabled       bool    `json:"enabled"`
	MinConfidence float64 `json:"min_confidence"`
	AlertSound    string  `json:"alert_sound,omitempty"`
}

type Config struct {
	Port           int
	Password       string
	ModelPath      string
	ConfigPath     string
	ImageDirectory string
	DatabasePath   string
	LogDirectory   string
	Debug          bool

	CamerasPort int
	CameraNames map[string]string // camera IP -> stream id

	StreamsFile string
	Streams     []StreamDefinition
	Interests   []Interest

	ProcessingWorkers    int           // Number of inference workers, each with its own model
	IdlePollInterval     time.Duration // How long a worker waits when no stream has a new frame
	FeedTimeout          time.Duration // A live stream without frames for this long is reported as stale
	CooldownWindow       time.Duration
	OverlapThreshold     float64
	MaxHistoryEntries    int
	MinDetectionArea     int
	DefaultMinConfidence float64

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
}

// Load reads .env (when present) and the environment, then the stream and
// interest definitions.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:                 getEnvAsInt("PORT", 8080),
		Password:             getEnv("PASSWORD", "camwatch"),
		ModelPath:            getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:           getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		ImageDirectory:       getEnv("IMAGE_DIR", filepath.Join(".", "detections")),
		DatabasePath:         getEnv("DB_PATH", filepath.Join(".", "data", "camwatch.db")),
		LogDirectory:         getEnv("LOG_DIR", filepath.Join(".", "logs")),
		Debug:                getEnvAsBool("DEBUG", false),
		CamerasPort:          getEnvAsInt("CAMERAS_PORT", 5005),
		CameraNames:          parsePairs(getEnv("CAMERA_NAMES", ""), ","),
		StreamsFile:          getEnv("STREAMS_FILE", ""),
		ProcessingWorkers:    getEnvAsInt("PROCESSING_WORKERS", 2),
		IdlePollInterval:     getEnvAsDuration("IDLE_POLL_INTERVAL", 10*time.Millisecond),
		FeedTimeout:          getEnvAsDuration("FEED_TIMEOUT", 3*time.Second),
		CooldownWindow:       getEnvAsDuration("COOLDOWN_WINDOW", 15*time.Second),
		OverlapThreshold:     getEnvAsFloat("OVERLAP_THRESHOLD", 0.5),
		MaxHistoryEntries:    getEnvAsInt("MAX_HISTORY_ENTRIES", 100),
		MinDetectionArea:     getEnvAsInt("MIN_DETECTION_AREA", 1500),
		DefaultMinConfidence: getEnvAsFloat("MIN_CONFIDENCE", 0.65),
		MQTTBroker:           getEnv("MQTT_BROKER", ""),
		MQTTClientID:         getEnv("MQTT_CLIENT_ID", "camwatch"),
		MQTTTopicPrefix:      getEnv("MQTT_TOPIC_PREFIX", "camwatch"),
	}

	if cfg.StreamsFile != "" {
		streams, interests, err := LoadDefinitions(cfg.StreamsFile, cfg.DefaultMinConfidence)
		if err != nil {
			return nil, err
		}
		cfg.Streams = streams
		cfg.Interests = interests
	} else {
		cfg.Streams = parseStreams(getEnv("STREAMS", ""))
		cfg.Interests = parseInterests(getEnv("INTERESTS", "person"), cfg.DefaultMinConfidence)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values the pipeline relies on.
func (c *Config) Validate() error {
	if c.ProcessingWorkers < 1 {
		return errors.New("PROCESSING_WORKERS must be at least 1")
	}
	if c.OverlapThreshold <= 0 || c.OverlapThreshold > 1 {
		return fmt.Errorf("OVERLAP_THRESHOLD must be in (0,1], got %v", c.OverlapThreshold)
	}
	if c.MaxHistoryEntries < 1 {
		return errors.New("MAX_HISTORY_ENTRIES must be at least 1")
	}
	if c.CooldownWindow < 0 {
		return errors.New("COOLDOWN_WINDOW must not be negative")
	}

	seen := make(map[string]bool)
	for _, s := range c.Streams {
		if s.ID == "" {
			return errors.New("stream without id")
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate stream id %q", s.ID)
		}
		seen[s.ID] = true
	}
	for _, i := range c.Interests {
		if i.MinConfidence < 0 || i.MinConfidence > 1 {
			return fmt.Errorf("interest %q: min confidence %v outside [0,1]", i.Class, i.MinConfidence)
		}
	}
	return nil
}

// Stream returns the definition of a stream by id.
func (c *Config) Stream(id string) (StreamDefinition, bool) {
	for _, s := range c.Streams {
		if s.ID == id {
			return s, true
		}
	}
	return StreamDefinition{}, false
}

// Interest returns the interest for a class.
func (c *Config) Interest(class string) (Interest, bool) {
	for _, i := range c.Interests {
		if i.Class == class {
			return i, true
		}
	}
	return Interest{}, false
}

// parseStreams reads "cam1=rtsp://a;cam2=rtsp://b".
func parseStreams(value string) []StreamDefinition {
	var streams []StreamDefinition
	for id, url := range parsePairs(value, ";") {
		streams = append(streams, StreamDefinition{ID: id, Label: id, URL: url})
	}
	slices.SortFunc(streams, func(a, b StreamDefinition) int {
		return strings.Compare(a.ID, b.ID)
	})
	return streams
}

// parseInterests reads "person:0.7,car,cat:0.5"; a class without a value uses def.
func parseInterests(value string, def float64) []Interest {
	var interests []Interest
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		class, conf, hasConf := strings.Cut(item, ":")
		minConfidence := def
		if hasConf {
			if v, err := strconv.ParseFloat(conf, 64); err == nil {
				minConfidence = v
			}
		}
		interests = append(interests, Interest{
			Class:         class,
			Label:         class,
			Enabled:       true,
			MinConfidence: minConfidence,
		})
	}
	return interests
}

func parsePairs(value, sep string) map[string]string {
	pairs := make(map[string]string)
	for _, item := range strings.Split(value, sep) {
		key, val, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || key == "" {
			continue
		}
		pairs[key] = val
	}
	return pairs
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultValue
}
