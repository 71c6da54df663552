package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type APIConfig struct {
	Address string
}

type DetectorConfig struct {
	Backend    string
	Command    string
	ModelPath  string
	LabelsPath string
	Classes    []int
	BaseDir    string
	Confidence float64
	IoU        float64
	Threads    int
}

type RecognizerConfig struct {
	Languages     []string
	Upscale       int
	Blur          bool
	MinConfidence float64
}

type PipelineConfig struct {
	APIURL         string
	UploadTimeout  time.Duration
	ImagePath      string
	ContainerClass string
	ISOClass       string
	Detector       DetectorConfig
	Recognizer     RecognizerConfig
}

type WatchConfig struct {
	InboxDirectory string
	Schedule       string
}

type Config struct {
	Database      DatabaseConfig
	LogsDirectory string
	LogLevel      string
	API           APIConfig
	Pipeline      PipelineConfig
	Watch         WatchConfig
}

var defaults = map[string]any{
	"DATABASE_DRIVER":      "sqlite",
	"DATABASE_DSN":         "container_tracker.db",
	"LOGS_DIRECTORY":       "",
	"LOG_LEVEL":            "info",
	"HTTP_ADDRESS":         ":5000",
	"API_URL":              "http://127.0.0.1:5000/api/containers",
	"UPLOAD_TIMEOUT":       "10s",
	"MODEL_PATH":           "yolov11_custom.tflite",
	"MODEL_LABELS":         "",
	"DETECTOR_BACKEND":     "tflite",
	"DETECTOR_COMMAND":     "yolo",
	"DETECTION_CONFIDENCE": 0.5,
	"DETECTION_IOU":        0.45,
	"DETECTOR_THREADS":     0,
	"IMAGE_PATH":           "test/images/1.jpg",
	"YOLO_CLASSES":         "1,9",
	"YOLO_BASE_DIR":        "runs/detect",
	"CONTAINER_CLASS":      "container_number",
	"ISO_CLASS":            "iso_code",
	"OCR_LANGUAGES":        "eng",
	"OCR_UPSCALE":          2,
	"OCR_BLUR":             true,
	"OCR_MIN_CONFIDENCE":   0.0,
	"INBOX_DIRECTORY":      "inbox",
	"WATCH_SCHEDULE":       "*/1 * * * *",
}

// LoadConfig reads .env (if any) and the process environment into a Config.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	uploadTimeout, err := time.ParseDuration(v.GetString("UPLOAD_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPLOAD_TIMEOUT: %w", err)
	}

	classes, err := parseClasses(v.GetString("YOLO_CLASSES"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		LogsDirectory: v.GetString("LOGS_DIRECTORY"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		API: APIConfig{
			Address: v.GetString("HTTP_ADDRESS"),
		},
		Pipeline: PipelineConfig{
			APIURL:         v.GetString("API_URL"),
			UploadTimeout:  uploadTimeout,
			ImagePath:      v.GetString("IMAGE_PATH"),
			ContainerClass: v.GetString("CONTAINER_CLASS"),
			ISOClass:       v.GetString("ISO_CLASS"),
			Detector: DetectorConfig{
				Backend:    strings.ToLower(v.GetString("DETECTOR_BACKEND")),
				Command:    v.GetString("DETECTOR_COMMAND"),
				ModelPath:  v.GetString("MODEL_PATH"),
				LabelsPath: v.GetString("MODEL_LABELS"),
				Classes:    classes,
				BaseDir:    v.GetString("YOLO_BASE_DIR"),
				Confidence: v.GetFloat64("DETECTION_CONFIDENCE"),
				IoU:        v.GetFloat64("DETECTION_IOU"),
				Threads:    v.GetInt("DETECTOR_THREADS"),
			},
			Recognizer: RecognizerConfig{
				Languages:     splitList(v.GetString("OCR_LANGUAGES")),
				Upscale:       v.GetInt("OCR_UPSCALE"),
				Blur:          v.GetBool("OCR_BLUR"),
				MinConfidence: v.GetFloat64("OCR_MIN_CONFIDENCE"),
			},
		},
		Watch: WatchConfig{
			InboxDirectory: v.GetString("INBOX_DIRECTORY"),
			Schedule:       v.GetString("WATCH_SCHEDULE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER: %q", c.Database.Driver)
	}

	d := c.Pipeline.Detector
	switch d.Backend {
	case "tflite", "command":
	default:
		return fmt.Errorf("unsupported DETECTOR_BACKEND: %q", d.Backend)
	}
	if len(d.Classes) == 0 {
		return fmt.Errorf("YOLO_CLASSES must name at least one class id")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("DETECTION_CONFIDENCE must be within [0,1], got %v", d.Confidence)
	}
	if d.IoU <= 0 || d.IoU > 1 {
		return fmt.Errorf("DETECTION_IOU must be within (0,1], got %v", d.IoU)
	}

	r := c.Pipeline.Recognizer
	if r.Upscale < 1 {
		return fmt.Errorf("OCR_UPSCALE must be at least 1, got %d", r.Upscale)
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return fmt.Errorf("OCR_MIN_CONFIDENCE must be within [0,1], got %v", r.MinConfidence)
	}
	if len(r.Languages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES must name at least one language")
	}

	if c.Pipeline.UploadTimeout <= 0 {
		return fmt.Errorf("UPLOAD_TIMEOUT must be positive")
	}
	return nil
}

func parseClasses(raw string) ([]int, error) {
	var classes []int
	for _, part := range splitList(raw) {
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid class id %q in YOLO_CLASSES: %w", part, err)
		}
		classes = append(classes, id)
	}
	return classes, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
