package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	GRPCPort    int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Input validation
	VideoExtensions   []string
	ExpectedVideoName string // Counting tool only accepts this base name; empty disables the check

	// Lane fitting (bird's-eye path)
	LaneROI            Polygon
	BlurKernel         int
	CannyLow           float32
	CannyHigh          float32
	HoughRho           float32
	HoughThetaDegrees  float32
	HoughThreshold     int
	HoughMinLineLength float32
	HoughMaxLineGap    float32
	LaneMinSegments    int
	LaneMaxFrames      int // Give up lane convergence after this many frames

	// Perspective mapping
	BirdsEyeScale      float64
	BirdsEyePolicy     string // in_place or shared_width
	BirdsEyeDisplay    bool
	BirdsEyeSnapshot   bool
	MaxConditionNumber float64

	// Vehicle counting
	CountROI            Polygon
	MinContourArea      float64
	CrossingLineY       int
	MarkReferenceLine   bool
	BackgroundFrames    int
	MOGHistory          int
	MOGVarThreshold     float64
	MOGDetectShadows    bool
	ErodeKernel         int
	ErodeIterations     int
	DilateKernel        int
	DilateIterations    int
	CrossingPolicy      string
	CrossingConsecutive int
	CountDisplay        bool
	CountPlotEnabled    bool

	// Frame extraction
	SnapshotFrameIndex int

	// Event outputs
	EventsDBPath string

	// NATS (crossing events)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	EventsSubject      string

	// Batch server
	MaxConcurrentRuns int
	ShutdownTimeout   time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "roadwatch-1"),
		Port:        getEnvInt("PORT", 8000),
		GRPCPort:    getEnvInt("GRPC_PORT", 8001),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		VideoExtensions:   getEnvList("VIDEO_EXTENSIONS", []string{".mov"}),
		ExpectedVideoName: getEnv("EXPECTED_VIDEO_NAME", "MVI_2208_CARS_ON_590_FROM_BRIDGE"),

		// Lane fitting
		LaneROI:            getEnvPolygon("LANE_ROI_POLYGON", DefaultLaneROI),
		BlurKernel:         getEnvInt("BLUR_KERNEL", 5),
		CannyLow:           float32(getEnvFloat("CANNY_LOW", 50)),
		CannyHigh:          float32(getEnvFloat("CANNY_HIGH", 150)),
		HoughRho:           float32(getEnvFloat("HOUGH_RHO", 2)),
		HoughThetaDegrees:  float32(getEnvFloat("HOUGH_THETA_DEGREES", 1)),
		HoughThreshold:     getEnvInt("HOUGH_THRESHOLD", 100),
		HoughMinLineLength: float32(getEnvFloat("HOUGH_MIN_LINE_LENGTH", 40)),
		HoughMaxLineGap:    float32(getEnvFloat("HOUGH_MAX_LINE_GAP", 5)),
		LaneMinSegments:    getEnvInt("LANE_MIN_SEGMENTS", 2),
		LaneMaxFrames:      getEnvInt("LANE_MAX_FRAMES", 300),

		// Perspective mapping
		BirdsEyeScale:      getEnvFloat("BIRDSEYE_SCALE", 0.25),
		BirdsEyePolicy:     getEnv("BIRDSEYE_POLICY", "in_place"),
		BirdsEyeDisplay:    getEnvBool("BIRDSEYE_DISPLAY", true),
		BirdsEyeSnapshot:   getEnvBool("BIRDSEYE_SNAPSHOT", false),
		MaxConditionNumber: getEnvFloat("MAX_CONDITION_NUMBER", 1e12),

		// Vehicle counting
		CountROI:            getEnvPolygon("COUNT_ROI_POLYGON", DefaultCountROI),
		MinContourArea:      getEnvFloat("MIN_CONTOUR_AREA", 35000),
		CrossingLineY:       getEnvInt("CROSSING_LINE_Y", 200),
		MarkReferenceLine:   getEnvBool("MARK_REFERENCE_LINE", true),
		BackgroundFrames:    clamp(getEnvInt("BACKGROUND_FRAMES", 1000), 0, 1000),
		MOGHistory:          getEnvInt("MOG_HISTORY", 200),
		MOGVarThreshold:     getEnvFloat("MOG_VAR_THRESHOLD", 16),
		MOGDetectShadows:    getEnvBool("MOG_DETECT_SHADOWS", true),
		ErodeKernel:         getEnvInt("ERODE_KERNEL", 3),
		ErodeIterations:     getEnvInt("ERODE_ITERATIONS", 3),
		DilateKernel:        getEnvInt("DILATE_KERNEL", 30),
		DilateIterations:    getEnvInt("DILATE_ITERATIONS", 2),
		CrossingPolicy:      getEnv("CROSSING_POLICY", "drop"),
		CrossingConsecutive: getEnvInt("CROSSING_CONSECUTIVE_FRAMES", 2),
		CountDisplay:        getEnvBool("COUNT_DISPLAY", false),
		CountPlotEnabled:    getEnvBool("COUNT_PLOT_ENABLED", false),

		SnapshotFrameIndex: getEnvInt("SNAPSHOT_FRAME_INDEX", 30),

		EventsDBPath: getEnv("EVENTS_DB_PATH", ""),

		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		EventsSubject:      getEnv("EVENTS_SUBJECT", "roadwatch.crossings"),

		MaxConcurrentRuns: getEnvInt("MAX_CONCURRENT_RUNS", 2),
		ShutdownTimeout:   getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvPolygon(key string, defaultValue Polygon) Polygon {
	if value := os.Getenv(key); value != "" {
		parsed, err := ParsePolygon(value)
		if err == nil {
			return parsed
		}
		log.Warn().Err(err).Str("key", key).Msg("Invalid polygon, using default")
	}
	return defaultValue
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// getNatsURL returns the NATS URL, defaulting to the in-cluster name when running in Docker
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return "nats://nats:4222"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "nats://nats:4222"
	}
	return "nats://localhost:4222"
}
