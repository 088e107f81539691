package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"barbershop/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Services   []models.Service `yaml:"services"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Exports    ExportConfig     `yaml:"exports"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// StorageConfig selects the key-value backend that holds the appointment record.
type StorageConfig struct {
	Backend    string `yaml:"backend"` // memory, redis, sqlite
	KeyPrefix  string `yaml:"key_prefix"`
	Failover   bool   `yaml:"failover"`
	QuotaBytes int    `yaml:"quota_bytes"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type ScheduleConfig struct {
	Timezone        string         `yaml:"timezone"`
	WorkStart       string         `yaml:"work_start"`
	WorkEnd         string         `yaml:"work_end"`
	SlotMinutes     int            `yaml:"slot_minutes"`
	ClosedWeekdays  []string       `yaml:"closed_weekdays"`
	RetentionMonths int            `yaml:"retention_months"`
	CleanupInterval time.Duration  `yaml:"cleanup_interval"`
	location        *time.Location
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

// TelegramConfig enables booking notifications to the shop's chat.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// GoogleConfig enables mirroring bookings into a Google Sheets spreadsheet.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	SheetName       string `yaml:"sheet_name"`
	MaxRetries      int    `yaml:"max_retries"`
}

func (g GoogleConfig) Enabled() bool {
	return g.CredentialsFile != "" && g.SpreadsheetID != ""
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML after environment expansion, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case models.BackendMemory:
	case models.BackendRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address is required for the redis backend")
		}
	case models.BackendSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	if _, err := c.Schedule.Location(); err != nil {
		return err
	}
	if _, err := c.Schedule.WorkingMinutes(); err != nil {
		return err
	}
	if _, err := c.Schedule.Closed(); err != nil {
		return err
	}

	return ValidateServices(c.Services)
}

func ValidateServices(services []models.Service) error {
	ids := make(map[string]bool)
	for _, svc := range services {
		if strings.TrimSpace(svc.ID) == "" {
			return fmt.Errorf("service '%s' has an empty id", svc.Name)
		}
		if ids[svc.ID] {
			return fmt.Errorf("duplicate service id found: %s", svc.ID)
		}
		ids[svc.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "barbershop"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = models.BackendMemory
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	if c.Schedule.WorkStart == "" {
		c.Schedule.WorkStart = fmt.Sprintf("%02d:00", models.DefaultWorkStartHour)
	}
	if c.Schedule.WorkEnd == "" {
		c.Schedule.WorkEnd = fmt.Sprintf("%02d:00", models.DefaultWorkEndHour)
	}
	if c.Schedule.SlotMinutes == 0 {
		c.Schedule.SlotMinutes = models.DefaultSlotMinutes
	}
	if c.Schedule.ClosedWeekdays == nil {
		c.Schedule.ClosedWeekdays = []string{"sunday"}
	}
	if c.Schedule.RetentionMonths == 0 {
		c.Schedule.RetentionMonths = models.DefaultRetentionMonths
	}
	if c.Schedule.CleanupInterval == 0 {
		c.Schedule.CleanupInterval = models.DefaultCleanupInterval
	}
}

// Location resolves the configured timezone; empty or "Local" means the process zone.
func (s *ScheduleConfig) Location() (*time.Location, error) {
	if s.location != nil {
		return s.location, nil
	}
	name := strings.TrimSpace(s.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		s.location = time.Local
		return s.location, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", name, err)
	}
	s.location = loc
	return loc, nil
}

// WorkingMinutes returns start and end of the working day as minutes after midnight.
func (s *ScheduleConfig) WorkingMinutes() ([2]int, error) {
	start, err := parseClock(s.WorkStart)
	if err != nil {
		return [2]int{}, fmt.Errorf("invalid work_start: %w", err)
	}
	end, err := parseClock(s.WorkEnd)
	if err != nil {
		return [2]int{}, fmt.Errorf("invalid work_end: %w", err)
	}
	if end <= start {
		return [2]int{}, fmt.Errorf("work_end %s must be after work_start %s", s.WorkEnd, s.WorkStart)
	}
	if s.SlotMinutes <= 0 || s.SlotMinutes > end-start {
		return [2]int{}, fmt.Errorf("slot_minutes %d does not fit the working day", s.SlotMinutes)
	}
	return [2]int{start, end}, nil
}

// Closed parses closed_weekdays into a lookup set.
func (s *ScheduleConfig) Closed() (map[time.Weekday]bool, error) {
	closed := make(map[time.Weekday]bool, len(s.ClosedWeekdays))
	for _, raw := range s.ClosedWeekdays {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(raw))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in closed_weekdays", raw)
		}
		closed[day] = true
	}
	return closed, nil
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func parseClock(raw string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
