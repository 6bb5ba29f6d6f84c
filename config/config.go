package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// JWT (tokens are issued by the auth service; we only verify them)
	JWTSecret    string
	JWTExpiresIn time.Duration

	// AWS S3
	AWSRegion    string
	S3BucketName string

	// Server
	Port           string
	AppEnv         string
	RequestTimeout time.Duration

	// Logging
	LogLevel         string
	LogFile          string
	LogRetentionDays int

	// Time accounting
	Timezone               string
	Location               *time.Location
	AbsenceSweepSchedule   string
	AutoPunchOutSchedule   string
	LogMaintenanceSchedule string
	SweepWorkers           int
	SweepRecordTimeout     time.Duration
	LockTTL                time.Duration

	// Feature Toggles
	UseRedisQueue bool
	SkipMigrate   bool
}

func (c *Config) GetDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?charset=utf8mb4&parseTime=True&loc=Local"
}

var AppConfig *Config

func LoadConfig() {
	useSSM := getEnv("USE_SSM", "false") == "true"

	var paramMap map[string]string

	// Stage & base path for SSM (allows multi-env without code changes)
	basePath := getEnv("SSM_BASE_PATH", "/hrms")
	stage := getEnv("STAGE", getEnv("APP_ENV", "production"))
	basePath = strings.TrimRight(basePath, "/")
	prefix := basePath + "/" + stage

	if useSSM {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(getEnv("AWS_REGION", "ap-south-1"))})
		if err != nil {
			log.Fatal("Failed to create AWS session:", err)
		}
		log.Printf("Using AWS SSM Parameter Store (prefix=%s)", prefix)
		paramMap = fetchSSMParameters(ssm.New(sess), prefix)
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using environment variables")
		}
	}

	getVal := func(key, def string) string {
		if useSSM {
			if v, ok := paramMap[strings.ToUpper(key)]; ok && v != "" {
				return v
			}
		}
		return getEnv(strings.ToUpper(key), def)
	}

	mustDuration := func(key, def string) time.Duration {
		d, err := parseDurationShorthand(getVal(key, def))
		if err != nil {
			log.Fatalf("Invalid %s format: %v", key, err)
		}
		return d
	}

	mustInt := func(key, def string) int {
		n, err := strconv.Atoi(getVal(key, def))
		if err != nil {
			log.Fatalf("Invalid %s format: %v", key, err)
		}
		return n
	}

	timezone := getVal("TIMEZONE", "Asia/Kolkata")
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.Fatalf("Invalid TIMEZONE %q: %v", timezone, err)
	}

	AppConfig = &Config{
		DBHost:     getVal("DB_HOST", "localhost"),
		DBPort:     getVal("DB_PORT", "3306"),
		DBUser:     getVal("DB_USER", "root"),
		DBPassword: getVal("DB_PASSWORD", ""),
		DBName:     getVal("DB_NAME", "hrms_go"),

		RedisHost:     getVal("REDIS_HOST", "localhost"),
		RedisPort:     getVal("REDIS_PORT", "6379"),
		RedisPassword: getVal("REDIS_PASSWORD", ""),

		JWTSecret:    getVal("JWT_SECRET", "your_super_secret_jwt_key"),
		JWTExpiresIn: mustDuration("JWT_EXPIRES_IN", "24h"),

		AWSRegion:    getVal("AWS_REGION", "ap-south-1"),
		S3BucketName: getVal("S3_BUCKET_NAME", "hrms-storage"),

		Port:           getVal("PORT", "3000"),
		AppEnv:         getVal("APP_ENV", "development"),
		RequestTimeout: mustDuration("REQUEST_TIMEOUT", "15s"),

		LogLevel:         getVal("LOG_LEVEL", "info"),
		LogFile:          getVal("LOG_FILE", "logs/app.log"),
		LogRetentionDays: mustInt("LOG_RETENTION_DAYS", "30"),

		Timezone:               timezone,
		Location:               loc,
		AbsenceSweepSchedule:   getVal("ABSENCE_SWEEP_SCHEDULE", "59 14 * * *"),
		AutoPunchOutSchedule:   getVal("AUTO_PUNCHOUT_SCHEDULE", "29 19 * * *"),
		LogMaintenanceSchedule: getVal("LOG_MAINTENANCE_SCHEDULE", "@hourly"),
		SweepWorkers:           mustInt("SWEEP_WORKERS", "4"),
		SweepRecordTimeout:     mustDuration("SWEEP_RECORD_TIMEOUT", "10s"),
		LockTTL:                mustDuration("LOCK_TTL", "30s"),

		UseRedisQueue: strings.ToLower(getVal("USE_REDIS_QUEUE", "false")) == "true",
		SkipMigrate:   strings.ToLower(getVal("SKIP_MIGRATE", "false")) == "true",
	}

	validateConfig(AppConfig, useSSM)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationShorthand accepts Go durations plus "d" (days) and "w" (weeks) suffixes.
func parseDurationShorthand(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err == nil {
		return d, nil
	}
	s := strings.TrimSpace(strings.ToLower(raw))
	if len(s) > 1 {
		unit := s[len(s)-1]
		if n, err2 := strconv.Atoi(s[:len(s)-1]); err2 == nil {
			switch unit {
			case 'd':
				return time.Duration(n) * 24 * time.Hour, nil
			case 'w':
				return time.Duration(n*7) * 24 * time.Hour, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid duration %q", raw)
}

// fetchSSMParameters reads all parameters under prefix and returns map with UPPERCASE keys.
func fetchSSMParameters(client *ssm.SSM, prefix string) map[string]string {
	out := make(map[string]string)
	next := aws.String("")
	for {
		in := &ssm.GetParametersByPathInput{
			Path:           aws.String(prefix),
			WithDecryption: aws.Bool(true),
			Recursive:      aws.Bool(true),
		}
		if *next != "" {
			in.NextToken = next
		}
		resp, err := client.GetParametersByPath(in)
		if err != nil {
			log.Printf("Warning: unable to fetch SSM parameters for prefix %s: %v", prefix, err)
			break
		}
		for _, p := range resp.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			name := *p.Name
			key := name
			if idx := strings.LastIndex(name, "/"); idx >= 0 {
				key = name[idx+1:]
			}
			if key == "" {
				continue
			}
			out[strings.ToUpper(key)] = *p.Value
		}
		if resp.NextToken == nil || *resp.NextToken == "" {
			break
		}
		next = resp.NextToken
	}
	return out
}

func validateConfig(c *Config, usedSSM bool) {
	if c.SweepWorkers < 1 {
		log.Fatal("SWEEP_WORKERS must be at least 1")
	}
	// Only enforce stricter rules in production
	if strings.ToLower(c.AppEnv) != "production" {
		return
	}
	required := map[string]string{
		"DB_PASSWORD": c.DBPassword,
		"JWT_SECRET":  c.JWTSecret,
	}
	for k, v := range required {
		if strings.TrimSpace(v) == "" {
			log.Fatalf("Missing required secret %s in production (SSM=%v)", k, usedSSM)
		}
	}
	if len(c.JWTSecret) < 16 {
		log.Fatal("JWT_SECRET too short (min 16 chars)")
	}
}
