package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides application configuration.
var Module = fx.Provide(Load)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	Org OrgConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	Email EmailConfig

	// ReceiptCurrency is the currency all receipt totals are normalized to.
	ReceiptCurrency string
	// MinTaxYear is the earliest year a receipt may be issued for.
	MinTaxYear int
	// ArtifactDir is where rendered receipt PDFs are written.
	ArtifactDir string
}

// OrgConfig identifies the issuing organization on generated receipts.
type OrgConfig struct {
	Name               string
	Address            string
	Phone              string
	Email              string
	RegistrationNumber string
	ReceiptPrefix      string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "donateflow"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Org: OrgConfig{
			Name:               getenv("ORG_NAME", "JKVIS Foundation"),
			Address:            getenv("ORG_ADDRESS", "123 Charity Street, Toronto, ON, M1A 1A1"),
			Phone:              getenv("ORG_PHONE", "+1-416-555-0123"),
			Email:              getenv("ORG_EMAIL", "info@jkvis.org"),
			RegistrationNumber: getenv("ORG_REGISTRATION_NUMBER", "123456789RR0001"),
			ReceiptPrefix:      getenv("ORG_RECEIPT_PREFIX", "JKVIS"),
		},
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "donateflow"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		Email: EmailConfig{
			SMTPHost:     getenv("EMAIL_HOST", "smtp.gmail.com"),
			SMTPPort:     getenvInt("EMAIL_PORT", 587),
			SMTPUsername: getenv("EMAIL_USER", ""),
			SMTPPassword: getenv("EMAIL_PASS", ""),
			SMTPFrom:     getenv("EMAIL_FROM", "info@jkvis.org"),
		},
		ReceiptCurrency: getenv("RECEIPT_CURRENCY", "CAD"),
		MinTaxYear:      getenvInt("RECEIPT_MIN_TAX_YEAR", 2020),
		ArtifactDir:     getenv("RECEIPT_ARTIFACT_DIR", "data/receipts"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
