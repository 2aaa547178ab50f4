package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config/config.yaml"

type AppConfig struct {
	Name        string   `yaml:"name"`
	Env         string   `yaml:"env"`
	Port        string   `yaml:"port"`
	LogLevel    string   `yaml:"logLevel"`
	BaseURL     string   `yaml:"baseURL"`
	FrontendURL string   `yaml:"frontendURL"`
	CORSOrigins []string `yaml:"corsOrigins"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
}

type JWTConfig struct {
	PrivateKeyPath string `yaml:"privateKeyPath"`
	PublicKeyPath  string `yaml:"publicKeyPath"`
}

type AuthConfig struct {
	RequireVerifiedEmail bool   `yaml:"requireVerifiedEmail"`
	AdminEmail           string `yaml:"adminEmail"`
	AdminPassword        string `yaml:"adminPassword"`
	AdminName            string `yaml:"adminName"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	FromName string `yaml:"fromName"`
}

type StorageConfig struct {
	Disk       string `yaml:"disk"`
	LocalRoot  string `yaml:"localRoot"`
	LocalURL   string `yaml:"localURL"`
	S3Bucket   string `yaml:"s3Bucket"`
	S3Region   string `yaml:"s3Region"`
	S3Key      string `yaml:"s3Key"`
	S3Secret   string `yaml:"s3Secret"`
	S3Endpoint string `yaml:"s3Endpoint"`
	S3URL      string `yaml:"s3URL"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"clientID"`
}

type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	Storage  StorageConfig  `yaml:"storage"`
	Kafka    KafkaConfig    `yaml:"kafka"`
}

func Default() Config {
	return Config{
		App: AppConfig{
			Name:        "Dental Supply",
			Env:         "local",
			Port:        "3000",
			LogLevel:    "debug",
			BaseURL:     "http://localhost:3000",
			FrontendURL: "http://localhost:5173",
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "127.0.0.1",
			Port:     "3306",
			Username: "root",
			Database: "dentalshop",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		JWT: JWTConfig{
			PrivateKeyPath: "jwt/private_key.pem",
			PublicKeyPath:  "jwt/public_key.pem",
		},
		Auth: AuthConfig{
			RequireVerifiedEmail: true,
			AdminName:            "Administrator",
		},
		Mail: MailConfig{
			Port:     "587",
			From:     "no-reply@dentalsupply.local",
			FromName: "Dental Supply",
		},
		Storage: StorageConfig{
			Disk:      "local",
			LocalRoot: "./uploads",
			LocalURL:  "/uploads",
			S3Region:  "us-east-1",
		},
		Kafka: KafkaConfig{
			Topic:    "dentalshop.orders",
			ClientID: "dentalshop",
		},
	}
}

// 讀取設定檔，再依序套用.env與環境變數
func LoadConfig(filename string) (Config, error) {
	config := Default()

	file, err := os.Open(filename)
	if err != nil && !os.IsNotExist(err) {
		return config, err
	}
	if err == nil {
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&config); err != nil {
			return config, fmt.Errorf("decode %s: %w", filename, err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return config, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(&config)

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func applyEnv(config *Config) {
	setString(&config.App.Env, "APP_ENV")
	setString(&config.App.Port, "PORT")
	setString(&config.App.LogLevel, "LOG_LEVEL")
	setString(&config.App.BaseURL, "APP_URL")
	setString(&config.App.FrontendURL, "FRONTEND_URL")
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		config.App.CORSOrigins = splitList(origins)
	}

	setString(&config.Database.Driver, "DB_DRIVER")
	setString(&config.Database.DSN, "DATABASE_DSN")
	setString(&config.Database.Host, "DB_HOST")
	setString(&config.Database.Port, "DB_PORT")
	setString(&config.Database.Username, "DB_USERNAME")
	setString(&config.Database.Password, "DB_PASSWORD")
	setString(&config.Database.Database, "DB_DATABASE")

	setString(&config.Redis.Addr, "REDIS_ADDR")
	setString(&config.Redis.Password, "REDIS_PASSWORD")
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		config.Redis.Database = db
	}

	setString(&config.JWT.PrivateKeyPath, "JWT_PRIVATE_KEY")
	setString(&config.JWT.PublicKeyPath, "JWT_PUBLIC_KEY")

	setString(&config.Auth.AdminEmail, "ADMIN_EMAIL")
	setString(&config.Auth.AdminPassword, "ADMIN_PASSWORD")
	if v, err := strconv.ParseBool(os.Getenv("AUTH_REQUIRE_VERIFIED_EMAIL")); err == nil {
		config.Auth.RequireVerifiedEmail = v
	}

	setString(&config.Mail.Host, "SMTP_HOST")
	setString(&config.Mail.Port, "SMTP_PORT")
	setString(&config.Mail.Username, "SMTP_USERNAME")
	setString(&config.Mail.Password, "SMTP_PASSWORD")
	setString(&config.Mail.From, "MAIL_FROM")
	setString(&config.Mail.FromName, "MAIL_FROM_NAME")

	setString(&config.Storage.Disk, "STORAGE_DISK")
	setString(&config.Storage.LocalRoot, "STORAGE_LOCAL_ROOT")
	setString(&config.Storage.S3Bucket, "S3_BUCKET")
	setString(&config.Storage.S3Region, "S3_REGION")
	setString(&config.Storage.S3Key, "S3_KEY")
	setString(&config.Storage.S3Secret, "S3_SECRET")
	setString(&config.Storage.S3Endpoint, "S3_ENDPOINT")
	setString(&config.Storage.S3URL, "S3_URL")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		config.Kafka.Brokers = splitList(brokers)
	}
	setString(&config.Kafka.Topic, "KAFKA_TOPIC")
}

func setString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	switch c.Storage.Disk {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("config: storage disk s3 requires s3Bucket")
		}
	default:
		return fmt.Errorf("config: unsupported storage disk %q", c.Storage.Disk)
	}
	if c.App.Port == "" {
		return fmt.Errorf("config: app port is empty")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production" || c.App.Env == "prod"
}
