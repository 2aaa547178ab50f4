package config

import (
	"dentalshop/models"
	"dentalshop/testutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	for _, key := range []string{"PORT", "DB_DRIVER", "STORAGE_DISK", "KAFKA_BROKERS"} {
		t.Setenv(key, "")
	}
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "3000", config.App.Port)
	assert.Equal(t, "mysql", config.Database.Driver)
	assert.Equal(t, "local", config.Storage.Disk)
	assert.Empty(t, config.Kafka.Brokers)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
app:
  port: "8080"
  env: production
database:
  driver: postgres
  host: db
  port: "5432"
  username: shop
  password: secret
  database: dental
kafka:
  brokers: [k1:9092]
`)
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("REDIS_DB", "2")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", config.App.Port)
	assert.True(t, config.IsProduction())
	assert.Equal(t, []string{"a:9092", "b:9092"}, config.Kafka.Brokers)
	assert.Equal(t, 2, config.Redis.Database)
	assert.Equal(t,
		"host=db user=shop password=secret dbname=dental port=5432 sslmode=disable TimeZone=UTC",
		config.Database.ConnectionString())
}

func TestLoadConfigInvalid(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: oracle\n")
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unsupported database driver")

	path = writeConfig(t, "storage:\n  disk: s3\n")
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "s3Bucket")

	path = writeConfig(t, "app: [broken")
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{Driver: "mysql", Username: "root", Password: "pw", Host: "127.0.0.1", Port: "3306", Database: "shop"}
	assert.Equal(t, "root:pw@tcp(127.0.0.1:3306)/shop?charset=utf8mb4&parseTime=True&loc=Local", db.ConnectionString())

	db = DatabaseConfig{Driver: "sqlite", Database: "shop"}
	assert.Equal(t, "shop.db", db.ConnectionString())

	db.DSN = "file::memory:"
	assert.Equal(t, "file::memory:", db.ConnectionString())
}

func TestSeedIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	config := Default()
	config.Auth.AdminEmail = "admin@clinic.test"
	config.Auth.AdminPassword = "Admin#1234"

	require.NoError(t, Seed(db, config))
	require.NoError(t, Seed(db, config))

	var admins int64
	db.Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&admins)
	assert.Equal(t, int64(1), admins)

	var categories int64
	db.Model(&models.Category{}).Count(&categories)
	assert.Equal(t, int64(len(defaultCategories)), categories)

	var settings int64
	db.Model(&models.Setting{}).Count(&settings)
	assert.Equal(t, int64(len(DefaultSettings)), settings)

	var admin models.User
	require.NoError(t, db.Where("email = ?", "admin@clinic.test").First(&admin).Error)
	assert.True(t, admin.EmailVerified)
	assert.NotEqual(t, "Admin#1234", admin.Password)
}

func TestSeedSkipsAdminWithoutCredentials(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, Seed(db, Default()))

	var users int64
	db.Model(&models.User{}).Count(&users)
	assert.Zero(t, users)
}
