package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageBolt     = "bolt"
	StoragePostgres = "postgres"

	BlobLocal = "local"
	BlobB2    = "b2"
)

type (
	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		WorkDir          string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		DefaultFromEmail mail.Address

		Server   ServerConfig
		Storage  StorageConfig
		Database DatabaseConfig
		Mongo    MongoConfig
		Bolt     BoltConfig
		Blob     BlobConfig
		Audit    AuditConfig
		Bulk     BulkConfig
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	// StorageConfig selects where facts live. The postgres backend keeps notices & audit entries in mongo.
	StorageConfig struct {
		Backend string
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	MongoConfig struct {
		URI  string
		Name string
	}

	BoltConfig struct {
		Path string
	}

	BlobConfig struct {
		Backend   string
		Dir       string
		B2Account string
		B2Key     string
		B2Bucket  string
	}

	AuditConfig struct {
		Workers       int
		QueueSize     int
		WriteTimeout  time.Duration
		Retention     time.Duration
		PruneSchedule string
	}

	BulkConfig struct {
		Workers int
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// NewConfig loads the configuration of the current ENV (DEV by default).
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Daftari")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "k#9s2-dk(vn3^xq7$+e1=wm&u0rz!h4p*l8c(t6yb5o@ga-j")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("storage.backend", StorageBolt)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "daftari")
	v.SetDefault("database.user", "daftari")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.name", "daftari")

	v.SetDefault("bolt.path", "daftari.db")

	v.SetDefault("blob.backend", BlobLocal)
	v.SetDefault("blob.dir", "uploads")
	v.SetDefault("blob.b2Account", "")
	v.SetDefault("blob.b2Key", "")
	v.SetDefault("blob.b2Bucket", "")

	v.SetDefault("audit.workers", 2)
	v.SetDefault("audit.queueSize", 512)
	v.SetDefault("audit.writeTimeout", 5*time.Second)
	v.SetDefault("audit.retention", 365*24*time.Hour)
	v.SetDefault("audit.pruneSchedule", "@daily")

	v.SetDefault("bulk.workers", 8)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	conf := &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		WorkDir:          wd,
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		DefaultFromEmail: *fromEmail,
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Storage: StorageConfig{
			Backend: v.GetString("storage.backend"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Mongo: MongoConfig{
			URI:  v.GetString("mongo.uri"),
			Name: v.GetString("mongo.name"),
		},
		Bolt: BoltConfig{
			Path: v.GetString("bolt.path"),
		},
		Blob: BlobConfig{
			Backend:   v.GetString("blob.backend"),
			Dir:       v.GetString("blob.dir"),
			B2Account: v.GetString("blob.b2Account"),
			B2Key:     v.GetString("blob.b2Key"),
			B2Bucket:  v.GetString("blob.b2Bucket"),
		},
		Audit: AuditConfig{
			Workers:       v.GetInt("audit.workers"),
			QueueSize:     v.GetInt("audit.queueSize"),
			WriteTimeout:  v.GetDuration("audit.writeTimeout"),
			Retention:     v.GetDuration("audit.retention"),
			PruneSchedule: v.GetString("audit.pruneSchedule"),
		},
		Bulk: BulkConfig{
			Workers: v.GetInt("bulk.workers"),
		},
	}
	return conf
}

// Check reports settings that must be set outside DEV|TEST.
func (c *Config) Check() error {
	if c.Debug || c.TestMode {
		return nil
	}
	var missing []string
	if c.RollbarToken == "" {
		missing = append(missing, "rollbarToken")
	}
	if c.SendgridApiKey == "" {
		missing = append(missing, "sendgridApiKey")
	}
	if c.Blob.Backend == BlobB2 && (c.Blob.B2Account == "" || c.Blob.B2Key == "" || c.Blob.B2Bucket == "") {
		missing = append(missing, "blob.b2Account|b2Key|b2Bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
