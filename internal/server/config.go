package server

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"taskboard/internal/domain/errors"

	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"
)

// Duration reads "90m" style strings from JSON config files.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type Config struct {
	Addr        string `json:"addr"`
	Port        int    `json:"port"`
	Storage     string `json:"storage"`
	MongoURI    string `json:"mongo_uri"`
	MongoDB     string `json:"mongo_db"`
	DBStr       string `json:"db_str"`
	MigratePath string `json:"migrate_path"`

	JWTSecret     string   `json:"jwt_secret"`
	TokenTTL      Duration `json:"token_ttl"`
	RedisAddr     string   `json:"redis_addr"`
	RedisPassword string   `json:"redis_password"`

	CORSOrigins      []string `json:"cors_origins"`
	DeleteBatchSize  int      `json:"delete_batch_size"`
	DeleteMaxBatches int      `json:"delete_max_batches"`

	AdminUsername string `json:"admin_username"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}

const (
	defaultAddr             = "0.0.0.0"
	defaultPort             = 8080
	defaultStorage          = StorageMongo
	defaultMongoURI         = "mongodb://localhost:27017"
	defaultMongoDB          = "taskboard"
	defaultDBStr            = "postgresql://shouldbeinVaultuser:shouldbeinVaultpassword@db:5432/tasks?sslmode=disable"
	defaultMigratePath      = "migrations"
	defaultTokenTTL         = time.Hour
	defaultDeleteBatchSize  = 100
	defaultDeleteMaxBatches = 10000
)

var defaultCORSOrigins = []string{"http://localhost:3000"}

func DefaultConfig() *Config {
	return &Config{
		Addr:             defaultAddr,
		Port:             defaultPort,
		Storage:          defaultStorage,
		MongoURI:         defaultMongoURI,
		MongoDB:          defaultMongoDB,
		DBStr:            defaultDBStr,
		MigratePath:      defaultMigratePath,
		TokenTTL:         Duration(defaultTokenTTL),
		CORSOrigins:      append([]string(nil), defaultCORSOrigins...),
		DeleteBatchSize:  defaultDeleteBatchSize,
		DeleteMaxBatches: defaultDeleteMaxBatches,
	}
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

func (c *Config) TokenDuration() time.Duration {
	return time.Duration(c.TokenTTL)
}

// ReadConfig layers defaults, an optional JSON file, the environment (with a
// .env file loaded first when present) and finally the flags set in args.
func ReadConfig(args []string) (*Config, error) {
	fs := flag.NewFlagSet("taskboard", flag.ContinueOnError)
	configFile := fs.String("c", "", "path to a JSON config file")
	addr := fs.String("addr", defaultAddr, "listen address")
	port := fs.Int("port", defaultPort, "listen port")
	storage := fs.String("storage", defaultStorage, "storage backend: memory, mongo or postgres")
	mongoURI := fs.String("mongo-uri", defaultMongoURI, "MongoDB connection URI")
	dbStr := fs.String("dbstr", defaultDBStr, "PostgreSQL connection string")
	dbDsn := fs.String("dbdsn", "", "PostgreSQL DSN, takes precedence over -dbstr")
	migratePath := fs.String("migratepath", defaultMigratePath, "path to the migrations directory")
	redisAddr := fs.String("redis-addr", "", "Redis address for the token revocation list")
	tokenTTL := fs.Duration("token-ttl", defaultTokenTTL, "lifetime of issued tokens")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] Loaded environment from .env")
	}

	cfg := DefaultConfig()

	path := *configFile
	if path == "" {
		path = os.Getenv("CONFIG")
	}
	if path != "" {
		if err := loadJSONConfig(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "port":
			cfg.Port = *port
		case "storage":
			cfg.Storage = *storage
		case "mongo-uri":
			cfg.MongoURI = *mongoURI
		case "dbstr":
			if *dbDsn == "" {
				cfg.DBStr = *dbStr
			}
		case "dbdsn":
			cfg.DBStr = *dbDsn
		case "migratepath":
			cfg.MigratePath = *migratePath
		case "redis-addr":
			cfg.RedisAddr = *redisAddr
		case "token-ttl":
			cfg.TokenTTL = Duration(*tokenTTL)
		}
	})

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadJSONConfig(path string, cfg *Config) error {
	log.Println("[INFO] Loading JSON config from:", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w %s: %v", errors.ErrConfigFileReadFailed, path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConfigParseFailed, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int, min int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < min {
			log.Printf("[WARN] %s in %s: %q", errors.ErrConfigInvalidFormat, key, v)
			return
		}
		*dst = n
	}

	setString("ADDR", &cfg.Addr)
	setInt("PORT", &cfg.Port, 1)
	if cfg.Port > 65535 {
		log.Printf("[WARN] %s: port must be between 1 and 65535: %d", errors.ErrConfigInvalidFormat, cfg.Port)
		cfg.Port = defaultPort
	}
	setString("STORAGE", &cfg.Storage)
	setString("MONGO_URI", &cfg.MongoURI)
	setString("MONGO_DB", &cfg.MongoDB)
	setString("DB_STR", &cfg.DBStr)
	setString("MIGRATE_PATH", &cfg.MigratePath)
	setString("JWT_SECRET", &cfg.JWTSecret)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setString("ADMIN_USERNAME", &cfg.AdminUsername)
	setString("ADMIN_EMAIL", &cfg.AdminEmail)
	setString("ADMIN_PASSWORD", &cfg.AdminPassword)
	setInt("DELETE_BATCH_SIZE", &cfg.DeleteBatchSize, 1)
	setInt("DELETE_MAX_BATCHES", &cfg.DeleteMaxBatches, 0)

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			log.Printf("[WARN] %s in TOKEN_TTL: %q", errors.ErrConfigInvalidFormat, v)
		} else {
			cfg.TokenTTL = Duration(d)
		}
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}

	if cfg.DBStr == defaultDBStr {
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbName := os.Getenv("DB_NAME")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
			cfg.DBStr = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
		}
	}
}

func (c *Config) validate() error {
	switch c.Storage {
	case StorageMemory, StorageMongo, StoragePostgres:
	default:
		return fmt.Errorf("%w: unknown storage %q", errors.ErrConfigInvalidFormat, c.Storage)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d", errors.ErrConfigInvalidFormat, c.Port)
	}
	if c.DeleteBatchSize < 1 {
		return fmt.Errorf("%w: delete batch size %d", errors.ErrConfigInvalidFormat, c.DeleteBatchSize)
	}
	if c.DeleteMaxBatches < 0 {
		return fmt.Errorf("%w: delete max batches %d", errors.ErrConfigInvalidFormat, c.DeleteMaxBatches)
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = Duration(defaultTokenTTL)
	}
	return nil
}
