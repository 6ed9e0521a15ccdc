package config

import "time"

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"  validate:"required"`
	Port     int    `env:"PORT"     envDefault:"5432"       validate:"min=1,max=65535"`
	User     string `env:"USER"     envDefault:"cableaudit" validate:"required"`
	Password string `env:"PASSWORD" envDefault:"cableaudit"`
	Name     string `env:"NAME"     envDefault:"cableaudit" validate:"required"`
	// SSLMode is passed through to libpq-style DSNs; production deployments use require or stricter.
	SSLMode string `env:"SSL_MODE" envDefault:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"     envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"  envDefault:"5m"`
	// ApplicationName is reported to Postgres in pg_stat_activity.
	ApplicationName string `env:"APPLICATION_NAME" envDefault:"cableaudit"`
}

// RedisConfig contains Redis configuration.
// Redis is optional; when Enabled is false reference lookups go straight to Postgres.
type RedisConfig struct {
	Enabled            bool     `env:"ENABLED"              envDefault:"false"`
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// ReferenceConfig controls the reference dataset used by the validator stage.
type ReferenceConfig struct {
	// CacheTTL is how long a reference row stays cached in Redis.
	CacheTTL time.Duration `env:"REFERENCE_CACHE_TTL" envDefault:"1h"`

	// SeedOnStart loads the reference dataset during startup when the tables are empty.
	SeedOnStart bool `env:"REFERENCE_SEED_ON_START" envDefault:"true"`

	// SeedFile overrides the embedded dataset with a YAML file on disk.
	SeedFile string `env:"REFERENCE_SEED_FILE"`
}

// Sanitize applies guardrails to reference configuration values.
func (r *ReferenceConfig) Sanitize() {
	if r.CacheTTL < time.Minute {
		r.CacheTTL = time.Minute
	}
}
