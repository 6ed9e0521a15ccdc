package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/innovites/cableaudit/config"
	"github.com/innovites/cableaudit/internal/migrate"
)

const connectTimeout = 5 * time.Second

// DatabaseConfig contains configuration for database connections.
type DatabaseConfig struct {
	DBConfig    config.DBConfig
	RedisConfig config.RedisConfig
	Logger      *slog.Logger
}

// ConnectDB opens the job store pool through the pgx stdlib bridge and pings it.
func ConnectDB(cfg DatabaseConfig) (*sql.DB, error) {
	pgCfg, err := pgx.ParseConfig(postgresDSN(cfg.DBConfig))
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if name := strings.TrimSpace(cfg.DBConfig.ApplicationName); name != "" {
		pgCfg.RuntimeParams["application_name"] = name
	}

	db := stdlib.OpenDB(*pgCfg)
	db.SetMaxOpenConns(positiveOr(cfg.DBConfig.MaxOpenConns, 25))
	db.SetMaxIdleConns(positiveOr(cfg.DBConfig.MaxIdleConns, 5))
	if cfg.DBConfig.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.DBConfig.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping database: %w", err), db.Close())
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", cfg.DBConfig.Host,
			"port", cfg.DBConfig.Port,
			"database", cfg.DBConfig.Name,
		)
	}
	return db, nil
}

// postgresDSN builds a URL DSN; url.URL escapes special characters in credentials.
func postgresDSN(c config.DBConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

type redisMode int

const (
	redisDirect redisMode = iota
	redisSentinel
	redisCluster
)

// ConnectRedis builds a direct, sentinel or cluster client from cfg and pings it.
//
//nolint:ireturn // the topology is chosen at runtime.
func ConnectRedis(cfg DatabaseConfig) (redis.UniversalClient, error) {
	opts, mode, err := redisOptions(cfg.RedisConfig)
	if err != nil {
		return nil, err
	}

	var client redis.UniversalClient
	switch mode {
	case redisCluster:
		client = redis.NewClusterClient(opts.Cluster())
	case redisSentinel:
		client = redis.NewFailoverClient(opts.Failover())
	default:
		client = redis.NewClient(opts.Simple())
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("ping redis: %w", err), client.Close())
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("redis connected", "addr", describeRedis(opts, mode))
	}
	return client, nil
}

// redisOptions resolves the topology and addresses. A redis:// or rediss:// URI supplies
// credentials and TLS for direct and cluster modes; explicit cluster nodes win over it.
func redisOptions(c config.RedisConfig) (*redis.UniversalOptions, redisMode, error) {
	opts := &redis.UniversalOptions{Password: c.Password}

	if c.UseSentinel {
		nodes := compact(c.SentinelNodes)
		if len(nodes) == 0 {
			return nil, 0, errors.New("redis sentinel configuration requires at least one sentinel node")
		}
		opts.Addrs = nodes
		opts.MasterName = c.SentinelMasterName
		opts.SentinelPassword = c.SentinelPassword
		return opts, redisSentinel, nil
	}

	uri := strings.TrimSpace(c.URI)
	if uri != "" {
		if isRedisURL(uri) {
			parsed, err := redis.ParseURL(uri)
			if err != nil {
				return nil, 0, fmt.Errorf("parse redis url: %w", err)
			}
			opts.Addrs = []string{parsed.Addr}
			opts.Username = parsed.Username
			if parsed.Password != "" {
				opts.Password = parsed.Password
			}
			opts.TLSConfig = parsed.TLSConfig
			opts.DB = parsed.DB
		} else {
			opts.Addrs = []string{uri}
		}
	}

	if c.UseCluster {
		if nodes := compact(c.ClusterNodes); len(nodes) > 0 {
			opts.Addrs = nodes
		}
		if len(opts.Addrs) == 0 {
			return nil, 0, errors.New("redis cluster configuration requires at least one address")
		}
		opts.DB = 0
		return opts, redisCluster, nil
	}

	if len(opts.Addrs) == 0 {
		return nil, 0, errors.New("redis direct configuration requires a URI")
	}
	return opts, redisDirect, nil
}

// describeRedis renders the target without credentials.
func describeRedis(opts *redis.UniversalOptions, mode redisMode) string {
	switch mode {
	case redisCluster:
		return "cluster:" + strings.Join(opts.Addrs, ",")
	case redisSentinel:
		return "sentinel:" + opts.MasterName
	default:
		return opts.Addrs[0]
	}
}

func compact(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isRedisURL(value string) bool {
	return strings.HasPrefix(value, "redis://") || strings.HasPrefix(value, "rediss://")
}

// RunMigrations applies pending schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	applied, err := migrate.Apply(ctx, db, logger)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.InfoContext(ctx, "database migrations completed", "applied", len(applied))
	return nil
}
