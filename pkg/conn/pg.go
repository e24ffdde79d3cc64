package conn

import (
	"net"
	"net/url"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres describes where bars are persisted.
type Postgres struct {
	Host     string            `yaml:"host" env:"HOST"`
	Port     int               `yaml:"port" env:"PORT"`
	User     string            `yaml:"user" env:"USER"`
	Password string            `yaml:"password" env:"PASSWORD"`
	Database string            `yaml:"database" env:"DATABASE"`
	SSLMode  string            `yaml:"ssl_mode" env:"SSL_MODE"`
	Params   map[string]string `yaml:"params"`

	// DSN overrides every other field when set.
	DSN string `yaml:"dsn" env:"DSN"`

	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

func (p Postgres) Enabled() bool {
	return p.DSN != "" || p.Host != ""
}

// ConnString builds a postgres:// URL, filling in localhost:5432 and sslmode=disable.
func (p Postgres) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}

	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}

	u := &url.URL{Scheme: "postgres", Host: net.JoinHostPort(host, strconv.Itoa(port))}
	switch {
	case p.User != "" && p.Password != "":
		u.User = url.UserPassword(p.User, p.Password)
	case p.User != "":
		u.User = url.User(p.User)
	}
	if p.Database != "" {
		u.Path = "/" + p.Database
	}

	query := url.Values{}
	query.Set("sslmode", "disable")
	if p.SSLMode != "" {
		query.Set("sslmode", p.SSLMode)
	}
	for k, v := range p.Params {
		if k != "" {
			query.Set(k, v)
		}
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// OpenPostgres opens a gorm pool. Close it with ClosePostgres.
func OpenPostgres(p Postgres) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(p.ConnString()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if p.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(p.ConnMaxLifetime)
	}
	return db, nil
}

func ClosePostgres(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
