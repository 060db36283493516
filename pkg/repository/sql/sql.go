package sql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// SQL implements interfaces.Repository on top of gorm
type SQL struct {
	db          *gorm.DB
	skipMigrate bool
	slowQuery   time.Duration

	user       *userRepository
	credential *credentialRepository
	message    *messageRepository
}

var _ interfaces.Repository = &SQL{}

type Option func(*SQL)

// WithSkipMigrate disables AutoMigrate in New
func WithSkipMigrate() Option {
	return func(s *SQL) {
		s.skipMigrate = true
	}
}

func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *SQL) {
		s.slowQuery = d
	}
}

// New opens a sqlite file or a MySQL DSN and migrates the schema
func New(ctx context.Context, driver, dsn string, opts ...Option) (*SQL, error) {
	s := &SQL{slowQuery: 200 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.New(mysql.Config{
			DSN:                       dsn,
			SkipInitializeWithVersion: true,
		})
	default:
		return nil, goerr.New("unsupported sql driver", goerr.V("driver", driver))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(&slogWriter{ctx: ctx}, logger.Config{
			SlowThreshold:             s.slowQuery,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("driver", driver))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get underlying sql.DB")
	}
	if driver == DriverSQLite {
		// sqlite allows one writer; serialize to avoid "database is locked"
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to ping database", goerr.V("driver", driver))
	}

	s.db = db
	s.user = &userRepository{db: db}
	s.credential = &credentialRepository{db: db}
	s.message = &messageRepository{db: db}

	if !s.skipMigrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Migrate creates or updates tables and indexes
func (s *SQL) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return goerr.Wrap(err, "failed to migrate schema")
	}
	return nil
}

func (s *SQL) User() interfaces.UserRepository {
	return s.user
}

func (s *SQL) Credential() interfaces.CredentialRepository {
	return s.credential
}

func (s *SQL) Message() interfaces.MessageRepository {
	return s.message
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get underlying sql.DB")
	}
	if err := sqlDB.Close(); err != nil {
		return goerr.Wrap(err, "failed to close database")
	}
	return nil
}

// slogWriter routes gorm's logger output to slog
type slogWriter struct {
	ctx context.Context
}

func (w *slogWriter) Printf(format string, args ...any) {
	log := logging.From(w.ctx)
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))

	switch {
	case strings.Contains(msg, "[error]"):
		log.Error("database error", "details", msg)
	case strings.Contains(strings.ToLower(msg), "slow sql"):
		log.Warn("slow query", "details", msg)
	default:
		log.Debug("database query", "details", msg)
	}
}
