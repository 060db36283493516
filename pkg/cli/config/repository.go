package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/domain/interfaces"
	"github.com/secmon-lab/msghub/pkg/repository/firestore"
	"github.com/secmon-lab/msghub/pkg/repository/memory"
	"github.com/secmon-lab/msghub/pkg/repository/sql"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	BackendFirestore = "firestore"
	BackendSQL       = "sql"
	BackendMemory    = "memory"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend    string
	projectID  string
	databaseID string
	sqlDriver  string
	sqlDSN     string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (firestore, sql or memory)",
			Category:    "Repository",
			Value:       BackendFirestore,
			Sources:     cli.EnvVars("MSGHUB_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("MSGHUB_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Value:       "(default)",
			Sources:     cli.EnvVars("MSGHUB_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "sql-driver",
			Usage:       "SQL driver (sqlite or mysql)",
			Category:    "Repository",
			Value:       sql.DriverSQLite,
			Sources:     cli.EnvVars("MSGHUB_SQL_DRIVER"),
			Destination: &r.sqlDriver,
		},
		&cli.StringFlag{
			Name:        "sql-dsn",
			Usage:       "SQL data source name (sqlite file path or MySQL DSN)",
			Category:    "Repository",
			Sources:     cli.EnvVars("MSGHUB_SQL_DSN"),
			Destination: &r.sqlDSN,
		},
	}
}

func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("firestore_project_id", r.projectID),
		slog.String("firestore_database_id", r.databaseID),
		slog.String("sql_driver", r.sqlDriver),
		slog.Int("sql_dsn.len", len(r.sqlDSN)),
	)
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case BackendFirestore:
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend")
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case BackendSQL:
		if r.sqlDSN == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "sql-dsn is required when using sql backend")
		}
		repo, err := sql.New(ctx, r.sqlDriver, r.sqlDSN)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize sql repository", goerr.V("driver", r.sqlDriver))
		}
		logging.Default().Info("Using SQL repository", "driver", r.sqlDriver)
		return repo, nil

	case BackendMemory:
		logging.Default().Warn("Using in-memory repository, data is lost on exit")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid repository backend", goerr.V("backend", r.backend))
	}
}
