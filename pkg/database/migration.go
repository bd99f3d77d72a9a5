package database

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// MigrationConfig controls schema migration at startup.
type MigrationConfig struct {
	MigrationFolderPath string
	// Version pins the target; 0 migrates all the way up.
	Version uint
	// Force stamps the database to a version without running anything.
	Force int
	// AutoRollback reverts a dirty database to the pre-migration version so
	// the next boot can retry cleanly. The failed boot still fails.
	AutoRollback bool
}

type MigrationService struct {
	config *MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config *MigrationConfig) *MigrationService {
	return &MigrationService{config: config, logger: logger}
}

// migrationLogger adapts ectologger to migrate's Logger interface.
type migrationLogger struct {
	ectologger.Logger
}

func (l migrationLogger) Verbose() bool { return true }

func (l migrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

func (ms *MigrationService) folder() string {
	path := ms.config.MigrationFolderPath
	if _, err := os.Stat(path); err == nil {
		return path
	}
	wd, _ := os.Getwd()
	return filepath.Join(wd, path)
}

// Migrate applies pending schema migrations from the configured folder.
func (ms *MigrationService) Migrate(databaseName string, driver database.Driver) error {
	folder := ms.folder()
	if _, err := os.Stat(folder); err != nil {
		return errors.Wrapf(err, "migration folder %s does not exist", folder)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = migrationLogger{Logger: ms.logger}

	if ms.config.Force != 0 {
		if err := m.Force(ms.config.Force); err != nil {
			return errors.Wrapf(err, "failed to force database to version %d", ms.config.Force)
		}
	}

	before, _, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		ms.logger.WithError(err).Error("Failed to read current migration version")
	}

	start := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}

	switch {
	case err == nil:
		ms.logger.Infof("Applied migrations in %v", time.Since(start))
		return nil
	case err == migrate.ErrNoChange:
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	// A rollback can leave the database stamped past the folder's newest
	// file; re-stamp to the newest known version instead of failing forever.
	if strings.Contains(err.Error(), "no migration found for version") {
		latest, latestErr := latestFileVersion(folder)
		if latestErr != nil {
			return errors.Wrap(err, latestErr.Error())
		}
		ms.logger.Warnf("Database is stamped at %d with no matching file, forcing to %d", before, latest)
		return m.Force(latest)
	}

	if ms.config.AutoRollback {
		version, dirty, versionErr := m.Version()
		if versionErr == nil && dirty {
			target := before
			if target == 0 && version > 0 {
				target = version - 1
			}
			ms.logger.WithError(err).Warnf("Migration left version %d dirty, reverting to %d", version, target)
			if forceErr := m.Force(int(target)); forceErr != nil {
				return errors.Wrapf(forceErr, "failed to revert database to version %d", target)
			}
		}
	}

	return errors.Wrap(err, "migration failed")
}

// latestFileVersion finds the highest NNN_*.up.sql version in the folder.
func latestFileVersion(folder string) (int, error) {
	files, err := os.ReadDir(folder)
	if err != nil {
		return 0, err
	}

	re := regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)
	var versions []int
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if matches := re.FindStringSubmatch(file.Name()); len(matches) > 1 {
			v, convErr := strconv.Atoi(matches[1])
			if convErr != nil {
				return 0, convErr
			}
			versions = append(versions, v)
		}
	}
	if len(versions) == 0 {
		return 0, fmt.Errorf("no migration files in %s", folder)
	}
	sort.Ints(versions)
	return versions[len(versions)-1], nil
}
