// Package config provides the configuration loader for concord.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger   ports.Logger
	FS       FileSystem
	validate *validator.Validate
}

// NewLoader creates a new Loader reading from the operating system.
func NewLoader(logger ports.Logger) *Loader {
	return NewLoaderWithFS(logger, NewOSFS())
}

// NewLoaderWithFS creates a new Loader reading through fsys.
func NewLoaderWithFS(logger ports.Logger, fsys FileSystem) *Loader {
	v := validator.New()
	_ = v.RegisterValidation("entity_type", validateEntityType)
	return &Loader{Logger: logger, FS: fsys, validate: v}
}

func validateEntityType(fl validator.FieldLevel) bool {
	return domain.EntityType(fl.Field().String()).Valid()
}

// Load resolves the configuration visible from cwd. CONCORD_CONFIG takes
// precedence over discovery. Without any file every role is served from memory.
func (l *Loader) Load(cwd string) (*domain.Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(cwd, path)
		}
		return l.LoadFile(path)
	}

	path, err := l.DiscoverConfigPath(cwd)
	if errors.Is(err, domain.ErrConfigNotFound) {
		l.Logger.Info(fmt.Sprintf("no %s found, serving every role from memory", FileName))
		return domain.DefaultConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return l.LoadFile(path)
}

// DiscoverConfigPath walks up from cwd to the first directory holding concord.yaml.
func (l *Loader) DiscoverConfigPath(cwd string) (string, error) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, FileName)
		if info, err := l.FS.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}
	return "", zerr.With(zerr.Wrap(domain.ErrConfigNotFound, "discover config"), "cwd", cwd)
}

// LoadFile reads, validates and resolves the configuration at path.
func (l *Loader) LoadFile(path string) (*domain.Config, error) {
	raw, err := l.FS.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigReadFailed, err.Error()), "path", path)
	}

	file := fromDomain(domain.DefaultConfig())
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, err.Error()), "path", path)
	}

	if err := l.check(&file); err != nil {
		return nil, zerr.With(err, "path", path)
	}

	cfg := file.toDomain()
	cfg.Path = path
	if sc := cfg.Stores[domain.RoleCache]; sc.Driver == domain.DriverBadger {
		sc.Database = domain.ResolveStorePath(filepath.Dir(path), sc.Database)
		cfg.Stores[domain.RoleCache] = sc
	}
	return cfg, nil
}

func (l *Loader) check(file *File) error {
	if err := l.validate.Struct(file); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return zerr.Wrap(domain.ErrConfigInvalid, err.Error())
		}
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
		return zerr.Wrap(domain.ErrConfigInvalid, strings.Join(problems, "\n"))
	}

	roles := []struct {
		role  domain.StoreRole
		store StoreDTO
	}{
		{domain.RoleCanonical, file.Stores.Canonical},
		{domain.RoleGraph, file.Stores.Graph},
		{domain.RoleCache, file.Stores.Cache},
		{domain.RoleAnalytics, file.Stores.Analytics},
	}
	for _, r := range roles {
		driver := domain.StoreDriver(r.store.Driver)
		if !r.role.Supports(driver) {
			err := zerr.With(zerr.Wrap(domain.ErrUnsupportedDriver, "validate stores"), "role", string(r.role))
			return zerr.With(err, "driver", r.store.Driver)
		}
		if driver != domain.DriverMemory && driver != domain.DriverBadger && r.store.DSN == "" {
			err := zerr.With(zerr.Wrap(domain.ErrConfigInvalid, "store dsn is required"), "role", string(r.role))
			return zerr.With(err, "driver", r.store.Driver)
		}
	}
	return nil
}
