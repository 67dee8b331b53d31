package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/studentbulle/internal/metrics"
	"github.com/shrimpsizemoose/studentbulle/internal/models"
	"github.com/shrimpsizemoose/studentbulle/internal/store"
)

type Service struct {
	Config   *Config
	Store    store.Store
	Accounts *Accounts
	Auth     *Auth
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewServiceFromConfig(context.Background(), config)
}

// NewServiceFromConfig opens the store and session backend named by config.
func NewServiceFromConfig(ctx context.Context, config *Config) (*Service, error) {
	store, err := NewStore(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	sessions, err := NewSessionStore(ctx, config.Auth.RedisURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init sessions: %w", err)
	}

	s, err := NewServiceWith(ctx, config, store, sessions)
	if err != nil {
		store.Close()
		sessions.Close()
		return nil, err
	}
	return s, nil
}

// NewServiceWith wires a service around already opened backends and makes
// sure the default administrator exists.
func NewServiceWith(ctx context.Context, config *Config, st store.Store, sessions SessionStore) (*Service, error) {
	accounts := NewAccounts(st, config)
	s := &Service{
		Config:   config,
		Store:    st,
		Accounts: accounts,
		Auth:     NewAuth(sessions, accounts, config),
	}

	if err := accounts.EnsureDefaultAdmin(ctx, config.Admin.Username, config.Admin.Password); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) SearchStudents(ctx context.Context, session *models.Session, query, field string) ([]models.Student, error) {
	if err := s.Auth.Require(session, models.RoleUser); err != nil {
		return nil, err
	}

	searchField, err := models.ParseSearchField(field)
	if err != nil {
		return nil, err
	}

	students, err := s.Store.SearchStudents(ctx, query, searchField)
	if err != nil {
		return nil, err
	}
	metrics.StudentSearchResults.WithLabelValues(string(searchField)).Observe(float64(len(students)))
	return students, nil
}

func (s *Service) GetStudent(ctx context.Context, session *models.Session, studentID string) (*models.Student, error) {
	if err := s.Auth.Require(session, models.RoleUser); err != nil {
		return nil, err
	}
	return s.Store.GetStudent(ctx, studentID)
}

func (s *Service) CreateStudent(ctx context.Context, session *models.Session, student *models.Student) (*models.Student, error) {
	if err := s.Auth.Require(session, models.RoleUser); err != nil {
		return nil, err
	}

	created, err := s.Store.CreateStudent(ctx, student)
	if err != nil {
		return nil, err
	}
	metrics.StudentMutationsTotal.WithLabelValues("create").Inc()
	logger.Info.Printf("%q created student %s", session.Username, created.StudentID)
	return created, nil
}

func (s *Service) UpdateStudent(ctx context.Context, session *models.Session, studentID string, update models.StudentUpdate) (*models.Student, error) {
	if err := s.Auth.Require(session, models.RoleUser); err != nil {
		return nil, err
	}

	updated, err := s.Store.UpdateStudent(ctx, studentID, update)
	if err != nil {
		return nil, err
	}
	metrics.StudentMutationsTotal.WithLabelValues("update").Inc()
	if updated.StudentID != studentID {
		logger.Info.Printf("%q renamed student %s to %s", session.Username, studentID, updated.StudentID)
	} else {
		logger.Info.Printf("%q updated student %s", session.Username, updated.StudentID)
	}
	return updated, nil
}

func (s *Service) DeleteStudent(ctx context.Context, session *models.Session, studentID string) error {
	if err := s.Auth.Require(session, models.RoleUser); err != nil {
		return err
	}

	if err := s.Store.DeleteStudent(ctx, studentID); err != nil {
		return err
	}
	metrics.StudentMutationsTotal.WithLabelValues("delete").Inc()
	logger.Info.Printf("%q deleted student %s", session.Username, studentID)
	return nil
}

// Reinitialize wipes both tables, logs every session out and recreates the
// default administrator.
func (s *Service) Reinitialize(ctx context.Context, session *models.Session) error {
	if err := s.Auth.Require(session, models.RoleAdmin); err != nil {
		return err
	}
	logger.Info.Printf("%q requested database re-initialization", session.Username)

	return s.resetAll(ctx)
}

// ResetDatabase is Reinitialize for operators with direct access to the host.
func (s *Service) ResetDatabase(ctx context.Context) error {
	logger.Info.Println("Resetting database from the command line")
	return s.resetAll(ctx)
}

func (s *Service) resetAll(ctx context.Context) error {
	if err := s.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	if err := s.Auth.FlushSessions(ctx); err != nil {
		return fmt.Errorf("failed to drop sessions: %w", err)
	}
	if err := s.Accounts.EnsureDefaultAdmin(ctx, s.Config.Admin.Username, s.Config.Admin.Password); err != nil {
		return err
	}
	metrics.StudentMutationsTotal.WithLabelValues("reinitialize").Inc()
	return nil
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Auth.Close(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	return errors.Join(errs...)
}
