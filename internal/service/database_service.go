package service

import (
	"context"
	"encoding/json"
	"fmt"

	"sqlinsight/internal/core"
	"sqlinsight/internal/logger"
)

// DatabaseService registers target databases and keeps their schema snapshots.
type DatabaseService struct {
	repo         core.DatabaseRepository
	introspector *SchemaIntrospector
	crypto       *EncryptionService
	schemas      *SchemaCache
	allowed      map[core.Provider]bool
}

// NewDatabaseService accepts only the listed providers; an empty list allows all supported ones.
func NewDatabaseService(repo core.DatabaseRepository, introspector *SchemaIntrospector, crypto *EncryptionService, schemas *SchemaCache, providers []string) *DatabaseService {
	allowed := make(map[core.Provider]bool, len(providers))
	for _, p := range providers {
		allowed[core.Provider(p)] = true
	}
	return &DatabaseService{repo: repo, introspector: introspector, crypto: crypto, schemas: schemas, allowed: allowed}
}

// Connect resolves and introspects the credentials, then stores the database
// with its encrypted secrets and schema snapshot.
func (s *DatabaseService) Connect(ctx context.Context, userID int64, creds Credentials) (*core.DatabaseConnection, error) {
	conn := &core.DatabaseConnection{UserID: userID}
	if err := s.apply(ctx, conn, creds); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, fmt.Errorf("store database: %w", err)
	}
	logger.Info.Printf("User %d connected %s database %q (id %d)", userID, conn.Provider, conn.DBName, conn.ID)
	return conn, nil
}

// UpdateCredentials re-introspects with the new credentials. Nothing is
// changed when the new credentials do not work.
func (s *DatabaseService) UpdateCredentials(ctx context.Context, userID, id int64, creds Credentials) (*core.DatabaseConnection, error) {
	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	updated := *conn
	if err := s.apply(ctx, &updated, creds); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update database: %w", err)
	}
	logger.Info.Printf("User %d updated credentials of database %d", userID, id)
	return &updated, nil
}

func (s *DatabaseService) resolve(creds Credentials) (string, error) {
	if len(s.allowed) > 0 && !s.allowed[creds.Provider] {
		return "", &core.UnsupportedProviderError{Provider: string(creds.Provider)}
	}
	return ResolveConnectionString(creds)
}

func (s *DatabaseService) apply(ctx context.Context, conn *core.DatabaseConnection, creds Credentials) error {
	uri, err := s.resolve(creds)
	if err != nil {
		return err
	}
	snapshot, err := s.introspector.Introspect(ctx, uri)
	if err != nil {
		return err
	}
	schemaJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	uriEnc, err := s.crypto.Seal(SecretConnectionString, uri)
	if err != nil {
		return fmt.Errorf("encrypt connection string: %w", err)
	}
	pwdEnc, err := s.crypto.Seal(SecretPassword, creds.Password)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}

	conn.Provider = creds.Provider
	conn.Host = creds.Host
	conn.Port = creds.Port
	conn.DBName = creds.DBName
	conn.Username = creds.Username
	conn.PasswordEnc = pwdEnc
	conn.ConnectionStringEnc = uriEnc
	conn.SchemaJSON = string(schemaJSON)
	return nil
}

// TestConnection reports whether the credentials resolve, connect and introspect.
func (s *DatabaseService) TestConnection(ctx context.Context, creds Credentials) bool {
	uri, err := s.resolve(creds)
	if err != nil {
		return false
	}
	return s.introspector.TestConnection(ctx, uri)
}

func (s *DatabaseService) List(ctx context.Context, userID int64) ([]core.DatabaseConnection, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *DatabaseService) Count(ctx context.Context, userID int64) (int, error) {
	return s.repo.CountByUser(ctx, userID)
}

// Delete soft-deletes the database together with all of its queries.
func (s *DatabaseService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.repo.SoftDelete(ctx, userID, id); err != nil {
		return err
	}
	logger.Info.Printf("User %d deleted database %d", userID, id)
	return nil
}

// Schema returns the stored snapshot of a database.
func (s *DatabaseService) Schema(ctx context.Context, userID, id int64) (core.SchemaSnapshot, error) {
	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.schemas.Snapshot(conn)
}

// Target loads everything the pipeline needs to run against a database.
func (s *DatabaseService) Target(ctx context.Context, userID, id int64) (*Target, error) {
	conn, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	uri, err := s.crypto.Open(SecretConnectionString, conn.ConnectionStringEnc)
	if err != nil {
		return nil, fmt.Errorf("decrypt connection string: %w", err)
	}
	snapshot, err := s.schemas.Snapshot(conn)
	if err != nil {
		return nil, err
	}
	return &Target{
		DatabaseID:       conn.ID,
		Provider:         conn.Provider,
		ConnectionString: uri,
		Schema:           snapshot,
	}, nil
}
