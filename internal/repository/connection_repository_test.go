package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"riskguard/internal/models"
)

func TestNewConnectionRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewConnectionRepository(db)
	if repo == nil {
		t.Fatal("NewConnectionRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestConnectionRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	conn := &models.Connection{
		UserID:      "user-1",
		Exchange:    "bybit",
		AccountKind: models.AccountKindFutures,
		APIKey:      "encrypted-key",
		SecretKey:   "encrypted-secret",
		Connected:   true,
	}

	mock.ExpectQuery(`INSERT INTO connections`).
		WithArgs("user-1", "bybit", models.AccountKindFutures, "encrypted-key", "encrypted-secret",
			true, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	repo := NewConnectionRepository(db)
	if err := repo.Create(conn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.ID != 7 {
		t.Errorf("expected id 7, got %d", conn.ID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConnectionRepositoryGetByID(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "user_id", "exchange", "account_kind", "api_key", "secret_key", "connected", "last_error", "updated_at", "created_at"}).
					AddRow(1, "user-1", "bybit", "futures", "enc-key", "enc-secret", true, "", now, now)
				mock.ExpectQuery(`SELECT .+ FROM connections WHERE id = \$1`).
					WithArgs(1).
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM connections WHERE id = \$1`).
					WithArgs(1).
					WillReturnError(sql.ErrNoRows)
			},
			expectError: ErrConnectionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewConnectionRepository(db)
			conn, err := repo.GetByID(1)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if conn.Exchange != "bybit" || conn.AccountKind != "futures" {
				t.Errorf("unexpected connection: %+v", conn)
			}
		})
	}
}

func TestConnectionRepositoryGetConnected(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "exchange", "account_kind", "api_key", "secret_key", "connected", "last_error", "updated_at", "created_at"}).
		AddRow(1, "user-1", "bybit", "futures", "k1", "s1", true, "", now, now).
		AddRow(2, "user-2", "bybit", "spot", "k2", "s2", true, "", now, now)
	mock.ExpectQuery(`SELECT .+ FROM connections WHERE connected = true`).
		WillReturnRows(rows)

	repo := NewConnectionRepository(db)
	connections, err := repo.GetConnected()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(connections) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(connections))
	}
	if connections[1].AccountKind != models.AccountKindSpot {
		t.Errorf("unexpected second connection: %+v", connections[1])
	}
}

func TestConnectionRepositorySetConnected(t *testing.T) {
	tests := []struct {
		name        string
		rowsChanged int64
		expectError error
	}{
		{name: "success", rowsChanged: 1},
		{name: "not found", rowsChanged: 0, expectError: ErrConnectionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`UPDATE connections`).
				WithArgs(false, "auth failed", sqlmock.AnyArg(), 1).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsChanged))

			repo := NewConnectionRepository(db)
			err = repo.SetConnected(1, false, "auth failed")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConnectionRepositoryDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM connections WHERE id = \$1`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewConnectionRepository(db)
	if err := repo.Delete(3); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
