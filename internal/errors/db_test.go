package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_Sentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
		{name: "sql no rows", err: sql.ErrNoRows, wantCode: ErrCodeNotFound},
		{name: "pgx no rows", err: pgx.ErrNoRows, wantCode: ErrCodeNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", sql.ErrNoRows), wantCode: ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if GetCode(err) != tt.wantCode {
				t.Errorf("MapDBError() code = %v, want %v", GetCode(err), tt.wantCode)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("MapDBError() lost the cause %v", tt.err)
			}
		})
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
	}{
		{
			name:      "column metadata",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation, ColumnName: "email"},
			wantField: "email",
		},
		{
			name: "detail text",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.UniqueViolation,
				Detail: "Key (user_id, endpoint)=(u1, https://push.example/1) already exists.",
			},
			wantField: "user_id,endpoint",
		},
		{
			name: "constraint name",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				TableName:      "users",
				ConstraintName: "users_email_key",
			},
			wantField: "email",
		},
		{
			name:      "nothing to go on",
			pgErr:     &pgconn.PgError{Code: pgerrcode.UniqueViolation},
			wantField: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsConflict(err) {
				t.Fatalf("MapDBError() code = %v, want conflict", GetCode(err))
			}
			if got := GetField(err); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestMapDBError_ForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name    string
		pgErr   *pgconn.PgError
		wantMsg string
	}{
		{
			name: "missing parent",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.ForeignKeyViolation,
				Detail: `Key (user_id)=(u1) is not present in table "users".`,
			},
			wantMsg: "The referenced user does not exist.",
		},
		{
			name:    "table metadata",
			pgErr:   &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, TableName: "push_subscriptions"},
			wantMsg: "Cannot complete operation because this push subscription is in use.",
		},
		{
			name:    "generic",
			pgErr:   &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation},
			wantMsg: "Cannot complete operation because this item is in use.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr.Code != ErrCodeForeignKey {
				t.Fatalf("MapDBError() = %v, want foreign key AppError", err)
			}
			if appErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", appErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestMapDBError_ValidationCodes(t *testing.T) {
	for _, code := range []string{pgerrcode.CheckViolation, pgerrcode.NotNullViolation, pgerrcode.InvalidTextRepresentation} {
		err := MapDBError(&pgconn.PgError{Code: code, ColumnName: "role"})
		if !IsValidation(err) {
			t.Errorf("MapDBError(%s) code = %v, want validation", code, GetCode(err))
		}
	}
}

func TestMapDBError_UnknownPgError(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.DeadlockDetected})
	if GetCode(err) != ErrCodeInternal {
		t.Errorf("MapDBError() code = %v, want internal", GetCode(err))
	}
}

func TestMapDBError_StandardError(t *testing.T) {
	orig := errors.New("dial tcp: connection refused")
	if err := MapDBError(orig); !errors.Is(err, orig) || GetCode(err) != "" {
		t.Errorf("MapDBError() = %v, want original error", err)
	}
}

func TestInferFieldFromConstraint(t *testing.T) {
	tests := []struct {
		table, constraint, want string
	}{
		{"users", "users_email_key", "email"},
		{"push_subscriptions", "push_subscriptions_user_endpoint_key", "user_endpoint"},
		{"", "users_pkey", "users"},
		{"users", "", ""},
		{"users", "users_email_check", ""},
	}

	for _, tt := range tests {
		if got := inferFieldFromConstraint(tt.table, tt.constraint); got != tt.want {
			t.Errorf("inferFieldFromConstraint(%q, %q) = %q, want %q", tt.table, tt.constraint, got, tt.want)
		}
	}
}
