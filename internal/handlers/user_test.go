package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/crucial707/audit-search/internal/middleware"
	"github.com/crucial707/audit-search/internal/repo"
)

func TestUserHandler_Me(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT id, username, email, first_name, last_name, COALESCE\(password_hash, ''\), is_staff FROM auth_user WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(7, "carol", "carol@example.com", "Carol", "Jones", "hash", true))

	h := &UserHandler{Repo: repo.NewUserRepo(db, "username")}
	req := httptest.NewRequest("GET", "/me", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, int64(7)))
	rr := httptest.NewRecorder()
	h.Me(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Me status: got %d, want 200", rr.Code)
	}
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["username"] != "carol" || out["is_staff"] != true {
		t.Errorf("unexpected user: %v", out)
	}
	if _, ok := out["password_hash"]; ok {
		t.Error("password hash must not be serialised")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestUserHandler_Me_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`FROM auth_user WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(userCols))

	h := &UserHandler{Repo: repo.NewUserRepo(db, "username")}
	req := httptest.NewRequest("GET", "/me", nil)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, int64(9)))
	rr := httptest.NewRecorder()
	h.Me(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Me status: got %d, want 404", rr.Code)
	}
}

func TestUserHandler_Me_Unauthenticated(t *testing.T) {
	h := &UserHandler{}
	rr := httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest("GET", "/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Me status: got %d, want 401", rr.Code)
	}
}
