package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/pilltong/pill-identifier/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*CatalogRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &CatalogRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestLookupIdentifiersReturnsRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"name", "image_key", "material", "class_code", "appearance"}).
		AddRow("AspirinTab (500mg)", "aux-key", "aspirin", "A01", "white round").
		AddRow("AspirinCap", "", "aspirin", "A01", "white capsule")

	mock.ExpectQuery("SELECT name, COALESCE").
		WithArgs("K001").
		WillReturnRows(rows)

	entries, err := repo.LookupIdentifiers(context.Background(), "K001")
	if err != nil {
		t.Fatalf("LookupIdentifiers() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %+v", entries)
	}
	if entries[0].Name != "AspirinTab (500mg)" || entries[0].ImageKey != "aux-key" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupIdentifiersEmptyIsNotAnError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT name, COALESCE").
		WithArgs("K404").
		WillReturnRows(sqlmock.NewRows([]string{"name", "image_key", "material", "class_code", "appearance"}))

	entries, err := repo.LookupIdentifiers(context.Background(), "K404")
	if err != nil {
		t.Fatalf("LookupIdentifiers() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupIdentifiersWrapsQueryError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT name, COALESCE").
		WithArgs("K001").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.LookupIdentifiers(context.Background(), "K001")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrLookup) {
		t.Fatalf("expected ErrLookup, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupCatalogReturnsRows(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "display_name", "company", "appearance", "form_code_name", "image_key"}).
		AddRow("195900043", "AspirinTab (500mg)", "Bayer Korea", "white round tablet", "tablet", "")

	mock.ExpectQuery("SELECT id, display_name").
		WithArgs("AspirinTab").
		WillReturnRows(rows)

	entries, err := repo.LookupCatalog(context.Background(), "AspirinTab")
	if err != nil {
		t.Fatalf("LookupCatalog() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %+v", entries)
	}
	if entries[0].ID != "195900043" || entries[0].FormCodeName != "tablet" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
	if entries[0].ImageKey != "" {
		t.Fatalf("expected empty image key, got %q", entries[0].ImageKey)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLookupCatalogWrapsQueryError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, display_name").
		WithArgs("Aspirin").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.LookupCatalog(context.Background(), "Aspirin")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrLookup) {
		t.Fatalf("expected ErrLookup, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
