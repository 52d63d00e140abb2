package commands

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/conduit-lang/docmap/internal/orm/store"
)

const orderModel = `
enums:
  - name: OrderStatus
    width: int32
    members:
      - {name: Pending, value: 0}
      - {name: Shipped, value: 1}
      - {name: Delivered, value: 2}
documents:
  - name: Address
    properties:
      - {name: City, type: string}
  - name: OrderDocument
    properties:
      - {name: Name, type: string}
      - {name: Status, type: enum, enum: OrderStatus}
      - {name: Shipping, type: reference, document: Address, nullable: true}
  - name: OrderLine
    properties:
      - {name: Sku, type: string}
      - {name: Quantity, type: int}
entities:
  - name: Order
    table: orders
    columns:
      - {name: Document, owns: one, document: OrderDocument, required: true}
      - {name: Lines, owns: many, document: OrderLine}
extensions: [pgcrypto]
`

func writeModel(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "model.yaml")
	if err := os.WriteFile(path, []byte(orderModel), 0644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}
	return path
}

func assertContains(t *testing.T, output string, expected ...string) {
	t.Helper()
	for _, e := range expected {
		if !strings.Contains(output, e) {
			t.Errorf("output missing %q:\n%s", e, output)
		}
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "pgx", "")
	model := writeModel(t, dir)

	out, _, err := execute(t, "", "--no-color", "--config", cfg, "inspect", model)
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}

	assertContains(t, out,
		"Table: orders",
		"Key:   id (long)",
		"reference<OrderDocument>!",
		"collection<OrderLine>",
		"$.Status",
		"enum(OrderStatus)!",
		"$.Shipping.City",
		"reference<Address>?",
		"$[*].Sku",
		"Pending=0, Shipped=1, Delivered=2",
	)
}

func TestInspect_MissingModel(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "pgx", "")

	_, _, err := execute(t, "", "--no-color", "--config", cfg, "inspect", filepath.Join(dir, "missing.yaml"))
	if err == nil {
		t.Error("expected an error for a missing model file")
	}
}

func TestSchema_Print(t *testing.T) {
	tests := []struct {
		name     string
		driver   string
		expected []string
		absent   string
	}{
		{
			name:   "postgres",
			driver: "pgx",
			expected: []string{
				`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
				`CREATE TABLE IF NOT EXISTS "orders" (`,
				`"id" BIGINT PRIMARY KEY,`,
				`"document" JSONB NOT NULL,`,
				`"lines" JSONB`,
			},
		},
		{
			name:   "sqlite",
			driver: "sqlite3",
			expected: []string{
				`"id" INTEGER PRIMARY KEY,`,
				`"document" TEXT NOT NULL,`,
			},
			absent: "EXTENSION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := writeConfig(t, dir, tt.driver, "")
			model := writeModel(t, dir)

			out, _, err := execute(t, "", "--no-color", "--config", cfg, "schema", model)
			if err != nil {
				t.Fatalf("schema failed: %v", err)
			}
			assertContains(t, out, tt.expected...)
			if tt.absent != "" && strings.Contains(out, tt.absent) {
				t.Errorf("output should not contain %q:\n%s", tt.absent, out)
			}
		})
	}
}

func TestDecode_Stdin(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "pgx", "")
	model := writeModel(t, dir)

	out, errOut, err := execute(t, `{"Name":"a","Status":"Shipped","Shipping":{"City":"Oslo"}}`,
		"--no-color", "--config", cfg, "decode", model, "Order", "Document")
	if err != nil {
		t.Fatalf("decode failed: %v\n%s", err, errOut)
	}

	want := "{\n  \"Name\": \"a\",\n  \"Status\": 1,\n  \"Shipping\": {\n    \"City\": \"Oslo\"\n  }\n}\n"
	if out != want {
		t.Errorf("decode output =\n%s\nwant\n%s", out, want)
	}
	assertContains(t, errOut, "LEGACY ENUM VALUES", "OrderStatus (1)")
}

func TestDecode_CollectionFromFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "pgx", "")
	model := writeModel(t, dir)
	doc := filepath.Join(dir, "lines.json")
	if err := os.WriteFile(doc, []byte(`[{"Quantity":2,"Sku":"x"}]`), 0644); err != nil {
		t.Fatal(err)
	}

	out, errOut, err := execute(t, "", "--no-color", "--config", cfg, "decode", model, "Order", "Lines", doc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	want := "[\n  {\n    \"Sku\": \"x\",\n    \"Quantity\": 2\n  }\n]\n"
	if out != want {
		t.Errorf("decode output =\n%s\nwant\n%s", out, want)
	}
	if errOut != "" {
		t.Errorf("expected no warnings, got %q", errOut)
	}
}

func TestDecode_UnknownNames(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "pgx", "")
	model := writeModel(t, dir)

	_, errOut, err := execute(t, "{}", "--no-color", "--config", cfg, "decode", model, "Ordr", "Document")
	if !errors.Is(err, store.ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
	assertContains(t, errOut, "ENTITY NOT FOUND: ORDR", "Did you mean: Order?")

	_, errOut, err = execute(t, "{}", "--no-color", "--config", cfg, "decode", model, "Order", "Line")
	if !errors.Is(err, store.ErrUnknownColumn) {
		t.Errorf("expected ErrUnknownColumn, got %v", err)
	}
	assertContains(t, errOut, "COLUMN NOT FOUND: LINE", "Did you mean: Lines?")
}

func TestDecode_InvalidDocument(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "pgx", "")
	model := writeModel(t, dir)

	out, errOut, err := execute(t, `{"Name":"a","Status":"Lost"}`,
		"--no-color", "--config", cfg, "decode", model, "Order", "Document")
	if err == nil {
		t.Fatal("expected an error for an unknown enum member")
	}
	if out != "" {
		t.Errorf("expected no document output, got %q", out)
	}
	assertContains(t, errOut, "DECODE FAILED", "Lost", "docmap inspect")
}

func TestNormalizeAndQuery_SQLite(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "docmap.db")
	cfg := writeConfig(t, dir, "sqlite3", dbPath)
	model := writeModel(t, dir)

	out, _, err := execute(t, "", "--no-color", "--config", cfg, "schema", model, "--apply")
	if err != nil {
		t.Fatalf("schema --apply failed: %v", err)
	}
	assertContains(t, out, "Schema applied (1 entities)")

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	seed := []struct {
		id       int
		document string
		lines    interface{}
	}{
		{1, `{"Name":"a","Status":"Shipped","Shipping":null}`, `[{"Sku":"x","Quantity":2}]`},
		{2, `{"Name":"b","Status":2,"Shipping":{"City":"Oslo"}}`, nil},
	}
	for _, row := range seed {
		if _, err := db.Exec(`INSERT INTO "orders" ("id", "document", "lines") VALUES (?, ?, ?)`,
			row.id, row.document, row.lines); err != nil {
			t.Fatal(err)
		}
	}

	out, _, err = execute(t, "", "--no-color", "--config", cfg, "normalize", model, "Order", "--dry-run")
	if err != nil {
		t.Fatalf("normalize --dry-run failed: %v", err)
	}
	assertContains(t, out,
		"--- Order 1 Document (stored)",
		"-  \"Status\": \"Shipped\",",
		"+  \"Status\": 1,",
		"1 documents would be rewritten (dry run)",
	)

	var stored string
	if err := db.QueryRow(`SELECT "document" FROM "orders" WHERE "id" = 1`).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stored, `"Shipped"`) {
		t.Errorf("dry run should not rewrite, got %s", stored)
	}

	out, _, err = execute(t, "", "--no-color", "--config", cfg, "normalize", model, "Order")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	assertContains(t, out, "Rewrote 1 Order documents")

	out, _, err = execute(t, "", "--no-color", "--config", cfg, "normalize", model, "Order")
	if err != nil {
		t.Fatalf("second normalize failed: %v", err)
	}
	assertContains(t, out, "All Order documents are canonical")

	out, _, err = execute(t, "", "--no-color", "--config", cfg, "query", model, "Order", "Document", "Status")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	assertContains(t, out, "id  Value", "1   1", "2   2")

	out, _, err = execute(t, "", "--no-color", "--config", cfg, "query", model, "Order", "Document", "Shipping", "City")
	if err != nil {
		t.Fatalf("nested query failed: %v", err)
	}
	assertContains(t, out, "1   NULL", "2   Oslo")
}

func TestQuery_CollectionColumn(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "sqlite3", filepath.Join(dir, "docmap.db"))
	model := writeModel(t, dir)

	if _, _, err := execute(t, "", "--no-color", "--config", cfg, "schema", model, "--apply"); err != nil {
		t.Fatalf("schema --apply failed: %v", err)
	}

	_, _, err := execute(t, "", "--no-color", "--config", cfg, "query", model, "Order", "Lines", "Sku")
	if err == nil || !strings.Contains(err.Error(), "owned reference column") {
		t.Errorf("expected a collection column error, got %v", err)
	}
}

func TestNormalize_RequiresDatabaseURL(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "pgx", "")
	model := writeModel(t, dir)

	_, _, err := execute(t, "", "--no-color", "--config", cfg, "normalize", model, "Order")
	if err == nil || !strings.Contains(err.Error(), "database.url not set") {
		t.Errorf("expected a missing url error, got %v", err)
	}
}
