package store

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmap/internal/orm/enums"
	"github.com/conduit-lang/docmap/internal/orm/mapping"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

func TestDialectFor(t *testing.T) {
	for driver, want := range map[string]string{"pgx": "postgres", "postgres": "postgres", "sqlite3": "sqlite"} {
		d, err := DialectFor(driver)
		require.NoError(t, err)
		assert.Equal(t, want, d.Name())
	}

	_, err := DialectFor("mysql")
	assert.Error(t, err)
}

func TestDialect_Placeholders(t *testing.T) {
	assert.Equal(t, "$3", Postgres().Placeholder(3))
	assert.Equal(t, "?", SQLite().Placeholder(3))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"owners"`, QuoteIdentifier("owners"))
	assert.Equal(t, `"we""ird"`, QuoteIdentifier(`we"ird`))
}

func TestDialect_JSONScalar(t *testing.T) {
	ulong := enums.MustType("Big", enums.Uint64, enums.Member{Name: "Zero", Ordinal: enums.Unsigned(enums.Uint64, 0)})
	byteEnum := enums.MustType("Small", enums.Uint8, enums.Member{Name: "Zero", Ordinal: enums.Unsigned(enums.Uint8, 0)})

	tests := []struct {
		name     string
		path     []string
		node     *schema.PropertyNode
		postgres string
		sqlite   string
	}{
		{
			name:     "int enum",
			path:     []string{"IntEnum"},
			node:     &schema.PropertyNode{Kind: schema.KindScalar, Scalar: schema.TypeEnum, Enum: intEnum, EnumFormat: schema.EnumNumeric},
			postgres: `CAST(("doc" ->> 'IntEnum') AS INTEGER)`,
			sqlite:   `CAST(json_extract("doc", '$."IntEnum"') AS INTEGER)`,
		},
		{
			name:     "ulong enum",
			path:     []string{"Big"},
			node:     &schema.PropertyNode{Kind: schema.KindScalar, Scalar: schema.TypeEnum, Enum: ulong, EnumFormat: schema.EnumNumeric},
			postgres: `CAST(("doc" ->> 'Big') AS NUMERIC(20,0))`,
			sqlite:   `CAST(json_extract("doc", '$."Big"') AS INTEGER)`,
		},
		{
			name:     "byte enum",
			path:     []string{"Small"},
			node:     &schema.PropertyNode{Kind: schema.KindScalar, Scalar: schema.TypeEnum, Enum: byteEnum, EnumFormat: schema.EnumNumeric},
			postgres: `CAST(("doc" ->> 'Small') AS SMALLINT)`,
			sqlite:   `CAST(json_extract("doc", '$."Small"') AS INTEGER)`,
		},
		{
			name:     "string enum",
			path:     []string{"Named"},
			node:     &schema.PropertyNode{Kind: schema.KindScalar, Scalar: schema.TypeEnum, Enum: intEnum, EnumFormat: schema.EnumString},
			postgres: `CAST(("doc" ->> 'Named') AS TEXT)`,
			sqlite:   `CAST(json_extract("doc", '$."Named"') AS TEXT)`,
		},
		{
			name:     "nested double",
			path:     []string{"Inner", "it's"},
			node:     &schema.PropertyNode{Kind: schema.KindScalar, Scalar: schema.TypeDouble},
			postgres: `CAST(("doc" -> 'Inner' ->> 'it''s') AS DOUBLE PRECISION)`,
			sqlite:   `CAST(json_extract("doc", '$."Inner"."it''s"') AS REAL)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Postgres().JSONScalar("doc", tt.path, tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.postgres, got)

			got, err = SQLite().JSONScalar("doc", tt.path, tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.sqlite, got)
		})
	}

	_, err := Postgres().JSONScalar("doc", nil, &schema.PropertyNode{Scalar: schema.TypeInt})
	assert.Error(t, err)
}

func TestStore_CreateSchemaSQL(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	model := testModel(t, mapping.ExtensionPlugin{Extension: "postgis"})

	statements, err := New(db, Postgres(), model, nil).CreateSchemaSQL()
	require.NoError(t, err)
	require.Len(t, statements, 2)
	assert.Equal(t, `CREATE EXTENSION IF NOT EXISTS "postgis";`, statements[0])
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"owners\" (\n"+
		"  \"id\" BIGINT PRIMARY KEY,\n"+
		"  \"document\" JSONB NOT NULL,\n"+
		"  \"items\" JSONB\n"+
		");", statements[1])

	statements, err = New(db, SQLite(), model, nil).CreateSchemaSQL()
	require.NoError(t, err)
	require.Len(t, statements, 1)
	assert.Contains(t, statements[0], `"id" INTEGER PRIMARY KEY`)
	assert.Contains(t, statements[0], `"document" TEXT NOT NULL`)
}
