package store

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/docmap/internal/orm/enums"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// Dialect renders the SQL that differs between databases
type Dialect interface {
	// Name identifies the dialect in errors and logs
	Name() string
	// Placeholder returns the bind parameter marker for the n-th argument, starting at 1
	Placeholder(n int) string
	// JSONColumnType is the column type holding JSON documents
	JSONColumnType() string
	// KeyColumnType is the column type of a primary key of the given scalar type
	KeyColumnType(t schema.ScalarType) (string, error)
	// JSONScalar projects the member at path out of a JSON column and casts it to the SQL type of p
	JSONScalar(column string, path []string, p *schema.PropertyNode) (string, error)
	// CreateExtension returns the statement enabling a database extension, or false if the
	// dialect has no extensions
	CreateExtension(name string) (string, bool)
}

// Postgres returns the PostgreSQL dialect, used with the pgx and lib/pq drivers
func Postgres() Dialect {
	return postgresDialect{}
}

// SQLite returns the SQLite dialect, used with go-sqlite3
func SQLite() Dialect {
	return sqliteDialect{}
}

// DialectFor returns the dialect for a database/sql driver name
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return Postgres(), nil
	case "sqlite3":
		return SQLite(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// QuoteIdentifier quotes an identifier for use in SQL statements
func QuoteIdentifier(identifier string) string {
	escaped := strings.ReplaceAll(identifier, `"`, `""`)
	return fmt.Sprintf(`"%s"`, escaped)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) JSONColumnType() string { return "JSONB" }

func (postgresDialect) KeyColumnType(t schema.ScalarType) (string, error) {
	switch t {
	case schema.TypeInt:
		return "INTEGER", nil
	case schema.TypeLong:
		return "BIGINT", nil
	case schema.TypeString:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("key type %s is not supported", t)
	}
}

func (d postgresDialect) JSONScalar(column string, path []string, p *schema.PropertyNode) (string, error) {
	if len(path) == 0 {
		return "", fmt.Errorf("empty JSON path")
	}
	sqlType, err := d.scalarType(p)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(QuoteIdentifier(column))
	for i, member := range path {
		if i == len(path)-1 {
			b.WriteString(" ->> ")
		} else {
			b.WriteString(" -> ")
		}
		b.WriteString(quoteLiteral(member))
	}
	return fmt.Sprintf("CAST((%s) AS %s)", b.String(), sqlType), nil
}

func (postgresDialect) scalarType(p *schema.PropertyNode) (string, error) {
	switch p.Scalar {
	case schema.TypeInt:
		return "INTEGER", nil
	case schema.TypeLong:
		return "BIGINT", nil
	case schema.TypeByte:
		return "SMALLINT", nil
	case schema.TypeString, schema.TypeBytes:
		return "TEXT", nil
	case schema.TypeDouble:
		return "DOUBLE PRECISION", nil
	case schema.TypeBool:
		return "BOOLEAN", nil
	case schema.TypeTimestamp:
		return "TIMESTAMP", nil
	case schema.TypeEnum:
		if p.EnumFormat == schema.EnumString {
			return "TEXT", nil
		}
		return postgresEnumType(p.Enum), nil
	default:
		return "", fmt.Errorf("cannot project %s values", p.Scalar)
	}
}

// postgresEnumType returns the narrowest integer type holding every value of the enum's width
func postgresEnumType(t *enums.Type) string {
	switch t.Width {
	case enums.Int8, enums.Uint8, enums.Int16:
		return "SMALLINT"
	case enums.Uint16, enums.Int32:
		return "INTEGER"
	case enums.Uint32, enums.Int64:
		return "BIGINT"
	default:
		return "NUMERIC(20,0)"
	}
}

func (postgresDialect) CreateExtension(name string) (string, bool) {
	return fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s", QuoteIdentifier(name)), true
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) JSONColumnType() string { return "TEXT" }

func (sqliteDialect) KeyColumnType(t schema.ScalarType) (string, error) {
	switch t {
	case schema.TypeInt, schema.TypeLong:
		return "INTEGER", nil
	case schema.TypeString:
		return "TEXT", nil
	default:
		return "", fmt.Errorf("key type %s is not supported", t)
	}
}

func (sqliteDialect) JSONScalar(column string, path []string, p *schema.PropertyNode) (string, error) {
	if len(path) == 0 {
		return "", fmt.Errorf("empty JSON path")
	}

	var sqlType string
	switch p.Scalar {
	case schema.TypeInt, schema.TypeLong, schema.TypeByte, schema.TypeBool:
		sqlType = "INTEGER"
	case schema.TypeDouble:
		sqlType = "REAL"
	case schema.TypeString, schema.TypeBytes, schema.TypeTimestamp:
		sqlType = "TEXT"
	case schema.TypeEnum:
		sqlType = "INTEGER"
		if p.EnumFormat == schema.EnumString {
			sqlType = "TEXT"
		}
	default:
		return "", fmt.Errorf("cannot project %s values", p.Scalar)
	}

	var jsonPath strings.Builder
	jsonPath.WriteString("$")
	for _, member := range path {
		jsonPath.WriteString(`."`)
		jsonPath.WriteString(strings.ReplaceAll(member, `"`, `\"`))
		jsonPath.WriteString(`"`)
	}
	return fmt.Sprintf("CAST(json_extract(%s, %s) AS %s)", QuoteIdentifier(column), quoteLiteral(jsonPath.String()), sqlType), nil
}

func (sqliteDialect) CreateExtension(string) (string, bool) {
	return "", false
}
