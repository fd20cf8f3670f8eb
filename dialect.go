package gpameta

// Dialect constants
const (
	DialectSQLite = "sqlite"
	DialectMySQL  = "mysql"
	DialectPgSQL  = "pgsql"
	DialectMsSQL  = "mssql"
	DialectMongo  = "mongodb"
)

// SupportedDialects is a list of all supported database dialects
var SupportedDialects = []string{
	DialectSQLite,
	DialectMySQL,
	DialectPgSQL,
	DialectMsSQL,
	DialectMongo,
}

var dialectAliases = map[string]string{
	"sqlite3":    DialectSQLite,
	"postgres":   DialectPgSQL,
	"postgresql": DialectPgSQL,
	"pq":         DialectPgSQL,
	"sqlserver":  DialectMsSQL,
	"mongo":      DialectMongo,
}

// IsDialectSupported checks if the given dialect is supported
func IsDialectSupported(dialect string) bool {
	dialect = NormalizeDialect(dialect)
	for _, d := range SupportedDialects {
		if d == dialect {
			return true
		}
	}
	return false
}

// NormalizeDialect maps driver names such as "postgres" or "sqlite3" to a dialect constant
func NormalizeDialect(driver string) string {
	if d, ok := dialectAliases[driver]; ok {
		return d
	}
	return driver
}
