package archive

import "fmt"

// Open выбирает хранилище по имени драйвера; пустое имя: sqlite3.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite3", "sqlite", "":
		return NewSQLite(dsn)
	case "mysql":
		return NewMySQL(dsn)
	default:
		return nil, fmt.Errorf("unsupported archive driver: %s", driver)
	}
}
