// Package repository implements persistence on MySQL.  Lookups of absent
// rows return sql.ErrNoRows unchanged so that callers can tell "missing"
// from a failing database; the reservation sentinels are returned where the
// store contract names them.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicateKey reports whether err is a unique key violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
