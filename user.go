package main

import (
	"fmt"
	"time"
)

// Principal kinds exported, as reported by sys.database_principals.type_desc.
const (
	TypeSQLUser      = "SQL_USER"
	TypeWindowsUser  = "WINDOWS_USER"
	TypeWindowsGroup = "WINDOWS_GROUP"
)

// PermissionRow is one (user, permission, object) combination read from the
// source database. Permission, State and Object are nil when the catalog
// returned NULL.
type PermissionRow struct {
	UserName   string
	TypeDesc   string
	CreateDate time.Time
	ModifyDate time.Time
	Permission *string
	State      *string
	Object     *string
}

func (r PermissionRow) String() string {
	return fmt.Sprintf("user %#v type %#v permission %s state %s object %s",
		r.UserName, r.TypeDesc, nullString(r.Permission), nullString(r.State), nullString(r.Object))
}

func nullString(s *string) string {
	if s == nil {
		return "null"
	}
	return fmt.Sprintf("%#v", *s)
}

func strPtr(s string) *string {
	return &s
}
