package main

import (
	"strings"
)

// scriptLines renders rows as a replay script. Every element is one line
// with its trailing newline.
//
// Rows for one user must be contiguous: a new user block starts whenever the
// user name differs from the previous row's, so out of order input yields
// repeated CREATE USER blocks.
func scriptLines(rows []PermissionRow) []string {
	var (
		lines   []string
		current string
		started bool
	)

	for _, row := range rows {
		if !started || row.UserName != current {
			if started {
				lines = append(lines, "\n")
			}
			lines = append(lines, "-- User: "+row.UserName+"\n")
			lines = append(lines, "CREATE USER "+msQuoteIdent(row.UserName)+";\n")
			current = row.UserName
			started = true
		}

		if row.Permission != nil {
			lines = append(lines, permissionStatement(row)+"\n")
		}
	}

	return lines
}

func permissionStatement(row PermissionRow) string {
	verb, prep, suffix := "GRANT", "TO", ""
	switch stateCanonical(row.State) {
	case StateDeny:
		verb = "DENY"
	case StateRevoke:
		verb, prep = "REVOKE", "FROM"
	case StateGrantWithGrantOption:
		suffix = " WITH GRANT OPTION"
	}

	sql := verb + " " + *row.Permission + " " + prep + " " + msQuoteIdent(row.UserName)
	if row.Object != nil {
		sql += " ON " + msQuoteIdent(*row.Object)
	}
	return sql + suffix + ";"
}

func msQuoteIdent(str string) string {
	return "[" + strings.Replace(str, "]", "]]", -1) + "]"
}
