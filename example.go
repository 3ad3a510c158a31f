package main

import (
	"fmt"
	"io"
)

func example(w io.Writer) {
	fmt.Fprint(w, `# dbusers configuration. Every value may also come from the environment
# (DBUSERS_SERVER, DBUSERS_PASSWORD, ...), a .env file, or a flag.

driver: sqlserver # or postgres
server: sql01.example.com # host\instance addresses a named instance
port: 1433 # optional
database: sales
user: exporter
# Leave the password out to be prompted for it.
password: supersecret
encrypt: "true" # disable, false, true, strict
output: export_users.sql
`)
}
