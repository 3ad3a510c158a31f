package main

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/pkg/errors"
)

// Object names are only joined for object class permissions; major_id means
// something else for database and schema scoped ones.
const msPermissionsSQL = `select
	dp.name as user_name,
	dp.type_desc,
	dp.create_date,
	dp.modify_date,
	p.permission_name,
	p.state_desc,
	o.name as object_name
from sys.database_principals as dp
left join sys.database_permissions as p on
	dp.principal_id = p.grantee_principal_id
left join sys.objects as o on
	p.class = 1 and
	p.major_id = o.object_id
where
	dp.type in ('S', 'U', 'G') and
	dp.name not in ('dbo', 'guest', 'sys', 'INFORMATION_SCHEMA')
order by dp.name;`

type msSource struct {
	db *sql.DB
}

func msConnect(ctx context.Context, cfg Config) (Source, error) {
	defer timer("connect " + cfg.Server).done()

	connector, err := mssql.NewConnector(msDSN(cfg))
	if err != nil {
		return nil, connectionError(err, "Connection settings for %#v", cfg.Server)
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, connectionError(err, "Connect to %#v database %#v", cfg.Server, cfg.Database)
	}
	return &msSource{db: db}, nil
}

// msDSN builds a sqlserver:// URL. A server of the form host\instance
// addresses a named instance.
func msDSN(cfg Config) string {
	host, instance := cfg.Server, ""
	if i := strings.Index(host, `\`); i >= 0 {
		host, instance = host[:i], host[i+1:]
	}
	if cfg.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	}

	query := url.Values{}
	query.Add("database", cfg.Database)
	if cfg.Encrypt != "" {
		query.Add("encrypt", cfg.Encrypt)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     host,
		Path:     instance,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (s *msSource) Rows(ctx context.Context) ([]PermissionRow, error) {
	defer timer("select permissions").done()

	rows, err := s.db.QueryContext(ctx, msPermissionsSQL)
	if err != nil {
		return nil, queryError(err, "Select database permissions")
	}
	defer rows.Close()

	return msScanRows(rows)
}

func msScanRows(rows rowScanner) ([]PermissionRow, error) {
	var out []PermissionRow
	for rows.Next() {
		var r PermissionRow
		err := rows.Scan(
			&r.UserName, &r.TypeDesc, &r.CreateDate, &r.ModifyDate,
			&r.Permission, &r.State, &r.Object,
		)
		if err != nil {
			return nil, queryError(err, "Scan permission row %d", len(out))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(err, "Read permission rows")
	}
	return out, nil
}

func (s *msSource) Close() error {
	return errors.WithStack(s.db.Close())
}
