package main

import (
	"context"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const pgSuperRole = "postgres"

type pgACL struct {
	Role    string
	Granter string
	Perms   []Perm

	// Grantable lists the Perms carrying the grant option ("*").
	Grantable []Perm
}

// pgClass is a table, view or sequence with a non default ACL.
type pgClass struct {
	Name string
	Kind string
	ACL  []string
}

type pgSource struct {
	conn *pgx.Conn
}

func pgConnect(ctx context.Context, cfg Config) (Source, error) {
	defer timer("connect " + cfg.Server).done()

	config, err := pgx.ParseConfig(pgDSN(cfg))
	if err != nil {
		return nil, connectionError(err, "Connection settings for %#v", cfg.Server)
	}

	conn, err := pgx.ConnectConfig(ctx, config)
	if err != nil {
		return nil, connectionError(err, "Connect to %#v database %#v", cfg.Server, cfg.Database)
	}
	return &pgSource{conn: conn}, nil
}

func pgDSN(cfg Config) string {
	host := cfg.Server
	if cfg.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(cfg.Port))
	}

	query := url.Values{}
	switch strings.ToLower(cfg.Encrypt) {
	case "":
	case "disable", "false":
		query.Add("sslmode", "disable")
	case "true", "mandatory", "strict":
		query.Add("sslmode", "require")
	default:
		query.Add("sslmode", cfg.Encrypt)
	}

	u := &url.URL{
		Scheme:   "postgres",
		Host:     host,
		Path:     "/" + cfg.Database,
		RawQuery: query.Encode(),
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	return u.String()
}

func (s *pgSource) Rows(ctx context.Context) ([]PermissionRow, error) {
	defer timer("select permissions").done()

	// Only login roles are users; everything else is a group role.

	sql := `select r.rolname
from pg_catalog.pg_roles as r
where r.rolcanlogin
order by r.rolname;`

	rows, err := s.conn.Query(ctx, sql)
	if err != nil {
		return nil, queryError(err, "Select roles")
	}
	var users []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, queryError(err, "Scan role")
		}
		users = append(users, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, queryError(err, "Select roles")
	}

	var dbacl []string
	sql = `select d.datacl::text[]
from pg_catalog.pg_database as d
where d.datname = current_database();`

	if err := s.conn.QueryRow(ctx, sql).Scan(&dbacl); err != nil {
		return nil, queryError(err, "Select database ACL")
	}

	sql = `select
	c.relname,
	c.relkind::text,
	c.relacl::text[]
from pg_catalog.pg_class as c
left join pg_catalog.pg_namespace as n on
	n.oid = c.relnamespace
where
	c.relkind in ('r', 'v', 'm', 'p', 'S') and
	c.relacl is not null and
	n.nspname not in ('pg_catalog', 'information_schema') and
	n.nspname not like 'pg_toast%'
order by c.relname;`

	rows, err = s.conn.Query(ctx, sql)
	if err != nil {
		return nil, queryError(err, "Select table ACLs")
	}
	var classes []pgClass
	for rows.Next() {
		var c pgClass
		if err := rows.Scan(&c.Name, &c.Kind, &c.ACL); err != nil {
			rows.Close()
			return nil, queryError(err, "Scan table ACL")
		}
		classes = append(classes, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, queryError(err, "Select table ACLs")
	}

	out, err := pgBuildRows(users, dbacl, classes)
	if err != nil {
		return nil, queryError(err, "Parse ACLs")
	}
	return out, nil
}

func (s *pgSource) Close() error {
	return errors.WithStack(s.conn.Close(context.Background()))
}

// pgBuildRows flattens ACLs into permission rows, grouped by user in name
// order. Users without any privilege get a single row with no permission.
func pgBuildRows(users []string, dbacl []string, classes []pgClass) ([]PermissionRow, error) {
	perms := map[string][]PermissionRow{}
	seen := map[string]bool{}

	var names []string
	for _, name := range users {
		if strings.ToLower(name) == pgSuperRole {
			continue
		}
		if strings.HasPrefix(name, "pg_") {
			continue
		}
		if _, ok := perms[name]; ok {
			continue
		}
		perms[name] = nil
		names = append(names, name)
	}
	sort.Strings(names)

	add := func(acl pgACL, object *string) {
		if _, ok := perms[acl.Role]; !ok {
			return // PUBLIC, group roles and the special users
		}
		for _, p := range acl.Perms {
			state := StateGrant
			for _, g := range acl.Grantable {
				if g == p {
					state = StateGrantWithGrantOption
				}
			}
			key := acl.Role + "\x00" + p.Name + "\x00" + nullString(object)
			if seen[key] {
				continue
			}
			seen[key] = true
			perms[acl.Role] = append(perms[acl.Role], PermissionRow{
				UserName:   acl.Role,
				TypeDesc:   TypeSQLUser,
				Permission: strPtr(p.Name),
				State:      strPtr(state),
				Object:     object,
			})
		}
	}

	for _, rule := range dbacl {
		acl, err := pgParseACL(rule, DatabasePerms)
		if err != nil {
			return nil, errors.Wrapf(err, "Database ACL parse %#v", rule)
		}
		add(acl, nil)
	}

	for _, c := range classes {
		permlist := TablePerms
		if c.Kind == "S" {
			permlist = SequencePerms
		}
		for _, rule := range c.ACL {
			acl, err := pgParseACL(rule, permlist)
			if err != nil {
				return nil, errors.Wrapf(err, "pg_class entry %#v ACL parse %#v", c.Name, rule)
			}
			add(acl, strPtr(c.Name))
		}
	}

	var out []PermissionRow
	for _, name := range names {
		rows := perms[name]
		if len(rows) == 0 {
			rows = []PermissionRow{{UserName: name, TypeDesc: TypeSQLUser}}
		}
		out = append(out, rows...)
	}
	return out, nil
}

// pgParseACL parses one aclitem, e.g. "someone=arw*/granter".
func pgParseACL(input string, permlist ...[]Perm) (pgACL, error) {
	var r pgACL

	role, n, err := pgParseACLRoleString(input)
	if err != nil {
		return r, err
	}
	r.Role = role

	rest := input[n:]
	if !strings.HasPrefix(rest, "=") {
		return r, errors.New("Expected one equals sign")
	}
	rest = rest[1:]

	slash := strings.Index(rest, "/")
	if slash < 0 {
		return r, errors.New("Expected one forward slash")
	}
	privs := rest[:slash]

	granter, n, err := pgParseACLRoleString(rest[slash+1:])
	if err != nil {
		return r, err
	}
	if n != len(rest[slash+1:]) {
		return r, errors.Errorf("Unexpected characters after granter %#v", granter)
	}
	r.Granter = granter

chars:
	for _, ch := range privs {
		if ch == '*' {
			if len(r.Perms) == 0 {
				return r, errors.New("Grant option marker without privilege")
			}
			r.Grantable = append(r.Grantable, r.Perms[len(r.Perms)-1])
			continue
		}
		for _, p := range permlist {
			for _, pp := range p {
				if pp.Pg == string(ch) {
					r.Perms = append(r.Perms, pp)
					continue chars
				}
			}
		}
		return r, errors.Errorf("Unhandled privilege character %#v", string(ch))
	}
	return r, nil
}

// pgParseACLRoleString reads a possibly quoted role name from the start of
// input and returns it with the number of bytes consumed.
func pgParseACLRoleString(input string) (string, int, error) {
	if input == "" || input[0] != '"' {
		end := strings.IndexAny(input, "=/ ")
		if end < 0 {
			end = len(input)
		}
		return input[:end], end, nil
	}

	var b strings.Builder
	for i := 1; i < len(input); i++ {
		ch := input[i]
		switch {
		case ch == '\\' && i+1 < len(input):
			i++
			b.WriteByte(input[i])
		case ch == '"' && i+1 < len(input) && input[i+1] == '"':
			i++
			b.WriteByte('"')
		case ch == '"':
			return b.String(), i + 1, nil
		default:
			b.WriteByte(ch)
		}
	}
	return b.String(), len(input), errors.Errorf("Could not find closing quote in %#v", input)
}
