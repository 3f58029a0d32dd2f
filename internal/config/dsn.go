package config

import (
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// DSNValue returns the explicit DSN or builds a go-sql-driver/mysql one from
// the normalized fields.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if c.DSN != "" {
		return c.DSN
	}
	c = normalizeDatabaseConfig(c)

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.User = c.User
	mc.Passwd = c.Password
	mc.DBName = c.Name
	mc.ParseTime = c.ParseTime
	if loc, err := time.LoadLocation(c.Loc); err == nil {
		mc.Loc = loc
	}
	mc.Params = map[string]string{"charset": c.Charset}
	for k, v := range c.Params {
		mc.Params[k] = v
	}
	return mc.FormatDSN()
}

// URLValue returns the explicit URL or builds redis[s]://[user:pass@]host:port/db.
func (c RedisRuntimeConfig) URLValue() string {
	if u := redisURLWithScheme(c.URL); u != "" {
		return u
	}
	c = normalizeRedisConfig(c)
	db := c.DB
	if db < 0 {
		db = defaultRedisDB
	}

	u := &url.URL{
		Scheme: c.Scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + strconv.Itoa(db),
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = url.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = url.User(c.Username)
	case c.Password != "":
		u.User = url.UserPassword("", c.Password)
	}
	return u.String()
}
