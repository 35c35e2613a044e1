package cmd

import "time"

const (
	DEF_HTTP_TIMEOUT  = 5 * time.Minute
	DEF_LOGIN_TIMEOUT = time.Minute
)

const DESCRIPTION = `
km3db is a command line client for the KM3NeT Oracle web database.
It takes care of the session cookie: machines at Lyon, on the KM3NeT
Jupyter hub and the GitLab runners are recognised automatically,
everyone else logs in once and the cookie is kept in ~/.km3netdb_cookie.
`

const (
	CookieDescription = `The cookie command logs in to the database and stores
the session cookie, replacing any previous one. The username
and password are taken from KM3NET_DB_USERNAME and
KM3NET_DB_PASSWORD or asked for interactively.

A cookie is bound to the address it was requested from.
Use -B or -C on networks where that address changes within
a class B (12.23.X.Y) or class C (12.23.45.Y) network.

With --from-browser the session cookie of a browser that is
already logged in is imported instead (Firefox or Chrome
cookie database, or a Netscape cookies.txt).

Example:
        km3db cookie
        km3db cookie -B -o ~/.km3netdb_cookie
        km3db cookie --from-browser ~/.mozilla/firefox/abc.default/cookies.sqlite

`
	StreamsDescription = `The streams command lists the streams the database offers,
or describes one stream with its formats and selectors.

Example:
        km3db streams
        km3db streams runs

`
	GetDescription = `The get command queries a stream and prints the result.
Selectors are given as key=value pairs; mandatory selectors
of the stream must be present.

Example:
        km3db get detectors
        km3db get runs detid=D_ARCA001 minrun=100
        km3db get -f json runs detid=D_ARCA001

`
	LogoutDescription = `The logout command deletes the stored session cookie
from the cookie file and the keyring.

Example:
        km3db logout

`
)
