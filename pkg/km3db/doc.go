// Package km3db is a client for the KM3NeT Oracle web database.
//
// A Client performs authenticated GET requests against the database. The
// session credential ("sid" cookie) is resolved lazily by a Resolver, which
// consults, in order: the allow-listed host table, the on-disk cookie file,
// the optional OS keyring, the KM3NET_DB_COOKIE environment variable and
// finally a username/password login. Request failures never surface as
// errors from Client.Get: they are logged, retried where sensible and
// degrade to a caller-supplied default.
//
// StreamDS builds on Client to discover the database's tabular "streams" and
// query them with selectors.
//
// Neither Client nor Resolver is safe for concurrent use.
package km3db
