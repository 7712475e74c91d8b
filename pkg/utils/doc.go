// Package utils provides filesystem and environment helpers shared by the
// converter, the emitters and the HTTP server.
//
// Path helpers never overwrite an existing file: names are claimed with
// O_CREATE|O_EXCL and disambiguated with a numeric suffix, so concurrent or
// repeated runs targeting the same directory cannot clobber each other.
package utils
