// Package client talks to the simtool result cache over HTTP.
//
// Every call goes through a bounded fixed-delay retry loop: transport failures,
// timeouts, 5xx responses and checksum mismatches are retried, while 4xx
// responses fail immediately and map onto ErrNotFound, ErrAccessDenied or
// ErrInvalidRequest. Errors carry operation/endpoint metadata via zerr and stay
// comparable with errors.Is.
package client
