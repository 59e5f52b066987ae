// Package query implements the GameSpy4 query protocol served by Java edition
// servers with enable-query set.
//
// A Responder listens on a UDP port of its own. The server describes its
// current state through a Provider; the query package handles challenge
// tokens and the basic and full stat layouts.
package query
