// Package memory provides mutex-guarded in-process implementations of
// user.Store and session.Store. They back tests, the demo server and the
// load generator; state is lost on restart.
package memory
