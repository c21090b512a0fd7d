// Package storetest holds behaviour suites shared by every user.Store and
// session.Store implementation. Each backend's tests call RunUserStore and
// RunSessionStore with a factory for a fresh, empty store.
package storetest
