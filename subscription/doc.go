// Package subscription tracks the topics the client wants to hear about.
//
// Each topic has exactly one handler; subscribing again replaces it in place.
// The connection manager replays Topics() after every successful reconnect,
// so the registry outlives any single connection.
package subscription
