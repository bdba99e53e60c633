// Package transport groups the live.Dialer implementations. Subpackages
// wsconn (plain WebSocket) and sioconn (socket.io) open sessions that
// deliver one serialised task event per message.
package transport
