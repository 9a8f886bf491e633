// Package bridge connects the in-process reactive runtime to remote
// peers over WebSocket. The server fans published events out to every
// connected subscriber and feeds inbound frames into a local signal;
// the client is the mirror image for processes on the other side.
package bridge
