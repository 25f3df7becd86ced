// Package protocol defines the console wire format: a JSON text frame
// {"type": <event name>, "data": <payload>} in both directions, with one payload
// type per event.
package protocol
