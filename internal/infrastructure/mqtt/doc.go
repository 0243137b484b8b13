// Package mqtt provides the telemetry link between the supervisor and an
// MQTT broker.
//
// The supervisor publishes its own online/offline status (with a Last
// Will for crash detection), the supervised driver's state as retained
// messages, and individual lifecycle events. It also subscribes to a
// command topic so the driver can be restarted remotely.
//
// The client wraps paho.mqtt.golang with automatic reconnection,
// re-subscription on reconnect, and panic recovery around message
// handlers. All methods are safe for concurrent use.
package mqtt
