package mqtt

import "fmt"

// Topic prefixes for supervisor telemetry.
//
// The hierarchy is: gnsslaunch/{category}/...
const (
	// TopicPrefix is the base for all supervisor topics.
	TopicPrefix = "gnsslaunch"

	// TopicPrefixSystem is the base for supervisor-level topics.
	TopicPrefixSystem = "gnsslaunch/system"

	// TopicPrefixProcess is the base for per-process topics.
	TopicPrefixProcess = "gnsslaunch/process"
)

// Topics provides builders for supervisor MQTT topics. Using these
// helpers keeps topic naming consistent across publishers and
// subscribers.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.ProcessState("septentrio-gnss")
//	// Returns: "gnsslaunch/process/septentrio-gnss/state"
type Topics struct{}

// SystemStatus returns the supervisor online/offline status topic.
// Published retained, and used as the Last Will topic.
//
// Example: gnsslaunch/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// SystemCommand returns the topic for commands to the supervisor.
//
// Example: gnsslaunch/system/command/restart
func (Topics) SystemCommand(action string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefixSystem, action)
}

// AllSystemCommands returns a pattern matching every supervisor command.
//
// Pattern: gnsslaunch/system/command/+
func (Topics) AllSystemCommands() string {
	return fmt.Sprintf("%s/command/+", TopicPrefixSystem)
}

// ProcessState returns the retained state topic for a supervised process.
//
// Example: gnsslaunch/process/septentrio-gnss/state
func (Topics) ProcessState(name string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixProcess, name)
}

// ProcessEvent returns the lifecycle event topic for a supervised
// process. Events are not retained.
//
// Example: gnsslaunch/process/septentrio-gnss/event
func (Topics) ProcessEvent(name string) string {
	return fmt.Sprintf("%s/%s/event", TopicPrefixProcess, name)
}
