package lua

import (
	"github.com/dokzlo13/sensehatd/internal/lua/modules"
)

// RuntimeDeps groups all dependencies needed by Lua runtime.
type RuntimeDeps struct {
	Panel   modules.PanelAPI
	Sensors modules.SensorReader // nil when sensors are disabled

	// BaseDir resolves relative script paths, usually the config directory.
	BaseDir string

	// ScriptName tags log entries written by the script.
	ScriptName string

	// QueueSize bounds pending work, DefaultQueueSize when zero.
	QueueSize int
}
