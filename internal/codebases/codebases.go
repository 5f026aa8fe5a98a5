// Package codebases wires the built-in plugins into the process-wide
// registries. Registration is an explicit startup step, not an import
// side effect, so callers control exactly when the init-before-use
// phase ends.
package codebases

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/tongda/mmdeploy/internal/codebase"
	"github.com/tongda/mmdeploy/internal/codebase/classification"
	"github.com/tongda/mmdeploy/internal/codebase/detection"
)

var once sync.Once

// Load registers every built-in codebase and its partition schemes.
// Idempotent; concurrent Resolve calls are safe once Load returns.
func Load(log zerolog.Logger) {
	once.Do(func() {
		codebase.MustRegister(detection.Name, detection.New(log))
		detection.RegisterPartitions()
		codebase.MustRegister(classification.Name, classification.New(log))
		classification.RegisterPartitions()
	})
}
