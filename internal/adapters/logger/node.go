package logger

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/concord/internal/adapters/detector"
	"go.trai.ch/concord/internal/core/ports"
)

// NodeID is the unique identifier for the logger Graft node.
const NodeID graft.ID = "adapter.logger"

// FormatEnv overrides the detected log format: auto, pretty, text or json.
const FormatEnv = "CONCORD_LOG_FORMAT"

func init() {
	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Logger, error) {
			lg := New().(*Logger)
			lg.SetJSON(detector.NewNode().Detect(os.Getenv(FormatEnv)) == detector.FormatJSON)
			return lg, nil
		},
	})
}
