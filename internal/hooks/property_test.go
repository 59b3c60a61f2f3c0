package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Hooks run exactly when their condition matches the published event.
func TestProperty_HookExecutionFollowsCondition(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("confidence threshold hooks fire only below the bar", prop.ForAll(
		func(confidence float64, event string) bool {
			dir, err := os.MkdirTemp("", "hooks-prop-*")
			if err != nil {
				return false
			}
			defer os.RemoveAll(dir)

			hook := fmt.Sprintf("name: Low\nevent: %s\ncondition: Confidence < 0.5\naction: count\nenabled: true\n", event)
			if err := os.WriteFile(filepath.Join(dir, "low.yaml"), []byte(hook), 0o644); err != nil {
				return false
			}

			bus := NewEventBus()
			defer bus.Shutdown()
			manager, _ := NewHookManager(dir, bus)

			var triggered atomic.Bool
			manager.RegisterAction("count", func(*Hook, *EventContext) error {
				triggered.Store(true)
				return nil
			})
			if err := manager.LoadHooks(); err != nil {
				return false
			}
			manager.SubscribeToAllEvents()
			defer manager.Stop()

			bus.Publish(&EventContext{Event: HookEvent(event), Confidence: confidence})
			time.Sleep(20 * time.Millisecond)

			return triggered.Load() == (confidence < 0.5)
		},
		gen.Float64Range(0, 1),
		gen.OneConstOf("routing_decision", "clarification_needed", "capability_unavailable"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
