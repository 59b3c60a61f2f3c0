package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// HookManager loads hook rules from a directory and runs their actions when
// matching routing events are published.
type HookManager struct {
	hooksDir       string
	hooks          map[HookEvent][]*Hook
	eventBus       *EventBus
	programs       map[string]*vm.Program
	actionHandlers map[HookAction]ActionHandler
	subscriptions  []*Subscription
	mu             sync.RWMutex

	watcher     *fsnotify.Watcher
	stopWatcher chan struct{}
	stopOnce    sync.Once
}

// NewHookManager creates a new hook manager.
func NewHookManager(hooksDir string, eventBus *EventBus) (*HookManager, error) {
	if eventBus == nil {
		return nil, fmt.Errorf("hook manager requires an event bus")
	}
	if hooksDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			wd, _ := os.Getwd()
			hooksDir = filepath.Join(wd, ".bhasharouter", "hooks")
		} else {
			hooksDir = filepath.Join(home, ".bhasharouter", "hooks")
		}
	}

	manager := &HookManager{
		hooksDir:       hooksDir,
		hooks:          make(map[HookEvent][]*Hook),
		eventBus:       eventBus,
		programs:       make(map[string]*vm.Program),
		actionHandlers: make(map[HookAction]ActionHandler),
		stopWatcher:    make(chan struct{}),
	}

	RegisterBuiltInActions(manager)

	return manager, nil
}

// LoadHooks loads all hooks from the hooks directory, replacing the
// previously loaded set.
func (m *HookManager) LoadHooks() error {
	if err := os.MkdirAll(m.hooksDir, 0o755); err != nil {
		return fmt.Errorf("failed to create hooks directory: %w", err)
	}

	newHooks := make(map[HookEvent][]*Hook)
	count := 0
	err := filepath.Walk(m.hooksDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !(strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
			return nil
		}

		hook, err := readHook(path)
		if err != nil {
			log.Errorf("Failed to load hook %s: %v", path, err)
			return nil
		}
		if hook.Enabled {
			newHooks[hook.Event] = append(newHooks[hook.Event], hook)
			count++
			log.Debugf("Loaded hook: %s for event %s", hook.Name, hook.Event)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.hooks = newHooks
	m.programs = make(map[string]*vm.Program)
	m.mu.Unlock()

	log.Infof("Loaded %d hooks for %d event types", count, len(newHooks))
	return nil
}

func readHook(path string) (*Hook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var hook Hook
	if err := yaml.Unmarshal(data, &hook); err != nil {
		return nil, fmt.Errorf("failed to parse hook: %w", err)
	}
	if hook.ID == "" {
		hook.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if !knownEvent(hook.Event) {
		return nil, fmt.Errorf("unknown event %q", hook.Event)
	}
	if hook.Condition != "" {
		if _, err := expr.Compile(hook.Condition, expr.Env(conditionEnv(&EventContext{})), expr.AsBool()); err != nil {
			return nil, fmt.Errorf("invalid condition: %w", err)
		}
	}
	hook.FilePath = path
	return &hook, nil
}

func knownEvent(e HookEvent) bool {
	for _, known := range AllEvents() {
		if known == e {
			return true
		}
	}
	return false
}

// SubscribeToAllEvents subscribes the manager to every routing event.
// Hooks loaded later are picked up without resubscribing.
func (m *HookManager) SubscribeToAllEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.subscriptions) > 0 {
		return
	}
	for _, evt := range AllEvents() {
		m.subscriptions = append(m.subscriptions, m.eventBus.Subscribe(evt, m.handleEvent))
	}
}

func (m *HookManager) handleEvent(ctx *EventContext) {
	m.mu.RLock()
	hooks := m.hooks[ctx.Event]
	m.mu.RUnlock()

	for _, hook := range hooks {
		matches, err := m.evaluateCondition(hook.Condition, ctx)
		if err != nil {
			log.Warnf("Failed to evaluate hook condition '%s': %v", hook.Condition, err)
			continue
		}

		if matches {
			log.Debugf("Executing hook: %s (Action: %s)", hook.Name, hook.Action)
			go m.executeAction(hook, ctx)
		}
	}
}

// conditionEnv exposes an event to hook conditions, for example
// `Handler == "vividh_bharti" && Confidence < 0.6`.
func conditionEnv(ctx *EventContext) map[string]interface{} {
	env := map[string]interface{}{
		"Event":      string(ctx.Event),
		"Timestamp":  ctx.Timestamp,
		"RequestID":  ctx.RequestID,
		"Handler":    ctx.Handler,
		"Method":     ctx.Method,
		"Language":   ctx.Language,
		"Confidence": ctx.Confidence,
		"Data":       ctx.Data,
		"Error":      ctx.ErrorMessage,
	}
	if env["Data"] == nil {
		env["Data"] = map[string]interface{}{}
	}
	if ctx.Error != nil && ctx.ErrorMessage == "" {
		env["Error"] = ctx.Error.Error()
	}
	return env
}

func (m *HookManager) evaluateCondition(condition string, ctx *EventContext) (bool, error) {
	if condition == "" || condition == "true" {
		return true, nil
	}

	m.mu.Lock()
	program, exists := m.programs[condition]
	if !exists {
		var err error
		program, err = expr.Compile(condition, expr.Env(conditionEnv(&EventContext{})), expr.AsBool())
		if err != nil {
			m.mu.Unlock()
			return false, err
		}
		m.programs[condition] = program
	}
	m.mu.Unlock()

	output, err := expr.Run(program, conditionEnv(ctx))
	if err != nil {
		return false, err
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return boolean")
	}

	return result, nil
}

func (m *HookManager) executeAction(hook *Hook, ctx *EventContext) {
	m.mu.RLock()
	handler, exists := m.actionHandlers[hook.Action]
	m.mu.RUnlock()

	if !exists {
		log.Warnf("No handler registered for action: %s", hook.Action)
		return
	}

	if err := handler(hook, ctx); err != nil {
		log.Errorf("Action %s failed for hook %s: %v", hook.Action, hook.Name, err)
	}
}

// RegisterAction registers a handler for a specific action type.
func (m *HookManager) RegisterAction(action HookAction, handler ActionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionHandlers[action] = handler
}

// StartWatcher starts a background fsnotify watcher for hot-reloading hooks.
func (m *HookManager) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(m.hooksDir); err != nil {
		watcher.Close()
		return err
	}
	m.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Infof("Hooks directory changed (%s), reloading...", event.Name)
					time.Sleep(100 * time.Millisecond)
					if err := m.LoadHooks(); err != nil {
						log.Errorf("Failed to reload hooks: %v", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("Hooks watcher error: %v", err)
			case <-m.stopWatcher:
				return
			}
		}
	}()

	return nil
}

// Stop stops the file watcher and unsubscribes from the event bus.
func (m *HookManager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopWatcher)
		if m.watcher != nil {
			m.watcher.Close()
		}
		m.mu.Lock()
		for _, sub := range m.subscriptions {
			sub.Unsubscribe()
		}
		m.subscriptions = nil
		m.mu.Unlock()
	})
}

// GetHooksDir returns the hooks directory path.
func (m *HookManager) GetHooksDir() string {
	return m.hooksDir
}

// GetHooks returns all loaded hooks flattened.
func (m *HookManager) GetHooks() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Hook, 0)
	for _, evt := range AllEvents() {
		result = append(result, m.hooks[evt]...)
	}
	return result
}

// GetHook returns a hook by ID.
func (m *HookManager) GetHook(id string) *Hook {
	for _, h := range m.GetHooks() {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// EvaluateCondition exposes condition evaluation for testing.
func (m *HookManager) EvaluateCondition(h *Hook, ctx *EventContext) (bool, error) {
	return m.evaluateCondition(h.Condition, ctx)
}
