package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/hooks"
	"github.com/traylinx/bhasharouter/internal/util"
	"gopkg.in/yaml.v3"
)

// HooksCommand represents available hooks subcommands
type HooksCommand string

const (
	HooksList    HooksCommand = "list"
	HooksEnable  HooksCommand = "enable"
	HooksDisable HooksCommand = "disable"
	HooksTest    HooksCommand = "test"
	HooksReload  HooksCommand = "reload"
)

// HooksOptions holds the command-line options for hooks commands
type HooksOptions struct {
	Command    HooksCommand
	ConfigPath string
	HookID     string
	Event      string
	Handler    string
	Method     string
	Language   string
	Confidence float64
	Data       string // JSON data for test
	Format     string
}

// ParseHooksCommand parses command arguments
func ParseHooksCommand(args []string) (*HooksOptions, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing subcommand")
	}

	opts := &HooksOptions{Command: HooksCommand(args[0])}
	flagSet := flag.NewFlagSet("hooks", flag.ContinueOnError)

	flagSet.StringVar(&opts.ConfigPath, "config", "config.yaml", "Configure File Path")
	flagSet.StringVar(&opts.HookID, "id", "", "Target hook ID")
	flagSet.StringVar(&opts.Event, "event", "", "Event type for test (e.g. routing_decision)")
	flagSet.StringVar(&opts.Handler, "handler", "", "Handler of the simulated event")
	flagSet.StringVar(&opts.Method, "method", "", "Routing method of the simulated event")
	flagSet.StringVar(&opts.Language, "language", "", "Language of the simulated event")
	flagSet.Float64Var(&opts.Confidence, "confidence", 0, "Confidence of the simulated event")
	flagSet.StringVar(&opts.Data, "data", "{}", "JSON data payload for test")
	flagSet.StringVar(&opts.Format, "format", "table", "Output format (table/json)")

	if err := flagSet.Parse(args[1:]); err != nil {
		return nil, err
	}

	return opts, nil
}

func printHooksUsage() {
	fmt.Println("Usage: bhasharouter hooks <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  list           List all configured hooks")
	fmt.Println("  enable         Enable a hook by ID")
	fmt.Println("  disable        Disable a hook by ID")
	fmt.Println("  test           Test hook conditions against a simulated event")
	fmt.Println("  reload         Reload hooks from disk and report what was loaded")
	fmt.Println("\nOptions:")
	fmt.Println("  --config <path>      Configuration file (default config.yaml)")
	fmt.Println("  --id <str>           Hook ID")
	fmt.Println("  --event <str>        Event type")
	fmt.Println("  --handler <str>      Handler of the simulated event")
	fmt.Println("  --method <str>       Routing method of the simulated event")
	fmt.Println("  --language <str>     Language of the simulated event")
	fmt.Println("  --confidence <num>   Confidence of the simulated event")
	fmt.Println("  --data <json>        Extra event data (JSON)")
	fmt.Println("  --format <str>       Output format")
	fmt.Println("\nExamples:")
	fmt.Println("  bhasharouter hooks list --format json")
	fmt.Println("  bhasharouter hooks disable --id low-confidence-alert")
	fmt.Println("  bhasharouter hooks test --event clarification_needed --language hinglish --confidence 0.41")
	fmt.Println("  bhasharouter hooks test --id music-audit --event routing_decision --handler vividh_bharti")
}

func handleHooksCommand(args []string) {
	opts, err := ParseHooksCommand(args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		printHooksUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfigOptional(opts.ConfigPath, true)
	if err != nil {
		fmt.Printf("Warning: %v (using defaults)\n", err)
		cfg = config.Default()
	}

	manager, err := getHookManager(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	switch cmd := opts.Command; cmd {
	case HooksList:
		doHooksList(manager, opts)
	case HooksEnable:
		doHooksEnableDisable(manager, opts, true)
	case HooksDisable:
		doHooksEnableDisable(manager, opts, false)
	case HooksTest:
		doHooksTest(manager, opts)
	case HooksReload:
		doHooksReload(manager)
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		printHooksUsage()
		os.Exit(1)
	}
}

// hooksDir resolves the configured hooks directory, defaulting to the state
// directory's hooks folder.
func hooksDir(cfg *config.Config) (string, error) {
	if cfg.Hooks.Dir != "" {
		return util.ExpandPath(cfg.Hooks.Dir)
	}
	sb, err := util.NewStateBoxAt(cfg.StateDir)
	if err != nil {
		return "", err
	}
	return sb.HooksDir(), nil
}

func getHookManager(cfg *config.Config) (*hooks.HookManager, error) {
	dir, err := hooksDir(cfg)
	if err != nil {
		return nil, err
	}

	// Management commands never publish, so the bus stays idle.
	manager, err := hooks.NewHookManager(dir, hooks.NewEventBus())
	if err != nil {
		return nil, err
	}
	if err := manager.LoadHooks(); err != nil {
		fmt.Printf("Warning: failed to load some hooks: %v\n", err)
	}
	return manager, nil
}

func doHooksList(manager *hooks.HookManager, opts *HooksOptions) {
	allHooks := manager.GetHooks()

	if len(allHooks) == 0 {
		fmt.Println("No hooks configured.")
		fmt.Printf("Create hook files in: %s\n", manager.GetHooksDir())
		return
	}

	if opts.Format == "json" {
		data, _ := json.MarshalIndent(allHooks, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Println("Configured Hooks")
	fmt.Println("================")
	fmt.Printf("Hooks Directory: %s\n", manager.GetHooksDir())
	fmt.Printf("Total Hooks: %d\n\n", len(allHooks))

	for i, hook := range allHooks {
		status := "✓ Enabled"
		if !hook.Enabled {
			status = "✗ Disabled"
		}

		fmt.Printf("[%d] %s\n", i+1, hook.Name)
		fmt.Printf("    ID: %s\n", hook.ID)
		fmt.Printf("    Status: %s\n", status)
		fmt.Printf("    Event: %s\n", hook.Event)
		fmt.Printf("    Action: %s\n", hook.Action)
		if hook.Condition != "" {
			fmt.Printf("    Condition: %s\n", hook.Condition)
		}
		if hook.Description != "" {
			fmt.Printf("    Description: %s\n", hook.Description)
		}
		if len(hook.Params) > 0 {
			fmt.Printf("    Parameters: %v\n", hook.Params)
		}
		fmt.Printf("    File: %s\n", filepath.Base(hook.FilePath))
		fmt.Println()
	}
}

// setHookEnabled rewrites the enabled flag in a hook file, keeping the previous
// version as <file>.bak. Other keys keep their values; comments are not
// preserved.
func setHookEnabled(path string, enable bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read hook file: %w", err)
	}

	var hookData map[string]interface{}
	if err := yaml.Unmarshal(data, &hookData); err != nil {
		return fmt.Errorf("failed to parse hook file: %w", err)
	}
	if hookData == nil {
		return fmt.Errorf("hook file %s is empty", path)
	}
	hookData["enabled"] = enable

	newData, err := yaml.Marshal(hookData)
	if err != nil {
		return fmt.Errorf("failed to marshal hook file: %w", err)
	}
	if err := util.SecureWrite(nil, path, newData, &util.SecureWriteOptions{CreateBackup: true}); err != nil {
		return fmt.Errorf("failed to write hook file: %w", err)
	}
	return nil
}

// findHookFile returns the file that defines id. Disabled hooks are never
// loaded by the manager, so the directory is scanned directly.
func findHookFile(dir, id string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read hooks directory: %w", err)
	}
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var hook hooks.Hook
		if err := yaml.Unmarshal(data, &hook); err != nil {
			continue
		}
		if hook.ID == "" {
			hook.ID = entry.Name()[:len(entry.Name())-len(ext)]
		}
		if hook.ID == id {
			return path, nil
		}
	}
	return "", fmt.Errorf("hook with ID '%s' not found", id)
}

func doHooksEnableDisable(manager *hooks.HookManager, opts *HooksOptions, enable bool) {
	if opts.HookID == "" {
		fmt.Println("Error: --id required")
		return
	}

	path, err := findHookFile(manager.GetHooksDir(), opts.HookID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	if err := setHookEnabled(path, enable); err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	action := "Enabled"
	if !enable {
		action = "Disabled"
	}
	fmt.Printf("✓ %s hook '%s'\n", action, opts.HookID)
	fmt.Printf("  File: %s\n", path)
	fmt.Println("  A running server with hooks.watch picks this up automatically")
}

// simulatedEvent builds the event context described by the test options.
func simulatedEvent(opts *HooksOptions) (*hooks.EventContext, error) {
	evType := hooks.HookEvent(opts.Event)
	if evType == "" {
		evType = hooks.EventRoutingDecision
	}
	known := false
	for _, ev := range hooks.AllEvents() {
		if ev == evType {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("unknown event %q", evType)
	}

	var dataMap map[string]interface{}
	if err := json.Unmarshal([]byte(opts.Data), &dataMap); err != nil {
		return nil, fmt.Errorf("failed to parse data JSON: %w", err)
	}

	return &hooks.EventContext{
		Event:      evType,
		Timestamp:  time.Now(),
		RequestID:  "hooks-test",
		Handler:    opts.Handler,
		Method:     opts.Method,
		Language:   opts.Language,
		Confidence: opts.Confidence,
		Data:       dataMap,
	}, nil
}

func doHooksTest(manager *hooks.HookManager, opts *HooksOptions) {
	ctx, err := simulatedEvent(opts)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Testing Hooks Against Event\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Event Type: %s\n", ctx.Event)
	fmt.Printf("Handler: %s  Method: %s  Language: %s  Confidence: %.3f\n", ctx.Handler, ctx.Method, ctx.Language, ctx.Confidence)
	fmt.Printf("Event Data: %s\n\n", opts.Data)

	allHooks := manager.GetHooks()
	if opts.HookID != "" {
		hook := manager.GetHook(opts.HookID)
		if hook == nil {
			fmt.Printf("Error: Hook with ID '%s' not found\n", opts.HookID)
			return
		}
		allHooks = []*hooks.Hook{hook}
	}
	if len(allHooks) == 0 {
		fmt.Println("No hooks configured to test.")
		return
	}

	matched, failed := 0, 0
	for i, hook := range allHooks {
		fmt.Printf("[%d] %s (%s)\n", i+1, hook.Name, hook.ID)

		switch {
		case hook.Event != ctx.Event:
			fmt.Printf("    Result: ✗ Event type mismatch (expects %s)\n\n", hook.Event)
			continue
		case !hook.Enabled:
			fmt.Printf("    Result: ✗ Hook is disabled\n\n")
			continue
		}

		ok, err := manager.EvaluateCondition(hook, ctx)
		switch {
		case err != nil:
			failed++
			fmt.Printf("    Result: ✗ Condition evaluation failed: %v\n\n", err)
		case ok:
			matched++
			fmt.Printf("    Result: ✓ Would execute action: %s\n\n", hook.Action)
		default:
			fmt.Printf("    Result: ✗ Condition not met (%s)\n\n", hook.Condition)
		}
	}

	fmt.Printf("Tested: %d  Matched: %d  Failed: %d\n", len(allHooks), matched, failed)
}

func doHooksReload(manager *hooks.HookManager) {
	if err := manager.LoadHooks(); err != nil {
		fmt.Printf("✗ Failed to reload hooks: %v\n", err)
		return
	}

	allHooks := manager.GetHooks()
	enabled := 0
	for _, hook := range allHooks {
		if hook.Enabled {
			enabled++
		}
	}

	fmt.Printf("✓ Reloaded hooks from %s\n", manager.GetHooksDir())
	fmt.Printf("  Total hooks: %d\n", len(allHooks))
	fmt.Printf("  Enabled hooks: %d\n", enabled)
	fmt.Printf("  Disabled hooks: %d\n", len(allHooks)-enabled)
}
