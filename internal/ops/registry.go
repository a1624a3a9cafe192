/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package ops

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
)

// CommandGroup represents the operational classification of commands
type CommandGroup string

const (
	GroupPipeline CommandGroup = "pipeline" // adapt
	GroupPhase    CommandGroup = "phase"    // scripts, manifest, compress
	GroupSupport  CommandGroup = "support"  // hash, config, version
)

// Groups lists every group in help order.
var Groups = []CommandGroup{GroupPipeline, GroupPhase, GroupSupport}

var groupTitles = map[CommandGroup]string{
	GroupPipeline: "Pipeline Commands:",
	GroupPhase:    "Single-Phase Commands:",
	GroupSupport:  "Support Commands:",
}

// CommandRegistration represents a registered command with its classification
type CommandRegistration struct {
	Name        string
	Group       CommandGroup
	Command     *cobra.Command
	Description string
}

// Registry manages command classifications and registrations
type Registry struct {
	mu         sync.RWMutex
	commands   map[string]*CommandRegistration
	groupIndex map[CommandGroup][]*CommandRegistration
}

// NewRegistry returns an empty registry. Each command tree owns one.
func NewRegistry() *Registry {
	return &Registry{
		commands:   make(map[string]*CommandRegistration),
		groupIndex: make(map[CommandGroup][]*CommandRegistration),
	}
}

// Register adds cmd under group, using its Short text as the description.
func (r *Registry) Register(group CommandGroup, cmd *cobra.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := cmd.Name()
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}
	if _, known := groupTitles[group]; !known {
		return fmt.Errorf("command %s: unknown group %q", name, group)
	}

	registration := &CommandRegistration{
		Name:        name,
		Group:       group,
		Command:     cmd,
		Description: cmd.Short,
	}
	r.commands[name] = registration
	r.groupIndex[group] = append(r.groupIndex[group], registration)
	return nil
}

// GetCommand returns a registered command by name
func (r *Registry) GetCommand(name string) (*CommandRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, exists := r.commands[name]
	return cmd, exists
}

// GetCommandsByGroup returns all commands in a specific group
func (r *Registry) GetCommandsByGroup(group CommandGroup) []*CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*CommandRegistration(nil), r.groupIndex[group]...)
}

// WriteGroups prints each non-empty group with its commands.
func (r *Registry) WriteGroups(w io.Writer) {
	for _, g := range Groups {
		cmds := r.GetCommandsByGroup(g)
		if len(cmds) == 0 {
			continue
		}
		fmt.Fprintln(w, groupTitles[g])
		for _, c := range cmds {
			fmt.Fprintf(w, "  %-12s %s\n", c.Name, c.Description)
		}
		fmt.Fprintln(w)
	}
}

// GroupedHelp returns a help function that prints the root's Long text and
// the registry's groups before the usage block. Subcommands keep cobra's
// default help.
func GroupedHelp(root *cobra.Command, r *Registry) func(*cobra.Command, []string) {
	defaultHelp := root.HelpFunc()
	return func(cmd *cobra.Command, args []string) {
		if cmd != root {
			defaultHelp(cmd, args)
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, cmd.Long)
		fmt.Fprintln(out)
		r.WriteGroups(out)
		fmt.Fprintln(out, "Flags:")
		fmt.Fprint(out, cmd.UsageString())
	}
}
