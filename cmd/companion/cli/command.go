// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// Command is one node of the companion command tree. A node either
// dispatches to Subcommands or does its own work in Run.
type Command struct {
	// Name is what the user types to select this command ("fetch").
	Name string

	// Summary is the one-liner listed under the parent's Commands.
	Summary string

	// Description replaces Summary at the top of the command's own
	// help when set.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags builds a fresh flag set. It is called once per parse and
	// once per help rendering; nil means the command takes no flags.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing.
	Run func(args []string) error

	// HelpOutput defaults to os.Stderr. Subcommands without their own
	// inherit it when dispatched.
	HelpOutput io.Writer

	// parent links back up the tree for fullName.
	parent *Command
}

// Example is one entry of the Examples help section.
type Example struct {
	Description string
	Command     string
}

// Execute runs the command tree against args (without the program
// name).
func (c *Command) Execute(args []string) error {
	// Help wins over everything, including unknown flags after it.
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(c.helpOutput())
		return nil
	}

	if len(c.Subcommands) > 0 {
		if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
			return c.dispatch(args[0], args[1:])
		}
		if c.Run == nil {
			c.PrintHelp(c.helpOutput())
			if len(args) == 0 {
				return fmt.Errorf("subcommand required")
			}
			return fmt.Errorf("subcommand required (got flag %q)", args[0])
		}
	}

	positional, err := c.parseFlags(args)
	if err != nil {
		return err
	}

	if c.Run == nil {
		c.PrintHelp(c.helpOutput())
		return fmt.Errorf("no action defined for %q", c.fullName())
	}
	return c.Run(positional)
}

// dispatch hands rest to the subcommand called name.
func (c *Command) dispatch(name string, rest []string) error {
	if sub := c.lookup(name); sub != nil {
		sub.parent = c
		if sub.HelpOutput == nil {
			sub.HelpOutput = c.HelpOutput
		}
		return sub.Execute(rest)
	}

	if suggestion := suggestCommand(name, c.Subcommands); suggestion != "" {
		return c.usageError("unknown command %q (did you mean %q?)", name, suggestion)
	}
	return c.usageError("unknown command %q", name)
}

func (c *Command) lookup(name string) *Command {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			return sub
		}
	}
	return nil
}

// parseFlags returns the positional arguments. Commands without Flags
// get args back untouched.
func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}

	flagSet := c.Flags()
	// pflag's own error printing is replaced by usageError.
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		message := err.Error()
		if strings.Contains(message, "unknown flag") || strings.Contains(message, "unknown shorthand flag") {
			// Suggest from a fresh set; the failed parse left state
			// behind in this one.
			if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
				return nil, c.usageError("%s (did you mean %s?)", message, suggestion)
			}
		}
		return nil, c.usageError("%s", message)
	}
	return flagSet.Args(), nil
}

// usageError formats a user mistake and points at this command's help.
func (c *Command) usageError(format string, args ...any) error {
	return fmt.Errorf("%s\n\nRun '%s --help' for usage.", fmt.Sprintf(format, args...), c.fullName())
}

// PrintHelp writes the command's help to w.
func (c *Command) PrintHelp(w io.Writer) {
	if heading := c.heading(); heading != "" {
		fmt.Fprintf(w, "%s\n\n", heading)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.usageLine())

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		table := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.Subcommands {
			fmt.Fprintf(table, "  %s\t%s\n", sub.Name, sub.Summary)
		}
		table.Flush()
	}

	if defaults := c.flagDefaults(); defaults != "" {
		fmt.Fprintf(w, "\nFlags:\n%s", defaults)
	}

	if len(c.Examples) > 0 {
		fmt.Fprintf(w, "\nExamples:\n")
		for _, example := range c.Examples {
			if example.Description == "" {
				fmt.Fprintf(w, "  %s\n", example.Command)
				continue
			}
			fmt.Fprintf(w, "  # %s\n  %s\n\n", example.Description, example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.fullName())
	}
}

func (c *Command) heading() string {
	if c.Description != "" {
		return c.Description
	}
	return c.Summary
}

func (c *Command) usageLine() string {
	switch {
	case c.Usage != "":
		return c.Usage
	case len(c.Subcommands) > 0:
		return c.fullName() + " <command> [flags]"
	default:
		return c.fullName() + " [flags]"
	}
}

func (c *Command) flagDefaults() string {
	if c.Flags == nil {
		return ""
	}
	var defaults strings.Builder
	flagSet := c.Flags()
	flagSet.SetOutput(&defaults)
	flagSet.PrintDefaults()
	return defaults.String()
}

func (c *Command) helpOutput() io.Writer {
	if c.HelpOutput != nil {
		return c.HelpOutput
	}
	return os.Stderr
}

// fullName is the space-separated path from the root ("companion fetch").
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}
