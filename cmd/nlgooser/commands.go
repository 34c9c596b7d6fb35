package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ineffectivecoder/NLGooser/pkg/auth"
	"github.com/ineffectivecoder/NLGooser/pkg/netlogon"
)

// Command represents a shell command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Handler     func(ctx context.Context, args []string) error
}

// CommandRegistry holds all available commands
type CommandRegistry struct {
	commands map[string]*Command
}

// Global command registry
var commands = NewCommandRegistry()

// shellLine is the active readline instance, nil outside the shell
var shellLine *readline.Instance

// errLogonFailed marks a logon failure that was already reported
var errLogonFailed = errors.New("logon failed")

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*Command),
	}
}

// Register adds a command to the registry
func (r *CommandRegistry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.commands[alias] = cmd
	}
}

// Get retrieves a command by name or alias
func (r *CommandRegistry) Get(name string) *Command {
	return r.commands[name]
}

// List returns all unique commands sorted by name
func (r *CommandRegistry) List() []*Command {
	seen := make(map[string]bool)
	var list []*Command

	for _, cmd := range r.commands {
		if !seen[cmd.Name] {
			seen[cmd.Name] = true
			list = append(list, cmd)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})

	return list
}

// executeCommand runs a command by name
func executeCommand(ctx context.Context, name string, args []string) bool {
	cmd := commands.Get(name)
	if cmd == nil {
		error_("Unknown command: %s (type 'help' for commands)", name)
		return true
	}

	if err := cmd.Handler(ctx, args); err != nil {
		error_("%v", err)
	}

	// Return false if we should exit
	return cmd.Name != "exit"
}

func init() {
	commands.Register(&Command{
		Name:        "help",
		Aliases:     []string{"?", "h"},
		Description: "Show available commands",
		Usage:       "help [command]",
		Handler:     cmdHelp,
	})

	commands.Register(&Command{
		Name:        "exit",
		Aliases:     []string{"quit", "q"},
		Description: "Exit the shell",
		Handler:     cmdExit,
	})

	commands.Register(&Command{
		Name:        "logon",
		Aliases:     []string{"validate"},
		Description: "Validate a user's password over the secure channel",
		Usage:       "logon <DOMAIN\\user|user@domain> [password]",
		Handler:     cmdLogon,
	})

	commands.Register(&Command{
		Name:        "status",
		Aliases:     []string{"info"},
		Description: "Show secure channel state",
		Handler:     cmdStatus,
	})

	commands.Register(&Command{
		Name:        "reconnect",
		Description: "Tear down and re-establish the secure channel",
		Handler:     cmdReconnect,
	})

	commands.Register(&Command{
		Name:        "close",
		Aliases:     []string{"disconnect"},
		Description: "Close the secure channel",
		Handler:     cmdClose,
	})
}

// Command handlers
func cmdHelp(ctx context.Context, args []string) error {
	if len(args) > 0 {
		// Show help for specific command
		cmd := commands.Get(args[0])
		if cmd == nil {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		fmt.Printf("\n%s%s%s - %s\n", colorBold, cmd.Name, colorReset, cmd.Description)
		if cmd.Usage != "" {
			fmt.Printf("Usage: %s\n", cmd.Usage)
		}
		if len(cmd.Aliases) > 0 {
			fmt.Printf("Aliases: %s\n", strings.Join(cmd.Aliases, ", "))
		}
		fmt.Println()
		return nil
	}

	fmt.Println()
	fmt.Printf("%s=== NLGooser Commands ===%s\n\n", colorBold, colorReset)
	for _, cmd := range commands.List() {
		fmt.Printf("  %-12s %s\n", cmd.Name, cmd.Description)
	}
	fmt.Println()
	return nil
}

func cmdExit(ctx context.Context, args []string) error {
	info_("Goodbye! 🪿")
	return nil
}

func cmdLogon(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: logon <DOMAIN\\user|user@domain> [password]")
	}

	user, domain := splitUser(args[0], "")
	if domain == "" {
		return fmt.Errorf("domain required (DOMAIN\\user or user@domain)")
	}

	var password string
	if len(args) > 1 {
		password = args[1]
	} else {
		p, err := readPassword(fmt.Sprintf("Password for %s\\%s: ", domain, user))
		if err != nil {
			return err
		}
		password = p
	}

	if _, err := logon(domain, user, password); err != nil && !errors.Is(err, errLogonFailed) {
		return err
	}
	return nil
}

func cmdStatus(ctx context.Context, args []string) error {
	if session == nil {
		return fmt.Errorf("no session")
	}

	fmt.Printf("\n%sSecure Channel:%s\n", colorBold, colorReset)
	fmt.Printf("  Target:       %s\n", session.Host())
	fmt.Printf("  Account:      %s\n", config.ServiceAccount)
	fmt.Printf("  Computer:     %s\n", config.Hostname)
	fmt.Printf("  State:        %s\n", session.State())
	fmt.Printf("  Credentials:  %s\n", session.Strategy())
	if session.State() == netlogon.StateAuthenticated {
		fmt.Printf("  Flags:        0x%08X\n", session.NegotiatedFlags())
	}
	fmt.Println()
	return nil
}

func cmdReconnect(ctx context.Context, args []string) error {
	if session == nil {
		return fmt.Errorf("no session")
	}
	session.Disconnect()
	info_("Re-establishing secure channel to %s...", session.Host())
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("secure channel failed: %w", err)
	}
	success_("Secure channel established (flags 0x%08X)", session.NegotiatedFlags())
	return nil
}

func cmdClose(ctx context.Context, args []string) error {
	if session == nil {
		return fmt.Errorf("no session")
	}
	if err := session.Disconnect(); err != nil {
		warn_("Transport close: %v", err)
	}
	info_("Secure channel closed")
	return nil
}

// readPassword prompts through the shell when one is running
func readPassword(prompt string) (string, error) {
	if shellLine != nil {
		b, err := shellLine.ReadPassword(prompt)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return promptPassword(prompt), nil
}

// buildLogonRequest answers a fresh challenge the way an NTLM client would
func buildLogonRequest(domain, user, password string) (netlogon.LogonRequest, error) {
	var challenge netlogon.Challenge
	if _, err := rand.Read(challenge[:]); err != nil {
		return netlogon.LogonRequest{}, err
	}

	resp, err := auth.ComputeNetworkResponse(auth.NTHash(password), user, domain, config.Hostname, challenge[:])
	if err != nil {
		return netlogon.LogonRequest{}, err
	}

	return netlogon.LogonRequest{
		Domain:      domain,
		User:        user,
		Workstation: config.Hostname,
		Challenge:   challenge,
		NtResponse:  resp.NtResponse,
		LmResponse:  resp.LmResponse,
	}, nil
}

// logon validates one user over the standing secure channel
func logon(domain, user, password string) (*netlogon.AccountAttributes, error) {
	req, err := buildLogonRequest(domain, user, password)
	if err != nil {
		return nil, err
	}

	info_("Validating %s\\%s...", domain, user)
	attrs, err := session.SamLogon(req)
	if err != nil {
		reportLogonError(err)
		return nil, errLogonFailed
	}
	printAccount(attrs)
	return attrs, nil
}

// validateOnce validates one user and closes the channel
func validateOnce(domain, user, password string) error {
	req, err := buildLogonRequest(domain, user, password)
	if err != nil {
		error_("%v", err)
		return err
	}

	info_("Validating %s\\%s...", domain, user)
	attrs, err := session.Validate(req)
	if err != nil {
		reportLogonError(err)
		return err
	}
	printAccount(attrs)
	return nil
}

func reportLogonError(err error) {
	var se *netlogon.StatusError
	switch {
	case errors.Is(err, netlogon.ErrAuthentication) && errors.As(err, &se):
		error_("Logon rejected: %s (%s)", se.Outcome, netlogon.StatusName(se.Status))
	case errors.Is(err, netlogon.ErrProtocol):
		error_("Secure channel integrity failure: %v", err)
	default:
		error_("%v", err)
	}
	if session.State() == netlogon.StateClosed {
		warn_("Secure channel closed; use 'reconnect' to re-establish it")
	}
}

func printAccount(a *netlogon.AccountAttributes) {
	success_("Logon valid: %s", a.Summary())

	fmt.Printf("\n%sAccount:%s\n", colorBold, colorReset)
	fmt.Printf("  Name:           %s\n", optional(a.AccountName))
	fmt.Printf("  Full Name:      %s\n", optional(a.FullName))
	fmt.Printf("  Domain:         %s\n", optional(a.LogonDomain))
	fmt.Printf("  Logon Server:   %s\n", optional(a.LogonServer))
	fmt.Printf("  Home Directory: %s\n", optional(a.HomeDirectory))
	fmt.Printf("  Home Drive:     %s\n", optional(a.HomeDrive))
	fmt.Printf("  Profile Path:   %s\n", optional(a.ProfilePath))
	fmt.Printf("  Logon Script:   %s\n", optional(a.LogonScript))
	fmt.Printf("  Logon Count:    %d (bad: %d)\n", a.LogonCount, a.BadPasswordCount)
	if !a.LogonTime.IsZero() {
		fmt.Printf("  Last Logon:     %s\n", a.LogonTime.Local().Format("2006-01-02 15:04:05"))
	}
	if !a.PasswordLastSet.IsZero() {
		fmt.Printf("  Password Set:   %s\n", a.PasswordLastSet.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("  Flags:          0x%08X\n", a.UserFlags)

	fmt.Printf("\n%sIdentifiers:%s\n", colorBold, colorReset)
	fmt.Printf("  User SID:       %s\n", a.UserSID)
	fmt.Printf("  Primary Group:  %s\n", a.PrimaryGroupSID)
	for _, g := range a.GroupSIDs {
		fmt.Printf("  Group:          %s\n", g)
	}
	fmt.Println()
}

func optional(s *string) string {
	if s == nil {
		return colorYellow + "<absent>" + colorReset
	}
	return *s
}
