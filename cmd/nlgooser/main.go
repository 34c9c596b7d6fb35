package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/mjwhitta/cli"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/ineffectivecoder/NLGooser/pkg/debug"
	"github.com/ineffectivecoder/NLGooser/pkg/metrics"
	"github.com/ineffectivecoder/NLGooser/pkg/netlogon"
)

// Version info
const (
	Version = "0.1.0"
	Banner  = "NLGooser"
)

// ASCII art menacing goose
const gooseBanner = `
                                   ___
                               ,-""   ` + "`" + `.
                             ,'  _   e )` + "`" + `-._
                            /  ,' ` + "`" + `-._<.===-'
                           /  /
                          /  ;
              _.--.__    /   ;
 (` + "`" + `._    _.-""       "--'    |
 <_  ` + "`" + `-""                     \
  <` + "`" + `-                          :
   (__   <__.                  ;
     ` + "`" + `-.   '-.__.      _.'    /
        \      ` + "`" + `-.__,-'    _,'
         ` + "`" + `._    ,    /__,-'    HONK HONK!
            ""._\__,'< <____       NLGooser v%s
                 | |  ` + "`" + `---._` + "`" + `-.   Netlogon Secure Channel Tool
                 | |        ` + "`" + `\ ` + "`" + `\
                 ; |___,.--""` + "`" + `` + "`" + `-'
                 \/--'
`

// Colors for output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Global state
var (
	verbose    bool
	session    *netlogon.Session
	config     *netlogon.Config
	targetHost string
)

func main() {
	var (
		target      string
		port        int
		account     string
		password    string
		hash        string
		keytab      string
		realm       string
		hostname    string
		socks5      string
		configFile  string
		timeout     int
		username    string
		domain      string
		userPass    string
		execCmd     string
		shell       bool
		metricsAddr string
	)

	// Configure CLI
	cli.Align = true
	cli.Banner = "nlgooser [OPTIONS]"
	cli.Info("Netlogon secure channel client - validates NTLM network logons against a domain controller")
	cli.Authors = []string{"NLGooser Team"}

	// Define flags
	cli.Flag(&target, "t", "target", "", "Domain controller IP/hostname")
	cli.Flag(&port, "P", "port", 0, "Netlogon TCP port (0 = ask the endpoint mapper)")
	cli.Flag(&account, "a", "account", "", "Machine/service account (e.g., WS01$)")
	cli.Flag(&password, "p", "password", "", "Service account password")
	cli.Flag(&hash, "H", "hash", "", "Service account NT hash (32 hex chars or LM:NT)")
	cli.Flag(&keytab, "k", "keytab", "", "Keytab holding the service account RC4 key")
	cli.Flag(&realm, "r", "realm", "", "Kerberos realm for the keytab lookup")
	cli.Flag(&hostname, "n", "hostname", "", "Client computer name (default: account without $)")
	cli.Flag(&socks5, "s", "socks5", "", "SOCKS5 proxy (e.g., 127.0.0.1:1080 or user:pass@host:port)")
	cli.Flag(&configFile, "f", "config", "", "YAML configuration file")
	cli.Flag(&timeout, "T", "timeout", 0, "Transport timeout in seconds")
	cli.Flag(&username, "u", "user", "", "User to validate (DOMAIN\\user or user)")
	cli.Flag(&domain, "d", "domain", "", "Domain of the user to validate")
	cli.Flag(&userPass, "w", "user-password", "", "Password of the user to validate")
	cli.Flag(&execCmd, "x", "exec", "", "Execute command(s) and exit (semicolon separated)")
	cli.Flag(&shell, "i", "interactive", true, "Start interactive shell (default)")
	cli.Flag(&metricsAddr, "m", "metrics", "", "Serve Prometheus metrics on this address (e.g., :9100)")
	cli.Flag(&verbose, "v", "verbose", false, "Verbose output")

	cli.Parse()

	printBanner()
	debug.Verbose = verbose

	// Load file config, then let flags override it
	config = &netlogon.Config{}
	if configFile != "" {
		var err error
		if config, err = netlogon.LoadConfig(configFile); err != nil {
			error_("%v", err)
			os.Exit(1)
		}
		debug_("Loaded configuration from %s", configFile)
	}
	override(&config.Host, target)
	override(&config.ServiceAccount, account)
	override(&config.ServicePassword, password)
	override(&config.ServiceHash, hash)
	override(&config.KeytabPath, keytab)
	override(&config.Realm, realm)
	override(&config.Hostname, hostname)
	if port != 0 {
		config.Port = port
	}
	if timeout > 0 {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if socks5 != "" {
		// Normalize SOCKS5 URL
		if !strings.HasPrefix(socks5, "socks5://") {
			socks5 = "socks5://" + socks5
		}
		config.Socks5URL = socks5
		info_("Using SOCKS5 proxy: %s", socks5)
	}

	if config.Host == "" {
		error_("Missing target (-t)")
		cli.Usage(1)
	}
	if config.ServiceAccount == "" {
		error_("Missing service account (-a)")
		cli.Usage(1)
	}
	if config.ServicePassword == "" && config.ServiceHash == "" && config.KeytabPath == "" {
		config.ServicePassword = promptPassword(fmt.Sprintf("Password for %s: ", config.ServiceAccount))
	}

	opts := []netlogon.Option{}
	if metricsAddr != "" {
		m, err := startMetrics(metricsAddr)
		if err != nil {
			error_("Metrics disabled: %v", err)
		} else {
			opts = append(opts, netlogon.WithMetrics(m))
		}
	}

	var err error
	session, err = netlogon.NewSession(config, nil, opts...)
	if err != nil {
		error_("%v", err)
		os.Exit(1)
	}
	targetHost = config.Host
	debug_("Service account hash from %s source", session.Strategy())

	ctx := context.Background()
	info_("Establishing secure channel to %s as %s...", targetHost, config.ServiceAccount)
	if err := session.Connect(ctx); err != nil {
		error_("Secure channel failed: %v", err)
		os.Exit(1)
	}
	defer session.Disconnect()
	success_("Secure channel established (flags 0x%08X)", session.NegotiatedFlags())

	switch {
	case execCmd != "":
		// Non-interactive: execute command(s) and exit
		for _, cmd := range strings.Split(execCmd, ";") {
			cmd = strings.TrimSpace(cmd)
			if cmd == "" {
				continue
			}
			args := parseArgs(cmd)
			if len(args) > 0 {
				if !executeCommand(ctx, strings.ToLower(args[0]), args[1:]) {
					break
				}
			}
		}
	case username != "":
		// One-shot validation
		user, dom := splitUser(username, domain)
		if userPass == "" {
			userPass = promptPassword(fmt.Sprintf("Password for %s\\%s: ", dom, user))
		}
		if err := validateOnce(dom, user, userPass); err != nil {
			os.Exit(2)
		}
	case shell:
		runShell(ctx)
	}
}

func printBanner() {
	fmt.Printf(colorCyan+gooseBanner+colorReset, Version)
	fmt.Println()
}

// override replaces dst when the flag was given
func override(dst *string, flag string) {
	if flag != "" {
		*dst = flag
	}
}

// startMetrics registers the validation metrics and serves them over HTTP
func startMetrics(addr string) (*metrics.ValidationMetrics, error) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewValidationMetrics(reg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			error_("Metrics server: %v", err)
		}
	}()

	info_("Serving metrics on %s/metrics", addr)
	return m, nil
}

func runShell(ctx context.Context) {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range commands.List() {
		items = append(items, readline.PcItem(cmd.Name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          buildPrompt(),
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		error_("Failed to initialize readline: %v", err)
		return
	}
	defer rl.Close()
	shellLine = rl

	for {
		rl.SetPrompt(buildPrompt())
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		args := parseArgs(input)
		if len(args) == 0 {
			continue
		}

		if !executeCommand(ctx, strings.ToLower(args[0]), args[1:]) {
			break
		}
	}
}

func buildPrompt() string {
	var parts []string
	parts = append(parts, colorBold+"[NLGooser]"+colorReset)

	if targetHost != "" {
		hostPart := colorCyan + targetHost + colorReset
		if session != nil && session.State() != netlogon.StateAuthenticated {
			hostPart += colorYellow + " (" + session.State().String() + ")" + colorReset
		}
		parts = append(parts, hostPart)
	}

	return strings.Join(parts, " ") + "> "
}

func parseArgs(line string) []string {
	// Simple arg parsing - splits on spaces, handles quotes
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	for _, r := range line {
		switch {
		case r == '"' || r == '\'':
			if inQuote && r == quoteChar {
				inQuote = false
			} else if !inQuote {
				inQuote = true
				quoteChar = r
			} else {
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	return args
}

// splitUser accepts DOMAIN\user, user@domain or a bare user name
func splitUser(name, defaultDomain string) (user, domain string) {
	if i := strings.IndexByte(name, '\\'); i >= 0 {
		return name[i+1:], name[:i]
	}
	if i := strings.LastIndexByte(name, '@'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, defaultDomain
}

// Output helpers
func info_(format string, args ...interface{}) {
	fmt.Printf(colorCyan+"[*]"+colorReset+" "+format+"\n", args...)
}

func success_(format string, args ...interface{}) {
	fmt.Printf(colorGreen+"[+]"+colorReset+" "+format+"\n", args...)
}

func error_(format string, args ...interface{}) {
	fmt.Printf(colorRed+"[!]"+colorReset+" "+format+"\n", args...)
}

func warn_(format string, args ...interface{}) {
	fmt.Printf(colorYellow+"[-]"+colorReset+" "+format+"\n", args...)
}

func debug_(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(colorBlue+"[D]"+colorReset+" "+format+"\n", args...)
	}
}

func promptPassword(prompt string) string {
	fmt.Print(prompt)
	passBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Print newline after password entry
	if err != nil {
		error_("Failed to read password: %v", err)
		os.Exit(1)
	}
	return string(passBytes)
}
