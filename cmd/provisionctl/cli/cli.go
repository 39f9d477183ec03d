// Package cli implements the provisionctl subcommands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/odyssey-erp/odyssey-provision/internal/auth"
	"github.com/odyssey-erp/odyssey-provision/internal/provisioning"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// TokenIssuer mints operator tokens.
type TokenIssuer interface {
	IssueFor(ctx context.Context, email string) (auth.Token, error)
}

// AdminCLI runs provisioning operations as the local administrator script.
type AdminCLI struct {
	service provisioning.Provisioner
	tokens  TokenIssuer
	stdout  io.Writer
	stderr  io.Writer
}

// NewAdminCLI builds an AdminCLI. Nil writers default to the process streams.
func NewAdminCLI(service provisioning.Provisioner, tokens TokenIssuer, stdout, stderr io.Writer) *AdminCLI {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &AdminCLI{service: service, tokens: tokens, stdout: stdout, stderr: stderr}
}

// localAdmin is the fixed caller used for every CLI operation.
var localAdmin = provisioning.Caller{ID: provisioning.ActorLocalScript, Role: provisioning.RoleAdmin}

// Commands lists the supported subcommands.
func Commands() []string {
	return []string{"create-staff", "set-role", "bootstrap", "token"}
}

// Run dispatches args[0] and returns the process exit code.
func (c *AdminCLI) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		c.usage()
		return ExitUsage
	}
	switch args[0] {
	case "create-staff":
		return c.createStaff(ctx, args[1:])
	case "set-role":
		return c.setRole(ctx, args[1:])
	case "bootstrap":
		return c.bootstrap(ctx, args[1:])
	case "token":
		return c.token(ctx, args[1:])
	case "help", "-h", "--help":
		c.usage()
		return ExitOK
	default:
		_, _ = fmt.Fprintf(c.stderr, "provisionctl: unknown command %q\n", args[0])
		c.usage()
		return ExitUsage
	}
}

func (c *AdminCLI) usage() {
	_, _ = fmt.Fprintf(c.stderr, "usage: provisionctl <%s> [flags]\n", strings.Join(Commands(), "|"))
}

func (c *AdminCLI) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *AdminCLI) createStaff(ctx context.Context, args []string) int {
	fs := c.flagSet("create-staff")
	var in provisioning.Input
	var jsonOutput bool
	fs.StringVar(&in.Email, "email", "", "email of the staff user")
	fs.StringVar(&in.TemporaryCredential, "password", "", "temporary password (min 8 characters)")
	fs.StringVar(&in.DisplayName, "display-name", "", "display name")
	fs.StringSliceVar(&in.Modules, "modules", []string{string(provisioning.ModuleDashboard)}, "comma separated modules")
	fs.BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	if code, ok := c.parse(fs, args); !ok {
		return code
	}
	res, err := c.service.CreateManagedUser(ctx, localAdmin, in)
	if err != nil {
		return c.fail("create-staff", err)
	}
	return c.report(res, jsonOutput)
}

func (c *AdminCLI) setRole(ctx context.Context, args []string) int {
	fs := c.flagSet("set-role")
	var (
		in         provisioning.RoleUpdateInput
		active     bool
		jsonOutput bool
	)
	fs.StringVar(&in.Email, "email", "", "email of the existing user")
	fs.StringVar(&in.Role, "role", "", "admin or staff")
	fs.BoolVar(&active, "active", true, "whether the directory record is active")
	fs.StringSliceVar(&in.Modules, "modules", nil, "comma separated modules (default depends on role)")
	fs.BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	if code, ok := c.parse(fs, args); !ok {
		return code
	}
	in.Active = &active
	res, err := c.service.UpdateUserRole(ctx, localAdmin, in)
	if err != nil {
		return c.fail("set-role", err)
	}
	if jsonOutput {
		return c.report(res, true)
	}
	_, _ = fmt.Fprintf(c.stdout, "updated %s (%s): role=%s active=%t\n", res.Email, res.IdentityID, strings.ToLower(in.Role), active)
	return ExitOK
}

func (c *AdminCLI) bootstrap(ctx context.Context, args []string) int {
	fs := c.flagSet("bootstrap")
	var (
		in         provisioning.Input
		secret     string
		jsonOutput bool
	)
	fs.StringVar(&secret, "secret", os.Getenv("BOOTSTRAP_SECRET"), "bootstrap secret (default $BOOTSTRAP_SECRET)")
	fs.StringVar(&in.Email, "email", "", "email of the first administrator")
	fs.StringVar(&in.TemporaryCredential, "password", "", "temporary password (min 8 characters)")
	fs.StringVar(&in.DisplayName, "display-name", "", "display name")
	fs.BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	if code, ok := c.parse(fs, args); !ok {
		return code
	}
	res, err := c.service.BootstrapCreateInitialAdministrator(ctx, secret, in)
	if err != nil {
		return c.fail("bootstrap", err)
	}
	return c.report(res, jsonOutput)
}

func (c *AdminCLI) token(ctx context.Context, args []string) int {
	fs := c.flagSet("token")
	var email string
	fs.StringVar(&email, "email", "", "email of the identity to mint a token for")
	if code, ok := c.parse(fs, args); !ok {
		return code
	}
	if strings.TrimSpace(email) == "" {
		_, _ = fmt.Fprintln(c.stderr, "token: --email is required")
		return ExitUsage
	}
	if c.tokens == nil {
		_, _ = fmt.Fprintln(c.stderr, "token: token issuer not configured")
		return ExitFailure
	}
	tok, err := c.tokens.IssueFor(ctx, email)
	if err != nil {
		_, _ = fmt.Fprintf(c.stderr, "token: %v\n", err)
		return ExitFailure
	}
	if err := json.NewEncoder(c.stdout).Encode(tok); err != nil {
		_, _ = fmt.Fprintf(c.stderr, "token: encode json: %v\n", err)
		return ExitFailure
	}
	return ExitOK
}

func (c *AdminCLI) parse(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitOK, false
		}
		return ExitUsage, false
	}
	return ExitOK, true
}

func (c *AdminCLI) report(res provisioning.Result, jsonOutput bool) int {
	if jsonOutput {
		if err := json.NewEncoder(c.stdout).Encode(res); err != nil {
			_, _ = fmt.Fprintf(c.stderr, "encode json: %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}
	verb := "re-synced existing user"
	if res.Created {
		verb = "created user"
	}
	_, _ = fmt.Fprintf(c.stdout, "%s %s (%s)\n", verb, res.Email, res.IdentityID)
	return ExitOK
}

func (c *AdminCLI) fail(command string, err error) int {
	perr := provisioning.AsError(err)
	_, _ = fmt.Fprintf(c.stderr, "%s: %s: %s\n", command, perr.Category, provisioning.Localize(perr, "en"))
	if provisioning.CategoryOf(err) == provisioning.CategoryValidation {
		return ExitUsage
	}
	return ExitFailure
}
