package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crmdesk/crmdesk/internal/apiclient"
	"github.com/crmdesk/crmdesk/internal/auth"
	"github.com/crmdesk/crmdesk/internal/invoices"
)

// ErrNotLoggedIn is returned by commands that need a stored token.
var ErrNotLoggedIn = errors.New("not logged in; run 'crmctl login' first")

type runtime struct {
	configDir string
	apiURL    string
	verbose   bool

	out   io.Writer
	creds *FileCredentials
	api   *apiclient.Client
}

// NewRootCommand assembles crmctl. Output goes to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	rt := &runtime{out: out}

	root := &cobra.Command{
		Use:           "crmctl",
		Short:         "Operate the CRM API from the command line",
		Long:          `crmctl talks to the same CRM API as the web console. It keeps its token in the config directory and can inspect and reconcile invoices.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init(cmd)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&rt.configDir, "config-dir", DefaultDir(), "directory holding config.toml and the token")
	root.PersistentFlags().StringVar(&rt.apiURL, "api-url", "", "CRM API base URL (overrides config.toml)")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "log API calls to stderr")

	root.AddCommand(rt.loginCommand(), rt.logoutCommand(), rt.whoamiCommand(), rt.invoicesCommand())
	return root
}

func (rt *runtime) init(cmd *cobra.Command) error {
	cfg, err := LoadConfig(rt.configDir)
	if err != nil {
		return err
	}
	if rt.apiURL != "" {
		cfg.APIURL = rt.apiURL
	}
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return fmt.Errorf("api_url %q must start with http:// or https://", cfg.APIURL)
	}
	opts := []apiclient.Option{}
	if rt.verbose {
		opts = append(opts, apiclient.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))))
	}
	rt.creds = NewFileCredentials(rt.configDir)
	rt.api = apiclient.New(apiclient.Config{BaseURL: cfg.APIURL, Timeout: cfg.TimeoutDuration()}, opts...)
	return nil
}

func (rt *runtime) requireLogin() error {
	if !rt.creds.HasCredential() {
		return ErrNotLoggedIn
	}
	return nil
}

// explain turns API failures into operator friendly errors.
func explain(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apiclient.ErrUnauthorized):
		return errors.New("the CRM API rejected the stored token; it was removed, run 'crmctl login' again")
	case errors.Is(err, apiclient.ErrNotFound):
		return errors.New("not found")
	case errors.Is(err, apiclient.ErrTransport):
		return fmt.Errorf("CRM API unreachable: %w", err)
	default:
		if msg := apiclient.Message(err); msg != "" {
			return errors.New(msg)
		}
		return err
	}
}

func (rt *runtime) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			service := auth.NewService(rt.api)
			token, err := service.Login(cmd.Context(), email, password)
			if err != nil {
				if errors.Is(err, apiclient.ErrValidation) || errors.Is(err, apiclient.ErrUnauthorized) {
					return errors.New("login failed, check your credentials")
				}
				return explain(err)
			}
			if err := rt.creds.SetCredential(token); err != nil {
				return fmt.Errorf("store token: %w", err)
			}
			user, err := service.CurrentUser(cmd.Context(), rt.creds)
			if err != nil {
				fmt.Fprintln(rt.out, "Logged in.")
				return nil
			}
			fmt.Fprintf(rt.out, "Logged in as %s <%s>.\n", user.DisplayName(), user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (rt *runtime) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.creds.ClearCredential()
			fmt.Fprintln(rt.out, "Logged out.")
			return nil
		},
	}
}

func (rt *runtime) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account behind the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.requireLogin(); err != nil {
				return err
			}
			user, err := auth.NewService(rt.api).CurrentUser(cmd.Context(), rt.creds)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintf(rt.out, "%s %s <%s>\n", user.FirstName, user.LastName, user.Email)
			return nil
		},
	}
}

func (rt *runtime) invoiceService() *invoices.Service {
	return invoices.NewService(rt.api, nil, nil)
}
