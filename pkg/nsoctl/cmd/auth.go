package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nso-bridge/nsoctl/pkg/nso/account"
	"github.com/nso-bridge/nsoctl/pkg/nso/credential"
	"github.com/nso-bridge/nsoctl/pkg/nsoctl/output"
	"github.com/nso-bridge/nsoctl/pkg/secretstore"
)

func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Nintendo Account session",
	}
	cmd.AddCommand(
		newAuthLoginCommand(),
		newAuthStatusCommand(),
		newAuthSyncCommand(),
		newAuthLogoutCommand(),
	)
	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in with a Nintendo Account and store the session token",
		Long: `Prints the Nintendo Account authorization URL and reads the callback URL
(npf<client-id>://auth#session_token_code=...) from standard input. The
callback URL is the link behind the "Select this account" button.`,
		RunE: runWithRuntime(func(cmd *cobra.Command, rt *runtimeState, _ []string) error {
			p, err := rt.newPipeline()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			authURL, err := p.negotiator.Authorize(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Open the following URL, log in, then copy the link of the \"Select this account\" button:\n\n%s\n\n", authURL)
			callbackURL, err := promptLine(rt.input, rt.Writer(), "Callback URL: ")
			if err != nil {
				return err
			}
			sessionToken, err := p.negotiator.ExchangeCallback(ctx, callbackURL)
			if err != nil {
				return err
			}
			// A credential cached for a previous session must not outlive it.
			if manager, err := p.credentials(rt); err == nil {
				if err := manager.Invalidate(); err != nil {
					return err
				}
			}
			msg := fmt.Sprintf("Logged in. Session token stored in %s storage", rt.TokenStorage())
			if info, err := account.InspectToken(sessionToken); err == nil && !info.ExpiresAt.IsZero() {
				msg += fmt.Sprintf(" (expires %s)", output.FormatTime(info.ExpiresAt))
			}
			_, _ = fmt.Fprintln(rt.Writer(), msg)
			return nil
		}),
	}
}

func promptLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no callback url provided")
	}
	return line, nil
}

type authStatus struct {
	Storage      string             `json:"storage" yaml:"storage"`
	DeviceGUID   string             `json:"deviceGuid,omitempty" yaml:"deviceGuid,omitempty"`
	SessionToken *account.TokenInfo `json:"sessionToken,omitempty" yaml:"sessionToken,omitempty"`
	Credential   *credential.Status `json:"credential,omitempty" yaml:"credential,omitempty"`
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session token and cached credential",
		RunE: runWithRuntime(func(_ *cobra.Command, rt *runtimeState, _ []string) error {
			p, err := rt.newPipeline()
			if err != nil {
				return err
			}
			status := authStatus{Storage: rt.TokenStorage(), DeviceGUID: p.cfg.Account.DeviceGUID}
			token, err := account.StoredSessionToken(p.store)
			if err != nil {
				return err
			}
			if token != "" {
				info, err := account.InspectToken(token)
				if err != nil {
					rt.Logger().Warnw("Stored session token is not a JWT", "error", err)
					info = &account.TokenInfo{}
				}
				status.SessionToken = info
			}
			if manager, err := p.credentials(rt); err == nil {
				cs, err := manager.Status()
				if err != nil {
					return err
				}
				status.Credential = &cs
			}
			return rt.writeResult(status, func(w io.Writer, _ output.Format) {
				output.WriteFields(w, authStatusFields(status))
			})
		}),
	}
}

func authStatusFields(s authStatus) []output.Field {
	fields := []output.Field{
		{Name: "Storage", Value: s.Storage},
		{Name: "Device GUID", Value: s.DeviceGUID},
	}
	if s.SessionToken == nil {
		fields = append(fields, output.Field{Name: "Session token", Value: "not stored"})
	} else {
		fields = append(fields,
			output.Field{Name: "Session token", Value: "stored"},
			output.Field{Name: "Subject", Value: s.SessionToken.Subject},
			output.Field{Name: "Expires", Value: output.FormatTime(s.SessionToken.ExpiresAt)},
		)
	}
	if s.Credential != nil {
		fields = append(fields, output.Field{Name: "Web API credential", Value: s.Credential.String()})
	}
	return fields
}

type syncResult struct {
	Refreshed  bool              `json:"refreshed" yaml:"refreshed"`
	Credential credential.Status `json:"credential" yaml:"credential"`
}

func newAuthSyncCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Make sure a valid web API credential is cached, refreshing it when stale",
		RunE: runWithRuntime(func(cmd *cobra.Command, rt *runtimeState, _ []string) error {
			p, err := rt.newPipeline()
			if err != nil {
				return err
			}
			manager, err := p.credentials(rt)
			if err != nil {
				return err
			}
			if force {
				if err := manager.Invalidate(); err != nil {
					return err
				}
			}
			before, err := manager.Status()
			if err != nil {
				return err
			}
			if err := manager.Sync(cmd.Context()); err != nil {
				return err
			}
			after, err := manager.Status()
			if err != nil {
				return err
			}
			result := syncResult{
				Refreshed:  !before.HasRecord || !before.ObtainedAt.Equal(after.ObtainedAt),
				Credential: after,
			}
			return rt.writeResult(result, func(w io.Writer, _ output.Format) {
				if result.Refreshed {
					_, _ = fmt.Fprintf(w, "Refreshed web API credential: %s\n", after)
					return
				}
				_, _ = fmt.Fprintf(w, "Using cached web API credential: %s\n", after)
			})
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "Drop the cached credential and refresh")
	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the session token and cached credential",
		RunE: runWithRuntime(func(_ *cobra.Command, rt *runtimeState, _ []string) error {
			store, err := rt.Store()
			if err != nil {
				return err
			}
			if err := secretstore.DeleteAll(store); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Logged out")
			return nil
		}),
	}
}
