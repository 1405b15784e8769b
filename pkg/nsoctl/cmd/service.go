package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nso-bridge/nsoctl/pkg/nso"
	"github.com/nso-bridge/nsoctl/pkg/nso/coral"
	"github.com/nso-bridge/nsoctl/pkg/nso/credential"
	"github.com/nso-bridge/nsoctl/pkg/nsoctl/output"
)

func NewSelfCommand() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "self",
		Short: "Show the signed-in account as the Coral API sees it",
		RunE: runWithRuntime(func(cmd *cobra.Command, rt *runtimeState, _ []string) error {
			p, err := rt.newPipeline()
			if err != nil {
				return err
			}
			svc, manager, err := p.service(rt)
			if err != nil {
				return err
			}
			resp, err := svc.ShowSelf(cmd.Context())
			if err != nil {
				return serviceError(rt, manager, err)
			}
			if raw {
				_, err = fmt.Fprintln(rt.Writer(), string(resp.Raw))
				return err
			}
			return rt.writeResult(resp.Result, func(w io.Writer, _ output.Format) {
				output.WriteSelfTable(w, resp.Result)
			})
		}),
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the response body as received")
	return cmd
}

func NewFriendsCommand() *cobra.Command {
	var (
		raw       bool
		online    bool
		favorites bool
	)
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "List friends and their presence",
		RunE: runWithRuntime(func(cmd *cobra.Command, rt *runtimeState, _ []string) error {
			p, err := rt.newPipeline()
			if err != nil {
				return err
			}
			svc, manager, err := p.service(rt)
			if err != nil {
				return err
			}
			resp, err := svc.FriendList(cmd.Context())
			if err != nil {
				return serviceError(rt, manager, err)
			}
			if raw {
				_, err = fmt.Fprintln(rt.Writer(), string(resp.Raw))
				return err
			}
			friends := filterFriends(resp.Result.Friends, online, favorites)
			return rt.writeResult(friends, func(w io.Writer, format output.Format) {
				if format == output.FormatWide {
					output.WriteFriendTableWide(w, friends)
					return
				}
				output.WriteFriendTable(w, friends)
			})
		}),
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the response body as received")
	cmd.Flags().BoolVar(&online, "online", false, "Only show friends that are not offline")
	cmd.Flags().BoolVar(&favorites, "favorites", false, "Only show favorite friends")
	return cmd
}

func filterFriends(friends []coral.Friend, online, favorites bool) []coral.Friend {
	filtered := make([]coral.Friend, 0, len(friends))
	for _, f := range friends {
		if online && (f.Presence.State == "" || strings.EqualFold(f.Presence.State, "OFFLINE")) {
			continue
		}
		if favorites && !f.IsFavoriteFriend {
			continue
		}
		filtered = append(filtered, f)
	}
	return filtered
}

// serviceError drops the cached credential when Coral rejects it, so the
// next invocation refreshes.
func serviceError(rt *runtimeState, manager *credential.Manager, err error) error {
	if !nso.IsUnauthorized(err) {
		return err
	}
	if invalidateErr := manager.Invalidate(); invalidateErr != nil {
		rt.Logger().Warnw("Failed to drop rejected credential", "error", invalidateErr)
		return err
	}
	return fmt.Errorf("%w: cached credential was rejected and has been dropped, retry to refresh it", err)
}

// writeResult renders obj in the selected format. table renders the table
// and wide formats.
func (rt *runtimeState) writeResult(obj any, table func(io.Writer, output.Format)) error {
	format, tmpl, err := output.ParseFormat(rt.OutputFormat())
	if err != nil {
		return err
	}
	switch format {
	case output.FormatTable, output.FormatWide:
		table(rt.Writer(), format)
		return nil
	case output.FormatTemplate:
		return output.WriteTemplate(rt.Writer(), tmpl, obj)
	default:
		return output.WriteObject(rt.Writer(), format, obj)
	}
}
