package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcdev12/timing/go/clients"
	"github.com/mcdev12/timing/go/internal/api"
	"github.com/mcdev12/timing/go/internal/textfmt"
)

type options struct {
	addr    string
	token   string
	timeout time.Duration
}

func (o *options) client() *clients.TimingClient {
	c := clients.NewTimingClient(o.addr, o.token)
	c.SetTimeout(o.timeout)
	return c
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "timingctl",
		Short:         "Controls the server lifecycle countdowns of a running timingd",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.addr, "addr", envOr("TIMINGCTL_ADDR", "http://localhost:8080"), "timingd API address")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("TIMING_API_TOKEN"), "API bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	rootCmd.AddCommand(
		newStartCmd(opts),
		newStopCmd(opts),
		newStatusCmd(opts),
		newMOTDCmd(opts),
		newAdmissionCmd(opts),
		newWhitelistCmd(opts),
		newAnnounceCmd(opts),
		newExecCmd(opts),
	)
	return rootCmd
}

func newStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start <beginning|restart|end> <seconds>",
		Short: "Start or restart a countdown",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("seconds must be a number: %w", err)
			}
			timer, err := opts.client().StartTimer(cmd.Context(), args[0], seconds)
			if err != nil {
				return err
			}
			printTimer(cmd.OutOrStdout(), timer)
			return nil
		},
	}
}

func newStopCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <beginning|restart|end>",
		Short: "Stop a countdown without running its action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timer, err := opts.client().StopTimer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printTimer(cmd.OutOrStdout(), timer)
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status [beginning|restart|end]",
		Short: "Show one or every countdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			if len(args) == 1 {
				timer, err := c.Timer(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printTimer(cmd.OutOrStdout(), timer)
				return nil
			}
			timers, err := c.Timers(cmd.Context())
			if err != nil {
				return err
			}
			for _, timer := range timers.Timers {
				printTimer(cmd.OutOrStdout(), timer)
			}
			return nil
		},
	}
}

func newMOTDCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "motd",
		Short: "Show the status text players currently see in the server list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := opts.client().Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !status.Active {
				fmt.Fprintln(out, "(no override, server default is shown)")
				return nil
			}
			fmt.Fprintln(out, status.Plain)
			return nil
		},
	}
}

func newAdmissionCmd(opts *options) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "admission <player>",
		Short: "Check whether a player would be let in right now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := opts.client().Admission(cmd.Context(), args[0], id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if decision.Admit {
				fmt.Fprintf(out, "%s would be admitted\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "%s would be rejected:\n%s\n", args[0], textfmt.Plain(decision.Message))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "uuid", "", "player UUID")
	return cmd
}

func newWhitelistCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Show or change the whitelist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().Whitelist(cmd.Context())
			if err != nil {
				return err
			}
			printWhitelist(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	update := func(use, short string, nargs int, build func(args []string) api.WhitelistRequest) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				resp, err := opts.client().UpdateWhitelist(cmd.Context(), build(args))
				if err != nil {
					return err
				}
				printWhitelist(cmd.OutOrStdout(), resp)
				return nil
			},
		}
	}
	on, off := true, false
	cmd.AddCommand(
		update("on", "Restrict connections to operators and allow-listed players", 0, func([]string) api.WhitelistRequest {
			return api.WhitelistRequest{Restricted: &on}
		}),
		update("off", "Let everyone connect", 0, func([]string) api.WhitelistRequest {
			return api.WhitelistRequest{Restricted: &off}
		}),
		update("add <player>", "Add a player to the allow-list", 1, func(args []string) api.WhitelistRequest {
			return api.WhitelistRequest{Allow: args}
		}),
		update("remove <player>", "Remove a player from the allow-list", 1, func(args []string) api.WhitelistRequest {
			return api.WhitelistRequest{Revoke: args}
		}),
	)
	return cmd
}

func newAnnounceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "announce [name]",
		Short: "List announcements, or broadcast one now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				if err := c.BroadcastAnnouncement(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "broadcast %s\n", args[0])
				return nil
			}
			resp, err := c.Announcements(cmd.Context())
			if err != nil {
				return err
			}
			for _, ann := range resp.Announcements {
				state := "manual"
				if !ann.Enabled {
					state = "disabled"
				} else if ann.Interval > 0 {
					state = "every " + ann.Interval.String()
				}
				fmt.Fprintf(out, "%-16s %-12s %s\n", ann.Name, state, textfmt.Plain(ann.Message))
			}
			return nil
		},
	}
}

func newExecCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command...>",
		Short: `Run a text command such as "start beginning 60"`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			feedback, err := opts.client().Command(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), feedback)
			return nil
		},
	}
}

func printTimer(w io.Writer, t api.TimerResponse) {
	if !t.Running {
		fmt.Fprintf(w, "%-10s stopped\n", t.Kind)
		return
	}
	line := fmt.Sprintf("%-10s running, %s remaining", t.Kind, t.Formatted)
	if t.Started != nil && !*t.Started {
		line += " (server not started)"
	}
	fmt.Fprintln(w, line)
}

func printWhitelist(w io.Writer, resp api.WhitelistResponse) {
	if resp.Restricted {
		fmt.Fprintln(w, "whitelist is on")
		return
	}
	fmt.Fprintln(w, "whitelist is off")
}
