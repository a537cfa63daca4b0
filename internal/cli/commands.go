package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prudhvinik1/storeledger/internal/models"
	"github.com/prudhvinik1/storeledger/internal/syncengine"
	"github.com/prudhvinik1/storeledger/internal/utils"
	"github.com/spf13/cobra"
)

func NewQueueCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the local submission queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List submissions waiting to be sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []models.QueuedWrite
			if err := newAgentClient(opts).do(cmd.Context(), "GET", "/v1/queue", nil, &items); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCOLLECTION\tQUEUED AT")
			for _, item := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", item.ID, item.Collection, item.EnqueuedAt.Local().Format(time.DateTime))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending\n", len(items))
			return nil
		},
	})

	return cmd
}

func NewDrainCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Replay queued submissions now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res syncengine.DrainResult
			if err := newAgentClient(opts).do(cmd.Context(), "POST", "/v1/sync/drain", nil, &res); err != nil {
				return err
			}
			if !res.Started {
				fmt.Fprintf(cmd.OutOrStdout(), "drain skipped: %s\n", res.Skipped)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "attempted %d, sent %d, failed %d\n", res.Attempted, res.Succeeded, res.Failed)
			return nil
		},
	}
}

func NewResetCommand(opts *RootOptions) *cobra.Command {
	var pin string
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard every unsent submission and the reference cache",
		Long: `Discard every unsent submission and the reference cache. Submissions that
were not sent are lost. Requires the manager PIN.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Fprint(cmd.OutOrStdout(), "Unsent submissions will be lost. Type 'reset' to continue: ")
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if strings.TrimSpace(line) != "reset" {
					return errors.New("aborted")
				}
			}

			var res struct {
				Discarded int `json:"discarded"`
			}
			header := map[string]string{"X-Manager-PIN": pin}
			if err := newAgentClient(opts).do(cmd.Context(), "POST", "/v1/reset", header, &res); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "discarded %d pending submissions\n", res.Discarded)
			return nil
		},
	}

	cmd.Flags().StringVar(&pin, "pin", "", "manager PIN (required)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("pin")

	return cmd
}

func NewHashPINCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-pin <pin>",
		Short: "Print the RESET_PIN_HASH value for a manager PIN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashed, err := utils.HashPIN(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}
}
