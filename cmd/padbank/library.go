package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/mdouchement/padbank/internal/service"
	"github.com/spf13/cobra"
)

var (
	banksCmd = &cobra.Command{
		Use:   "banks",
		Short: "List the local banks",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := open(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			banks, err := a.service.ListBanks()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(banks))
			for _, bank := range banks {
				created := "-"
				if bank.CreatedAt != nil {
					created = humanize.Time(*bank.CreatedAt)
				}

				rows = append(rows, []string{
					bank.ID,
					bank.Name,
					strconv.Itoa(len(bank.Pads)),
					yesno(bank.IsAdminBank),
					yesno(service.CanTransferFromBank(bank)),
					yesno(service.CanExportBank(bank)),
					created,
				})
			}

			fmt.Println(renderTable(
				[]string{"ID", "Name", "Pads", "Admin", "Transferable", "Exportable", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	//

	quotaCmd = &cobra.Command{
		Use:   "quota",
		Short: "Show the image quota usage",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			a, err := open(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			quota, err := a.service.Quota()
			if err != nil {
				return err
			}

			percent := 0.0
			if quota.Ceiling > 0 {
				percent = float64(quota.Usage) / float64(quota.Ceiling) * 100
			}
			fmt.Printf("%s / %s (%.1f%%)\n", humanBytes(quota.Usage), humanBytes(quota.Ceiling), percent)
			return nil
		},
	}
)

func bankCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "bank",
		Short: "Manage a local bank",
	}

	c.AddCommand(&cobra.Command{
		Use:   "show BANK_ID",
		Short: "Show the pads of a bank",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := open(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			bank, err := a.service.FindBank(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(bank.Pads))
			for _, pad := range bank.Pads {
				rows = append(rows, []string{
					strconv.Itoa(pad.Position),
					pad.Name,
					pad.TriggerMode,
					pad.PlaybackMode,
					fmt.Sprintf("%.0f", pad.StartTimeMs),
					fmt.Sprintf("%.0f", pad.EndTimeMs),
					yesno(pad.ImageRef != ""),
				})
			}

			fmt.Printf("%s (%s)\n", bank.Name, bank.ID)
			fmt.Println(renderTable(
				[]string{"#", "Pad", "Trigger", "Playback", "Start (ms)", "End (ms)", "Image"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	})

	c.AddCommand(&cobra.Command{
		Use:   "delete BANK_ID",
		Short: "Delete a bank and its blobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := open(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			return a.service.DeleteBank(c.Context(), args[0])
		},
	})

	return c
}

func grantCmd() *cobra.Command {
	var revoke bool

	c := &cobra.Command{
		Use:   "grant USER_ID ADMIN_BANK_ID",
		Short: "Allow a user to open a registered admin bank",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			a, err := open(c.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if revoke {
				return a.directory.Revoke(c.Context(), args[0], args[1])
			}
			return a.directory.Grant(c.Context(), args[0], args[1])
		},
	}
	c.Flags().BoolVar(&revoke, "revoke", false, "Revoke the grant instead")
	return c
}

func humanBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

func yesno(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
