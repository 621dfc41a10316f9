package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/isoko-app/isoko/internal/directory"
	"github.com/spf13/cobra"
)

func newVendorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vendor",
		Short: "Manage the vendor directory",
	}
	cmd.AddCommand(newVendorAddCmd())
	cmd.AddCommand(newVendorListCmd())
	cmd.AddCommand(newVendorRemoveCmd())
	return cmd
}

func newVendorAddCmd() *cobra.Command {
	var name, phone, vendorType, flowType string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a vendor for a negotiation flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			v, err := directory.Register(conn, directory.RegisterOpts{
				Name:       name,
				Phone:      phone,
				VendorType: vendorType,
				FlowType:   flowType,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s) for flow %s\n", v.ID, v.Name, v.FlowType)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "vendor name (required)")
	cmd.Flags().StringVar(&phone, "phone", "", "vendor phone (required)")
	cmd.Flags().StringVar(&vendorType, "type", "", "vendor type, e.g. pharmacy, driver")
	cmd.Flags().StringVar(&flowType, "flow", "", "negotiation flow type (required)")
	return cmd
}

func newVendorListCmd() *cobra.Command {
	var flowType string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered vendors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			vendors, err := directory.List(conn, flowType)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPHONE\tTYPE\tFLOW\tACTIVE")
			for _, v := range vendors {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", v.ID, v.Name, v.Phone, v.VendorType, v.FlowType, v.Active)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&flowType, "flow", "", "filter by flow type")
	return cmd
}

func newVendorRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <vendor-id>",
		Short: "Deactivate a vendor (keeps its history)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			conn, err := openDB(cfg)
			if err != nil {
				return err
			}
			if err := directory.Deactivate(conn, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", args[0])
			return nil
		},
	}
}
