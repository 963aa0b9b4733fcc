package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ble/meshaccess/cmd/meshaccessctl/compfile"
	"github.com/go-ble/meshaccess/cmd/meshaccessctl/ui"
)

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Load, register, and provision a composition",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := compfile.Load(compositionFile)
			if err != nil {
				return err
			}
			if err := comp.Register(); err != nil {
				return fmt.Errorf("register: %w", err)
			}
			comp.Provision(primaryAddr)

			rows := make([][]string, len(comp.Elements))
			for i, e := range comp.Elements {
				rows[i] = []string{
					fmt.Sprintf("%d", i),
					fmt.Sprintf("0x%04X", e.Addr()),
					fmt.Sprintf("0x%04X", e.Location),
					fmt.Sprintf("%d", len(e.SigModels)),
					fmt.Sprintf("%d", len(e.VendorModels)),
				}
			}
			fmt.Println(ui.Table(
				[]string{"#", "Address", "Location", "SIG Models", "Vendor Models"},
				rows,
			))
			fmt.Println(ui.Muted(fmt.Sprintf("registered %d element(s), CID=0x%04X PID=0x%04X VID=0x%04X", len(comp.Elements), comp.CID, comp.PID, comp.VID)))
			return nil
		},
	}
}
