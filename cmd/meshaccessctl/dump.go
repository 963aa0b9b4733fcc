package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ble/meshaccess/cmd/meshaccessctl/compfile"
	"github.com/go-ble/meshaccess/cmd/meshaccessctl/ui"
	"github.com/go-ble/meshaccess/composition"
)

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print every element's models with extension and publish state",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := compfile.Load(compositionFile)
			if err != nil {
				return err
			}
			if err := comp.Register(); err != nil {
				return fmt.Errorf("register: %w", err)
			}
			comp.Provision(primaryAddr)

			var rows [][]string
			for ei, e := range comp.Elements {
				for mi, m := range e.SigModels {
					rows = append(rows, modelRow(ei, mi, "sig", m))
				}
				for mi, m := range e.VendorModels {
					rows = append(rows, modelRow(ei, len(e.SigModels)+mi, "vnd", m))
				}
			}
			fmt.Println(ui.Table(
				[]string{"Elem", "ModIdx", "Kind", "Model ID", "Extended", "Publishes"},
				rows,
			))
			return nil
		},
	}
}

func modelRow(elemIdx, modIdx int, kind string, m *composition.Model) []string {
	var idStr string
	if m.ID.Vendor {
		idStr = fmt.Sprintf("%04X:%04X", m.ID.Company, m.ID.VndID)
	} else {
		idStr = fmt.Sprintf("0x%04X", m.ID.SigID)
	}
	publishes := "-"
	if m.HasPub() {
		publishes = fmt.Sprintf("dst=0x%04X", m.Pub.Addr)
	}
	return []string{
		fmt.Sprintf("%d", elemIdx),
		fmt.Sprintf("%d", modIdx),
		kind,
		idStr,
		fmt.Sprintf("%v", m.Extended()),
		publishes,
	}
}
