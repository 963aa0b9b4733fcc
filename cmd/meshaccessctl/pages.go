package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ble/meshaccess/cmd/meshaccessctl/compfile"
	"github.com/go-ble/meshaccess/cmd/meshaccessctl/ui"
	"github.com/go-ble/meshaccess/composition"
	"github.com/go-ble/meshaccess/page"
)

func newPagesCmd() *cobra.Command {
	var which []int
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Serialize and hex-dump composition data pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			comp, err := compfile.Load(compositionFile)
			if err != nil {
				return err
			}
			if err := comp.Register(); err != nil {
				return fmt.Errorf("register: %w", err)
			}
			comp.Provision(primaryAddr)

			if len(which) == 0 {
				which = []int{0, 1, 2}
			}
			for _, p := range which {
				buf, err := materializePage(comp, p)
				if err != nil {
					return err
				}
				fmt.Println(ui.Accent(fmt.Sprintf("page %d (%d bytes)", p, len(buf))))
				fmt.Println(hex.Dump(buf))
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVarP(&which, "page", "P", nil, "pages to dump (default: 0,1,2)")
	return cmd
}

func materializePage(comp *composition.Composition, p int) ([]byte, error) {
	switch p {
	case 0:
		return materialize(page.Page0Size(comp), func(off int, dst []byte) (int, bool) {
			return page.GetPage0(comp, off, dst, true)
		})
	case 1:
		return materialize(page.Page1Size(comp), func(off int, dst []byte) (int, bool) {
			return page.GetPage1(comp, off, dst, true)
		})
	case 2:
		return materialize(page.Page2Size(comp), func(off int, dst []byte) (int, bool) {
			return page.GetPage2(comp, off, dst, true)
		})
	default:
		return nil, fmt.Errorf("unsupported page %d (use 0, 1, or 2)", p)
	}
}

// materialize drains a GetPageN-shaped reader in one call, sized by its
// companion PageNSize: the streaming contract (§4.3) lets a caller
// request the whole page in one shot by passing a destination at least
// that large.
func materialize(size int, get func(offset int, dst []byte) (n int, truncated bool)) ([]byte, error) {
	buf := make([]byte, size)
	n, truncated := get(0, buf)
	if truncated {
		return nil, fmt.Errorf("page serialization truncated unexpectedly (got %d of %d bytes)", n, size)
	}
	return buf[:n], nil
}
