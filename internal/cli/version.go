package cli

import (
	"fmt"

	"github.com/noded/noded/internal/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("noded", version.GetVersion())
	},
}
