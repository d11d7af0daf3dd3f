package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voxhost/voxhost/internal/config"
	"github.com/voxhost/voxhost/internal/engine"
	"github.com/voxhost/voxhost/internal/supervisor"
)

var enginesCmd = &cobra.Command{
	Use:     "engines",
	Short:   "List known voice engines",
	Long:    paragraph(fmt.Sprintf("\nList the voice engines voxhost knows about and whether their binaries are %s under the resources directory.", keyword("installed"))),
	Example: paragraph("voxhost engines"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		sup := supervisor.New(cfg.ResourcesDir, cfg.DataDir)

		for _, d := range engine.All() {
			state := "not installed"
			if sup.IsInstalled(d) {
				state = keyword("installed")
			}
			fmt.Printf("%-12s %-16s port %-5d %s\n", d.ID, d.DisplayName, d.Port, state)
		}
		return nil
	},
}
