package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/theapemachine/errnie"
)

var rootCmd = &cobra.Command{
	Use:   "qfragile",
	Short: "Watch an image fall apart as it runs through a noisy quantum circuit",
	Long: `qfragile sends an image, standing in for quantum information, through a
circuit of gates on a small qubit register. Gate errors, decoherence and noise
blur, pixelate, tint and fade it a little more with every step.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		errnie.Error(err)
		os.Exit(1)
	}
}
