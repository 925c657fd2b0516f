package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ericogr/hczj3-to-mqtt/pkg/config"
	"github.com/ericogr/hczj3-to-mqtt/pkg/humidity"
)

func setupLogger(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hczj3-to-mqtt",
		Short:         "Publish HCZ-J3 relative humidity read through an ADS1115",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := config.BindFlags(cmd.Flags())
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(flags)
		if err != nil {
			return err
		}
		if err := setupLogger(cfg.LogLevel); err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	}
	cmd.AddCommand(newEstimateCommand())
	return cmd
}

func newEstimateCommand() *cobra.Command {
	var (
		temperature float64
		impedance   float64
		legacy      bool
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Convert a single temperature/impedance pair to relative humidity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := humidity.New(humidity.WithLegacyAnchorReuse(legacy))
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", e.EstimateRH(temperature, impedance))
			return nil
		},
	}
	cmd.Flags().Float64VarP(&temperature, "temperature", "t", 25, "Ambient temperature in °C")
	cmd.Flags().Float64VarP(&impedance, "impedance", "z", 0, "Sensor impedance in ohms")
	cmd.Flags().BoolVar(&legacy, "legacy-anchor-reuse", true, "Reuse the lower row anchor when interpolating the upper temperature row")
	_ = cmd.MarkFlagRequired("impedance")
	return cmd
}

func main() {
	if err := NewCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
