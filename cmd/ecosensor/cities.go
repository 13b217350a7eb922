package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saveecobot/ecosensor/internal/entity"
	"github.com/saveecobot/ecosensor/internal/provider/resilience"
)

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "List cities with SaveEcoBot stations",
	Args:  cobra.NoArgs,
	RunE:  runCities,
}

var stationsCmd = &cobra.Command{
	Use:   "stations CITY",
	Short: "List the stations of a city",
	Long:  `List the stations of a city as "<station id> - <station name>" lines.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runStations,
}

func init() {
	rootCmd.AddCommand(citiesCmd)
	rootCmd.AddCommand(stationsCmd)
}

func runCities(cmd *cobra.Command, _ []string) error {
	svc := newStationService(app.cfg.API, app.logger, resilience.NewRegistry(), nil)
	if err := loadStations(cmd.Context(), svc); err != nil {
		return err
	}

	n := entity.ShowCities(svc)
	fmt.Fprintln(cmd.OutOrStdout(), n.Message)
	return nil
}

func runStations(cmd *cobra.Command, args []string) error {
	svc := newStationService(app.cfg.API, app.logger, resilience.NewRegistry(), nil)
	if err := loadStations(cmd.Context(), svc); err != nil {
		return err
	}

	n := entity.ShowCityStations(svc, args[0])
	fmt.Fprintln(cmd.OutOrStdout(), n.Message)
	return nil
}
