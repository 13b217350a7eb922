package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saveecobot/ecosensor/internal/config"
	"github.com/saveecobot/ecosensor/internal/entity"
	"github.com/saveecobot/ecosensor/internal/provider/resilience"
)

var sensorsFlags struct {
	city         string
	stationIDs   []string
	cityNames    []string
	stationNames []string
	json         bool
}

var sensorsCmd = &cobra.Command{
	Use:   "sensors",
	Short: "Set up sensors once and print their state",
	Long: `Set up sensors from the configured selection, or from the selection flags
when any is given, and print their current state.`,
	Args: cobra.NoArgs,
	RunE: runSensors,
}

func init() {
	f := sensorsCmd.Flags()
	f.StringVar(&sensorsFlags.city, "city", "", "entry selection: every station of this city")
	f.StringSliceVar(&sensorsFlags.stationIDs, "station-id", nil, "station ids (entry or platform selection)")
	f.StringSliceVar(&sensorsFlags.cityNames, "city-name", nil, "platform selection: city names")
	f.StringSliceVar(&sensorsFlags.stationNames, "station-name", nil, "platform selection: station names")
	f.BoolVar(&sensorsFlags.json, "json", false, "print sensors as JSON")
	rootCmd.AddCommand(sensorsCmd)
}

func flagSelection(cmd *cobra.Command) (config.SelectionConfig, bool) {
	f := cmd.Flags()
	if !f.Changed("city") && !f.Changed("station-id") && !f.Changed("city-name") && !f.Changed("station-name") {
		return config.SelectionConfig{}, false
	}
	return config.SelectionConfig{
		City:         sensorsFlags.city,
		StationIDs:   sensorsFlags.stationIDs,
		CityNames:    sensorsFlags.cityNames,
		StationNames: sensorsFlags.stationNames,
	}, true
}

type sensorView struct {
	UniqueID   string         `json:"unique_id"`
	Name       string         `json:"name"`
	Available  bool           `json:"available"`
	State      *float64       `json:"state"`
	Unit       string         `json:"unit_of_measurement"`
	Attributes map[string]any `json:"attributes"`
}

func runSensors(cmd *cobra.Command, _ []string) error {
	sel := app.cfg.Selection
	if override, ok := flagSelection(cmd); ok {
		sel = override
	}

	svc := newStationService(app.cfg.API, app.logger, resilience.NewRegistry(), nil)
	sensors, err := setupSensors(cmd.Context(), svc, sel, app.logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sensorsFlags.json {
		views := make([]sensorView, 0, len(sensors))
		for _, s := range sensors {
			views = append(views, sensorView{
				UniqueID:   s.UniqueID(),
				Name:       s.Name(),
				Available:  s.Available(),
				State:      s.NativeValue(),
				Unit:       s.Unit(),
				Attributes: s.ExtraAttributes(),
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	if len(sensors) == 0 {
		fmt.Fprintln(out, "no sensors match the selection")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIQUE ID\tNAME\tSTATE\tUNIT")
	for _, s := range sensors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.UniqueID(), s.Name(), formatState(s), s.Unit())
	}
	return tw.Flush()
}

func formatState(s *entity.Sensor) string {
	v := s.NativeValue()
	if v == nil {
		return "unavailable"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
