package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/saveecobot/ecosensor/internal/config"
	"github.com/saveecobot/ecosensor/internal/entity"
	"github.com/saveecobot/ecosensor/internal/provider/resilience"
	"github.com/saveecobot/ecosensor/internal/saveecobot"
)

var configureOutput string

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Pick a city and its stations interactively",
	Long: `Pick a city and optionally some of its stations, then store the choice as
the entry selection in the config file. Choosing all stations stores no ids, so
stations added to the city later are picked up too.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	configureCmd.Flags().StringVarP(&configureOutput, "output", "o", config.DefaultFileName, "config file to write")
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	svc := newStationService(app.cfg.API, app.logger, resilience.NewRegistry(), nil)

	cities, err := entity.CityChoices(ctx, svc)
	if err != nil {
		return fmt.Errorf("load cities: %w", err)
	}

	fmt.Fprintln(out, "Cities:")
	for i, c := range cities {
		fmt.Fprintf(out, "  %3d) %s\n", i+1, c)
	}
	city, err := promptCity(in, out, cities)
	if err != nil {
		return err
	}

	refs, err := entity.StationChoices(ctx, svc, city)
	if err != nil {
		return fmt.Errorf("load stations: %w", err)
	}

	fmt.Fprintf(out, "\nStations in %s:\n", city)
	for _, ref := range refs {
		fmt.Fprintf(out, "  %s - %s\n", ref.ID, ref.Name)
	}
	selectAll, picked, err := promptStations(in, out, refs)
	if err != nil {
		return err
	}

	opts := entity.ResolveEntry(city, selectAll, picked)
	if err := writeSelection(configureOutput, opts); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%s saved to %s\n", entity.EntryTitle(city), configureOutput)
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptCity accepts a city name or its number in the list.
func promptCity(in *bufio.Reader, out io.Writer, cities []string) (string, error) {
	for {
		answer, err := prompt(in, out, "City (name or number): ")
		if err != nil {
			return "", err
		}
		if slices.Contains(cities, answer) {
			return answer, nil
		}
		var n int
		if _, scanErr := fmt.Sscanf(answer, "%d", &n); scanErr == nil && n >= 1 && n <= len(cities) {
			return cities[n-1], nil
		}
		fmt.Fprintf(out, "unknown city %q\n", answer)
	}
}

// promptStations accepts "all" (or an empty answer) or a comma separated list of station ids.
func promptStations(in *bufio.Reader, out io.Writer, refs []saveecobot.StationRef) (bool, []string, error) {
	known := make(map[string]bool, len(refs))
	for _, ref := range refs {
		known[ref.ID] = true
	}

	for {
		answer, err := prompt(in, out, "Stations (all, or ids separated by commas) [all]: ")
		if err != nil {
			return false, nil, err
		}
		if answer == "" || strings.EqualFold(answer, "all") {
			return true, nil, nil
		}

		var picked, unknown []string
		for _, id := range strings.Split(answer, ",") {
			id = strings.TrimSpace(id)
			switch {
			case id == "":
			case known[id]:
				picked = append(picked, id)
			default:
				unknown = append(unknown, id)
			}
		}
		if len(unknown) == 0 && len(picked) > 0 {
			return false, picked, nil
		}
		fmt.Fprintf(out, "unknown station ids: %s\n", strings.Join(unknown, ", "))
	}
}

// writeSelection stores opts as the entry selection, keeping other settings of an existing file.
func writeSelection(path string, opts entity.EntryOptions) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read %s: %w", path, err)
		}
	}

	v.Set("selection.city", opts.City)
	v.Set("selection.station_ids", opts.StationIDs)
	v.Set("selection.city_names", []string{})
	v.Set("selection.station_names", []string{})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
