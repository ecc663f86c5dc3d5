package commands

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/d-j-hatton/python-smartem/aggregate"
	"github.com/d-j-hatton/python-smartem/errors"
)

// StatsCmd aggregates metrics at one level of the hierarchy
var StatsCmd = &cobra.Command{
	Use:   "stats <exposure|foil-hole|grid-square|atlas> <name>",
	Short: "Aggregate metrics for an exposure, foil hole, grid square or atlas",
	Long: `stats — Aggregate metrics at one level of the hierarchy

Exposure keys give one value per exposure, particle and particle set keys one
value per particle. Requesting both averages particle values per exposure.
Owners missing any requested key are dropped.

Examples:
  smartem stats exposure FoilHole_1_Data_2 --particle-keys score
  smartem stats foil-hole FoilHole_1 --exposure-keys defocus --particle-keys score
  smartem stats grid-square GridSquare_7 --exposure-keys defocus
  smartem stats atlas 3 --particle-set-keys resolution --metrics-out smartem.prom`,
	Args: cobra.ExactArgs(2),
	RunE: runStats,
}

var (
	exposureKeysFlag    []string
	particleKeysFlag    []string
	particleSetKeysFlag []string
	averageFlag         bool
	missingFlag         float64
	metricsOutFlag      string
)

func init() {
	StatsCmd.Flags().StringSliceVar(&exposureKeysFlag, "exposure-keys", nil, "Exposure level metric keys")
	StatsCmd.Flags().StringSliceVar(&particleKeysFlag, "particle-keys", nil, "Particle level metric keys")
	StatsCmd.Flags().StringSliceVar(&particleSetKeysFlag, "particle-set-keys", nil, "Particle set level metric keys")
	StatsCmd.Flags().BoolVar(&averageFlag, "average", false, "Average particle values per exposure")
	StatsCmd.Flags().Float64Var(&missingFlag, "missing", 0, "Summarise missing values as this number instead of skipping them")
	StatsCmd.Flags().StringVar(&metricsOutFlag, "metrics-out", "", "Write query metrics to this file in prometheus text format")
}

func statsRequest() aggregate.Request {
	return aggregate.Request{
		ExposureKeys:     exposureKeysFlag,
		ParticleKeys:     particleKeysFlag,
		ParticleSetKeys:  particleSetKeysFlag,
		AverageParticles: averageFlag,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	level, name := args[0], args[1]
	req := statsRequest()
	if req.Mode() == aggregate.ModeNone {
		return errors.WithHint(errors.NewInvalidRequestError("no metric keys requested"),
			"list the keys of a project with: smartem keys --project <name>")
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	var fill *float64
	if cmd.Flags().Changed("missing") {
		fill = &missingFlag
	}

	data := pterm.TableData{{"Owner", "Key", "N", "Mean", "Min", "Max"}}
	switch level {
	case "exposure":
		if len(req.ExposureKeys) > 0 {
			return errors.WithHint(errors.NewInvalidRequestError("exposure keys have one value per exposure"),
				"aggregate them at the foil hole or grid square level")
		}
		series, err := s.api.GetExposureStatsMulti(ctx, name, req.ParticleKeys)
		if err != nil {
			return err
		}
		sets, err := s.api.GetExposureStatsParticleSetMulti(ctx, name, req.ParticleSetKeys)
		if err != nil {
			return err
		}
		for k, v := range sets {
			series[k] = v
		}
		data = appendSummary(data, name, aggregate.Result{Keys: req.Keys(), Series: series}, fill)
	case "foil-hole":
		res, err := s.api.GetFoilHoleStatsAll(ctx, name, req)
		if err != nil {
			return err
		}
		data = appendSummary(data, name, res, fill)
	case "grid-square":
		res, err := s.api.GetGridSquareStatsFlat(ctx, name, req)
		if err != nil {
			return err
		}
		data = appendSummary(data, name, res, fill)
		data = appendGroups(data, res)
	case "atlas":
		atlasID, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			return errors.NewInvalidRequestError("atlas id %q is not a number", name)
		}
		stats, err := s.api.GetAtlasStatsFlat(ctx, atlasID, req)
		if err != nil {
			return err
		}
		for _, gs := range stats {
			data = appendSummary(data, gs.GridSquare, gs.Result, fill)
		}
	default:
		return errors.NewInvalidRequestError("unknown level %q: want exposure, foil-hole, grid-square or atlas", level)
	}

	if err := renderTable(cmd, data); err != nil {
		return err
	}
	if metricsOutFlag != "" {
		if err := s.recorder.WriteTextfile(metricsOutFlag); err != nil {
			return err
		}
		pterm.Info.Printf("Wrote query metrics to %s\n", metricsOutFlag)
	}
	return nil
}

func appendSummary(data pterm.TableData, owner string, res aggregate.Result, fill *float64) pterm.TableData {
	for _, k := range res.Keys {
		values := res.Series[k]
		if fill != nil {
			values = aggregate.Coerce(values, *fill)
		}
		row := summarise(values)
		data = append(data, append([]string{owner, k}, row...))
	}
	return data
}

// appendGroups lists the per foil hole means of a grid square.
func appendGroups(data pterm.TableData, res aggregate.Result) pterm.TableData {
	for _, group := range res.GroupOrder {
		for _, k := range res.Keys {
			data = append(data, []string{"  " + group, k, "", formatValue(res.Groups[k][group]), "", ""})
		}
	}
	return data
}

// summarise returns count, mean, min and max of the values that are present.
func summarise(values []float64) []string {
	present := make([]float64, 0, len(values))
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if aggregate.IsMissing(v) {
			continue
		}
		present = append(present, v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if len(present) == 0 {
		return []string{"0", "-", "-", "-"}
	}
	return []string{
		strconv.Itoa(len(present)),
		formatValue(aggregate.Mean(present)),
		formatValue(lo),
		formatValue(hi),
	}
}

func formatValue(v float64) string {
	if aggregate.IsMissing(v) {
		return "-"
	}
	return fmt.Sprintf("%.4g", v)
}
