package store

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"btfast/internal/btferr"
	"btfast/internal/search"
)

// TextStore persists each ResultSet as a human-readable file under Dir,
// named "<runID>.txt": a leading block of "# key: value" metadata lines, a
// "# columns: ..." header naming the fixed metric columns followed by the
// parameter columns, then one comma-separated row per StrategyRow. This is
// the format spec §6 mandates for result files, transaction lists and
// performance reports alike.
type TextStore struct {
	Dir string
}

func (s TextStore) path(runID string) string {
	return s.Dir + "/" + runID + ".txt"
}

// WriteStrategies renders set to "<Dir>/<set.RunID>.txt", overwriting any
// existing file.
func (s TextStore) WriteStrategies(set ResultSet) error {
	if set.RunID == "" {
		return fmt.Errorf("%wresult set has no run id", btferr.Configuration)
	}
	f, err := os.Create(s.path(set.RunID))
	if err != nil {
		return fmt.Errorf("%wcreate result file: %v", btferr.Data, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# run_id: %s\n", set.RunID)
	keys := make([]string, 0, len(set.Meta))
	for k := range set.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "# %s: %s\n", k, set.Meta[k])
	}
	params := paramNames(set.Rows)
	fmt.Fprintf(w, "# columns: %s\n", strings.Join(append(append([]string{}, columns...), params...), ","))
	for _, row := range set.Rows {
		vals := rowValues(row, params)
		strs := make([]string, len(vals))
		for i, v := range vals {
			strs[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		fmt.Fprintln(w, strings.Join(strs, ","))
	}
	return w.Flush()
}

// ReadStrategies parses back the file written by WriteStrategies.
func (s TextStore) ReadStrategies(runID string) (ResultSet, error) {
	f, err := os.Open(s.path(runID))
	if err != nil {
		return ResultSet{}, fmt.Errorf("%wopen result file: %v", btferr.Data, err)
	}
	defer f.Close()

	set := ResultSet{RunID: runID, Meta: map[string]string{}}
	var params []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			k, v, ok := strings.Cut(body, ":")
			if !ok {
				continue
			}
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			switch k {
			case "run_id":
				set.RunID = v
			case "columns":
				cols := strings.Split(v, ",")
				if len(cols) >= len(columns) {
					params = cols[len(columns):]
				}
			default:
				set.Meta[k] = v
			}
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < len(columns) {
			return ResultSet{}, fmt.Errorf("%wresult row has too few columns", btferr.Data)
		}
		vals := make([]float64, len(fields))
		for i, fv := range fields {
			vals[i], err = strconv.ParseFloat(fv, 64)
			if err != nil {
				return ResultSet{}, fmt.Errorf("%wresult row field %q: %v", btferr.Data, fv, err)
			}
		}
		row := search.StrategyRow{
			NTrades:      vals[0],
			AvgTicks:     vals[1],
			WinPerc:      vals[2],
			ProfitFactor: vals[3],
			NetPLOverMDD: vals[4],
			Expectancy:   vals[5],
			ZScore:       vals[6],
		}
		for i, name := range params {
			if len(columns)+i >= len(vals) {
				break
			}
			row.Params = append(row.Params, search.Gene{Name: name, Value: int(vals[len(columns)+i])})
		}
		set.Rows = append(set.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return ResultSet{}, fmt.Errorf("%wscan result file: %v", btferr.Data, err)
	}
	return set, nil
}
