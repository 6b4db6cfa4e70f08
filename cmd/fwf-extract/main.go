// Command fwf-extract decodes a LAS 1.3 full-waveform file, reconstructs its
// pulses and writes them out as ASCII tables, plots, an HTML chart or rows
// in a SQLite database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/waveform.report/internal/config"
	"github.com/banshee-data/waveform.report/internal/fsutil"
	"github.com/banshee-data/waveform.report/internal/lidar/export"
	"github.com/banshee-data/waveform.report/internal/lidar/scan"
	"github.com/banshee-data/waveform.report/internal/lidar/storage/sqlite"
	"github.com/banshee-data/waveform.report/internal/monitoring"
	"github.com/banshee-data/waveform.report/internal/timeutil"
	"github.com/banshee-data/waveform.report/internal/version"
)

// Config holds the command line options.
type Config struct {
	File       string
	ConfigPath string
	Mode       string
	Class      int
	Bounds     string // north,south,west,east
	ChunkSize  int
	ASCIIDir   string
	PlotDir    string
	PlotFormat string
	ChartPath  string
	DBPath     string
	JSON       bool
	Verbose    bool
}

// Summary is printed once per scan result.
type Summary struct {
	File   string     `json:"file"`
	Kind   scan.Kind  `json:"kind"`
	Chunk  int        `json:"chunk"`
	Pulses int        `json:"pulses"`
	Stats  scan.Stats `json:"stats"`
	RunID  string     `json:"run_id,omitempty"`
	ASCII  int        `json:"ascii_files,omitempty"`
	Plots  int        `json:"plots,omitempty"`
	Chart  string     `json:"chart,omitempty"`

	MissionStart *time.Time `json:"mission_start,omitempty"` // GPS time scale
}

func main() {
	cfg, showVersion := parseFlags(os.Args[1:])
	if showVersion {
		fmt.Println(version.String("fwf-extract"))
		return
	}
	if cfg.File == "" {
		log.Fatal("LAS file is required (-file)")
	}
	if err := run(context.Background(), cfg, os.Stdout); err != nil {
		log.Fatalf("fwf-extract: %v", err)
	}
}

func parseFlags(args []string) (Config, bool) {
	cfg := Config{}
	fs := flag.NewFlagSet("fwf-extract", flag.ExitOnError)
	showVersion := fs.Bool("version", false, "Print version and exit")

	fs.StringVar(&cfg.File, "file", "", "Path to the LAS 1.3 waveform file")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Scan configuration JSON (defaults apply when empty)")
	fs.StringVar(&cfg.Mode, "mode", "all", "Scan mode: all, class, bounds, chunk")
	fs.IntVar(&cfg.Class, "class", 1, "Classification to keep in class mode")
	fs.StringVar(&cfg.Bounds, "bounds", "", "Bounds for bounds mode: north,south,west,east")
	fs.IntVar(&cfg.ChunkSize, "chunk", 0, "Point records per chunk in chunk mode (0 uses the config)")
	fs.StringVar(&cfg.ASCIIDir, "ascii", "", "Directory for one ASCII file per waveform")
	fs.StringVar(&cfg.PlotDir, "plot", "", "Directory for one plot per waveform")
	fs.StringVar(&cfg.PlotFormat, "plot-format", "png", "Plot format: png, svg, pdf")
	fs.StringVar(&cfg.ChartPath, "chart", "", "HTML chart output path")
	fs.StringVar(&cfg.DBPath, "db", "", "SQLite database to store scan runs in")
	fs.BoolVar(&cfg.JSON, "json", false, "Print summaries as JSON lines")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Enable per-record diagnostics")

	_ = fs.Parse(args)
	return cfg, *showVersion
}

func loadConfig(path string) (*config.ScanConfig, error) {
	if path == "" {
		return config.EmptyScanConfig(), nil
	}
	return config.LoadScanConfig(path)
}

func run(ctx context.Context, cfg Config, out io.Writer) error {
	monitoring.SetVerbose(cfg.Verbose)

	scanCfg, err := loadConfig(cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s, err := scan.Open(cfg.File, scan.OptionsFromConfig(scanCfg))
	if err != nil {
		return err
	}
	defer s.Close()

	var store *sqlite.Store
	if cfg.DBPath != "" {
		store, err = sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	w := &writer{
		cfg:    cfg,
		start:  missionStart(s),
		scan:   scanCfg,
		fsys:   fsutil.OSFileSystem{},
		store:  store,
		out:    out,
		params: map[string]any{"mode": cfg.Mode},
	}

	var tracker scan.Tracker
	defer tracker.ReleaseAll()

	switch cfg.Mode {
	case "all":
		res, err := s.ScanAll()
		if err != nil {
			return err
		}
		return w.emit(ctx, tracker.Track(res))
	case "class":
		w.params["class"] = cfg.Class
		res, err := s.ScanByClassification(cfg.Class)
		if err != nil {
			return err
		}
		return w.emit(ctx, tracker.Track(res))
	case "bounds":
		n, so, we, e, err := parseBounds(cfg.Bounds)
		if err != nil {
			return err
		}
		w.params["bounds"] = []float64{n, so, we, e}
		res, err := s.ScanByBounds(n, so, we, e)
		if err != nil {
			return err
		}
		return w.emit(ctx, tracker.Track(res))
	case "chunk":
		size := cfg.ChunkSize
		if size <= 0 {
			size = scanCfg.GetChunkSize()
		}
		w.params["chunk_size"] = size
		it := s.Chunks()
		for {
			res, err := it.Next(size)
			if errors.Is(err, scan.ErrNoMoreData) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := w.emit(ctx, res); err != nil {
				res.Release()
				return err
			}
			res.Release()
		}
	}
	return fmt.Errorf("unknown mode %q", cfg.Mode)
}

// writer sends each scan result to the configured outputs.
type writer struct {
	cfg    Config
	scan   *config.ScanConfig
	fsys   fsutil.FileSystem
	store  *sqlite.Store
	out    io.Writer
	params map[string]any
	start  *time.Time
}

// missionStart reads the mission's GPS week and seconds, when the file
// carries a mission info record.
func missionStart(s *scan.Scanner) *time.Time {
	m := s.Metadata().Mission
	if m == nil {
		return nil
	}
	t := timeutil.GPSWeekTime(int(m.GPSWeek), float64(m.GPSSecondsOfWeek))
	return &t
}

func (w *writer) emit(ctx context.Context, res *scan.Result) error {
	pulses := res.Manager.Pulses()
	sum := Summary{File: w.cfg.File, Kind: res.Kind, Chunk: res.Chunk, Pulses: len(pulses), Stats: res.Stats, MissionStart: w.start}
	suffix := ""
	if res.Kind == scan.KindChunk {
		suffix = fmt.Sprintf("chunk_%04d", res.Chunk)
	}

	if w.cfg.ASCIIDir != "" {
		n, err := export.WriteAll(w.fsys, filepath.Join(w.cfg.ASCIIDir, suffix), res.Manager)
		if err != nil {
			return err
		}
		sum.ASCII = n
	}
	if w.cfg.PlotDir != "" {
		size := export.PlotSizeFromConfig(w.scan)
		dir := filepath.Join(w.cfg.PlotDir, suffix)
		for _, p := range pulses {
			if _, err := export.PlotWaveform(w.fsys, dir, p, size, w.cfg.PlotFormat); err != nil {
				return err
			}
			sum.Plots++
		}
	}
	if w.cfg.ChartPath != "" && len(pulses) > 0 {
		path := w.cfg.ChartPath
		if suffix != "" {
			ext := filepath.Ext(path)
			path = strings.TrimSuffix(path, ext) + "_" + suffix + ext
		}
		opts := export.ChartOptions{AssetsHost: w.scan.GetEChartsAssetsHost(), Title: filepath.Base(w.cfg.File)}
		if err := export.WriteWaveformChart(w.fsys, path, pulses, opts); err != nil {
			return err
		}
		sum.Chart = path
	}
	if w.store != nil {
		params := w.params
		if res.Kind == scan.KindChunk {
			params = map[string]any{"chunk": res.Chunk}
			for k, v := range w.params {
				params[k] = v
			}
		}
		run, err := w.store.SaveResult(ctx, w.cfg.File, res, params)
		if err != nil {
			return err
		}
		sum.RunID = run.RunID
	}
	return w.print(sum)
}

func (w *writer) print(sum Summary) error {
	if w.cfg.JSON {
		return json.NewEncoder(w.out).Encode(sum)
	}
	st := sum.Stats
	_, err := fmt.Fprintf(w.out, "%s [%s %d]: %d records, %d pulses, %d attached, %d dropped, %d unassociated, %d ignored, %d filtered, %d noise\n",
		filepath.Base(sum.File), sum.Kind, sum.Chunk, st.Records, sum.Pulses, st.Attached, st.Dropped,
		st.Unassociated, st.Ignored, st.Filtered, st.Noise)
	return err
}

// parseBounds reads "north,south,west,east".
func parseBounds(s string) (north, south, west, east float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("bounds must be north,south,west,east, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		v[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("bounds value %q: %w", p, err)
		}
	}
	return v[0], v[1], v[2], v[3], nil
}
