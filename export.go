package orbital

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// CgCatalog is a Cosmographia catalog.
type CgCatalog struct {
	Version string     `json:"version"`
	Name    string     `json:"name"`
	Items   []*CgItems `json:"items"`
	Require []string   `json:"require,omitempty"`
}

func (c *CgCatalog) String() string {
	return c.Name + "(" + c.Version + ")"
}

// CgItems definition.
type CgItems struct {
	Class           string            `json:"class"`
	Name            string            `json:"name"`
	StartTime       string            `json:"startTime"`
	EndTime         string            `json:"endTime"`
	Center          string            `json:"center"`
	TrajectoryFrame string            `json:"trajectoryFrame"`
	Trajectory      *CgTrajectory     `json:"trajectory,omitempty"`
	Label           *CgLabel          `json:"label,omitempty"`
	TrajectoryPlot  *CgTrajectoryPlot `json:"trajectoryPlot,omitempty"`
}

// CgTrajectory definition.
type CgTrajectory struct {
	Type   string `json:"type,omitempty"`
	Source string `json:"source,omitempty"`
}

// Validate validates a CgTrajectory.
func (t *CgTrajectory) Validate() error {
	if t.Type != "InterpolatedStates" || !strings.HasSuffix(t.Source, "xyzv") {
		return errors.New("only InterpolatedStates are currently supported in Cosmographia trajectory types")
	}
	return nil
}

// CgLabel definition.
type CgLabel struct {
	Color    []float64 `json:"color,omitempty"`
	FadeSize int       `json:"fadeSize,omitempty"`
	ShowText bool      `json:"showText,omitempty"`
}

// CgTrajectoryPlot definition.
type CgTrajectoryPlot struct {
	Color       []float64 `json:"color,omitempty"`
	LineWidth   int       `json:"lineWidth,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Lead        string    `json:"lead,omitempty"`
	Fade        int       `json:"fade,omitempty"`
	SampleCount int       `json:"sampleCount,omitempty"`
}

// CgInterpolatedState is one line of an xyzv file.
type CgInterpolatedState struct {
	JD       float64
	Position []float64
	Velocity []float64
}

// FromText initializes from the seven fields of a record.
func (i *CgInterpolatedState) FromText(record []string) error {
	if len(record) != 7 {
		return fmt.Errorf("expected 7 fields, got %d", len(record))
	}
	vals := make([]float64, 7)
	for j, field := range record {
		val, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return err
		}
		vals[j] = val
	}
	i.JD = vals[0]
	i.Position = vals[1:4]
	i.Velocity = vals[4:7]
	return nil
}

// ToText converts to text for written output.
func (i *CgInterpolatedState) ToText() string {
	return fmt.Sprintf("%f %f %f %f %f %f %f", i.JD, i.Position[0], i.Position[1], i.Position[2], i.Velocity[0], i.Velocity[1], i.Velocity[2])
}

// ParseInterpolatedStates reads the states of an xyzv file.
func ParseInterpolatedStates(r io.Reader) ([]*CgInterpolatedState, error) {
	var states []*CgInterpolatedState
	cr := csv.NewReader(r)
	cr.Comma = ' '
	cr.Comment = '#'
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return states, nil
		} else if err != nil {
			return nil, err
		}
		state := CgInterpolatedState{}
		if err := state.FromText(record); err != nil {
			return nil, err
		}
		states = append(states, &state)
	}
}

// csvHeader are the columns written for every state.
var csvHeader = []string{"time", "jd", "elapsed_s", "x_km", "y_km", "z_km", "vx_kms", "vy_kms", "vz_kms", "altitude_km", "x_fixed_km", "y_fixed_km", "z_fixed_km", "mass_kg"}

// ExportConfig configures the exporting of the propagation.
type ExportConfig struct {
	Filename     string
	OutputDir    string // Defaults to the working directory
	Cosmo        bool
	AsCSV        bool
	Timestamp    bool
	Every        time.Duration                  // Minimum time between two exported states, zero exports all
	Center       string                         // Name of the primary in the Cosmographia catalog
	CSVAppend    func(st MissionState) []string // Custom columns
	CSVAppendHdr func() []string                // Header for the custom columns
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.Cosmo && !c.AsCSV
}

func (c ExportConfig) path(prefix, ext string) string {
	name := prefix + "-" + c.Filename
	if c.Timestamp {
		t := time.Now()
		name += fmt.Sprintf("-%d-%02d-%02dT%02d.%02d.%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return filepath.Join(c.OutputDir, name+"."+ext)
}

// CSVPath returns the path of the CSV file, ignoring the timestamp.
func (c ExportConfig) CSVPath() string {
	c.Timestamp = false
	return c.path("states", "csv")
}

// XYZVPath returns the path of the Cosmographia trajectory file, ignoring the timestamp.
func (c ExportConfig) XYZVPath() string {
	c.Timestamp = false
	return c.path("prop", "xyzv")
}

// exporter holds the open files of StreamStates.
type exporter struct {
	conf     ExportConfig
	xyzv     *os.File
	xyzvBuf  *bufio.Writer
	csvFile  *os.File
	csv      *csv.Writer
	first    *MissionState
	previous *MissionState
}

func (e *exporter) open(state MissionState) error {
	if e.conf.Cosmo {
		f, err := os.Create(e.conf.path("prop", "xyzv"))
		if err != nil {
			return err
		}
		e.xyzv = f
		e.xyzvBuf = bufio.NewWriter(f)
		fmt.Fprintf(e.xyzvBuf, `# Creation date (UTC): %s
# Records are <jd> <x> <y> <z> <vel x> <vel y> <vel z>
#   Time is a UTC Julian date
#   Position in km
#   Velocity in km/sec
#   Simulation time start (UTC): %s`, time.Now().UTC(), state.DT.UTC())
	}
	if e.conf.AsCSV {
		f, err := os.Create(e.conf.path("states", "csv"))
		if err != nil {
			return err
		}
		e.csvFile = f
		fmt.Fprintf(f, "# Creation date (UTC): %s\n# Simulation time start (UTC): %s\n", time.Now().UTC(), state.DT.UTC())
		e.csv = csv.NewWriter(f)
		hdr := csvHeader
		if e.conf.CSVAppendHdr != nil {
			hdr = append(append([]string(nil), hdr...), e.conf.CSVAppendHdr()...)
		}
		if err := e.csv.Write(hdr); err != nil {
			return err
		}
	}
	return nil
}

func (e *exporter) write(state MissionState) error {
	jd := julian.TimeToJD(state.DT)
	if e.xyzvBuf != nil {
		asTxt := CgInterpolatedState{JD: jd, Position: state.RKm, Velocity: state.VKms}
		if _, err := e.xyzvBuf.WriteString("\n" + asTxt.ToText()); err != nil {
			return err
		}
	}
	if e.csv != nil {
		f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
		record := []string{state.DT.UTC().Format(time.RFC3339), strconv.FormatFloat(jd, 'f', 8, 64), f(state.Elapsed.Seconds()),
			f(state.RKm[0]), f(state.RKm[1]), f(state.RKm[2]),
			f(state.VKms[0]), f(state.VKms[1]), f(state.VKms[2]),
			f(state.Altitude),
			f(state.ECEF[0]), f(state.ECEF[1]), f(state.ECEF[2]),
			f(state.State.Mass)}
		if e.conf.CSVAppend != nil {
			record = append(record, e.conf.CSVAppend(state)...)
		}
		if err := e.csv.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func (e *exporter) close() error {
	var errs []error
	if e.xyzv != nil {
		if e.previous != nil {
			fmt.Fprintf(e.xyzvBuf, "\n# Simulation time end (UTC): %s\n", e.previous.DT.UTC())
		}
		errs = append(errs, e.xyzvBuf.Flush(), e.xyzv.Close())
		if e.previous != nil {
			errs = append(errs, e.catalog())
		}
	}
	if e.csv != nil {
		e.csv.Flush()
		errs = append(errs, e.csv.Error(), e.csvFile.Close())
	}
	return errors.Join(errs...)
}

// catalog writes the Cosmographia catalog of the trajectory.
func (e *exporter) catalog() error {
	color := []float64{0.6, 1, 1}
	longerEnd := e.previous.DT.Add(24 * time.Hour)
	center := e.conf.Center
	if center == "" {
		center = Earth.Name
	}
	item := &CgItems{Class: "spacecraft", Name: e.conf.Filename, StartTime: e.first.DT.UTC().String(), EndTime: longerEnd.UTC().String(),
		Center: center, TrajectoryFrame: "ICRF",
		Trajectory:     &CgTrajectory{Type: "InterpolatedStates", Source: filepath.Base(e.xyzv.Name())},
		Label:          &CgLabel{Color: color, FadeSize: 1000000, ShowText: true},
		TrajectoryPlot: &CgTrajectoryPlot{Color: color, LineWidth: 1, Duration: fmt.Sprintf("%d d", int(longerEnd.Sub(e.first.DT).Hours()/24+1)), Lead: "0 d", SampleCount: 10}}
	if center == Sun.Name {
		item.TrajectoryFrame = "EclipticJ2000"
	}
	marsh, err := json.Marshal(CgCatalog{Version: "1.0", Name: e.conf.Filename, Items: []*CgItems{item}})
	if err != nil {
		return err
	}
	return os.WriteFile(e.conf.path("catalog", "json"), marsh, 0644)
}

// StreamStates writes the states of the channel until it is closed. The channel is
// always drained, even after an error, so that the propagation is never blocked.
func StreamStates(conf ExportConfig, stateChan <-chan MissionState) error {
	e := &exporter{conf: conf}
	var err error
	for state := range stateChan {
		if err != nil {
			continue
		}
		if e.first == nil {
			st := state
			e.first = &st
			if err = e.open(state); err != nil {
				continue
			}
		} else if conf.Every > 0 && state.DT.Sub(e.previous.DT) < conf.Every {
			continue
		}
		st := state
		e.previous = &st
		err = e.write(state)
	}
	return errors.Join(err, e.close())
}
