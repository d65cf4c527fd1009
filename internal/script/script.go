// Package script builds the console command sequences sent to the engine.
//
// Every step returns an ordered list; each command is sent and then paired
// with exactly one wait for the ready prompt.
package script

import (
	"fmt"
	"time"

	"github.com/GovindGNampoothiri/windCode/internal/event"
)

// Command is one console line and the pause before it is sent
type Command struct {
	Text  string
	Delay time.Duration
}

// Params are the literal constants of the analysis sequence
type Params struct {
	StartupScript string
	CompileFiles  []string
	// InputAbort answers an input request the analysis cannot satisfy
	InputAbort string

	Duration    int
	MemSize     int
	LoadMemSize int
	Quality     int

	Species   string
	MagField  string
	SolarWind string
	SCPot     string

	NumPA int
	VLIM  string
	NGrid int
	GNorm string

	XSize    int
	AspectXZ string
	AspectPA string
	Units    string
	EBins    string
}

// DefaultParams returns the values used by the analyser scripts
func DefaultParams() Params {
	return Params{
		StartupScript: "@./wind_3dp_pros/start_umn_3dp.pro",
		CompileFiles:  []string{"get_3dp_structs.pro"},
		InputAbort:    "retall",
		Duration:      24,
		MemSize:       150,
		LoadMemSize:   300,
		Quality:       2,
		Species:       "el",
		MagField:      "wi_B3(GSE)",
		SolarWind:     "V_sw2",
		SCPot:         "sc_pot_2",
		NumPA:         17,
		VLIM:          "2d4",
		NGrid:         30,
		GNorm:         "gnoem",
		XSize:         18,
		AspectXZ:      "0.727",
		AspectPA:      "1.454",
		Units:         "flux",
		EBins:         "[0L,8L]",
	}
}

// Builder renders command lists for one profile
type Builder struct {
	Profile Profile
	Params  Params
}

// NewBuilder creates a builder
func NewBuilder(profile Profile, params Params) *Builder {
	return &Builder{Profile: profile, Params: params}
}

func (b *Builder) base(text string) Command {
	return Command{Text: text, Delay: b.Profile.Delays.Base}
}

// Startup loads the toolkit and compiles helper routines. The first command
// answers the startup prompt; the rest answer the ready prompt.
func (b *Builder) Startup() []Command {
	cmds := []Command{b.base(b.Params.StartupScript + " ")}
	for _, f := range b.Params.CompileFiles {
		cmds = append(cmds, b.base(".compile "+f))
	}
	return cmds
}

// Setup defines the per-event variables and creates the output directory
func (b *Builder) Setup(d event.Date, outDir string) []Command {
	return []Command{
		b.base(fmt.Sprintf("date='%s'", d.IDLDate())),
		b.base(fmt.Sprintf("duration=%d", b.Params.Duration)),
		b.base("tra=" + d.TraLiteral()),
		b.base("trange=time_double(tra)"),
		b.base(fmt.Sprintf("memsize=%d", b.Params.MemSize)),
		b.base(fmt.Sprintf("file_mkdir,'%s' ", outDir)),
	}
}

// Load reads 3DP data starting at the window
func (b *Builder) Load(d event.Date, w event.Window) Command {
	return b.base(fmt.Sprintf("load_3dp_data,'%s',duration,Quality=%d,MEMSIZE=%d",
		w.LoadTime(d), b.Params.Quality, b.Params.LoadMemSize))
}

// Calibrate is the checkpoint command. Its reply may be the ready prompt,
// an input request or the missing-moments message.
func (b *Builder) Calibrate() Command {
	return b.base("pesa_low_moment_calibrate,DATE=date,TRANGE=trange ")
}

// AbortInput answers a pending input request so the console returns to
// the ready prompt
func (b *Builder) AbortInput() Command {
	return b.base(b.Params.InputAbort)
}

// ElectronPrep builds the electron structures with field, wind and
// potential attached
func (b *Builder) ElectronPrep() []Command {
	prep := b.Profile.Delays.Prep
	return []Command{
		b.base(fmt.Sprintf("dat1=get_3dp_structs('%s',TRANGE=trange) ", b.Params.Species)),
		{Text: " ael=dat1.DATA", Delay: prep},
		{Text: fmt.Sprintf("add_magf2,ael,'%s' ", b.Params.MagField), Delay: prep},
		{Text: fmt.Sprintf("add_vsw2,ael,'%s' ", b.Params.SolarWind), Delay: prep},
		{Text: fmt.Sprintf("add_scpot,ael,'%s' ", b.Params.SCPot), Delay: prep},
	}
}

// RecordCount asks for the number of records. The output preceding the
// prompt of the last command ends with the count.
func (b *Builder) RecordCount() []Command {
	prep := b.Profile.Delays.Prep
	return []Command{
		{Text: "ar_size=size(ael)", Delay: prep},
		{Text: "total_plots=ar_size[1] ", Delay: prep},
		{Text: "print,total_plots", Delay: prep},
	}
}

// RecordInput names the outputs of one record
type RecordInput struct {
	Index int
	// PlotPrefix is <dir>/evdf_<yr>_<mn>_<day>_<index>
	PlotPrefix string
	// DumpPath is the absolute numeric dump file
	DumpPath string
}

// Record returns the full sequence for one record
func (b *Builder) Record(in RecordInput) []Command {
	d := b.Profile.Delays
	// The first record follows the preparation pause; later ones follow a
	// closed plot
	lead := d.Prep
	if in.Index > 0 {
		lead = d.Settle
	}
	at := func(text string) Command { return Command{Text: text, Delay: lead} }

	cmds := []Command{
		at(fmt.Sprintf("el=ael[%d] ", in.Index)),
		at("del=convert_vframe(el,/INTERP) "),
		at(fmt.Sprintf("pd=pad(del,NUM_PA=%dL) ", b.Params.NumPA)),
		at("df=distfunc(pd.ENERGY,pd.ANGLES,MASS=pd.MASS,DF=pd.DATA) "),
		at("extract_tags, del,df "),
		at("dat=el "),
		at(fmt.Sprintf("dfra=%s ", b.Profile.DFRA)),
	}

	contour := fmt.Sprintf("del,VLIM=%s,NGRID=%dL,GNORM=%s,/HEAT_F,MYONEC=dat,DFRA=dfra ",
		b.Params.VLIM, b.Params.NGrid, b.Params.GNorm)

	if !b.Profile.Plots {
		return append(cmds, Command{
			Text:  fmt.Sprintf("cont2d_edited,'%s',%s", in.DumpPath, contour),
			Delay: d.Plot,
		})
	}

	cmds = append(cmds, b.device(at, b.Params.AspectXZ, in.PlotPrefix+"_xz.ps")...)
	cmds = append(cmds,
		Command{Text: fmt.Sprintf("cont2d_edited,'%s',%s", in.DumpPath, contour), Delay: d.Plot},
		Command{Text: "cont2d," + contour, Delay: d.Plot},
		Command{Text: "device, /close ", Delay: d.Plot},
	)

	settle := func(text string) Command { return Command{Text: text, Delay: d.Settle} }
	cmds = append(cmds, b.device(settle, b.Params.AspectPA, in.PlotPrefix+"_pitch_angle.ps")...)
	cmds = append(cmds,
		settle(fmt.Sprintf("my_padplot_both_edited,pd,UNITS='%s', EBINS=%s", b.Params.Units, b.Params.EBins)),
		settle("device, /close "),
	)
	return cmds
}

// device opens a PostScript file sized for aspect
func (b *Builder) device(mk func(string) Command, aspect, filename string) []Command {
	return []Command{
		mk(fmt.Sprintf(" aspect_ratio=%s ", aspect)),
		mk(fmt.Sprintf("xsize=%d", b.Params.XSize)),
		mk("ysize=xsize/aspect_ratio "),
		mk("set_plot, 'ps' "),
		mk(fmt.Sprintf("device,filename='%s',/COLOR, BITS=24", filename)),
		mk("device, xsize=xsize, ysize=ysize "),
	}
}

// Texts returns the command lines without delays
func Texts(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Text
	}
	return out
}
