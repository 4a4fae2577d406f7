package status

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"syllasync/internal/model"
)

// Presentation is the display triple for one processing stage.
type Presentation struct {
	Icon  string
	Color string // hex, e.g. "#4caf50"
	Label string
}

var presentations = map[model.Stage]Presentation{
	model.StagePDFExtraction:  {Icon: "📄", Color: "#2196f3", Label: "Extracting"},
	model.StageAIProcessing:   {Icon: "🤖", Color: "#ff9800", Label: "Processing"},
	model.StageCalendarUpdate: {Icon: "📅", Color: "#9c27b0", Label: "Updating calendar"},
	model.StageComplete:       {Icon: "✅", Color: "#4caf50", Label: "Complete"},
	model.StageError:          {Icon: "❌", Color: "#f44336", Label: "Failed"},
}

var fallback = Presentation{Icon: "⏳", Color: "#757575", Label: "Pending"}

// Present maps a stage to its icon, color and label. Unknown stages get a
// neutral grey presentation.
func Present(stage model.Stage) Presentation {
	if p, ok := presentations[stage]; ok {
		return p
	}
	return fallback
}

// terminal colors approximating the hex palette.
var terminal = map[string]*color.Color{
	"#2196f3": color.New(color.FgBlue),
	"#ff9800": color.New(color.FgYellow),
	"#9c27b0": color.New(color.FgMagenta),
	"#4caf50": color.New(color.FgGreen),
	"#f44336": color.New(color.FgRed),
	"#757575": color.New(color.FgHiBlack),
}

// Render writes one line per stage: "<icon> <filename>" followed by the
// indented status text.
func Render(w io.Writer, stages []model.ProcessingStage) {
	for _, st := range stages {
		p := Present(st.Stage)
		c := terminal[p.Color]
		c.Fprintf(w, "%s %s", p.Icon, st.Filename)
		fmt.Fprintln(w)
		if st.Status != "" {
			fmt.Fprintf(w, "   %s\n", st.Status)
		}
	}
}

// RenderOutcome prints the outcome message in green or red according to its
// explicit kind.
func RenderOutcome(w io.Writer, o model.Outcome) {
	if o.Message == "" {
		return
	}
	c := color.New(color.FgGreen, color.Bold)
	if o.IsError() {
		c = color.New(color.FgRed, color.Bold)
	}
	c.Fprintln(w, o.Message)
}
