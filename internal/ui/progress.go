package ui

import (
	"io"

	"github.com/cheggaaa/pb/v3"

	"github.com/amazonking-dev/avature-ats-scraper/internal/pipeline"
)

const enrichTemplate = `{{string . "prefix"}} {{counters . }} {{bar . }} {{percent . }}`

// EnrichBar draws one progress bar per site while job details are fetched
type EnrichBar struct {
	w      io.Writer
	silent bool
	bar    *pb.ProgressBar
}

var _ pipeline.Progress = (*EnrichBar)(nil)

// NewEnrichBar returns a bar writing to w. A silent bar draws nothing.
func NewEnrichBar(w io.Writer, silent bool) *EnrichBar {
	return &EnrichBar{w: w, silent: silent}
}

func (b *EnrichBar) Start(site string, total int) {
	if b.silent {
		return
	}
	b.bar = pb.New(total).
		SetTemplateString(enrichTemplate).
		SetWriter(b.w).
		Set("prefix", site)
	b.bar.Start()
}

func (b *EnrichBar) Increment() {
	if b.bar != nil {
		b.bar.Increment()
	}
}

func (b *EnrichBar) Finish() {
	if b.bar != nil {
		b.bar.Finish()
		b.bar = nil
	}
}
