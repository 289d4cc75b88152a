package ui

import (
	"fmt"
	"io"
	"math/rand"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

const bannerText = `
 █████╗ ██╗   ██╗ █████╗ ████████╗██╗   ██╗██████╗ ███████╗
██╔══██╗██║   ██║██╔══██╗╚══██╔══╝██║   ██║██╔══██╗██╔════╝
███████║██║   ██║███████║   ██║   ██║   ██║██████╔╝█████╗
██╔══██║╚██╗ ██╔╝██╔══██║   ██║   ██║   ██║██╔══██╗██╔══╝
██║  ██║ ╚████╔╝ ██║  ██║   ██║   ╚██████╔╝██║  ██║███████╗
╚═╝  ╚═╝  ╚═══╝  ╚═╝  ╚═╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝╚══════╝
 ats job scraper
`

// ColorizeText fades the text between two random colors
func ColorizeText(text string) string {
	random := rand.New(rand.NewSource(time.Now().UnixNano()))

	startColor := pterm.NewRGB(uint8(random.Intn(256)), uint8(random.Intn(256)), uint8(random.Intn(256)))
	endColor := pterm.NewRGB(uint8(random.Intn(256)), uint8(random.Intn(256)), uint8(random.Intn(256)))

	chars := []rune(text)
	half := len(chars) / 2
	if half == 0 {
		return text
	}

	var b strings.Builder
	for i, ch := range chars {
		b.WriteString(startColor.Fade(0, float32(len(chars)), float32(i%half), endColor).Sprint(string(ch)))
	}
	return b.String()
}

// PrintBanner writes the colored banner unless silenced
func PrintBanner(w io.Writer, silence bool) {
	if silence {
		return
	}
	fmt.Fprintln(w, ColorizeText(bannerText))
}

// Hyperlink wraps text in an OSC 8 terminal hyperlink to url
func Hyperlink(url, text string, enabled bool) string {
	if !enabled || url == "" {
		return text
	}
	// BEL terminator for wider terminal support
	return fmt.Sprintf("\033]8;;%s\a%s\033]8;;\a", url, text)
}
