// cmd/thumbgen derives the thumbnail set for a local image without the
// database or message bus.
//
// Usage:
//
//	thumbgen -input photo.jpg -out ./thumbs
//	thumbgen -input photo.webp -probe
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kjiezl/qwepic-dev/internal/config"
	"github.com/kjiezl/qwepic-dev/internal/img"
)

func main() {
	input := flag.String("input", "", "Input image path (required)")
	out := flag.String("out", "", "Output directory (default: next to the input)")
	probe := flag.Bool("probe", false, "Show format and dimensions only")
	noUpscale := flag.Bool("no-upscale", false, "Never scale images up")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := config.NewLogger("tint", level)
	codecs := img.DefaultRegistry()

	if *probe {
		if err := runProbe(os.Stdout, codecs, *input); err != nil {
			fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	dir := *out
	if dir == "" {
		dir = filepath.Dir(*input)
	}
	th := img.NewThumbnailer(img.Options{
		UploadsDir:   filepath.Dir(*input),
		ThumbDir:     dir,
		AllowUpscale: !*noUpscale,
		Codecs:       codecs,
		Logger:       logger,
	})
	res := th.Regenerate(filepath.Base(*input))
	printResult(os.Stdout, res)
	if res.Succeeded() == 0 {
		os.Exit(1)
	}
}

func runProbe(w io.Writer, codecs *img.Registry, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	codec, cfg, err := codecs.Probe(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "format:  %s\n", codec.Format)
	fmt.Fprintf(w, "mime:    %s\n", codec.MimeType)
	fmt.Fprintf(w, "size:    %dx%d\n", cfg.Width, cfg.Height)
	fmt.Fprintf(w, "alpha:   %t\n", codec.Alpha)
	return nil
}

func printResult(w io.Writer, res img.Result) {
	for _, s := range res.Sizes {
		if s.Status == img.SizeSucceeded {
			fmt.Fprintf(w, "ok    %-7s %4dx%-4d %s\n", s.Name, s.Width, s.Height, s.Path)
			continue
		}
		reason := "unknown error"
		if s.Err != nil {
			reason = s.Err.Error()
		}
		fmt.Fprintf(w, "fail  %-7s %s\n", s.Name, reason)
	}
	if len(res.Sizes) == 0 {
		fmt.Fprintln(w, "no thumbnails generated")
	}
	fmt.Fprintf(w, "%d/%d sizes written\n", res.Succeeded(), len(res.Sizes))
}
