package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/mikesamuel/fir/internal/config"
	"github.com/mikesamuel/fir/internal/evaluator"
	"github.com/mikesamuel/fir/internal/loader"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: fir [flags] <program%s> [input-file]\n", config.ManifestFileExt)
	flag.PrintDefaults()
}

func main() {
	inputFlag := flag.String("input", "", "input string passed to main (wins over the input file)")
	printResult := flag.Bool("print-result", false, "print the value returned by main")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Println("fir", config.Version)
		return
	}

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		usage()
		os.Exit(2)
	}

	input := *inputFlag
	if input == "" && len(args) == 2 {
		data, err := os.ReadFile(args[1])
		if err != nil {
			fatal(err)
		}
		input = string(data)
	}

	decls, err := loader.LoadFile(args[0])
	if err != nil {
		fatal(err)
	}

	e, err := evaluator.New(os.Stdout, decls)
	if err != nil {
		fatal(err)
	}
	result, err := e.RunMain(input)
	if err != nil {
		fatal(err)
	}

	if *printResult {
		fmt.Println(e.RenderValue(result))
	}
}

func fatal(err error) {
	prefix := "error:"
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		prefix = "\x1b[31merror:\x1b[0m"
	}
	fmt.Fprintln(os.Stderr, prefix, err)
	os.Exit(1)
}
