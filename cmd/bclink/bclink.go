package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"github.com/xyproto/env/v2"

	"github.com/tetratelabs/bclink"
	"github.com/tetratelabs/bclink/bytecode"
	"github.com/tetratelabs/bclink/bytecode/text"
	"github.com/tetratelabs/bclink/internal/version"
	"github.com/tetratelabs/bclink/linker"
	"github.com/tetratelabs/bclink/linkmap"
	"github.com/tetratelabs/bclink/manifest"
)

const defaultOutput = "a.bc"

func main() {
	doMain(os.Stdout, os.Stderr, os.Exit)
}

// doMain is separated out for the purpose of unit testing.
func doMain(stdOut io.Writer, stdErr io.Writer, exit func(code int)) {
	// env caches the environment on first use, so pick up changes made since a previous call.
	env.Load()
	flag.CommandLine.SetOutput(stdErr)

	var help bool
	flag.BoolVar(&help, "h", false, "print usage")

	flag.Parse()

	if help || flag.NArg() == 0 {
		printUsage(stdErr)
		exit(0)
	}

	subCmd := flag.Arg(0)
	switch subCmd {
	case "link":
		doLink(flag.Args()[1:], stdErr, exit)
	case "cat":
		doCat(flag.Args()[1:], stdErr, exit)
	case "asm":
		doAsm(flag.Args()[1:], stdErr, exit)
	case "dump":
		doDump(flag.Args()[1:], stdOut, stdErr, exit)
	case "version":
		fmt.Fprintln(stdOut, version.GetVersion())
		exit(0)
	default:
		fmt.Fprintln(stdErr, "invalid command")
		printUsage(stdErr)
		exit(1)
	}
}

func doLink(args []string, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("link", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var output string
	flags.StringVar(&output, "o", "", "path of the linked image. Defaults to the manifest output, else "+defaultOutput)

	var allow sliceFlag
	flags.Var(&allow, "allow", "comma-separated symbols left for the loader to resolve. "+
		"This may be specified multiple times.")

	var allowPrefixes sliceFlag
	flags.Var(&allowPrefixes, "allow-prefix", "symbol prefix left for the loader to resolve, such as intrinsic. "+
		"This may be specified multiple times.")

	var gc bool
	flags.BoolVar(&gc, "gc", false, "only link code reachable from main and the -export globals")

	var exported sliceFlag
	flags.Var(&exported, "export", "comma-separated globals kept as roots with -gc. Implies -gc. "+
		"This may be specified multiple times.")

	var maxScans int
	flags.IntVar(&maxScans, "max-scans", 0, "fail when linking decodes more instruction runs than this. Zero is unbounded")

	var mapPath string
	flags.StringVar(&mapPath, "map", "", "path to write the CBOR link map to")

	var manifestPath string
	flags.StringVar(&manifestPath, "manifest", env.Str("BCLINK_MANIFEST"),
		"path to a bclink.toml manifest. Defaults to $BCLINK_MANIFEST")

	verbose := verboseFlag(flags)

	_ = flags.Parse(args)

	if help {
		printLinkUsage(stdErr, flags)
		exit(0)
	}
	configureLogging(*verbose)

	inputs := flags.Args()
	cfg := bclink.NewLinkConfig()
	if manifestPath != "" {
		m, err := manifest.LoadFile(manifestPath)
		if err != nil {
			fmt.Fprintf(stdErr, "error loading manifest: %v\n", err)
			exit(1)
		}
		if len(inputs) == 0 {
			inputs = m.Link.Inputs
		}
		if output == "" {
			output = m.Link.Output
		}
		if mapPath == "" {
			mapPath = m.Link.Map
		}
		cfg = cfg.WithAllowedSymbols(m.Policy.Allow...).WithAllowedPrefixes(m.Policy.AllowPrefixes...)
		if m.Options.MaxScans > 0 {
			cfg = cfg.WithMaxScans(m.Options.MaxScans)
		}
		if m.Options.EliminateDeadGlobals {
			cfg = cfg.WithDeadGlobalElimination(m.Options.Exported...)
		}
	}

	if len(inputs) == 0 {
		fmt.Fprintln(stdErr, "missing path to bytecode image")
		printLinkUsage(stdErr, flags)
		exit(1)
	}
	if output == "" {
		output = defaultOutput
	}

	cfg = cfg.WithAllowedSymbols(allow.split()...).WithAllowedPrefixes(allowPrefixes.split()...)
	if gc || len(exported) > 0 {
		cfg = cfg.WithDeadGlobalElimination(exported.split()...)
	}
	if maxScans > 0 {
		cfg = cfg.WithMaxScans(maxScans)
	}

	images := make([][]byte, 0, len(inputs))
	for _, in := range inputs {
		images = append(images, readImage(in, stdErr, exit))
	}

	bin, report, err := bclink.Link(cfg, images...)
	if err != nil {
		fmt.Fprintf(stdErr, "error linking: %v\n", err)
		exit(1)
	}

	log := commonlog.GetLogger("bclink.cmd")
	for _, name := range report.Externals {
		log.Noticef("external symbol %q", name)
	}
	for _, name := range report.DeadGlobals {
		log.Noticef("unreachable global %q", name)
	}

	writeFile(output, bin, stdErr, exit)
	if mapPath != "" {
		writeFile(mapPath, encodeLinkMap(bin, report, stdErr, exit), stdErr, exit)
	}
	exit(0)
}

func encodeLinkMap(bin []byte, report *linker.Report, stdErr io.Writer, exit func(code int)) []byte {
	img, err := bytecode.NewImage(bin)
	if err == nil {
		var m *linkmap.Map
		if m, err = linkmap.FromReport(img, report); err == nil {
			var ret []byte
			if ret, err = linkmap.Marshal(m); err == nil {
				return ret
			}
		}
	}
	fmt.Fprintf(stdErr, "error encoding link map: %v\n", err)
	exit(1)
	return nil
}

// doCat concatenates images without linking them, appending to the output file in place.
func doCat(args []string, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("cat", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var output string
	flags.StringVar(&output, "o", defaultOutput, "path of the concatenated image")

	verbose := verboseFlag(flags)

	_ = flags.Parse(args)

	if help {
		printCatUsage(stdErr, flags)
		exit(0)
	}
	configureLogging(*verbose)

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to bytecode image")
		printCatUsage(stdErr, flags)
		exit(1)
	}

	writeFile(output, readImage(flags.Arg(0), stdErr, exit), stdErr, exit)

	f, err := os.OpenFile(output, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(stdErr, "error opening output: %v\n", err)
		exit(1)
	}
	defer f.Close()

	for _, in := range flags.Args()[1:] {
		if _, err = f.Seek(0, io.SeekStart); err != nil {
			fmt.Fprintf(stdErr, "error seeking output: %v\n", err)
			exit(1)
		}
		if err = linker.Concatenate(f, readImage(in, stdErr, exit)); err != nil {
			fmt.Fprintf(stdErr, "error concatenating %s: %v\n", in, err)
			exit(1)
		}
	}
	if err = f.Close(); err != nil {
		fmt.Fprintf(stdErr, "error writing output: %v\n", err)
		exit(1)
	}
	exit(0)
}

func doAsm(args []string, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("asm", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	var output string
	flags.StringVar(&output, "o", defaultOutput, "path of the assembled image")

	_ = flags.Parse(args)

	if help {
		printAsmUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to assembly source")
		printAsmUsage(stdErr, flags)
		exit(1)
	}
	srcPath := flags.Arg(0)

	src, err := os.ReadFile(srcPath)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading assembly source: %v\n", err)
		exit(1)
	}

	bin, err := text.Assemble(src)
	if err != nil {
		fmt.Fprintf(stdErr, "error assembling %s:%v\n", srcPath, err)
		exit(1)
	}
	writeFile(output, bin, stdErr, exit)
	exit(0)
}

func doDump(args []string, stdOut, stdErr io.Writer, exit func(code int)) {
	flags := flag.NewFlagSet("dump", flag.ExitOnError)
	flags.SetOutput(stdErr)

	var help bool
	flags.BoolVar(&help, "h", false, "print usage")

	_ = flags.Parse(args)

	if help {
		printDumpUsage(stdErr, flags)
		exit(0)
	}

	if flags.NArg() < 1 {
		fmt.Fprintln(stdErr, "missing path to bytecode image")
		printDumpUsage(stdErr, flags)
		exit(1)
	}

	img, err := bytecode.NewImage(readImage(flags.Arg(0), stdErr, exit))
	if err != nil {
		fmt.Fprintf(stdErr, "error decoding bytecode image: %v\n", err)
		exit(1)
	}
	if err = bytecode.Disassemble(stdOut, img); err != nil {
		fmt.Fprintf(stdErr, "error disassembling: %v\n", err)
		exit(1)
	}
	exit(0)
}

func readImage(path string, stdErr io.Writer, exit func(code int)) []byte {
	bin, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stdErr, "error reading bytecode image: %v\n", err)
		exit(1)
	}
	return bin
}

func writeFile(path string, data []byte, stdErr io.Writer, exit func(code int)) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(stdErr, "error writing %s: %v\n", path, err)
		exit(1)
	}
}

func verboseFlag(flags *flag.FlagSet) *bool {
	return flags.Bool("v", env.Bool("BCLINK_VERBOSE"), "log each link step to stderr. Defaults to $BCLINK_VERBOSE")
}

// configureLogging routes logs to stderr: notices and above by default, everything down to debug when verbose.
func configureLogging(verbose bool) {
	commonlog.Configure(logVerbosity(verbose), nil)
}

// logVerbosity maps -v to a commonlog verbosity, where 0 is notice and 2 is debug.
func logVerbosity(verbose bool) int {
	if verbose {
		return 2
	}
	return 0
}

func printUsage(stdErr io.Writer) {
	fmt.Fprintln(stdErr, "bclink CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  bclink <command>")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Commands:")
	fmt.Fprintln(stdErr, "  link\t\tConcatenates and links bytecode images")
	fmt.Fprintln(stdErr, "  cat\t\tConcatenates bytecode images without linking them")
	fmt.Fprintln(stdErr, "  asm\t\tAssembles a text source into a bytecode image")
	fmt.Fprintln(stdErr, "  dump\t\tDisassembles a bytecode image")
	fmt.Fprintln(stdErr, "  version\tDisplays the version of bclink CLI")
}

func printLinkUsage(stdErr io.Writer, flags *flag.FlagSet) {
	printSubUsage(stdErr, flags, "link <options> [<path to image>...]")
}

func printCatUsage(stdErr io.Writer, flags *flag.FlagSet) {
	printSubUsage(stdErr, flags, "cat <options> <path to image>...")
}

func printAsmUsage(stdErr io.Writer, flags *flag.FlagSet) {
	printSubUsage(stdErr, flags, "asm <options> <path to source>")
}

func printDumpUsage(stdErr io.Writer, flags *flag.FlagSet) {
	printSubUsage(stdErr, flags, "dump <path to image>")
}

func printSubUsage(stdErr io.Writer, flags *flag.FlagSet, usage string) {
	fmt.Fprintln(stdErr, "bclink CLI")
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Usage:\n  bclink "+usage)
	fmt.Fprintln(stdErr)
	fmt.Fprintln(stdErr, "Options:")
	flags.PrintDefaults()
}

type sliceFlag []string

func (f *sliceFlag) String() string {
	return strings.Join(*f, ",")
}

func (f *sliceFlag) Set(s string) error {
	*f = append(*f, s)
	return nil
}

// split expands comma-separated values, dropping empty ones.
func (f sliceFlag) split() []string {
	var ret []string
	for _, v := range f {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				ret = append(ret, s)
			}
		}
	}
	return ret
}
