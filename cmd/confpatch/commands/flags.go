package commands

import (
	"os"

	"github.com/spf13/pflag"
)

// directiveFlags override the recipe's directive definition.
type directiveFlags struct {
	preset        string
	block         string
	pattern       string
	literal       string
	commentPrefix string
}

func addDirectiveFlags(fs *pflag.FlagSet, f *directiveFlags) {
	fs.StringVar(&f.preset, "preset", "", "built-in directive preset (see 'confpatch presets')")
	fs.StringVar(&f.block, "block", "", "name of the block that must contain the directive")
	fs.StringVar(&f.pattern, "pattern", "", "regular expression matching directive lines")
	fs.StringVar(&f.literal, "directive", "", "line inserted when the block lacks the directive")
	fs.StringVar(&f.commentPrefix, "comment-prefix", "", "marker used to disable lines outside the block (default \"#\")")
}

// runtimeFlags configure the journal, metrics, tracing and logging.
type runtimeFlags struct {
	journal       string
	metricsFile   string
	trace         string
	traceEndpoint string
	logFormat     string
}

func addRuntimeFlags(fs *pflag.FlagSet, f *runtimeFlags) {
	fs.StringVar(&f.journal, "journal", os.Getenv("CONFPATCH_JOURNAL"), "SQLite run journal path (env CONFPATCH_JOURNAL)")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after each run")
	fs.StringVar(&f.trace, "trace", "none", "trace exporter: none, stdout or otlp")
	fs.StringVar(&f.traceEndpoint, "trace-endpoint", "localhost:4317", "OTLP collector endpoint")
	fs.StringVar(&f.logFormat, "log-format", "console", "log format: console or json")
}

// applyFlags control how a file is written.
type applyFlags struct {
	backup bool
	dryRun bool
	diff   bool
}

func addApplyFlags(fs *pflag.FlagSet, f *applyFlags) {
	fs.BoolVar(&f.backup, "backup", false, "copy the file to <file>.bak before rewriting it")
	fs.BoolVar(&f.dryRun, "dry-run", false, "report what would change without writing")
	fs.BoolVar(&f.diff, "diff", false, "print a unified diff of the change")
}
