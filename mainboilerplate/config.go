package mainboilerplate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

// ConfigSearchPaths returns directories in which an INI configuration file
// is searched for, in order:
//   - The current working directory.
//   - ~/.config/streams (under the users's $HOME or %UserProfile% directory).
//   - $APPLICATION_CONFIG_ROOT, if set.
func ConfigSearchPaths() []string {
	var out = []string{
		".",
		filepath.Join(os.Getenv("HOME"), ".config", "streams"),
		filepath.Join(os.Getenv("UserProfile"), ".config", "streams"),
	}
	if root := os.Getenv("APPLICATION_CONFIG_ROOT"); root != "" {
		out = append(out, root)
	}
	return out
}

// ParseConfig parses the Parser from the combination of an optional INI
// file named |configName|, configured environment bindings, and |args|.
// The first INI file found within |searchPaths| is used.
func ParseConfig(parser *flags.Parser, configName string, searchPaths []string, args []string) error {
	// Allow unknown options while parsing an INI file.
	var origOptions = parser.Options
	parser.Options |= flags.IgnoreUnknown

	var iniParser = flags.NewIniParser(parser)

	for _, prefix := range searchPaths {
		var path = filepath.Join(prefix, configName)

		if err := iniParser.ParseFile(path); err == nil {
			break
		} else if os.IsNotExist(err) {
			// Pass.
		} else {
			parser.Options = origOptions
			return errors.WithMessagef(err, "parsing %s", path)
		}
	}

	// Restore original options for parsing argument flags.
	parser.Options = origOptions
	_, err := parser.ParseArgs(args)
	return err
}

// MustParseConfig requires that the Parser parse from the combination of an
// optional INI file found within ConfigSearchPaths, configured environment
// bindings, and explicit flags.
func MustParseConfig(parser *flags.Parser, configName string) {
	var err = ParseConfig(parser, configName, ConfigSearchPaths(), os.Args[1:])
	if err == nil {
		return
	}
	var flagErr, ok = err.(*flags.Error)
	if !ok {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch flagErr.Type {
	case flags.ErrDuplicatedFlag, flags.ErrTag, flags.ErrInvalidTag, flags.ErrShortNameTooLong, flags.ErrMarshal:
		// These error types indicate a problem in the configuration object
		// |parser| was asked to parse (eg, a developer error rather than input error).
		panic(err)

	case flags.ErrHelp:
		if parser.Options&flags.PrintErrors == 0 {
			parser.WriteHelp(os.Stderr)
		}
		fmt.Fprintf(os.Stderr, "\nVersion %s, built at %s.\n", Version, BuildDate)
		os.Exit(1)

	default:
		// Other error types indicate a problem of input. Generally, `go-flags`
		// already prints a helpful message and we can simply exit.
		os.Exit(1)
	}
}

// WriteConfig writes the combined configuration of the Parser to |w| in
// INI format, including defaults and descriptions. It helps users check
// whether their applications are configured as they expect.
func WriteConfig(w io.Writer, parser *flags.Parser) {
	flags.NewIniParser(parser).Write(w,
		flags.IniIncludeComments|flags.IniCommentDefaults|flags.IniIncludeDefaults)
}
