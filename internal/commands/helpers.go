package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/campusdesk/campus/internal/api"
	"github.com/campusdesk/campus/internal/appctx"
	"github.com/campusdesk/campus/internal/output"
	"github.com/campusdesk/campus/internal/school"
	"github.com/campusdesk/campus/internal/tui"
)

// prompts are the interactive forms; tests replace them.
var prompts = struct {
	interactive      func(cmd *cobra.Command, app *appctx.App) bool
	confirm          func(message string, defaultValue bool) (bool, error)
	confirmDangerous func(message string) (bool, error)
	secret           func(title string) (string, error)
}{
	interactive:      canPrompt,
	confirm:          tui.Confirm,
	confirmDangerous: tui.ConfirmDangerous,
	secret:           tui.SecretInput,
}

// canPrompt reports whether both stdin and stdout are terminals and no
// machine-readable output was requested.
func canPrompt(cmd *cobra.Command, app *appctx.App) bool {
	in, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(in.Fd()) && app.IsInteractive()
}

// paramsFlag collects repeated -P key=value pairs into a query.
type paramsFlag api.Query

var _ pflag.Value = (*paramsFlag)(nil)

func (p *paramsFlag) String() string {
	if p == nil || len(*p) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(*p))
	for k, v := range *p {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (p *paramsFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	if *p == nil {
		*p = make(paramsFlag)
	}
	(*p)[key] = value
	return nil
}

func (p *paramsFlag) Type() string { return "key=value" }

func addParamsFlag(fs *pflag.FlagSet, p *paramsFlag) {
	fs.VarP(p, "param", "P", "Query parameter (repeatable), e.g. -P status=open")
}

// query builds request params: configured branch and academic year first,
// then explicit -P values.
func query(app *appctx.App, extra paramsFlag) api.Query {
	q := api.Query{}
	if app.Config.BranchID != "" {
		q["branch"] = app.Config.BranchID
	}
	if app.Config.AcademicYearID != "" {
		q["academic_year"] = app.Config.AcademicYearID
	}
	for k, v := range extra {
		q[k] = v
	}
	return q
}

// readData parses a JSON request body. "@path" reads a file and "-" reads
// stdin.
func readData(arg string, stdin io.Reader) (any, error) {
	if arg == "" {
		return nil, output.ErrUsageHint("Request body required", `Pass --data '{"name": "..."}', --data @file.json or --data -`)
	}

	var raw []byte
	var err error
	switch {
	case arg == "-":
		raw, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		raw, err = os.ReadFile(strings.TrimPrefix(arg, "@")) //nolint:gosec // G304: user-supplied input file
	default:
		raw = []byte(arg)
	}
	if err != nil {
		return nil, output.ErrUsage(fmt.Sprintf("reading request body: %v", err))
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, output.ErrUsage(fmt.Sprintf("request body is not valid JSON: %v", err))
	}
	if _, ok := body.(map[string]any); !ok {
		return nil, output.ErrUsage("request body must be a JSON object")
	}
	return body, nil
}

// completeResources completes the first argument with catalog names.
// With listOnly, single-object resources are left out.
func completeResources(listOnly bool) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var names []string
		for _, e := range school.Entries() {
			if listOnly && e.Kind != school.KindList {
				continue
			}
			if strings.HasPrefix(e.Name, toComplete) {
				names = append(names, e.Name+"\t"+e.Area)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}
