package main

import (
	"flag"

	"github.com/pkg/errors"

	"github.com/forgepm/forge/internal/core/unitgraph"
)

const buildGraphShortHelp = `Lower a resolved dependency graph into compilation units`
const buildGraphLongHelp = `
Resolves the current package's dependency graph, then lowers it into the
unit graph (spec.md build_unit_graph) that would be compiled, printing one
line per root unit.
`

type buildGraphCommand struct {
	resolveCommand
	target string
	triple string
}

func (cmd *buildGraphCommand) Name() string      { return "build-graph" }
func (cmd *buildGraphCommand) Args() string      { return "" }
func (cmd *buildGraphCommand) ShortHelp() string { return buildGraphShortHelp }
func (cmd *buildGraphCommand) LongHelp() string  { return buildGraphLongHelp }

func (cmd *buildGraphCommand) Register(fs *flag.FlagSet) {
	cmd.resolveCommand.Register(fs)
	fs.StringVar(&cmd.target, "bin", "main", "name of the root binary target to build")
	fs.StringVar(&cmd.triple, "target", "", "target triple to compile for (empty: host)")
}

func (cmd *buildGraphCommand) Run(ctx *Ctx, args []string) error {
	g, err := cmd.plan(ctx)
	if err != nil {
		return err
	}
	for _, uid := range g.Roots {
		u := g.Units[uid]
		ctx.Out.Printf("%s\t%s\t%s", u.ID, u.Mode, u.Kind)
	}
	return nil
}

func (cmd *buildGraphCommand) plan(ctx *Ctx) (*unitgraph.Graph, error) {
	resolve, rootID, _, err := cmd.resolveCommand.solve(ctx)
	if err != nil {
		return nil, err
	}

	plans := []unitgraph.PackagePlan{
		{
			Package: rootID,
			Targets: []unitgraph.RequestedTarget{
				{Name: cmd.target, Kind: unitgraph.TargetBinary, Path: "src/main.go", Mode: unitgraph.ModeBuild},
			},
		},
	}

	g, err := unitgraph.Build(resolve, plans, cmd.triple, unitgraph.Profile{OptLevel: "0", DebugInfo: true})
	if err != nil {
		return nil, errors.Wrap(err, "build_unit_graph failed")
	}
	return g, nil
}
