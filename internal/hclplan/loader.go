package hclplan

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/runcore/internal/ctxlog"
)

// fileSchema is the top-level structure of a plan file.
var fileSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "variables"},
		{Type: "buffer", LabelNames: []string{"name"}},
		{Type: "unit", LabelNames: []string{"kind", "name"}},
	},
}

// unitListSchema matches the nested unit blocks of control-flow bodies.
var unitListSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "unit", LabelNames: []string{"kind", "name"}},
	},
}

// rawBlock captures a nested block body verbatim for recursive decoding.
type rawBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Load reads and decodes one plan file.
func Load(ctx context.Context, path string) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading plan file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing plan '%s': %w", path, diags)
	}

	plan, err := decodePlan(ctx, file.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding plan '%s': %w", path, err)
	}
	logger.Debug("Plan loaded.", "buffers", len(plan.Buffers), "units", len(plan.Units))
	return plan, nil
}

func decodePlan(ctx context.Context, body hcl.Body) (*Plan, error) {
	content, diags := body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, diags
	}

	evalCtx, err := buildEvalContext(content)
	if err != nil {
		return nil, err
	}

	plan := &Plan{}
	for _, block := range content.Blocks {
		switch block.Type {
		case "buffer":
			b, err := decodeBuffer(block, evalCtx)
			if err != nil {
				return nil, err
			}
			plan.Buffers = append(plan.Buffers, b)
		case "unit":
			u, err := decodeUnit(ctx, block, evalCtx)
			if err != nil {
				return nil, err
			}
			plan.Units = append(plan.Units, u)
		}
	}
	return plan, nil
}

// buildEvalContext evaluates the variables block (if any) into the `var.*`
// namespace used by every other expression in the plan.
func buildEvalContext(content *hcl.BodyContent) (*hcl.EvalContext, error) {
	vars := make(map[string]cty.Value)
	for _, block := range content.Blocks {
		if block.Type != "variables" {
			continue
		}
		attrs, diags := block.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, diags
		}
		for name, attr := range attrs {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("evaluating variable '%s': %w", name, diags)
			}
			vars[name] = val
		}
	}

	evalCtx := &hcl.EvalContext{Variables: map[string]cty.Value{}}
	if len(vars) > 0 {
		evalCtx.Variables["var"] = cty.ObjectVal(vars)
	}
	return evalCtx, nil
}

func decodeBuffer(block *hcl.Block, evalCtx *hcl.EvalContext) (*Buffer, error) {
	var schema struct {
		Size int64 `hcl:"size"`
	}
	if diags := gohcl.DecodeBody(block.Body, evalCtx, &schema); diags.HasErrors() {
		return nil, fmt.Errorf("buffer '%s': %w", block.Labels[0], diags)
	}
	if schema.Size <= 0 {
		return nil, fmt.Errorf("buffer '%s': size must be positive, got %d", block.Labels[0], schema.Size)
	}
	return &Buffer{Name: block.Labels[0], Size: schema.Size}, nil
}

// decodeUnit decodes one unit block into its spec; control-flow kinds
// recurse into their nested unit lists.
func decodeUnit(ctx context.Context, block *hcl.Block, evalCtx *hcl.EvalContext) (*UnitSpec, error) {
	kind, name := block.Labels[0], block.Labels[1]
	spec := &UnitSpec{Kind: kind, Name: name}
	fail := func(err error) (*UnitSpec, error) {
		return nil, fmt.Errorf("unit '%s' (%s): %w", name, kind, err)
	}

	switch kind {
	case "kernel":
		var s struct {
			Kernel string   `hcl:"kernel"`
			Reads  []string `hcl:"reads,optional"`
			Writes []string `hcl:"writes,optional"`
		}
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &s); diags.HasErrors() {
			return fail(diags)
		}
		spec.Kernel, spec.Reads, spec.Writes = s.Kernel, s.Reads, s.Writes

	case "copy":
		var s struct {
			From string `hcl:"from"`
			To   string `hcl:"to"`
		}
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &s); diags.HasErrors() {
			return fail(diags)
		}
		spec.From, spec.To = s.From, s.To

	case "rng":
		var s struct {
			State string `hcl:"state"`
			Delta int64  `hcl:"delta,optional"`
		}
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &s); diags.HasErrors() {
			return fail(diags)
		}
		if s.Delta == 0 {
			s.Delta = 1
		}
		spec.State, spec.Delta = s.State, s.Delta

	case "infeed":
		var s struct {
			Into []string `hcl:"into"`
		}
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &s); diags.HasErrors() {
			return fail(diags)
		}
		spec.Into = s.Into

	case "outfeed":
		var s struct {
			From []string `hcl:"from"`
		}
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &s); diags.HasErrors() {
			return fail(diags)
		}
		spec.Srcs = s.From

	case "replica_id", "partition_id":
		var s struct {
			Into string `hcl:"into"`
		}
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &s); diags.HasErrors() {
			return fail(diags)
		}
		spec.Target = s.Into

	case "all_reduce":
		var s struct {
			From string `hcl:"from"`
			To   string `hcl:"to"`
		}
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &s); diags.HasErrors() {
			return fail(diags)
		}
		spec.From, spec.To = s.From, s.To

	case "call":
		units, err := decodeUnitList(ctx, block.Body, evalCtx)
		if err != nil {
			return fail(err)
		}
		spec.Units = units

	case "while":
		var s struct {
			Predicate string   `hcl:"predicate"`
			Cond      rawBlock `hcl:"cond,block"`
			Body      rawBlock `hcl:"body,block"`
		}
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &s); diags.HasErrors() {
			return fail(diags)
		}
		cond, err := decodeUnitList(ctx, s.Cond.Body, evalCtx)
		if err != nil {
			return fail(err)
		}
		body, err := decodeUnitList(ctx, s.Body.Body, evalCtx)
		if err != nil {
			return fail(err)
		}
		spec.Predicate, spec.Cond, spec.Body = s.Predicate, cond, body

	case "conditional":
		var s struct {
			Index    string     `hcl:"index"`
			Branches []rawBlock `hcl:"branch,block"`
		}
		if diags := gohcl.DecodeBody(block.Body, evalCtx, &s); diags.HasErrors() {
			return fail(diags)
		}
		if len(s.Branches) == 0 {
			return fail(fmt.Errorf("no branch blocks"))
		}
		spec.Index = s.Index
		for _, branch := range s.Branches {
			units, err := decodeUnitList(ctx, branch.Body, evalCtx)
			if err != nil {
				return fail(err)
			}
			spec.Branches = append(spec.Branches, units)
		}

	default:
		return fail(fmt.Errorf("unknown unit kind"))
	}
	return spec, nil
}

func decodeUnitList(ctx context.Context, body hcl.Body, evalCtx *hcl.EvalContext) ([]*UnitSpec, error) {
	content, diags := body.Content(unitListSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	var specs []*UnitSpec
	for _, block := range content.Blocks {
		spec, err := decodeUnit(ctx, block, evalCtx)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
