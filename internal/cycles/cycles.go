// Package cycles validates clearing-cycle payloads on ingress.
//
// The payload maps an equivalent code to {cycles: Cycle[]}, each cycle an
// ordered list of debt edges. It is checked against a CUE schema before any
// decoding, so a malformed element fails the whole payload instead of being
// coerced into a zero value.
package cycles

import (
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/roach88/trustlens/internal/envelope"
	"github.com/roach88/trustlens/internal/model"
)

const schemaSource = `
#Edge: {
	equivalent: string & !=""
	debtor:     string & !=""
	creditor:   string & !=""
	amount:     (string & =~"^-?[0-9]+(\\.[0-9]+)?$") | number
	...
}

#ClearingCycles: [string]: {
	cycles: [...[...#Edge]]
	...
}
`

// Validate checks raw JSON against the clearing-cycles schema.
func Validate(raw []byte) error {
	// cue.Context is not safe for concurrent use; build one per call.
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile clearing-cycles schema: %w", err)
	}

	data := ctx.CompileBytes(raw)
	if err := data.Err(); err != nil {
		return fmt.Errorf("parse clearing cycles: %s", cueerrors.Details(err, nil))
	}

	def := schema.LookupPath(cue.ParsePath("#ClearingCycles"))
	unified := def.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid clearing cycles: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// Decode validates raw and decodes it. Schema violations are raised as
// INVALID_RESPONSE failures.
func Decode(raw []byte) (model.ClearingCycles, error) {
	if err := Validate(raw); err != nil {
		return nil, envelope.Wrap(0, envelope.CodeInvalidResponse, err.Error(), err)
	}
	var out model.ClearingCycles
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, envelope.Wrap(0, envelope.CodeInvalidResponse, "decode clearing cycles", err)
	}
	if out == nil {
		out = model.ClearingCycles{}
	}
	return out, nil
}

// Count returns the total number of cycles across equivalents.
func Count(c model.ClearingCycles) int {
	n := 0
	for _, set := range c {
		n += len(set.Cycles)
	}
	return n
}
