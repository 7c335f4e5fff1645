package rater

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Rating is a parsed model score for one section.
type Rating struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale,omitempty"`
}

const ratingSchemaJSON = `{
  "type": "object",
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "rationale": {"type": "string"}
  },
  "required": ["score"]
}`

var ratingSchema = mustCompileSchema("rating.json", ratingSchemaJSON)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader([]byte(src))); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

var (
	numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

	injectionPattern = regexp.MustCompile(
		`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
			`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
			`new\s+instructions)`,
	)
)

const maxRationaleLen = 500

// ParseRating reads a model reply. It accepts the requested JSON object
// and, failing that, the first number in the reply.
func ParseRating(reply string) (Rating, error) {
	text := stripCodeBlock(reply)
	if text == "" {
		return Rating{}, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		if obj, ok := v.(map[string]any); ok {
			if s, ok := obj["score"].(float64); ok && (s < 0 || s > 100) {
				return Rating{}, fmt.Errorf("%w: %g", ErrOutOfRange, s)
			}
			if err := ratingSchema.Validate(v); err != nil {
				return Rating{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			r := Rating{Score: obj["score"].(float64)}
			r.Rationale, _ = obj["rationale"].(string)
			return clean(r), nil
		}
	}

	m := numberRe.FindString(text)
	if m == "" {
		return Rating{}, fmt.Errorf("%w: no score in %q", ErrMalformedResponse, truncate(text, 80))
	}
	score, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(score) {
		return Rating{}, fmt.Errorf("%w: bad number %q", ErrMalformedResponse, m)
	}
	if score < 0 || score > 100 {
		return Rating{}, fmt.Errorf("%w: %g", ErrOutOfRange, score)
	}
	return Rating{Score: score}, nil
}

// clean drops rationales that try to steer the evaluator and caps length.
func clean(r Rating) Rating {
	r.Rationale = strings.TrimSpace(r.Rationale)
	if injectionPattern.MatchString(r.Rationale) {
		r.Rationale = ""
	}
	r.Rationale = truncate(r.Rationale, maxRationaleLen)
	return r
}
