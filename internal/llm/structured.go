package llm

import (
	"encoding/json"

	"github.com/pavelanni/lernbot/internal/evaluation"
)

// structured applies the Schema contract of Provider to raw model output.
// Without a schema the content is returned untouched. With one, truncated
// output is an *ErrMaxTokensExceeded and the JSON payload, stripped of any
// code fence, must validate.
func structured(req Request, content json.RawMessage, stopReason string) (json.RawMessage, error) {
	if req.Schema == nil {
		return content, nil
	}
	if stopReason == "max_tokens" {
		return nil, &ErrMaxTokensExceeded{Content: content}
	}
	payload := json.RawMessage(evaluation.ExtractJSON(string(content)))
	if err := Validate(req.Schema, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
