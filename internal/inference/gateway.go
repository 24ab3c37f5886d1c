package inference

import (
	"context"
	"fmt"
	"log"
	"reflect"
)

// strictSystem is appended on the retry attempt.
const strictSystem = "Return only valid JSON. Do not truncate the output. No explanations, no markdown."

// Request is one structured-output question for the model.
type Request struct {
	System       string
	Prompt       string
	Image        []byte // optional
	ImageMIME    string
	Model        string
	Temperature  float64
	MaxTokens    int64
	EnableSearch bool
}

// generator executes a single raw model call. It returns the answer text
// (reasoning segments already discarded) and the attempt's usage counters.
type generator interface {
	generate(ctx context.Context, req Request) (text string, usage Usage, err error)
}

// Gateway runs structured-output requests on the shared validation/retry
// protocol: validate, retry exactly once on truncation or malformed output
// with temperature forced to 0 and a stricter system instruction, never retry
// an empty response. Usage from failed attempts is counted too.
type Gateway struct {
	gen     generator
	pricing Pricing
	retries int
}

// NewGateway wires a gateway over an Anthropic-backed generator.
func NewGateway(client anthropicClient, pricing Pricing, retries int) *Gateway {
	return &Gateway{
		gen:     &anthropicGenerator{client: client},
		pricing: pricing,
		retries: retries,
	}
}

func newGatewayWith(gen generator, pricing Pricing, retries int) *Gateway {
	return &Gateway{gen: gen, pricing: pricing, retries: retries}
}

// Ask issues the request, validates the response into out, and returns the
// usage accumulated over every attempt made. On permanent failure the
// accumulated usage is still returned: a failed call consumed inference
// resources all the same.
func (g *Gateway) Ask(ctx context.Context, req Request, out any) (Usage, error) {
	total := Usage{}

	attempt := req
	for i := 0; ; i++ {
		text, usage, err := g.gen.generate(ctx, attempt)
		usage.Cost = g.pricing.Cost(usage)
		total = total.Add(usage)
		if err != nil {
			return total, err
		}

		if text == "" {
			return total, ErrEmptyResponse
		}

		vErr := decodeInto(text, out)
		if vErr == nil {
			return total, nil
		}
		if vErr == ErrEmptyResponse || !retryable(vErr) || i >= g.retries {
			return total, vErr
		}

		log.Printf("inference: validation failed (%v), retrying with temperature 0", vErr)
		attempt = req
		attempt.Temperature = 0
		if attempt.System != "" {
			attempt.System += "\n" + strictSystem
		} else {
			attempt.System = strictSystem
		}
	}
}

// decodeInto decodes into a fresh value and assigns it to out only on
// success. A rejected attempt may partially unmarshal before failing; fields
// it populated must never survive into a later attempt's result.
func decodeInto(text string, out any) error {
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return fmt.Errorf("inference: out must be a non-nil pointer, got %T", out)
	}
	tmp := reflect.New(dst.Elem().Type())
	if err := decodeResponse(text, tmp.Interface()); err != nil {
		return err
	}
	dst.Elem().Set(tmp.Elem())
	return nil
}
