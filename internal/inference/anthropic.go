package inference

import (
	"context"
	"encoding/base64"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

type anthropicClient = anthropic.Client

// anthropicGenerator executes one Messages API call. Reasoning ("thinking")
// blocks are discarded here, at the capability boundary, so no downstream
// component ever parses a reasoning trace as data.
type anthropicGenerator struct {
	client anthropic.Client
}

func (a *anthropicGenerator) generate(ctx context.Context, req Request) (string, Usage, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   req.MaxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, 2)
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/jpeg"
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(req.Image)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))
	params.Messages = []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)}

	if req.EnableSearch {
		params.Tools = []anthropic.ToolUnionParam{{
			OfWebSearchTool20250305: &anthropic.WebSearchTool20250305Param{
				MaxUses: anthropic.Int(3),
			},
		}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", Usage{}, err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	usage := Usage{
		PromptTokens:   msg.Usage.InputTokens,
		OutputTokens:   msg.Usage.OutputTokens,
		SearchRequests: msg.Usage.ServerToolUse.WebSearchRequests,
		// Thinking tokens are already included in OutputTokens on this API;
		// providers that report them separately fill ThoughtTokens.
	}
	usage.TotalTokens = usage.PromptTokens + usage.OutputTokens + usage.ThoughtTokens
	return sb.String(), usage, nil
}
