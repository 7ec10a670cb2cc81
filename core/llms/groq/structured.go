package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type structuredRequest struct {
	url         string
	apiKey      string
	model       string
	temperature *float64
	messages    []message
}

// promptJSONSchema asks the model for a reply matching the JSON schema of T.
func promptJSONSchema[T any](ctx context.Context, client *http.Client, request structuredRequest) (T, error) {
	ctx, span := tracer.Start(ctx, "prompt llm structured")
	defer span.End()

	var output T

	reflector := jsonschema.Reflector{DoNotReference: true}
	outputType := reflect.TypeOf(output)
	schema := reflector.ReflectFromType(outputType)

	reqBody := schemaRequestBody{
		Model:       request.model,
		Messages:    request.messages,
		Temperature: request.temperature,
		ResponseFormat: &ChatResponseFormat{
			Type: "json_schema",
			JSONSchema: &JSONSchema{
				Name:   outputType.Name(),
				Schema: *schema,
				Strict: true,
			},
		},
	}

	span.SetAttributes(attribute.String("request.model", request.model))
	schemaString, _ := schema.MarshalJSON()
	span.SetAttributes(attribute.String("request.schema", string(schemaString)))

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return output, recordError(span, fmt.Errorf("error marshalling JSON: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, request.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return output, recordError(span, fmt.Errorf("error creating HTTP request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+request.apiKey)

	span.SetAttributes(attribute.String("request.url", req.URL.String()))
	resp, err := client.Do(req)
	if err != nil {
		return output, recordError(span, fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		return output, recordError(span, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
	}

	var responseBody schemaResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&responseBody); err != nil {
		return output, recordError(span, fmt.Errorf("error decoding response body: %w", err))
	}
	if responseBody.Usage != nil {
		span.SetAttributes(
			attribute.Int("response.prompt_tokens", responseBody.Usage.PromptTokens),
			attribute.Int("response.completion_tokens", responseBody.Usage.CompletionTokens),
		)
		tokensCounter.Add(ctx, int64(responseBody.Usage.TotalTokens))
	}
	if len(responseBody.Choices) == 0 {
		return output, recordError(span, fmt.Errorf("response has no choices"))
	}

	content := extractJSON(responseBody.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &output); err != nil {
		return output, recordError(span, fmt.Errorf("error unmarshalling response: %w", err))
	}

	return output, nil
}

// extractJSON strips a markdown code fence some models wrap JSON replies in.
func extractJSON(content string) string {
	split := strings.Split(content, "```")
	if len(split) < 3 {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(strings.TrimPrefix(split[1], "json"))
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// StatusError is returned when Groq answers with a non-OK status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string { return "non-OK HTTP status: " + e.Status }

// Temporary reports whether retrying the request later may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type schemaRequestBody struct {
	Model          string              `json:"model"`
	Messages       []message           `json:"messages"`
	Temperature    *float64            `json:"temperature,omitempty"`
	ResponseFormat *ChatResponseFormat `json:"response_format,omitempty"`
}

type ChatResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

type JSONSchema struct {
	// Name identifies the schema in the response.
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Schema      jsonschema.Schema `json:"schema"`
	// Strict determines whether to enforce the schema upon the generated
	// content.
	Strict bool `json:"strict"`
}

type schemaResponseBody struct {
	Choices []struct {
		Message struct {
			Role         string  `json:"role,omitempty"`
			Content      string  `json:"content,omitempty"`
			FinishReason *string `json:"finish_reason,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
