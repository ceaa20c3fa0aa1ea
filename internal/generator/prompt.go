package generator

import (
	"fmt"
	"strings"

	"github.com/yourorg/apitestgen/pkg/types"
)

const (
	// ArtifactSuffix is appended to the underscored title to name a generated artifact.
	ArtifactSuffix = "_Tests.java"
	// TargetLanguage is the fence tag expected around generated code.
	TargetLanguage = "java"

	// HealthPrompt is sent by health checks to verify the gateway answers.
	HealthPrompt = "Hello, respond with 'OK' if you can process this request."
)

const preamble = "You are an expert QA engineer specializing in API testing. Generate comprehensive JUnit 5 test cases for this REST API.\n"

const requirements = `Requirements:
1. Generate complete JUnit 5 test classes with proper annotations
2. Include positive test cases for valid inputs
3. Include negative test cases for invalid data and error conditions
4. Add boundary value testing for numeric fields
5. Test edge cases (empty strings, null values, special characters)
6. Generate realistic test data matching API schemas
7. Use proper assertions for status codes, headers, and response body
8. Use RestTemplate or TestRestTemplate for API calls
9. Include setup and teardown methods
10. Follow Spring Boot testing best practices
`

const scaffold = `Generate complete, runnable Java test classes:

package com.example.api.test;

import org.junit.jupiter.api.Test;
import org.junit.jupiter.api.BeforeEach;
import org.springframework.boot.test.context.SpringBootTest;
import org.springframework.test.web.reactive.server.WebTestClient;
import static org.junit.jupiter.api.Assertions.*;

@SpringBootTest(webEnvironment = SpringBootTest.WebEnvironment.RANDOM_PORT)
public class %sApiTest {

Generate the complete test implementation now:`

// RenderPrompt renders the generation prompt for api. The output depends only
// on api, so re-rendering a stored spec reproduces the original prompt.
func RenderPrompt(api *types.APIDescription) string {
	if api == nil {
		api = &types.APIDescription{}
	}
	sections := []string{
		preamble,
		renderInfo(api),
		renderEndpoints(api.Endpoints),
		renderSchemas(api.Schemas),
		requirements,
		fmt.Sprintf(scaffold, ClassName(api.Title)),
	}
	return strings.Join(sections, "\n")
}

func renderInfo(api *types.APIDescription) string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "API Information:")
	fmt.Fprintf(b, "Title: %s\n", api.Title)
	fmt.Fprintf(b, "Version: %s\n", api.Version)
	fmt.Fprintf(b, "Description: %s\n", api.Description)
	fmt.Fprintf(b, "Base URL: %s\n", api.BaseURL)
	return b.String()
}

func renderEndpoints(endpoints []types.Endpoint) string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "Endpoints:")
	if len(endpoints) == 0 {
		fmt.Fprintln(b, "No endpoints defined")
		return b.String()
	}
	for _, ep := range endpoints {
		fmt.Fprintf(b, "- %s %s\n", ep.Method, ep.Path)
		fmt.Fprintf(b, "  Summary: %s\n", orDefault(ep.Summary, "N/A"))
		// Nameless parameters stay as empty slots so the count is preserved.
		params := "None"
		if len(ep.Parameters) > 0 {
			params = strings.Join(ep.ParameterNames(), ", ")
		}
		fmt.Fprintf(b, "  Parameters: %s\n", params)
		fmt.Fprintf(b, "  Responses: %s\n", orDefault(strings.Join(ep.ResponseCodes(), ", "), "N/A"))
	}
	return b.String()
}

func renderSchemas(schemas []types.Schema) string {
	b := &strings.Builder{}
	fmt.Fprintln(b, "Data Models:")
	if len(schemas) == 0 {
		fmt.Fprintln(b, "No schemas defined")
		return b.String()
	}
	for _, s := range schemas {
		props := make([]string, 0, len(s.Properties))
		for _, p := range s.Properties {
			props = append(props, p.Name+": "+p.Type)
		}
		fmt.Fprintf(b, "- %s: %s\n", s.Name, strings.Join(props, ", "))
	}
	return b.String()
}

// ComposeRefinement builds the prompt asking the model to revise existingCode
// according to feedback.
func ComposeRefinement(originalPrompt, existingCode, feedback string) (string, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return "", invalidInput(ReasonEmptyFeedback, "feedback must not be empty")
	}
	if strings.TrimSpace(existingCode) == "" {
		return "", invalidInput(ReasonMissingCode, "no previously generated code to refine")
	}
	b := &strings.Builder{}
	fmt.Fprintln(b, "You are a senior QA automation engineer and Java expert.")
	fmt.Fprintln(b)
	fmt.Fprintln(b, "Context:")
	fmt.Fprintln(b, "The following JUnit 5 test code was previously generated using the given API specification.")
	fmt.Fprintln(b)
	fmt.Fprintln(b, "ORIGINAL PROMPT:")
	fmt.Fprintln(b, originalPrompt)
	fmt.Fprintln(b)
	fmt.Fprintln(b, "EXISTING TEST CODE:")
	fmt.Fprintln(b, existingCode)
	fmt.Fprintln(b)
	fmt.Fprintln(b, "USER FEEDBACK:")
	fmt.Fprintln(b, feedback)
	fmt.Fprintln(b)
	fmt.Fprintln(b, "TASK:")
	fmt.Fprintln(b, "Improve the test code based on user feedback and regenerate the complete updated test class following best practices.")
	return b.String(), nil
}

// ClassName strips spaces from title for the scaffolded test class.
func ClassName(title string) string {
	return strings.ReplaceAll(title, " ", "")
}

var filenameReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_")

// ArtifactFilename derives the artifact key from an API title. Path
// separators become underscores so the key is a single path segment.
func ArtifactFilename(title string) string {
	return filenameReplacer.Replace(title) + ArtifactSuffix
}

// TitleFromFilename reverses ArtifactFilename as far as it can: underscores
// in the original title come back as spaces.
func TitleFromFilename(filename string) string {
	return strings.ReplaceAll(strings.TrimSuffix(filename, ArtifactSuffix), "_", " ")
}

// TitleKey is the case- and separator-insensitive form used to match a title
// against stored uploads.
func TitleKey(title string) string {
	r := strings.NewReplacer(" ", "", "_", "", "/", "", "\\", "")
	return strings.ToLower(r.Replace(title))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
