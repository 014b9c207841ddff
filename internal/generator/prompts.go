package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"blueprint-api/internal/model"
)

const specSystemPrompt = `You are an expert product/solution architect. Given an app idea, produce a STRICT JSON spec with keys:
title, description, modules[], kpis[].
Each module: name, purpose, entities[], apis[], ui[].
Entity fields use types: string|text|integer|number|boolean|date|datetime|email.
apis define method/path/entity; ui defines Table/Form components pointing to entities/fields.
No prose. Return VALID JSON only.`

const codeSystemPrompt = `You are a senior Django/DRF engineer. Given a JSON app spec and a module name, generate PYTHON code strings for:
- models.py (Django models),
- serializers.py (DRF ModelSerializers),
- views.py (DRF ViewSets),
- urls.py (router.register per viewset).
Follow:
- DecimalField for prices with max_digits=10, decimal_places=2.
- CharField with max_length.
- Unique=True where indicated.
- Auto timestamps created_at/updated_at on base model or per model.
- Clean imports, PEP8, no comments except section headers.`

// TypeMapping pairs a document field type with its generated field declaration.
type TypeMapping struct {
	FieldType   string
	Declaration string
}

var TypeMappings = []TypeMapping{
	{FieldType: "string", Declaration: "CharField(max_length=255)"},
	{FieldType: "text", Declaration: "TextField()"},
	{FieldType: "integer", Declaration: "IntegerField()"},
	{FieldType: "number", Declaration: "DecimalField(max_digits=10, decimal_places=2)"},
	{FieldType: "boolean", Declaration: "BooleanField()"},
	{FieldType: "date", Declaration: "DateField()"},
	{FieldType: "datetime", Declaration: "DateTimeField()"},
	{FieldType: "email", Declaration: "EmailField()"},
}

func specPrompt(idea string) string {
	return "Generate a technical specification for: " + idea
}

func refinePrompt(current model.Document, instruction string) (string, error) {
	doc, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal current document: %w", err)
	}

	var b strings.Builder
	b.WriteString("Current Specification:\n")
	b.Write(doc)
	b.WriteString("\n\nRefinement Instruction:\n")
	b.WriteString(instruction)
	b.WriteString("\n\nApply the instruction as a change to the current specification and keep every unrelated field as it is.\n")
	b.WriteString("Return the refined specification maintaining the exact same JSON schema with keys: title, description, modules[], kpis[].")
	return b.String(), nil
}

func implementationPrompt(doc model.Document, moduleName string) (string, error) {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Generate Django REST Framework implementation for module '%s' from this specification:\n\n", moduleName)
	b.WriteString("Specification:\n")
	b.Write(raw)
	b.WriteString("\n\nMap entity field types to Django fields:\n")
	for _, m := range TypeMappings {
		fmt.Fprintf(&b, "- %s -> %s\n", m.FieldType, m.Declaration)
	}
	b.WriteString("\nReturn JSON with four keys: models_py, serializers_py, views_py, urls_py\n")
	b.WriteString("Each value should contain the complete Python code as a string.")
	return b.String(), nil
}
