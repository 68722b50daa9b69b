package main

import (
	"github.com/docintake/docintake/core/extraction"
	"github.com/docintake/docintake/core/extraction/formats"
)

// defaultGlobal is the baseline written by `docintakectl init`.
func defaultGlobal() *extraction.GlobalConfig {
	return &extraction.GlobalConfig{
		Processing: extraction.ProcessingConfig{Concurrency: 2},
		Output: extraction.OutputConfig{
			FilenameTemplate:           "{invoiceDate}_{vendor}_{invoiceNumber}",
			ProcessedOriginalSubfolder: "processed",
			ProcessedEnrichedSubfolder: "enriched",
			CSVFilename:                "extractions.csv",
			IncludeSummary:             true,
		},
		Model: "gpt-4o-mini",
		FieldDefinitions: []extraction.FieldDefinition{
			{Key: "vendor", Label: "Vendor", Type: extraction.FieldText, SchemaHint: "legal name of the issuer", Enabled: true, BuiltIn: true},
			{Key: "invoiceNumber", Label: "Invoice number", Type: extraction.FieldText, Enabled: true, BuiltIn: true},
			{Key: "invoiceDate", Label: "Invoice date", Type: extraction.FieldDate, SchemaHint: "YYYY-MM-DD", Enabled: true, Format: formats.ISO8601, BuiltIn: true},
			{Key: "paymentDate", Label: "Payment date", Type: extraction.FieldDate, SchemaHint: "YYYY-MM-DD", Instruction: "due date, or the invoice date when none is printed", Enabled: true, Format: formats.ISO8601, BuiltIn: true},
			{Key: "totalAmount", Label: "Total amount", Type: extraction.FieldNumber, SchemaHint: "gross total as a number", Enabled: true, BuiltIn: true},
			{Key: "currency", Label: "Currency", Type: extraction.FieldText, SchemaHint: "ISO 4217 code", Enabled: true, Format: formats.ISO4217, BuiltIn: true},
			{Key: "iban", Label: "IBAN", Type: extraction.FieldText, Enabled: false, Format: formats.ISO13616},
			{Key: "lineItems", Label: "Line items", Type: extraction.FieldArray, SchemaHint: "list of {description, amount}", Enabled: false},
		},
		TagDefinitions: []extraction.TagDefinition{
			{ID: "reminder", Label: "Payment reminder", Instruction: "true if the document is a payment reminder or dunning notice", Enabled: true, IncludeInFilename: true, IncludeInCSV: true},
			{ID: "addressedToUs", Label: "Addressed to us", Instruction: `true if the recipient address contains "{{address}}"`, Enabled: false,
				Parameters: map[string]extraction.TagParameter{"address": {Label: "Our address", Default: "123 Main St"}}, IncludeInCSV: true},
		},
		PromptTemplate: extraction.PromptTemplate{
			Preamble:     "You extract structured data from business documents. Return these keys:",
			GeneralRules: "Use \"Unknown\" for text you cannot find. Never invent values. Dates are YYYY-MM-DD.",
			Suffix:       "Respond with a single JSON object and nothing else. Put tag results under \"tags\".",
		},
	}
}
