// Package workflow defines the data model of a conversational workflow.
//
// # Overview
//
// A Definition is an ordered list of Steps. Each Step gathers a handful of
// typed Fields from the user. Definitions are supplied once when a workflow
// view mounts and are never mutated afterwards; the engine works on a copy.
//
// # Definition Files
//
// Definitions are loaded from YAML, TOML or JSON files:
//
//	id: onboarding
//	title: "Customer onboarding"
//	welcome: "Let's get your workspace set up."
//	steps:
//	  - id: company
//	    title: "Company"
//	    fields:
//	      - id: name
//	        type: text
//	        label: "Company name"
//	        required: true
//	      - id: site
//	        type: url
//	        label: "Website"
//
// Values of the form ${VAR_NAME} are expanded from the environment before
// decoding, the same way the gateway configuration is.
//
// # Validation
//
// Definition.Validate reports every structural problem at once:
//
//   - non-empty, unique step ids
//   - non-empty, unique field ids within a step
//   - a known field type (text, url, textarea, select)
//   - at least one option on select fields
//
// Step.Missing is the single required-field check shared by the form
// renderers and the engine.
package workflow
