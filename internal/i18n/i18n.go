// ABOUTME: Language context and phrase catalog for engine messages and form text
// ABOUTME: Uses golang.org/x/text for Accept-Language matching and message formatting

// Package i18n carries the read-only presentation context (language, user,
// theme) that is injected into each engine, and the phrase catalog used for
// every message the engine writes on its own behalf.
package i18n

import (
	"strings"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Phrase keys.
const (
	KeyWelcome       = "welcome"
	KeyPrompt        = "prompt"
	KeyCompletion    = "completion"
	KeyCancelled     = "cancelled"
	KeyDeliverable   = "deliverable"
	KeyReplyPending  = "reply-pending"
	KeyReplyComplete = "reply-complete"
	KeyMissingFields = "missing-fields"
	KeyInvalidOption = "invalid-option"
	KeyFieldRequired = "field-required"
	KeyFieldInvalid  = "field-invalid"
	KeyNoSelection   = "no-selection"
	KeySubmit        = "submit"
	KeyCancel        = "cancel"
	KeyShowMore      = "show-more"
)

// Supported lists the languages with a full phrase set. The first entry is
// the fallback.
var Supported = []language.Tag{language.English, language.Spanish, language.German}

var matcher = language.NewMatcher(Supported)

var phrases = map[language.Tag]map[string]string{
	language.English: {
		KeyWelcome:       "Welcome to %s. I'll walk you through it one step at a time.",
		KeyPrompt:        "Next up: %s. Please fill in the form below.",
		KeyCompletion:    "Thanks, %s is done.",
		KeyCancelled:     "No problem, I've closed the %s form. Pick it up again whenever you're ready.",
		KeyDeliverable:   "All steps are complete. Your deliverable is ready to download.",
		KeyReplyPending:  "Got it. To keep going, please complete the current step's form.",
		KeyReplyComplete: "Everything is collected. You can download your deliverable any time.",
		KeyMissingFields: "Please fill in: %s",
		KeyInvalidOption: "Please pick one of the listed options for: %s",
		KeyFieldRequired: "This field is required.",
		KeyFieldInvalid:  "Pick one of the listed options.",
		KeyNoSelection:   "No selection",
		KeySubmit:        "Submit",
		KeyCancel:        "Cancel",
	},
	language.Spanish: {
		KeyWelcome:       "Bienvenido a %s. Te guiaré paso a paso.",
		KeyPrompt:        "Siguiente: %s. Completa el formulario de abajo.",
		KeyCompletion:    "Gracias, %s está listo.",
		KeyCancelled:     "Sin problema, he cerrado el formulario de %s. Retómalo cuando quieras.",
		KeyDeliverable:   "Todos los pasos están completos. Tu entregable está listo para descargar.",
		KeyReplyPending:  "Entendido. Para continuar, completa el formulario del paso actual.",
		KeyReplyComplete: "Ya tengo todo. Puedes descargar tu entregable cuando quieras.",
		KeyMissingFields: "Completa: %s",
		KeyInvalidOption: "Elige una de las opciones de la lista para: %s",
		KeyFieldRequired: "Este campo es obligatorio.",
		KeyFieldInvalid:  "Elige una de las opciones de la lista.",
		KeyNoSelection:   "Sin selección",
		KeySubmit:        "Enviar",
		KeyCancel:        "Cancelar",
	},
	language.German: {
		KeyWelcome:       "Willkommen bei %s. Ich führe dich Schritt für Schritt durch.",
		KeyPrompt:        "Als Nächstes: %s. Bitte fülle das Formular unten aus.",
		KeyCompletion:    "Danke, %s ist erledigt.",
		KeyCancelled:     "Kein Problem, das Formular %s ist geschlossen. Mach weiter, wann du willst.",
		KeyDeliverable:   "Alle Schritte sind erledigt. Dein Ergebnis steht zum Download bereit.",
		KeyReplyPending:  "Verstanden. Bitte fülle zuerst das Formular des aktuellen Schritts aus.",
		KeyReplyComplete: "Alles ist erfasst. Du kannst dein Ergebnis jederzeit herunterladen.",
		KeyMissingFields: "Bitte ausfüllen: %s",
		KeyInvalidOption: "Bitte wähle eine der aufgeführten Optionen für: %s",
		KeyFieldRequired: "Dieses Feld ist erforderlich.",
		KeyFieldInvalid:  "Wähle eine der aufgeführten Optionen.",
		KeyNoSelection:   "Keine Auswahl",
		KeySubmit:        "Absenden",
		KeyCancel:        "Abbrechen",
	},
}

// showMore holds the singular and plural forms of the expand button label.
var showMore = map[language.Tag][2]string{
	language.English: {"Show %d more field", "Show %d more fields"},
	language.Spanish: {"Mostrar %d campo más", "Mostrar %d campos más"},
	language.German:  {"%d weiteres Feld anzeigen", "%d weitere Felder anzeigen"},
}

var phraseCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(Supported[0]))
	for tag, entries := range phrases {
		for key, msg := range entries {
			// Only fails on malformed messages, which are static above.
			_ = b.SetString(tag, key, msg)
		}
	}
	for tag, forms := range showMore {
		_ = b.Set(tag, KeyShowMore, plural.Selectf(1, "%d", "one", forms[0], "other", forms[1]))
	}
	return b
}

// Context is the read-only presentation context injected into an engine.
type Context struct {
	Language language.Tag
	User     string
	Theme    string
}

// DefaultContext returns an English context with no user.
func DefaultContext() Context {
	return Context{Language: Supported[0], Theme: "light"}
}

// Match picks the best supported language for an Accept-Language header value.
func Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return Supported[idx]
}

// Parse resolves a configured language name, falling back to English.
func Parse(name string) language.Tag {
	if strings.TrimSpace(name) == "" {
		return Supported[0]
	}
	return Match(name)
}

// Phrases formats engine messages for one language.
type Phrases struct {
	tag     language.Tag
	printer *message.Printer
}

// For returns the phrase set for tag.
func For(tag language.Tag) *Phrases {
	_, idx, _ := matcher.Match(tag)
	resolved := Supported[idx]
	return &Phrases{
		tag:     resolved,
		printer: message.NewPrinter(resolved, message.Catalog(phraseCatalog)),
	}
}

// Language returns the resolved language.
func (p *Phrases) Language() language.Tag { return p.tag }

func (p *Phrases) Welcome(workflowTitle string) string {
	return p.printer.Sprintf(KeyWelcome, workflowTitle)
}

func (p *Phrases) Prompt(stepTitle string) string {
	return p.printer.Sprintf(KeyPrompt, stepTitle)
}

func (p *Phrases) Completion(stepTitle string) string {
	return p.printer.Sprintf(KeyCompletion, stepTitle)
}

func (p *Phrases) Cancelled(stepTitle string) string {
	return p.printer.Sprintf(KeyCancelled, stepTitle)
}

func (p *Phrases) Deliverable() string {
	return p.printer.Sprintf(KeyDeliverable)
}

func (p *Phrases) ReplyPending() string {
	return p.printer.Sprintf(KeyReplyPending)
}

func (p *Phrases) ReplyComplete() string {
	return p.printer.Sprintf(KeyReplyComplete)
}

// MissingFields formats the user-visible validation message.
func (p *Phrases) MissingFields(labels []string) string {
	return p.printer.Sprintf(KeyMissingFields, strings.Join(labels, ", "))
}

// InvalidOption formats the banner for select values outside their options.
func (p *Phrases) InvalidOption(labels []string) string {
	return p.printer.Sprintf(KeyInvalidOption, strings.Join(labels, ", "))
}

func (p *Phrases) FieldRequired() string { return p.printer.Sprintf(KeyFieldRequired) }
func (p *Phrases) FieldInvalid() string  { return p.printer.Sprintf(KeyFieldInvalid) }
func (p *Phrases) NoSelection() string   { return p.printer.Sprintf(KeyNoSelection) }
func (p *Phrases) Submit() string        { return p.printer.Sprintf(KeySubmit) }
func (p *Phrases) Cancel() string        { return p.printer.Sprintf(KeyCancel) }

// ShowMore labels the button that expands an inline form with n hidden fields.
func (p *Phrases) ShowMore(n int) string {
	return p.printer.Sprintf(KeyShowMore, n)
}
