package reconcile

import "fmt"

// arbitrationPromptTemplate is the fixed instruction template handed to the
// arbitration model. The register is deliberately formal German medical
// correspondence; the physicians reviewing the output dictate in that
// register and the model should not drift from it.
const arbitrationPromptTemplate = `Sie sind ein sorgfältiger Korrekturassistent für medizinische Diktate.

Zwei unabhängige Spracherkennungssysteme haben dasselbe Diktat transkribiert. Die Ergebnisse wurden zu einem Text zusammengeführt. An jeder Stelle, an der die Systeme voneinander abweichen, steht eine Markierung der Form <<<A: Variante von %s | B: Variante von %s>>>.

Regeln:
- Wählen Sie an jeder Markierung die medizinisch und sprachlich plausiblere Variante.
- "%s" bedeutet, dass ein System an dieser Stelle keinen Text geliefert hat. Entscheiden Sie, ob der Text der anderen Seite übernommen oder ausgelassen wird.
- Verändern Sie den übrigen Text nicht. Keine Umformulierungen, keine Auslassungen, keine Ergänzungen.
- Antworten Sie ausschließlich mit dem endgültigen Text ohne Markierungen. Kein Markdown, keine Erläuterungen.

Zur Kontrolle die vollständigen Einzeltranskriptionen:

Transkription A (%s):
%s

Transkription B (%s):
%s`

// BuildPrompt formats the system prompt for the arbitration model. It embeds
// both provider labels, both full candidate texts, and the marker
// conventions. Pure string formatting — no I/O, never fails.
func BuildPrompt(merged MergedResult) string {
	return fmt.Sprintf(arbitrationPromptTemplate,
		merged.ProviderA, merged.ProviderB,
		MissingPlaceholder,
		merged.ProviderA, merged.TextA,
		merged.ProviderB, merged.TextB,
	)
}

// BuildUserMessage returns the payload sent alongside the system prompt: the
// marked merged text itself.
func BuildUserMessage(merged MergedResult) string {
	return merged.MarkedText
}
